package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"celcatsync/internal/celcat"
	"celcatsync/internal/config"
	"celcatsync/internal/timetable"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "celcatsync",
		Usage: "Export CELCAT timetables to calendars and check room occupancy.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "celcat.yaml", Usage: "Path to the YAML configuration file."},
			&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"LOG_LEVEL"}, Usage: "Log level: debug, info, warn or error."},
		},
		Commands: []*cli.Command{
			icsCommand(),
			roomsCommand(),
			roomsConfigCommand(),
			syncCommand(),
			authCommand(),
			serveCommand(),
			initCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

// env is what every command needs: the configuration and a logger.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	// now is time.Now when nil.
	now func() time.Time
}

func (e *env) today() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

func loadEnv(c *cli.Context) (*env, error) {
	logger := setupLogger(c.String("log-level"))
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Debug("Configuration loaded.", "file", c.String("config"), "backend", cfg.Backend.BaseURL)
	return &env{cfg: cfg, logger: logger}, nil
}

func (e *env) client() *celcat.Client {
	return celcat.NewClient(e.logger, e.cfg.Backend)
}

func (e *env) collector() *timetable.Collector {
	return e.collectorFor(e.client())
}

func (e *env) collectorFor(client *celcat.Client) *timetable.Collector {
	return timetable.NewCollector(e.logger, client, e.cfg.Concurrency)
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a configuration file with the default settings.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file."},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(c.String("log-level"))
			path := c.String("config")
			if _, err := os.Stat(path); err == nil && !c.Bool("force") {
				return fmt.Errorf("%s already exists, use --force to overwrite it", path)
			}
			if err := config.Save(path, config.DefaultConfig()); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			logger.Info("Wrote default configuration.", "file", path)
			return nil
		},
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
