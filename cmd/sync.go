package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"celcatsync/internal/caldav"
	"celcatsync/internal/google"
	"celcatsync/internal/occupancy"
	"celcatsync/internal/server"
	"celcatsync/internal/syncer"
)

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize a Google account and store its token.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "account", Usage: "Name to store the token under (e.g. 'personal', 'work')."},
		},
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			e.logger.Info("Starting Google authentication flow.")

			oauthCfg, err := google.OAuthConfig(e.cfg.Google)
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			in := bufio.NewReader(os.Stdin)
			prompt := func(label string) string {
				fmt.Print(label)
				line, _ := in.ReadString('\n')
				return strings.TrimSpace(line)
			}

			fmt.Printf("Open this URL, grant calendar access and paste the code below:\n%s\n",
				oauthCfg.AuthCodeURL("celcatsync", oauth2.AccessTypeOffline))
			code := prompt("Code: ")
			if code == "" {
				return errors.New("no authorization code given")
			}

			token, err := oauthCfg.Exchange(c.Context, code)
			if err != nil {
				return fmt.Errorf("failed to exchange authorization code: %w", err)
			}

			account := c.String("account")
			if account == "" {
				account = prompt("Account name: ")
			}
			tokenFile, err := google.SaveToken(e.cfg.Google.TokenDir, account, token)
			if err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			e.logger.Info("Token saved.", "account", account, "file", tokenFile)
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	flags := append(timetableFlags(),
		&cli.StringSliceFlag{Name: "target", Value: cli.NewStringSlice("caldav"), Usage: "Publish to caldav and/or google."},
		&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be synced without making changes."},
		&cli.IntFlag{Name: "watch", Value: 3600, Usage: "Run sync every N seconds."},
	)
	return &cli.Command{
		Name:  "sync",
		Usage: "Publish a timetable to remote calendars.",
		Flags: flags,
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			if c.Bool("dry-run") {
				e.logger.Info("Performing a dry run. No changes will be made.")
			}
			query := timetableQueryFrom(c)
			if _, err := e.request(query); err != nil {
				return err
			}

			publishers, err := e.publishers(c)
			if err != nil {
				return err
			}

			s, err := syncer.NewSyncer(e.logger, e.collector(), publishers, e.cfg.StateFile, e.cfg.UIDDomain, c.Bool("dry-run"))
			if err != nil {
				return fmt.Errorf("failed to create syncer: %w", err)
			}

			if !c.IsSet("watch") {
				e.logger.Info("Running a single sync cycle.")
				if err := e.syncCycle(c.Context, s, query); err != nil {
					return fmt.Errorf("single sync cycle failed: %w", err)
				}
				return nil
			}

			interval := time.Duration(c.Int("watch")) * time.Second
			if interval <= 0 {
				return fmt.Errorf("--watch must be positive")
			}
			e.logger.Info("Starting watcher.", "interval", interval)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if err := e.syncCycle(c.Context, s, query); err != nil {
					e.logger.Error("Sync cycle failed", "error", err)
				}
				select {
				case <-c.Context.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
}

// syncCycle resolves the request for the current day and syncs it.
func (e *env) syncCycle(ctx context.Context, s *syncer.Syncer, q timetableQuery) error {
	req, err := e.request(q)
	if err != nil {
		return err
	}
	return s.Sync(ctx, req)
}

// publishers connects to every calendar named by --target.
func (e *env) publishers(c *cli.Context) ([]syncer.Publisher, error) {
	var out []syncer.Publisher
	for _, target := range c.StringSlice("target") {
		switch strings.ToLower(target) {
		case "caldav":
			dav := e.cfg.CalDAV
			if dav.Username == "" || dav.Calendar == "" {
				return nil, fmt.Errorf("caldav target needs CALDAV_USERNAME and CALDAV_CALENDAR")
			}
			client, err := caldav.NewClient(c.Context, e.logger, caldav.Options{
				Endpoint:  dav.Endpoint,
				Username:  dav.Username,
				Password:  dav.Password,
				Calendar:  dav.Calendar,
				ProductID: e.cfg.ProductID,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create caldav client: %w", err)
			}
			out = append(out, client)
		case "google":
			accounts := []string{e.cfg.Google.Account}
			if e.cfg.Google.Account == "" {
				found, err := google.Accounts(e.cfg.Google.TokenDir)
				if err != nil {
					return nil, fmt.Errorf("could not find any google accounts, did you run auth command? %w", err)
				}
				if len(found) == 0 {
					return nil, fmt.Errorf("no google accounts found. Run the 'auth' command first")
				}
				accounts = found
			}
			for _, acc := range accounts {
				client, err := google.NewClient(c.Context, e.logger, e.cfg.Google, acc)
				if err != nil {
					return nil, fmt.Errorf("failed to create google client for account %s: %w", acc, err)
				}
				out = append(out, client)
			}
		default:
			return nil, fmt.Errorf("unknown sync target %q (want caldav or google)", target)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sync target given")
	}
	e.logger.Info("Initialized publishers.", "count", len(out))
	return out, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve ICS subscriptions and room occupancy over HTTP.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "Address to listen on. Overrides the config."},
		},
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			if l := c.String("listen"); l != "" {
				e.cfg.Listen = l
			}
			settings, err := occupancy.SettingsFromConfig(e.cfg)
			if err != nil {
				return err
			}
			client := e.client()
			collector := e.collectorFor(client)
			evaluator := occupancy.NewEvaluator(e.logger, client, settings, e.cfg.ResourceType("room"), e.cfg.Concurrency)

			srv, err := server.New(e.logger, e.cfg, collector, evaluator)
			if err != nil {
				return err
			}
			return srv.Run(c.Context)
		},
	}
}
