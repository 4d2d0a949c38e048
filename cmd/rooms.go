package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"celcatsync/internal/celcat"
	"celcatsync/internal/occupancy"
	"celcatsync/internal/period"
)

func roomsCommand() *cli.Command {
	return &cli.Command{
		Name:  "rooms",
		Usage: "Show which rooms are busy in the morning and evening bands.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Day to check (YYYY-MM-DD). Defaults to today."},
			&cli.StringFlag{Name: "rooms", Aliases: []string{"r"}, Value: roomsFileName(""), Usage: "Rooms file to read."},
			&cli.StringFlag{Name: "at", Usage: "Clock time (HH:MM); report free/busy until instead of bands."},
		},
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			closed, err := e.cfg.ClosedDays()
			if err != nil {
				return err
			}
			date := c.String("date")
			if date == "" {
				date = e.today().Format("2006-01-02")
			}
			day, err := period.ParseAnchor(date, closed)
			if err != nil {
				return err
			}

			layout, err := occupancy.LoadLayout(c.String("rooms"))
			if err != nil {
				return fmt.Errorf("failed to load rooms: %w", err)
			}
			settings, err := occupancy.SettingsFromConfig(e.cfg)
			if err != nil {
				return err
			}
			evaluator := occupancy.NewEvaluator(e.logger, e.client(), settings, e.cfg.ResourceType("room"), e.cfg.Concurrency)
			report := occupancy.NewReport(os.Stdout, layout)
			rooms := layout.Rooms()

			if at := c.String("at"); at != "" {
				clock, err := occupancy.ParseClock(at)
				if err != nil {
					return err
				}
				results := make([]occupancy.AvailabilityResult, len(rooms))
				for i, room := range rooms {
					av, err := evaluator.FreeUntil(c.Context, day, clock, room)
					results[i] = occupancy.AvailabilityResult{Availability: av, Err: err}
				}
				report.Availability(results)
				return nil
			}

			report.Bands(evaluator.Evaluate(c.Context, day, rooms))
			return nil
		},
	}
}

func roomsConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "rooms-config",
		Usage: "Generate a rooms file from the backend resource list.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dept", Usage: "Only keep rooms of this department (\"all\" keeps everything)."},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file. Defaults to configs/rooms.txt or configs/rooms_<dept>.txt."},
			&cli.BoolFlag{Name: "list-depts", Usage: "Print the departments and their room counts, then exit."},
		},
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			resources, err := e.client().Resources(c.Context, e.cfg.ResourceType("room"))
			if err != nil {
				return fmt.Errorf("failed to list rooms: %w", err)
			}

			if c.Bool("list-depts") {
				depts := celcat.Departments(resources)
				names := make([]string, 0, len(depts))
				for name := range depts {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Printf("%-40s %d\n", name, depts[name])
				}
				return nil
			}

			dept := c.String("dept")
			selected := celcat.FilterByDept(resources, dept)
			if len(selected) == 0 {
				return fmt.Errorf("no rooms found for department %q", dept)
			}
			ids := make([]string, 0, len(selected))
			for _, r := range selected {
				ids = append(ids, r.ID)
			}

			out := c.String("out")
			if out == "" {
				out = roomsFileName(dept)
			}
			var buf bytes.Buffer
			if err := occupancy.WriteRooms(&buf, ids); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return fmt.Errorf("failed to create rooms directory: %w", err)
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("failed to write rooms file: %w", err)
			}
			e.logger.Info("Wrote rooms file.", "file", out, "rooms", len(ids))
			return nil
		},
	}
}

// roomsDir holds the generated rooms files.
const roomsDir = "configs"

func roomsFileName(dept string) string {
	if dept == "" || strings.EqualFold(dept, "all") {
		return filepath.Join(roomsDir, "rooms.txt")
	}
	return filepath.Join(roomsDir, "rooms_"+sanitizeName(strings.ToLower(dept))+".txt")
}
