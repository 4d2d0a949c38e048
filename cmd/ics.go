package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"celcatsync/internal/export"
	"celcatsync/internal/period"
	"celcatsync/internal/timetable"
)

// timetableFlags are shared by the commands that fetch a timetable.
func timetableFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "period", Aliases: []string{"p"}, Value: string(period.Week), Usage: "One of day, week, month or year."},
		&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Anchor date (YYYY-MM-DD). Defaults to today."},
		&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Entity kind: group, room or module."},
		&cli.StringSliceFlag{Name: "id", Required: true, Usage: "Entity identifier. Repeat for several."},
	}
}

// timetableQuery holds the timetable flags as given on the command line.
type timetableQuery struct {
	period string
	date   string
	kind   string
	ids    []string
}

func timetableQueryFrom(c *cli.Context) timetableQuery {
	return timetableQuery{
		period: c.String("period"),
		date:   c.String("date"),
		kind:   c.String("type"),
		ids:    c.StringSlice("id"),
	}
}

// request resolves q into a timetable request. Without a date the anchor
// is today, so commands that run repeatedly follow the calendar.
func (e *env) request(q timetableQuery) (timetable.Request, error) {
	closed, err := e.cfg.ClosedDays()
	if err != nil {
		return timetable.Request{}, err
	}
	date := q.date
	if date == "" {
		date = e.today().Format("2006-01-02")
	}
	anchor, err := period.ParseAnchor(date, closed)
	if err != nil {
		return timetable.Request{}, err
	}
	kind := q.kind
	if kind == "" {
		kind = e.cfg.DefaultResourceType
	}
	return timetable.Request{
		Period:       period.Parse(q.period),
		Anchor:       anchor,
		ResourceType: e.cfg.ResourceType(kind),
		IDs:          q.ids,
	}, nil
}

func icsCommand() *cli.Command {
	flags := append(timetableFlags(),
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file, or the database URL for pgsql."},
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "ics", Usage: "One of ics, json, pjson or pgsql."},
		&cli.StringFlag{Name: "schedule", Usage: "Cron expression; keep running and export on every tick."},
	)
	return &cli.Command{
		Name:  "ics",
		Usage: "Export a timetable to an ICS file (or JSON, or PostgreSQL).",
		Flags: flags,
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			format := strings.ToLower(c.String("format"))
			conv, err := export.New(format, export.Options{ProductID: e.cfg.ProductID, UIDDomain: e.cfg.UIDDomain})
			if err != nil {
				return err
			}
			x := &exporter{
				env:       e,
				query:     timetableQueryFrom(c),
				format:    format,
				out:       c.String("out"),
				conv:      conv,
				collector: e.collector(),
			}
			// Fail fast on a bad date or a missing output.
			req, err := e.request(x.query)
			if err != nil {
				return err
			}
			if _, err := x.output(req); err != nil {
				return err
			}

			spec := c.String("schedule")
			if spec == "" {
				return x.run(c.Context)
			}

			sched := cron.New()
			if _, err := sched.AddFunc(spec, func() {
				if err := x.run(c.Context); err != nil {
					e.logger.Error("Scheduled export failed", "error", err)
				}
			}); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", spec, err)
			}
			e.logger.Info("Starting scheduled export.", "schedule", spec)
			sched.Start()
			<-c.Context.Done()
			<-sched.Stop().Done()
			return nil
		},
	}
}

// exporter runs one export; the request and the default output are
// resolved again on every run.
type exporter struct {
	env       *env
	query     timetableQuery
	format    string
	out       string
	conv      export.Converter
	collector *timetable.Collector
}

func (x *exporter) output(req timetable.Request) (string, error) {
	out := x.out
	if out == "" {
		out = x.env.defaultOutput(x.format, req)
	}
	if out == "" {
		return "", errors.New("no output given: set --out or DATABASE_URL")
	}
	if (x.format == "ics" || x.format == "") && !strings.HasSuffix(strings.ToLower(out), ".ics") {
		out += ".ics"
	}
	return out, nil
}

func (x *exporter) run(ctx context.Context) error {
	req, err := x.env.request(x.query)
	if err != nil {
		return err
	}
	out, err := x.output(req)
	if err != nil {
		return err
	}
	events, err := x.collector.Events(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to fetch timetable: %w", err)
	}
	if err := x.conv.Write(events, out); err != nil {
		return fmt.Errorf("failed to export timetable: %w", err)
	}
	x.env.logger.Info("Exported timetable.", "events", len(events), "out", redactDSN(x.format, out), "period", req.Period, "range", period.Resolve(req.Period, req.Anchor))
	return nil
}

// defaultOutput is calendars/<id>-<period>_<date>.<ext>, or the configured
// database for pgsql.
func (e *env) defaultOutput(format string, req timetable.Request) string {
	if format == "pgsql" {
		return e.cfg.DatabaseURL
	}
	ext := ".ics"
	if format == "json" || format == "pjson" {
		ext = ".json"
	}
	name := fmt.Sprintf("%s-%s_%s%s", sanitizeName(strings.Join(req.IDs, "+")), req.Period, req.Anchor.Format("2006-01-02"), ext)
	return filepath.Join("calendars", name)
}

// sanitizeName keeps a file name portable.
func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '+', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

func redactDSN(format, out string) string {
	if format == "pgsql" {
		return "<database>"
	}
	return out
}
