// Package timetable drives backend fetches for a period and merges the
// results into one deduplicated record stream.
package timetable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"celcatsync/internal/celcat"
	"celcatsync/internal/models"
	"celcatsync/internal/period"
)

// Fetcher is the backend call used by the collector.
type Fetcher interface {
	Fetch(ctx context.Context, q celcat.Query) ([]models.RawRecord, error)
}

// Request describes what to collect.
type Request struct {
	Period       period.Period
	Anchor       time.Time
	ResourceType int
	IDs          []string
}

// Collector orchestrates the fetches of one request.
type Collector struct {
	fetcher     Fetcher
	logger      *slog.Logger
	concurrency int
}

// NewCollector creates a Collector. concurrency bounds the number of month
// fetches in flight for year requests; values below 1 mean sequential.
func NewCollector(logger *slog.Logger, fetcher Fetcher, concurrency int) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Collector{fetcher: fetcher, logger: logger, concurrency: concurrency}
}

// Collect fetches the raw records of req, deduplicated by id.
//
// Day, week and month requests issue one call and return its error as is.
// Year requests issue one month-view call per month of the academic year;
// a failed month is logged and contributes nothing. When every month
// failed, Collect returns the joined month errors and no records, never an
// empty year.
func (c *Collector) Collect(ctx context.Context, req Request) ([]models.RawRecord, error) {
	if req.Period != period.Year {
		r := period.Resolve(req.Period, req.Anchor)
		records, err := c.fetcher.Fetch(ctx, celcat.Query{
			Start:        r.StartDate(),
			End:          r.EndDate(),
			ResourceType: req.ResourceType,
			View:         period.View(req.Period),
			IDs:          req.IDs,
		})
		if err != nil {
			return nil, err
		}
		return Dedupe(records), nil
	}
	return c.collectYear(ctx, req)
}

func (c *Collector) collectYear(ctx context.Context, req Request) ([]models.RawRecord, error) {
	plan := period.AcademicYear(req.Anchor)
	parts := make([][]models.RawRecord, len(plan))
	errs := make([]error, len(plan))

	// Each goroutine owns its slot; siblings never see a failure.
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, ym := range plan {
		g.Go(func() error {
			r := ym.Range()
			records, err := c.fetcher.Fetch(ctx, celcat.Query{
				Start:        r.StartDate(),
				End:          r.EndDate(),
				ResourceType: req.ResourceType,
				View:         period.ViewMonth,
				IDs:          req.IDs,
			})
			if err != nil {
				c.logger.Warn("Failed to fetch month, skipping it", "month", ym.String(), "error", err)
				errs[i] = fmt.Errorf("month %s: %w", ym, err)
				return nil
			}
			parts[i] = records
			return nil
		})
	}
	_ = g.Wait()

	var (
		merged []models.RawRecord
		failed []error
	)
	for i := range plan {
		if errs[i] != nil {
			failed = append(failed, errs[i])
			continue
		}
		merged = append(merged, parts[i]...)
	}
	if len(failed) == len(plan) {
		return nil, fmt.Errorf("every month of the academic year failed: %w", errors.Join(failed...))
	}

	out := Dedupe(merged)
	c.logger.Info("Collected academic year", "months", len(plan), "failedMonths", len(failed), "records", len(out))
	return out, nil
}

// Events collects req and normalizes the records.
func (c *Collector) Events(ctx context.Context, req Request) ([]models.Event, error) {
	records, err := c.Collect(ctx, req)
	if err != nil {
		return nil, err
	}
	return celcat.Normalize(records, req.IDs), nil
}

// Dedupe keeps the first record of every id, in order. Records without an
// id are always kept.
func Dedupe(records []models.RawRecord) []models.RawRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.RawRecord, 0, len(records))
	for _, rec := range records {
		if id, ok := rec.ID(); ok && id != "" {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		out = append(out, rec)
	}
	return out
}
