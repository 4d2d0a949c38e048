// Package occupancy classifies rooms as busy or free over fixed daily bands.
package occupancy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"celcatsync/internal/celcat"
	"celcatsync/internal/models"
	"celcatsync/internal/period"
)

// Fetcher is the backend call used to read a room's day.
type Fetcher interface {
	Fetch(ctx context.Context, q celcat.Query) ([]models.RawRecord, error)
}

// Occupancy is the result for one room. Busy means occupied.
type Occupancy struct {
	Room        string
	MorningBusy bool
	EveningBusy bool
	Events      []models.Event
	// Err is set when the room could not be fetched; the busy flags are
	// meaningless then.
	Err error
}

// Availability answers "is the room free at a given time, and until when".
type Availability struct {
	Room  string
	Free  bool
	Until time.Time
}

// Evaluator computes room occupancy from backend events.
type Evaluator struct {
	fetcher     Fetcher
	logger      *slog.Logger
	settings    Settings
	roomResType int
	concurrency int
}

// NewEvaluator creates an Evaluator. roomResType is the backend code for
// rooms (102 by default).
func NewEvaluator(logger *slog.Logger, fetcher Fetcher, settings Settings, roomResType, concurrency int) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Evaluator{
		fetcher:     fetcher,
		logger:      logger,
		settings:    settings,
		roomResType: roomResType,
		concurrency: concurrency,
	}
}

// roomDay fetches and normalizes one room's events for date.
func (e *Evaluator) roomDay(ctx context.Context, date time.Time, room string) ([]models.Event, error) {
	r := period.Resolve(period.Day, date)
	records, err := e.fetcher.Fetch(ctx, celcat.Query{
		Start:        r.StartDate(),
		End:          r.EndDate(),
		ResourceType: e.roomResType,
		View:         period.ViewDay,
		IDs:          []string{room},
	})
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", room, err)
	}
	return celcat.Normalize(records, []string{room}), nil
}

// EvaluateRoom computes the occupancy of one room on date.
func (e *Evaluator) EvaluateRoom(ctx context.Context, date time.Time, room string) (Occupancy, error) {
	events, err := e.roomDay(ctx, date, room)
	if err != nil {
		return Occupancy{Room: room, Err: err}, err
	}
	occ := Classify(events, date, e.settings)
	occ.Room = room
	return occ, nil
}

// Evaluate computes the occupancy of every room, in input order. A room
// that cannot be fetched carries its error; other rooms are unaffected.
func (e *Evaluator) Evaluate(ctx context.Context, date time.Time, rooms []string) []Occupancy {
	out := make([]Occupancy, len(rooms))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, room := range rooms {
		g.Go(func() error {
			occ, err := e.EvaluateRoom(ctx, date, room)
			if err != nil {
				e.logger.Error("Failed to evaluate room", "room", room, "error", err)
			}
			out[i] = occ
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Classify marks each band busy if any timed event overlaps it.
func Classify(events []models.Event, date time.Time, s Settings) Occupancy {
	mStart, mEnd := s.Morning.On(date)
	eStart, eEnd := s.Evening.On(date)

	occ := Occupancy{Events: events}
	for _, ev := range events {
		if !ev.Timed() {
			continue
		}
		start, end := ev.Start.UTC(), ev.End.UTC()
		occ.MorningBusy = occ.MorningBusy || Overlaps(start, end, mStart, mEnd)
		occ.EveningBusy = occ.EveningBusy || Overlaps(start, end, eStart, eEnd)
	}
	return occ
}

// FreeUntil reports whether room is free at clock on date. A busy room is
// busy until the end of the event covering that instant; a free room is
// free until the next event start before day close, or until day close.
func (e *Evaluator) FreeUntil(ctx context.Context, date time.Time, at Clock, room string) (Availability, error) {
	events, err := e.roomDay(ctx, date, room)
	if err != nil {
		return Availability{Room: room}, err
	}
	av := AvailabilityAt(events, at.On(date), e.settings.DayClose.On(date))
	av.Room = room
	return av, nil
}

// AvailabilityAt is the pure part of FreeUntil.
func AvailabilityAt(events []models.Event, t, dayClose time.Time) Availability {
	var next *time.Time
	for _, ev := range events {
		if !ev.Timed() {
			continue
		}
		start, end := ev.Start.UTC(), ev.End.UTC()
		if !start.After(t) && t.Before(end) {
			return Availability{Free: false, Until: end}
		}
		if t.Before(start) && start.Before(dayClose) {
			if next == nil || start.Before(*next) {
				s := start
				next = &s
			}
		}
	}
	if next != nil {
		return Availability{Free: true, Until: *next}
	}
	return Availability{Free: true, Until: dayClose}
}
