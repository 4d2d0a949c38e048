package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"celcatsync/internal/export"
	"celcatsync/internal/models"
	"celcatsync/internal/timetable"
)

// SyncState keeps track of which events have been published.
// The key is the CELCAT event ID, and the value is the published UID.
type SyncState map[string]string

// Source yields the events of a timetable request.
type Source interface {
	Events(ctx context.Context, req timetable.Request) ([]models.Event, error)
}

// Publisher pushes one event to a remote calendar.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, event models.Event, uid string) error
}

// Syncer orchestrates publication of a timetable to remote calendars.
type Syncer struct {
	logger     *slog.Logger
	source     Source
	publishers []Publisher
	stateFile  string
	uidDomain  string
	state      SyncState
	dryRun     bool
}

// NewSyncer creates a new Syncer, loading the state from stateFile.
func NewSyncer(logger *slog.Logger, source Source, publishers []Publisher, stateFile, uidDomain string, dryRun bool) (*Syncer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	state, err := loadState(stateFile)
	if err != nil {
		// If the file doesn't exist, we can start with an empty state.
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("No sync state file found, starting fresh.", "file", stateFile)
			state = make(SyncState)
		} else {
			return nil, fmt.Errorf("failed to load sync state: %w", err)
		}
	}

	return &Syncer{
		logger:     logger,
		source:     source,
		publishers: publishers,
		stateFile:  stateFile,
		uidDomain:  uidDomain,
		state:      state,
		dryRun:     dryRun,
	}, nil
}

// Sync performs a full synchronization cycle for req.
func (s *Syncer) Sync(ctx context.Context, req timetable.Request) error {
	s.logger.Info("Starting sync cycle.", "period", req.Period, "ids", req.IDs)

	events, err := s.source.Events(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to fetch timetable: %w", err)
	}

	s.logger.Info("Fetched timetable events.", "count", len(events))

	published := 0
	for _, event := range events {
		ok, err := s.syncEvent(ctx, event)
		if err != nil {
			s.logger.Error("Failed to sync event", "summary", event.Summary(), "id", event.IDString(), "error", err)
			// Continue with the next event even if one fails.
			continue
		}
		if ok {
			published++
		}
	}

	if !s.dryRun {
		if err := s.saveState(); err != nil {
			s.logger.Error("Failed to save sync state", "error", err)
		}
	}

	s.logger.Info("Sync cycle finished.", "published", published)
	return nil
}

// syncEvent handles the logic for syncing a single event. It reports
// whether the event was published.
func (s *Syncer) syncEvent(ctx context.Context, event models.Event) (bool, error) {
	if event.ID == nil {
		// Without an id the event can not be tracked and would be
		// duplicated on every cycle.
		s.logger.Warn("Event has no ID, skipping.", "summary", event.Summary())
		return false, nil
	}
	if !event.Timed() {
		s.logger.Warn("Event has no start or end, skipping.", "summary", event.Summary(), "id", *event.ID)
		return false, nil
	}

	// Check if this event has already been synced.
	if _, exists := s.state[*event.ID]; exists {
		s.logger.Debug("Event already synced, skipping.", "summary", event.Summary(), "id", *event.ID)
		return false, nil
	}

	uid := export.EventUID(event, s.uidDomain)
	s.logger.Info("New event found, publishing.", "summary", event.Summary(), "uid", uid)

	if s.dryRun {
		s.logger.Info("[DRY RUN] Would publish event", "summary", event.Summary(), "start", event.Start)
		return false, nil
	}

	for _, p := range s.publishers {
		if err := p.Publish(ctx, event, uid); err != nil {
			return false, fmt.Errorf("failed to publish event to %s: %w", p.Name(), err)
		}
	}

	// If successful, update the state.
	s.state[*event.ID] = uid
	return true, nil
}

// State returns the current sync state.
func (s *Syncer) State() SyncState {
	return s.state
}

// loadState loads the sync state from the JSON file.
func loadState(path string) (SyncState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state == nil {
		state = make(SyncState)
	}
	return state, nil
}

// saveState saves the current sync state to the JSON file.
func (s *Syncer) saveState() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}
	return os.WriteFile(s.stateFile, data, 0o644)
}
