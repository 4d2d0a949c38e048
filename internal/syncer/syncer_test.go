package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"celcatsync/internal/models"
	"celcatsync/internal/timetable"
)

type staticSource struct {
	events []models.Event
	err    error
}

func (s staticSource) Events(context.Context, timetable.Request) ([]models.Event, error) {
	return s.events, s.err
}

type recordingPublisher struct {
	uids []string
	fail map[string]error
}

func (p *recordingPublisher) Name() string { return "recorder" }

func (p *recordingPublisher) Publish(_ context.Context, event models.Event, uid string) error {
	if err := p.fail[event.IDString()]; err != nil {
		return err
	}
	p.uids = append(p.uids, uid)
	return nil
}

func event(id string) models.Event {
	start := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	ev := models.Event{Kind: "TD", Title: "Réseaux", Start: &start, End: &end}
	if id != "" {
		ev.ID = &id
	}
	return ev
}

func TestSyncer_Sync(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state.json")
	untimed := event("u")
	untimed.End = nil

	src := staticSource{events: []models.Event{event("1"), event("2"), event(""), untimed, event("3")}}
	pub := &recordingPublisher{fail: map[string]error{"3": errors.New("quota")}}

	s, err := NewSyncer(nil, src, []Publisher{pub}, stateFile, "uvsq.fr", false)
	require.NoError(t, err)
	require.NoError(t, s.Sync(context.Background(), timetable.Request{}))

	assert.Equal(t, []string{"1@uvsq.fr", "2@uvsq.fr"}, pub.uids)
	assert.Equal(t, SyncState{"1": "1@uvsq.fr", "2": "2@uvsq.fr"}, s.State())

	// A second syncer reads the state back and only retries the failure.
	pub2 := &recordingPublisher{}
	s2, err := NewSyncer(nil, src, []Publisher{pub2}, stateFile, "uvsq.fr", false)
	require.NoError(t, err)
	require.NoError(t, s2.Sync(context.Background(), timetable.Request{}))
	assert.Equal(t, []string{"3@uvsq.fr"}, pub2.uids)
}

func TestSyncer_DryRun(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state.json")
	pub := &recordingPublisher{}

	s, err := NewSyncer(nil, staticSource{events: []models.Event{event("1")}}, []Publisher{pub}, stateFile, "", true)
	require.NoError(t, err)
	require.NoError(t, s.Sync(context.Background(), timetable.Request{}))

	assert.Empty(t, pub.uids)
	assert.Empty(t, s.State())
	_, err = os.Stat(stateFile)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSyncer_SourceError(t *testing.T) {
	boom := errors.New("backend down")
	s, err := NewSyncer(nil, staticSource{err: boom}, nil, filepath.Join(t.TempDir(), "state.json"), "", false)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Sync(context.Background(), timetable.Request{}), boom)
}

func TestNewSyncer_CorruptState(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(stateFile, []byte("{not json"), 0o644))

	_, err := NewSyncer(nil, staticSource{}, nil, stateFile, "", false)
	assert.Error(t, err)
}
