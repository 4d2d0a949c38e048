package export

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"celcatsync/internal/models"
)

// PGSQL stores events in PostgreSQL. Events with an id are upserted; id-less
// events are appended.
type PGSQL struct{}

const createEventsTable = `
CREATE TABLE IF NOT EXISTS celcat_events (
	id          SERIAL PRIMARY KEY,
	event_id    TEXT UNIQUE,
	kind        TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	"group"     TEXT,
	details     TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	start_time  TIMESTAMPTZ,
	end_time    TIMESTAMPTZ,
	color       TEXT
);
CREATE INDEX IF NOT EXISTS idx_celcat_events_start ON celcat_events (start_time);
`

const upsertEventQuery = `
INSERT INTO celcat_events (event_id, kind, title, "group", details, location, start_time, end_time, color)
VALUES (:event_id, :kind, :title, :group, :details, :location, :start_time, :end_time, :color)
ON CONFLICT (event_id) DO UPDATE SET
	kind = EXCLUDED.kind,
	title = EXCLUDED.title,
	"group" = EXCLUDED."group",
	details = EXCLUDED.details,
	location = EXCLUDED.location,
	start_time = EXCLUDED.start_time,
	end_time = EXCLUDED.end_time,
	color = EXCLUDED.color
`

// eventRow is the named-parameter shape of one row.
type eventRow struct {
	EventID   *string `db:"event_id"`
	Kind      string  `db:"kind"`
	Title     string  `db:"title"`
	Group     *string `db:"group"`
	Details   string  `db:"details"`
	Location  string  `db:"location"`
	StartTime any     `db:"start_time"`
	EndTime   any     `db:"end_time"`
	Color     *string `db:"color"`
}

func toRow(ev models.Event) eventRow {
	row := eventRow{
		EventID:  ev.ID,
		Kind:     ev.Kind,
		Title:    ev.Title,
		Group:    ev.Group,
		Details:  ev.Details,
		Location: ev.Location,
		Color:    ev.Color,
	}
	if ev.Start != nil {
		row.StartTime = *ev.Start
	}
	if ev.End != nil {
		row.EndTime = *ev.End
	}
	return row
}

// Write connects with the DSN in out and stores events in one transaction.
func (p PGSQL) Write(events []models.Event, out string) error {
	if out == "" {
		return fmt.Errorf("database URL can not be empty")
	}

	db, err := sqlx.Connect("postgres", out)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(createEventsTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, ev := range events {
		if _, err := tx.NamedExec(upsertEventQuery, toRow(ev)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to store event %q: %w", ev.IDString(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
