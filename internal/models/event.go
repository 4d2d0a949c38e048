package models

import "time"

// Event represents one timetable entry after normalization.
// This is an internal representation, independent of the CELCAT wire format.
// Optional values are pointers; nil means the backend did not provide them.
type Event struct {
	ID       *string    // Backend identifier, used as the deduplication key
	Kind     string     // Event category (e.g. "CM", "TD")
	Title    string     // First module name of the record
	Group    *string    // Federation ID the event was requested with
	Details  string     // Plain-text description, one entry per line
	Location string     // Best-effort room label
	Start    *time.Time // Start instant in UTC
	End      *time.Time // End instant in UTC
	Color    *string    // Background color chosen by the backend
}

// Summary builds the one-line title used by calendar outputs:
// "kind - title" when both are set, otherwise whichever is set.
func (e Event) Summary() string {
	switch {
	case e.Kind != "" && e.Title != "":
		return e.Kind + " - " + e.Title
	case e.Kind != "":
		return e.Kind
	default:
		return e.Title
	}
}

// Timed reports whether both bounds are present.
func (e Event) Timed() bool {
	return e.Start != nil && e.End != nil
}

// IDString returns the identifier or "" when the event has none.
func (e Event) IDString() string {
	if e.ID == nil {
		return ""
	}
	return *e.ID
}
