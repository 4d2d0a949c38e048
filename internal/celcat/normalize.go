package celcat

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"celcatsync/internal/models"
)

var (
	lineBreakRE = regexp.MustCompile(`(?i)<br\s*/?\s*>`)
	tagRE       = regexp.MustCompile(`<[^>]+>`)
)

// timestampLayouts are tried in order. Layouts without a zone parse as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Normalize maps backend records to events, preserving order. requestedIDs
// are the federation IDs of the query; the first one becomes Event.Group.
func Normalize(records []models.RawRecord, requestedIDs []string) []models.Event {
	var group *string
	if len(requestedIDs) > 0 {
		g := requestedIDs[0]
		group = &g
	}

	events := make([]models.Event, 0, len(records))
	for _, rec := range records {
		events = append(events, normalizeRecord(rec, group))
	}
	return events
}

func normalizeRecord(rec models.RawRecord, group *string) models.Event {
	ev := models.Event{
		Kind:  rec.String("eventCategory"),
		Group: group,
		Start: parseTimestamp(rec.String("start")),
		End:   parseTimestamp(rec.String("end")),
	}

	if id, ok := rec.ID(); ok {
		ev.ID = &id
	}
	if title, ok := rec.First("modules"); ok {
		ev.Title = title
	}
	for _, key := range []string{"backgroundColor", "background", "backColor"} {
		if c := rec.String(key); c != "" {
			ev.Color = &c
			break
		}
	}

	lines := DescriptionLines(rec.String("description"))
	ev.Details = strings.Join(lines, "\n")
	ev.Location = roomLabel(lines)
	if ev.Location == "" {
		ev.Location, _ = rec.First("sites")
	}
	return ev
}

// DescriptionLines turns the HTML description into trimmed, non-empty text
// lines: line-break tags become newlines, every other tag is dropped.
func DescriptionLines(html string) []string {
	text := lineBreakRE.ReplaceAllString(html, "\n")
	text = tagRE.ReplaceAllString(text, "")
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text)

	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	return lines
}

// roomLabel returns the first line that looks like a room: it mentions
// "Salle", or it has a " - " separator and a digit (e.g. "122 - DESCARTES").
// This is a heuristic and can match non-room text.
func roomLabel(lines []string) string {
	for _, ln := range lines {
		if strings.Contains(ln, "Salle") {
			return ln
		}
		if strings.Contains(ln, " - ") && strings.IndexFunc(ln, unicode.IsDigit) >= 0 {
			return ln
		}
	}
	return ""
}

// parseTimestamp returns the instant in UTC, or nil when s is empty or
// unparseable. Naive timestamps are taken as UTC already.
func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
