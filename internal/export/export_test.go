package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"celcatsync/internal/models"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func sampleEvents() []models.Event {
	return []models.Event{
		{
			ID:       strPtr("-1234:5"),
			Kind:     "CM",
			Title:    "Algorithmique",
			Group:    strPtr("M1 INFO"),
			Details:  "CM\n122 - DESCARTES",
			Location: "122 - DESCARTES",
			Start:    timePtr(time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC)),
			End:      timePtr(time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC)),
			Color:    strPtr("#FF0000"),
		},
		{
			Title: "Sans horaire",
		},
	}
}

func fixedICS() ICS {
	return ICS{
		ProductID: "-//test//EN",
		UIDDomain: "example.org",
		Now:       func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestICS_Encode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, fixedICS().Encode(&buf, sampleEvents()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n"))
	assert.Contains(t, out, "VERSION:2.0")
	assert.Contains(t, out, "PRODID:-//test//EN")
	assert.Contains(t, out, "UID:-1234:5@example.org")
	assert.Contains(t, out, "DTSTART:20240304T083000Z")
	assert.Contains(t, out, "DTEND:20240304T103000Z")
	assert.Contains(t, out, "DTSTAMP:20240301T120000Z")
	assert.Contains(t, out, "SUMMARY:CM - Algorithmique")
	assert.Contains(t, out, `DESCRIPTION:CM\n122 - DESCARTES`)
	assert.Contains(t, out, "TRANSP:OPAQUE")
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))

	cal, err := ical.NewDecoder(strings.NewReader(out)).Decode()
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 2)

	summary, err := events[0].Props.Text(ical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, "CM - Algorithmique", summary)

	desc, err := events[0].Props.Text(ical.PropDescription)
	require.NoError(t, err)
	assert.Equal(t, "CM\n122 - DESCARTES", desc)

	start, err := events[0].DateTimeStart(time.UTC)
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC)))

	// The untimed event carries no DTSTART/DTEND at all.
	assert.Nil(t, events[1].Props.Get(ical.PropDateTimeStart))
	assert.Nil(t, events[1].Props.Get(ical.PropDateTimeEnd))
	uid, err := events[1].Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(uid, "@example.org"))
}

func TestICS_EmptyCalendar(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, fixedICS().Encode(&buf, nil))
	assert.Contains(t, buf.String(), "BEGIN:VCALENDAR")
	assert.NotContains(t, buf.String(), "BEGIN:VEVENT")

	cal, err := ical.NewDecoder(strings.NewReader(buf.String())).Decode()
	require.NoError(t, err)
	assert.Equal(t, "2.0", cal.Props.Get(ical.PropVersion).Value)
	assert.Equal(t, fixedICS().productID(), cal.Props.Get(ical.PropProductID).Value)
	assert.Empty(t, cal.Children)

	out := filepath.Join(t.TempDir(), "empty.ics")
	require.NoError(t, fixedICS().Write([]models.Event{}, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, buf.String(), string(data))
}

func TestEventUID(t *testing.T) {
	ev := models.Event{ID: strPtr("42")}
	assert.Equal(t, "42@celcatsync", EventUID(ev, ""))
	assert.Equal(t, "42@uvsq.fr", EventUID(ev, "uvsq.fr"))

	a := EventUID(models.Event{}, "x")
	b := EventUID(models.Event{}, "x")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, "@x"))
}

func TestICS_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendars", "M1-week_2024-03-04.ics")
	require.NoError(t, fixedICS().Write(sampleEvents(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SUMMARY:CM - Algorithmique")
}

func TestJSON_Marshal(t *testing.T) {
	data, err := JSON{}.Marshal(sampleEvents())
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 2)

	assert.Equal(t, "-1234:5", rows[0]["id"])
	assert.Equal(t, "CM", rows[0]["type"])
	assert.Equal(t, "Algorithmique", rows[0]["name"])
	assert.Equal(t, "M1 INFO", rows[0]["group"])
	assert.Equal(t, "122 - DESCARTES", rows[0]["location"])
	assert.Equal(t, "2024-03-04T08:30:00Z", rows[0]["start"])
	assert.Equal(t, "#FF0000", rows[0]["color"])

	assert.Nil(t, rows[1]["id"])
	assert.Nil(t, rows[1]["start"])
	assert.Nil(t, rows[1]["color"])

	pretty, err := JSON{Pretty: true}.Marshal(sampleEvents())
	require.NoError(t, err)
	assert.Contains(t, string(pretty), "\n  {")

	empty, err := JSON{}.Marshal(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}

func TestNew(t *testing.T) {
	for format, want := range map[string]Converter{
		"":      ICS{ProductID: "p", UIDDomain: "d"},
		"ics":   ICS{ProductID: "p", UIDDomain: "d"},
		"json":  JSON{},
		"pjson": JSON{Pretty: true},
		"pgsql": PGSQL{},
	} {
		got, err := New(format, Options{ProductID: "p", UIDDomain: "d"})
		require.NoError(t, err, format)
		assert.IsType(t, want, got, format)
	}

	_, err := New("xlsx", Options{})
	assert.Error(t, err)
}

func TestPGSQL_RequiresDSN(t *testing.T) {
	assert.Error(t, PGSQL{}.Write(sampleEvents(), ""))
}

func TestToRow(t *testing.T) {
	row := toRow(sampleEvents()[0])
	assert.Equal(t, "-1234:5", *row.EventID)
	assert.Equal(t, time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC), row.StartTime)

	row = toRow(sampleEvents()[1])
	assert.Nil(t, row.EventID)
	assert.Nil(t, row.StartTime)
	assert.Nil(t, row.EndTime)
}
