package occupancy

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const roomsFile = `# Bâtiment Descartes
## Rez-de-chaussée
122 - DESCARTES
G 205

## Étage
AMPHI A
`

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout(strings.NewReader(roomsFile))
	require.NoError(t, err)

	assert.Equal(t, []Line{
		{Kind: LineTitle, Text: "Bâtiment Descartes"},
		{Kind: LineSubtitle, Text: "Rez-de-chaussée"},
		{Kind: LineRoom, Text: "122 - DESCARTES"},
		{Kind: LineRoom, Text: "G 205"},
		{Kind: LineBlank},
		{Kind: LineSubtitle, Text: "Étage"},
		{Kind: LineRoom, Text: "AMPHI A"},
	}, l.Lines)
	assert.Equal(t, []string{"122 - DESCARTES", "G 205", "AMPHI A"}, l.Rooms())
	assert.Equal(t, 15, l.Width())
}

func TestParseLayout_Empty(t *testing.T) {
	for _, in := range []string{"", "\n\n", "# Title only\n## Sub\n"} {
		_, err := ParseLayout(strings.NewReader(in))
		assert.True(t, errors.Is(err, ErrConfigEmpty), "input %q", in)
	}
}

func TestLoadLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.txt")

	var buf bytes.Buffer
	require.NoError(t, WriteRooms(&buf, []string{"A", "B"}))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	l, err := LoadLayout(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, l.Rooms())

	_, err = LoadLayout(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestReport_Bands(t *testing.T) {
	l, err := ParseLayout(strings.NewReader("# Rooms\nA\nBB\nC\n"))
	require.NoError(t, err)

	var buf bytes.Buffer
	NewReport(&buf, l).Bands([]Occupancy{
		{Room: "A", MorningBusy: true},
		{Room: "BB", EveningBusy: true},
		{Room: "C", Err: errors.New("timeout")},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Rooms")
	assert.Equal(t, "A   "+ansiRed+iconMorning+ansiReset+"  "+ansiGreen+iconEvening+ansiReset, lines[1])
	assert.Equal(t, "BB  "+ansiGreen+iconMorning+ansiReset+"  "+ansiRed+iconEvening+ansiReset, lines[2])
	assert.Contains(t, lines[3], "unavailable: timeout")
}

func TestReport_Availability(t *testing.T) {
	l, err := ParseLayout(strings.NewReader("A\nB\nC\n"))
	require.NoError(t, err)

	until := time.Date(2024, 3, 6, 14, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	NewReport(&buf, l).Availability([]AvailabilityResult{
		{Availability: Availability{Room: "A", Free: true, Until: until}},
		{Availability: Availability{Room: "B", Until: until}},
		{Availability: Availability{Room: "C"}, Err: errors.New("down")},
	})

	out := buf.String()
	assert.Contains(t, out, "free until 14:00")
	assert.Contains(t, out, "busy until 14:00")
	assert.Contains(t, out, "unavailable: down")
}
