package occupancy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// ErrConfigEmpty is returned for a rooms file without any room line.
var ErrConfigEmpty = errors.New("rooms config has no room entries")

// LineKind classifies a rooms-file line.
type LineKind int

const (
	LineBlank LineKind = iota
	LineTitle
	LineSubtitle
	LineRoom
)

// Line is one line of a rooms file. Text is the room identifier or the
// heading text without its markers.
type Line struct {
	Kind LineKind
	Text string
}

// Layout is a parsed rooms file: room identifiers interleaved with the
// headings and spacing used by the report.
type Layout struct {
	Lines []Line
}

// ParseLayout reads a rooms file. Lines starting with "##" are subtitles,
// lines starting with "#" are titles, blank lines are kept as spacing and
// every other line is a room identifier.
func ParseLayout(r io.Reader) (Layout, error) {
	var l Layout
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		text := strings.TrimRight(sc.Text(), " \t\r")
		switch {
		case strings.TrimSpace(text) == "":
			l.Lines = append(l.Lines, Line{Kind: LineBlank})
		case strings.HasPrefix(text, "##"):
			l.Lines = append(l.Lines, Line{Kind: LineSubtitle, Text: strings.TrimSpace(text[2:])})
		case strings.HasPrefix(text, "#"):
			l.Lines = append(l.Lines, Line{Kind: LineTitle, Text: strings.TrimSpace(text[1:])})
		default:
			l.Lines = append(l.Lines, Line{Kind: LineRoom, Text: text})
		}
	}
	if err := sc.Err(); err != nil {
		return Layout{}, fmt.Errorf("failed to read rooms config: %w", err)
	}
	if len(l.Rooms()) == 0 {
		return Layout{}, ErrConfigEmpty
	}
	return l, nil
}

// LoadLayout parses the rooms file at path.
func LoadLayout(path string) (Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return Layout{}, err
	}
	defer f.Close()

	l, err := ParseLayout(f)
	if err != nil {
		return Layout{}, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Rooms returns the room identifiers in file order.
func (l Layout) Rooms() []string {
	var rooms []string
	for _, ln := range l.Lines {
		if ln.Kind == LineRoom {
			rooms = append(rooms, ln.Text)
		}
	}
	return rooms
}

// Width is the length in characters of the longest room identifier.
func (l Layout) Width() int {
	w := 0
	for _, room := range l.Rooms() {
		w = max(w, utf8.RuneCountInString(room))
	}
	return w
}

// WriteRooms writes one room identifier per line, the format ParseLayout reads.
func WriteRooms(w io.Writer, rooms []string) error {
	bw := bufio.NewWriter(w)
	for _, room := range rooms {
		if _, err := bw.WriteString(room + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
