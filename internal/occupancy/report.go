package occupancy

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	ansiReset     = "\x1b[0m"
	ansiBold      = "\x1b[1m"
	ansiUnderline = "\x1b[4m"
	ansiRed       = "\x1b[31m"
	ansiGreen     = "\x1b[32m"

	iconMorning = "𖤓"
	iconEvening = "☾"
	iconFree    = "✓"
	iconBusy    = "✘"
)

// Report renders occupancy results in the order of a rooms file.
type Report struct {
	w      io.Writer
	layout Layout
	width  int
}

// NewReport creates a report writing to w.
func NewReport(w io.Writer, layout Layout) *Report {
	return &Report{w: w, layout: layout, width: layout.Width()}
}

// Bands writes one line per room with a morning and an evening icon:
// red when busy, green when free. results must follow layout.Rooms().
func (r *Report) Bands(results []Occupancy) {
	r.render(len(results), func(i int, name string) {
		occ := results[i]
		if occ.Err != nil {
			fmt.Fprintf(r.w, "%s  %s\n", name, colored(iconBusy+" unavailable: "+occ.Err.Error(), ansiRed))
			return
		}
		fmt.Fprintf(r.w, "%s  %s  %s\n", name, bandIcon(iconMorning, occ.MorningBusy), bandIcon(iconEvening, occ.EveningBusy))
	})
}

// AvailabilityResult pairs a FreeUntil answer with its error.
type AvailabilityResult struct {
	Availability
	Err error
}

// Availability writes one "free until"/"busy until" line per room.
func (r *Report) Availability(results []AvailabilityResult) {
	r.render(len(results), func(i int, name string) {
		res := results[i]
		switch {
		case res.Err != nil:
			fmt.Fprintf(r.w, "%s  %s\n", name, colored(iconBusy+" unavailable: "+res.Err.Error(), ansiRed))
		case res.Free:
			fmt.Fprintf(r.w, "%s  %s free until %s\n", name, colored(iconFree, ansiGreen), res.Until.Format("15:04"))
		default:
			fmt.Fprintf(r.w, "%s  %s busy until %s\n", name, colored(iconBusy, ansiRed), res.Until.Format("15:04"))
		}
	})
}

// render walks the layout, printing headings and spacing, and calls room
// for the i-th room line with its padded name.
func (r *Report) render(n int, room func(i int, name string)) {
	i := 0
	for _, ln := range r.layout.Lines {
		switch ln.Kind {
		case LineBlank:
			fmt.Fprintln(r.w)
		case LineSubtitle:
			pad := r.padding(ln.Text)
			fmt.Fprintf(r.w, "%s%s%s%s%s\n", pad, ansiUnderline, ln.Text, ansiReset, pad)
		case LineTitle:
			pad := r.padding(ln.Text)
			fmt.Fprintf(r.w, "%s%s%s%s%s%s\n", ansiBold, ansiUnderline, pad, ln.Text, pad, ansiReset)
		case LineRoom:
			if i >= n {
				return
			}
			room(i, padRight(ln.Text, r.width))
			i++
		}
	}
}

// padding centers text over the room column plus both icons.
func (r *Report) padding(text string) string {
	n := (r.width + 6 - utf8.RuneCountInString(text)) / 2
	if n < 0 {
		n = 0
	}
	return strings.Repeat(" ", n)
}

func padRight(s string, width int) string {
	if n := width - utf8.RuneCountInString(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

func bandIcon(icon string, busy bool) string {
	if busy {
		return colored(icon, ansiRed)
	}
	return colored(icon, ansiGreen)
}

func colored(s, color string) string {
	return color + s + ansiReset
}
