// Package period turns a period keyword and an anchor date into the concrete
// date ranges sent to the backend.
package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Period is a logical report window.
type Period string

const (
	Day   Period = "day"
	Week  Period = "week"
	Month Period = "month"
	Year  Period = "year"
)

// Calendar view keywords understood by the backend.
const (
	ViewDay   = "agendaDay"
	ViewWeek  = "agendaWeek"
	ViewMonth = "month"
	ViewYear  = "year"
)

// ErrInvalidPeriodInput is wrapped by every anchor validation failure.
var ErrInvalidPeriodInput = errors.New("invalid period input")

// Range is a closed interval of calendar days. Times are midnight UTC.
type Range struct {
	Start time.Time
	End   time.Time
}

// StartDate returns Start as an ISO date.
func (r Range) StartDate() string { return r.Start.Format(dateLayout) }

// EndDate returns End as an ISO date.
func (r Range) EndDate() string { return r.End.Format(dateLayout) }

func (r Range) String() string { return r.StartDate() + ".." + r.EndDate() }

// Parse maps a keyword to a Period. Unknown keywords are returned as-is so
// that Resolve can apply its single-day fallback.
func Parse(s string) Period {
	return Period(strings.ToLower(strings.TrimSpace(s)))
}

// Resolve computes the range for p around anchor:
//   - day:   anchor .. anchor+1
//   - week:  Monday .. Sunday of anchor's week
//   - month: first .. last day of anchor's month
//   - other: anchor .. anchor
func Resolve(p Period, anchor time.Time) Range {
	d := truncate(anchor)
	switch p {
	case Day:
		return Range{Start: d, End: d.AddDate(0, 0, 1)}
	case Week:
		offset := (int(d.Weekday()) + 6) % 7
		start := d.AddDate(0, 0, -offset)
		return Range{Start: start, End: start.AddDate(0, 0, 6)}
	case Month:
		return MonthRange(d.Year(), d.Month())
	default:
		return Range{Start: d, End: d}
	}
}

// View returns the calView keyword for p. Year is only used internally:
// year requests are split into month-view fetches.
func View(p Period) string {
	switch p {
	case Day:
		return ViewDay
	case Week:
		return ViewWeek
	case Month:
		return ViewMonth
	case Year:
		return ViewYear
	default:
		return ViewDay
	}
}

// MonthRange returns the first through last day of a month.
func MonthRange(year int, month time.Month) Range {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Range{Start: first, End: first.AddDate(0, 1, -1)}
}

// YearMonth identifies one month of a fetch plan.
type YearMonth struct {
	Year  int
	Month time.Month
}

// Range returns the month's first-to-last-day range.
func (ym YearMonth) Range() Range { return MonthRange(ym.Year, ym.Month) }

func (ym YearMonth) String() string { return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month)) }

// AcademicYear returns the twelve months from September to August of the
// academic year containing anchor.
func AcademicYear(anchor time.Time) []YearMonth {
	startYear := anchor.Year()
	if anchor.Month() < time.September {
		startYear--
	}
	plan := make([]YearMonth, 0, 12)
	for m := time.September; m <= time.December; m++ {
		plan = append(plan, YearMonth{Year: startYear, Month: m})
	}
	for m := time.January; m <= time.August; m++ {
		plan = append(plan, YearMonth{Year: startYear + 1, Month: m})
	}
	return plan
}

// ParseAnchor parses an ISO date (a date-time is accepted and truncated)
// and rejects the closed weekdays.
func ParseAnchor(s string, closed []time.Weekday) (time.Time, error) {
	s = strings.TrimSpace(s)
	var (
		t   time.Time
		err error
	)
	for _, layout := range []string{dateLayout, "2006-01-02T15:04:05", "2006-01-02T15:04", time.RFC3339} {
		if t, err = time.Parse(layout, s); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q is not in YYYY-MM-DD format", ErrInvalidPeriodInput, s)
	}

	t = truncate(t)
	for _, wd := range closed {
		if t.Weekday() == wd {
			return time.Time{}, fmt.Errorf("%w: campus is closed on %s (%s)", ErrInvalidPeriodInput, wd, t.Format(dateLayout))
		}
	}
	return t, nil
}

// truncate drops the clock part, keeping the calendar date, in UTC.
func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
