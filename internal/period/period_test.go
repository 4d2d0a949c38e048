package period

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		period    Period
		anchor    time.Time
		wantStart string
		wantEnd   string
	}{
		{name: "day", period: Day, anchor: date(2024, 3, 6), wantStart: "2024-03-06", wantEnd: "2024-03-07"},
		{name: "day_end_of_month", period: Day, anchor: date(2024, 2, 29), wantStart: "2024-02-29", wantEnd: "2024-03-01"},
		{name: "week_midweek", period: Week, anchor: date(2024, 3, 6), wantStart: "2024-03-04", wantEnd: "2024-03-10"},
		{name: "week_monday", period: Week, anchor: date(2024, 3, 4), wantStart: "2024-03-04", wantEnd: "2024-03-10"},
		{name: "week_sunday", period: Week, anchor: date(2024, 3, 10), wantStart: "2024-03-04", wantEnd: "2024-03-10"},
		{name: "week_across_year", period: Week, anchor: date(2025, 1, 1), wantStart: "2024-12-30", wantEnd: "2025-01-05"},
		{name: "month_leap", period: Month, anchor: date(2024, 2, 15), wantStart: "2024-02-01", wantEnd: "2024-02-29"},
		{name: "month_common", period: Month, anchor: date(2023, 2, 10), wantStart: "2023-02-01", wantEnd: "2023-02-28"},
		{name: "month_december", period: Month, anchor: date(2024, 12, 31), wantStart: "2024-12-01", wantEnd: "2024-12-31"},
		{name: "unknown_falls_back_to_anchor", period: Period("fortnight"), anchor: date(2024, 3, 6), wantStart: "2024-03-06", wantEnd: "2024-03-06"},
		{name: "clock_is_dropped", period: Day, anchor: time.Date(2024, 3, 6, 23, 59, 0, 0, time.UTC), wantStart: "2024-03-06", wantEnd: "2024-03-07"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Resolve(tt.period, tt.anchor)
			assert.Equal(t, tt.wantStart, r.StartDate())
			assert.Equal(t, tt.wantEnd, r.EndDate())
		})
	}
}

func TestView(t *testing.T) {
	assert.Equal(t, "agendaDay", View(Day))
	assert.Equal(t, "agendaWeek", View(Week))
	assert.Equal(t, "month", View(Month))
	assert.Equal(t, "year", View(Year))
	assert.Equal(t, "agendaDay", View(Period("semester")))
}

func TestParse(t *testing.T) {
	assert.Equal(t, Week, Parse(" Week "))
	assert.Equal(t, Year, Parse("YEAR"))
	assert.Equal(t, Period("other"), Parse("other"))
}

func TestAcademicYear(t *testing.T) {
	plan := AcademicYear(date(2025, 3, 1))
	require.Len(t, plan, 12)
	assert.Equal(t, YearMonth{Year: 2024, Month: time.September}, plan[0])
	assert.Equal(t, YearMonth{Year: 2024, Month: time.December}, plan[3])
	assert.Equal(t, YearMonth{Year: 2025, Month: time.January}, plan[4])
	assert.Equal(t, YearMonth{Year: 2025, Month: time.August}, plan[11])
	assert.Equal(t, "2024-09", plan[0].String())

	// September starts a new academic year.
	plan = AcademicYear(date(2025, 9, 1))
	assert.Equal(t, YearMonth{Year: 2025, Month: time.September}, plan[0])
	assert.Equal(t, YearMonth{Year: 2026, Month: time.August}, plan[11])

	plan = AcademicYear(date(2025, 8, 31))
	assert.Equal(t, YearMonth{Year: 2024, Month: time.September}, plan[0])

	feb := YearMonth{Year: 2024, Month: time.February}.Range()
	assert.Equal(t, "2024-02-01..2024-02-29", feb.String())
}

func TestParseAnchor(t *testing.T) {
	closed := []time.Weekday{time.Sunday}

	got, err := ParseAnchor("2024-03-06", closed)
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 6), got)

	got, err = ParseAnchor("2024-03-06T15:30:00", closed)
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 6), got)

	_, err = ParseAnchor("2024-03-10", closed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPeriodInput))
	assert.Contains(t, err.Error(), "Sunday")

	_, err = ParseAnchor("2024-03-10", nil)
	assert.NoError(t, err)

	for _, bad := range []string{"", "06/03/2024", "2024-13-01", "tomorrow"} {
		_, err = ParseAnchor(bad, closed)
		assert.ErrorIs(t, err, ErrInvalidPeriodInput, bad)
	}
}
