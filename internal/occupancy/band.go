package occupancy

import (
	"fmt"
	"time"

	"celcatsync/internal/config"
)

// Clock is a time of day as an offset from midnight.
type Clock time.Duration

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return Clock(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}

// On returns the UTC instant of c on the given date.
func (c Clock) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(time.Duration(c))
}

func (c Clock) String() string {
	d := time.Duration(c)
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// Band is a half-open clock window [Start, End).
type Band struct {
	Start Clock
	End   Clock
}

// On returns the band's instants on date.
func (b Band) On(date time.Time) (time.Time, time.Time) {
	return b.Start.On(date), b.End.On(date)
}

// Settings is the evaluator configuration.
type Settings struct {
	Morning  Band
	Evening  Band
	DayClose Clock
}

// DefaultSettings returns morning 08:00-13:00, evening 13:00-18:00 and a
// day close of 18:40, all UTC.
func DefaultSettings() Settings {
	return Settings{
		Morning:  Band{Start: Clock(8 * time.Hour), End: Clock(13 * time.Hour)},
		Evening:  Band{Start: Clock(13 * time.Hour), End: Clock(18 * time.Hour)},
		DayClose: Clock(18*time.Hour + 40*time.Minute),
	}
}

// SettingsFromConfig builds Settings from the application configuration.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	var (
		s   Settings
		err error
	)
	if s.Morning, err = parseBand(cfg.Bands.Morning); err != nil {
		return s, fmt.Errorf("morning band: %w", err)
	}
	if s.Evening, err = parseBand(cfg.Bands.Evening); err != nil {
		return s, fmt.Errorf("evening band: %w", err)
	}
	if s.DayClose, err = ParseClock(cfg.DayClose); err != nil {
		return s, fmt.Errorf("day close: %w", err)
	}
	return s, nil
}

func parseBand(bc config.BandConfig) (Band, error) {
	start, err := ParseClock(bc.Start)
	if err != nil {
		return Band{}, err
	}
	end, err := ParseClock(bc.End)
	if err != nil {
		return Band{}, err
	}
	return Band{Start: start, End: end}, nil
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Empty or inverted intervals never overlap anything.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aStart.Before(aEnd) || !bStart.Before(bEnd) {
		return false
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
