package occupancy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"celcatsync/internal/config"
)

func at(h, m int) time.Time {
	return time.Date(2024, 3, 6, h, m, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name       string
		aStart     time.Time
		aEnd       time.Time
		bStart     time.Time
		bEnd       time.Time
		wantResult bool
	}{
		{name: "inside", aStart: at(9, 0), aEnd: at(10, 0), bStart: at(8, 0), bEnd: at(13, 0), wantResult: true},
		{name: "straddles_start", aStart: at(7, 0), aEnd: at(8, 30), bStart: at(8, 0), bEnd: at(13, 0), wantResult: true},
		{name: "covers", aStart: at(7, 0), aEnd: at(19, 0), bStart: at(8, 0), bEnd: at(13, 0), wantResult: true},
		{name: "touching_end", aStart: at(13, 0), aEnd: at(14, 0), bStart: at(8, 0), bEnd: at(13, 0), wantResult: false},
		{name: "touching_start", aStart: at(7, 0), aEnd: at(8, 0), bStart: at(8, 0), bEnd: at(13, 0), wantResult: false},
		{name: "before", aStart: at(6, 0), aEnd: at(7, 0), bStart: at(8, 0), bEnd: at(13, 0), wantResult: false},
		{name: "empty", aStart: at(9, 0), aEnd: at(9, 0), bStart: at(8, 0), bEnd: at(13, 0), wantResult: false},
		{name: "inverted", aStart: at(10, 0), aEnd: at(9, 0), bStart: at(8, 0), bEnd: at(13, 0), wantResult: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantResult, Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd))
			assert.Equal(t, tt.wantResult, Overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd), "symmetric")
		})
	}
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("18:40")
	require.NoError(t, err)
	assert.Equal(t, "18:40", c.String())
	assert.Equal(t, at(18, 40), c.On(time.Date(2024, 3, 6, 22, 15, 0, 0, time.UTC)))

	_, err = ParseClock("25:00")
	assert.Error(t, err)
	_, err = ParseClock("")
	assert.Error(t, err)
}

func TestSettingsFromConfig(t *testing.T) {
	s, err := SettingsFromConfig(config.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)

	cfg := config.DefaultConfig()
	cfg.Bands.Evening.End = "nope"
	_, err = SettingsFromConfig(cfg)
	assert.ErrorContains(t, err, "evening band")
}
