package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRawRecord_ID(t *testing.T) {
	tests := []struct {
		name   string
		rec    RawRecord
		want   string
		wantOK bool
	}{
		{name: "string", rec: RawRecord{"id": "-123:4"}, want: "-123:4", wantOK: true},
		{name: "integral_float", rec: RawRecord{"id": float64(1234567)}, want: "1234567", wantOK: true},
		{name: "json_number", rec: RawRecord{"id": json.Number("77")}, want: "77", wantOK: true},
		{name: "bool", rec: RawRecord{"id": true}, want: "true", wantOK: true},
		{name: "null", rec: RawRecord{"id": nil}},
		{name: "missing", rec: RawRecord{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.rec.ID()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRawRecord_Fields(t *testing.T) {
	rec := RawRecord{
		"modules": []any{"Analyse", "Algèbre"},
		"sites":   []any{float64(3)},
		"empty":   []any{},
		"title":   "x",
		"count":   float64(2),
	}

	s, ok := rec.First("modules")
	assert.True(t, ok)
	assert.Equal(t, "Analyse", s)

	s, ok = rec.First("sites")
	assert.True(t, ok)
	assert.Equal(t, "3", s)

	_, ok = rec.First("empty")
	assert.False(t, ok)
	_, ok = rec.First("title")
	assert.False(t, ok)

	assert.Equal(t, "x", rec.String("title"))
	assert.Equal(t, "", rec.String("count"))
	assert.Equal(t, "", rec.String("missing"))
}

func TestEvent_Summary(t *testing.T) {
	assert.Equal(t, "CM - Analyse", Event{Kind: "CM", Title: "Analyse"}.Summary())
	assert.Equal(t, "CM", Event{Kind: "CM"}.Summary())
	assert.Equal(t, "Analyse", Event{Title: "Analyse"}.Summary())
	assert.Equal(t, "", Event{}.Summary())
	assert.Equal(t, "", Event{}.IDString())
	assert.False(t, Event{}.Timed())
}
