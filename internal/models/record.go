package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RawRecord is one element of the JSON array returned by the backend.
// Values keep their decoded JSON shape (string, float64, []any, ...).
type RawRecord map[string]any

// ID returns the record identifier as a string. Numeric identifiers are
// formatted without exponent so that 1234 and "1234" share one key.
func (r RawRecord) ID() (string, bool) {
	v, ok := r["id"]
	if !ok || v == nil {
		return "", false
	}
	switch id := v.(type) {
	case string:
		return id, true
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case json.Number:
		return id.String(), true
	default:
		return fmt.Sprint(id), true
	}
}

// String returns the field as a string, "" when absent, null or not a string.
func (r RawRecord) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// First returns the first element of a list field, stringified.
func (r RawRecord) First(key string) (string, bool) {
	list, ok := r[key].([]any)
	if !ok || len(list) == 0 || list[0] == nil {
		return "", false
	}
	if s, ok := list[0].(string); ok {
		return s, true
	}
	return fmt.Sprint(list[0]), true
}
