// Package export writes normalized events to their destinations.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"celcatsync/internal/models"
)

// Converter writes events to out. out is a file path, except for the
// pgsql converter where it is the database connection string.
type Converter interface {
	Write(events []models.Event, out string) error
}

// Options carries the settings shared by the converters.
type Options struct {
	ProductID string
	UIDDomain string
}

// New returns the converter registered under format.
func New(format string, opts Options) (Converter, error) {
	switch format {
	case "", "ics":
		return ICS{ProductID: opts.ProductID, UIDDomain: opts.UIDDomain}, nil
	case "json":
		return JSON{}, nil
	case "pjson":
		return JSON{Pretty: true}, nil
	case "pgsql":
		return PGSQL{}, nil
	default:
		return nil, fmt.Errorf("unknown export format %q (want ics, json, pjson or pgsql)", format)
	}
}

// writeFile creates the parent directory of path and writes data to it.
func writeFile(path string, data []byte) error {
	if path == "" {
		return fmt.Errorf("output path can not be empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
