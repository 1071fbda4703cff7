package batch

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"codeberg.org/snonux/pinphotos/internal/geo"
)

// PinEntry is one location read from a batch file
type PinEntry struct {
	Line      int
	Latitude  float64
	Longitude float64
}

// ReadBatchFile reads pin locations from a file
func ReadBatchFile(filename string) ([]PinEntry, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return ParseBatch(string(content))
}

// ParseBatch parses one "latitude,longitude" pair per line.
// Supports formats:
// - "42.69,23.32"
// - "42.69, 23.32  # Sofia" (everything after '#' is ignored)
// - "# comment" and blank lines are skipped
func ParseBatch(content string) ([]PinEntry, error) {
	var entries []PinEntry

	for i, line := range strings.Split(content, "\n") {
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		entry, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		entry.Line = i + 1
		entries = append(entries, entry)
	}

	return entries, nil
}

func parseLine(line string) (PinEntry, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return PinEntry{}, fmt.Errorf("expected 'latitude,longitude', got %q", line)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return PinEntry{}, fmt.Errorf("invalid latitude %q", strings.TrimSpace(parts[0]))
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return PinEntry{}, fmt.Errorf("invalid longitude %q", strings.TrimSpace(parts[1]))
	}

	if err := (geo.Point{Latitude: lat, Longitude: lon}).Validate(); err != nil {
		return PinEntry{}, err
	}
	return PinEntry{Latitude: lat, Longitude: lon}, nil
}
