package domain

import (
	"fmt"
	"time"
)

// Offset is a relative delay after detection at which a price sample is taken.
type Offset struct {
	Name  string        // stable key, e.g. "10m"
	After time.Duration // delay from detection
}

// DefaultOffsets are the sampling offsets used when none are configured.
var DefaultOffsets = []Offset{
	{Name: "10m", After: 10 * time.Minute},
	{Name: "30m", After: 30 * time.Minute},
	{Name: "1h", After: time.Hour},
}

// ValidateOffsets checks that offsets are positive, strictly increasing and
// uniquely named.
func ValidateOffsets(offsets []Offset) error {
	if len(offsets) == 0 {
		return fmt.Errorf("no offsets configured")
	}
	seen := make(map[string]struct{}, len(offsets))
	var prev time.Duration
	for i, o := range offsets {
		if o.Name == "" {
			return fmt.Errorf("offset %d: empty name", i)
		}
		if _, dup := seen[o.Name]; dup {
			return fmt.Errorf("offset %q: duplicate name", o.Name)
		}
		seen[o.Name] = struct{}{}
		if o.After <= 0 {
			return fmt.Errorf("offset %q: delay must be positive", o.Name)
		}
		if o.After <= prev {
			return fmt.Errorf("offset %q: delays must be strictly increasing", o.Name)
		}
		prev = o.After
	}
	return nil
}

// OffsetName derives a compact name from a duration ("10m", "1h", "90s").
func OffsetName(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%ds", d/time.Second)
	}
}
