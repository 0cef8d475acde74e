package model

import (
	"fmt"
	"strings"
)

// Severity is the normalized impact tier of an accessibility issue.
// Values are ordered so that a larger value is always more severe, which
// lets escalation rules use plain comparisons.
type Severity int

const (
	// SeverityLow indicates a minor barrier with an easy workaround.
	SeverityLow Severity = iota

	// SeverityMedium indicates a barrier that makes content harder to use
	// for some users but does not block a task.
	SeverityMedium

	// SeverityHigh indicates a barrier that blocks or seriously degrades a
	// task for at least one group of disabled users.
	SeverityHigh

	// SeverityCritical indicates a barrier that makes content or a
	// critical journey unusable.
	SeverityCritical
)

// AllSeverities lists severities from most to least severe.
// Reports iterate over it to produce stable output.
var AllSeverities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// String returns the lower-case name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a severity name back into a Severity.
// Matching is case-insensitive.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityLow, fmt.Errorf("unknown severity %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler so severities are stored
// by name in JSON session records.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}

// SeverityCounts holds the number of issues per severity.
// It is keyed by the severity name so it serializes naturally in events.
type SeverityCounts map[string]int

// NewSeverityCounts returns a SeverityCounts with every severity present at zero.
func NewSeverityCounts() SeverityCounts {
	counts := make(SeverityCounts, len(AllSeverities))
	for _, s := range AllSeverities {
		counts[s.String()] = 0
	}
	return counts
}

// Add increments the counter for s.
func (c SeverityCounts) Add(s Severity) {
	c[s.String()]++
}

// Get returns the counter for s.
func (c SeverityCounts) Get(s Severity) int {
	return c[s.String()]
}

// Total returns the sum of all counters.
func (c SeverityCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Clone returns an independent copy of the counters.
func (c SeverityCounts) Clone() SeverityCounts {
	out := make(SeverityCounts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
