package checks

import (
	"fmt"
	"strings"
)

// Severity is the four-tier importance label used to weight a check.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Weight maps a severity onto its multiplier in the weighted score.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 1.0
	case SeverityHigh:
		return 0.75
	case SeverityMedium:
		return 0.5
	case SeverityLow:
		return 0.25
	}
	return 0
}

// Flaggable reports whether a failed check of this severity raises a red flag.
func (s Severity) Flaggable() bool {
	return s == SeverityCritical || s == SeverityHigh
}

func (s Severity) Valid() bool {
	return s.Weight() > 0
}

func (s Severity) String() string {
	return string(s)
}

func ParseSeverity(v string) (Severity, error) {
	s := Severity(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown severity %q", v)
	}
	return s, nil
}
