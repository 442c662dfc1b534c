package domain

import (
	"fmt"
	"strings"
)

// Severity is a congestion color shared by crowd reports and road traffic.
type Severity string

const (
	SeverityGreen  Severity = "GREEN"
	SeverityYellow Severity = "YELLOW"
	SeverityRed    Severity = "RED"
)

// ParseSeverity accepts a color name in any case, surrounding whitespace ignored.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("%w: unknown severity %q", ErrInvalidReport, s)
	}
	return sev, nil
}

// Valid reports whether s is one of the three known colors.
func (s Severity) Valid() bool {
	switch s {
	case SeverityGreen, SeverityYellow, SeverityRed:
		return true
	default:
		return false
	}
}

// Weight is the display priority used by the ranking sorter.
func (s Severity) Weight() int {
	switch s {
	case SeverityRed:
		return 3
	case SeverityYellow:
		return 2
	case SeverityGreen:
		return 1
	default:
		return 0
	}
}

// Text is the human label shown next to the color.
func (s Severity) Text() string {
	switch s {
	case SeverityRed:
		return "congested / strict checks"
	case SeverityYellow:
		return "moderate"
	case SeverityGreen:
		return "smooth"
	default:
		return "unknown"
	}
}

// orGreen maps missing or unrecognized values to GREEN. Reports never degrade
// below GREEN.
func (s Severity) orGreen() Severity {
	if s.Valid() {
		return s
	}
	return SeverityGreen
}
