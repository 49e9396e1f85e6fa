package model

import (
	"fmt"
	"strings"
)

// Severity represents the risk level of a vulnerability reported by nuclei.
// Values are ordered so that a higher value means a more severe finding.
type Severity int

const (
	// SeverityUnknown is used for results whose template declares no
	// severity, or declares one nuclei itself does not know.
	SeverityUnknown Severity = iota

	// SeverityInfo indicates informational results such as technology
	// detection or exposed version strings.
	SeverityInfo

	// SeverityLow indicates minor issues with limited impact.
	SeverityLow

	// SeverityMedium indicates issues that warrant attention.
	SeverityMedium

	// SeverityHigh indicates serious, usually exploitable issues.
	SeverityHigh

	// SeverityCritical indicates issues that require immediate action.
	SeverityCritical
)

// severityNames maps each Severity to the name nuclei uses for it.
var severityNames = map[Severity]string{
	SeverityUnknown:  "unknown",
	SeverityInfo:     "info",
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

// String returns the lowercase nuclei name of the severity.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseSeverity parses a nuclei severity name. Matching is case-insensitive.
func ParseSeverity(s string) (Severity, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for sev, name := range severityNames {
		if name == normalized {
			return sev, nil
		}
	}
	return SeverityUnknown, fmt.Errorf("unknown severity %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// Unrecognized names decode to SeverityUnknown rather than failing, so a
// single odd template cannot break parsing of a whole export.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		*s = SeverityUnknown
		return nil
	}
	*s = parsed
	return nil
}

// SeveritiesDescending returns every severity from critical down to unknown.
func SeveritiesDescending() []Severity {
	return []Severity{
		SeverityCritical,
		SeverityHigh,
		SeverityMedium,
		SeverityLow,
		SeverityInfo,
		SeverityUnknown,
	}
}

// SeverityCounts holds the number of vulnerabilities per severity.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Unknown  int `json:"unknown"`
}

// CountBySeverity tallies vulnerabilities by severity.
func CountBySeverity(vulns []Vulnerability) SeverityCounts {
	var c SeverityCounts
	for _, v := range vulns {
		c.add(v.Severity, 1)
	}
	return c
}

// Get returns the count for one severity.
func (c SeverityCounts) Get(s Severity) int {
	switch s {
	case SeverityCritical:
		return c.Critical
	case SeverityHigh:
		return c.High
	case SeverityMedium:
		return c.Medium
	case SeverityLow:
		return c.Low
	case SeverityInfo:
		return c.Info
	default:
		return c.Unknown
	}
}

// Total returns the number of vulnerabilities across all severities.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Info + c.Unknown
}

func (c *SeverityCounts) add(s Severity, n int) {
	switch s {
	case SeverityCritical:
		c.Critical += n
	case SeverityHigh:
		c.High += n
	case SeverityMedium:
		c.Medium += n
	case SeverityLow:
		c.Low += n
	case SeverityInfo:
		c.Info += n
	default:
		c.Unknown += n
	}
}
