// Package diag is the side channel collectors use to annotate the dataset.
//
// Every message lands as one row of the dataset's Message table, tagged with
// the owning table and (for row-scoped messages) the owning row's ID. The log
// is append-only.
package diag

import "strings"

// Severity is the importance attached to a logged message
type Severity int

const (
	Verbose Severity = iota
	Info
	Warning
	Critical
	Exception
	Heading
)

var severityNames = []string{"Verbose", "Info", "Warning", "Critical", "Exception", "Heading"}

// String returns the label stored in the Message table
func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return "Unknown"
	}
	return severityNames[s]
}

// ParseSeverity maps a stored label back to its Severity (case-insensitive)
func ParseSeverity(label string) (Severity, bool) {
	for n, name := range severityNames {
		if strings.EqualFold(name, label) {
			return Severity(n), true
		}
	}
	return Verbose, false
}

// Rank orders severities for counting and filtering. Exception ranks above
// Critical; Heading carries no weight.
func (s Severity) Rank() int {
	switch s {
	case Verbose:
		return 0
	case Info:
		return 1
	case Warning:
		return 2
	case Critical:
		return 3
	case Exception:
		return 4
	default:
		return -1
	}
}

// Actionable reports whether the severity represents a finding someone should act on
func (s Severity) Actionable() bool {
	return s == Warning || s == Critical || s == Exception
}
