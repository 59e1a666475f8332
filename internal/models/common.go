package models

import (
	"strings"
	"time"
)

// ToolName is the producer recorded in every snapshot
const ToolName = "sqlcheck"

// Severity labels as stored in the Message table
const (
	SeverityVerbose   = "Verbose"
	SeverityInfo      = "Info"
	SeverityWarning   = "Warning"
	SeverityCritical  = "Critical"
	SeverityException = "Exception"
)

// Health levels
const (
	HealthHealthy   = "healthy"
	HealthAttention = "attention"
	HealthCritical  = "critical"
	HealthUnknown   = "unknown"
)

// Snapshot is the serialisable view of one run: every collected table, the
// findings logged against it and a summary. It is what --format json prints
// and what --store persists.
type Snapshot struct {
	SchemaVersion   int              `json:"schema_version"`
	Tool            string           `json:"tool"`
	Version         string           `json:"version,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
	Computer        string           `json:"computer,omitempty"`
	Tables          []Table          `json:"tables"`
	Findings        []Finding        `json:"findings"`
	Collectors      []CollectorRun   `json:"collectors,omitempty"`
	Summary         Summary          `json:"summary"`
	Trend           *Trend           `json:"trend,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

// Table is one dataset table with its rows
type Table struct {
	Name    string           `json:"name"`
	Parent  string           `json:"parent,omitempty"`
	Columns []Column         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Column is a column name and its type label
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Finding is one logged diagnostic message
type Finding struct {
	Table            string `json:"table"`
	Row              int64  `json:"row,omitempty"` // 0 = table scoped
	Severity         string `json:"severity"`
	Message          string `json:"message"`
	ExceptionType    string `json:"exception_type,omitempty"`
	ExceptionMessage string `json:"exception_message,omitempty"`
}

// Key identifies a finding across runs. Row IDs are not stable between runs
// so they are left out.
func (f Finding) Key() string {
	return f.Table + "|" + f.Severity + "|" + f.Message
}

// Actionable reports whether someone should act on the finding
func (f Finding) Actionable() bool {
	switch f.Severity {
	case SeverityWarning, SeverityCritical, SeverityException:
		return true
	}
	return false
}

// CollectorRun records how a collector fared
type CollectorRun struct {
	Name       string `json:"name"`
	DurationMS int64  `json:"duration_ms"`
	Skipped    string `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Summary provides aggregate statistics over a snapshot
type Summary struct {
	TotalFindings      int            `json:"total_findings"`
	ActionableFindings int            `json:"actionable_findings"`
	BySeverity         map[string]int `json:"by_severity"`
	ByTable            map[string]int `json:"by_table"`
	Health             string         `json:"health"`
	Tables             int            `json:"tables"`
	Rows               int            `json:"rows"`
	CollectorsRun      int            `json:"collectors_run"`
	CollectorsSkipped  int            `json:"collectors_skipped"`
	CollectorsFailed   int            `json:"collectors_failed"`
}

// Trend represents change between current and previous run
type Trend struct {
	Direction        string    `json:"direction"` // "improving", "degrading", "stable"
	PreviousFindings int       `json:"previous_findings"`
	CurrentFindings  int       `json:"current_findings"`
	ComparedWith     time.Time `json:"compared_with"`
	NewFindings      int       `json:"new_findings"`
	ResolvedFindings int       `json:"resolved_findings"`
}

// Recommendation groups identical actionable findings
type Recommendation struct {
	Severity string   `json:"severity"`
	Table    string   `json:"table"`
	Action   string   `json:"action"`
	Count    int      `json:"count"`
	Rows     []int64  `json:"rows,omitempty"`
	Related  []string `json:"related,omitempty"`
}

// Diff holds findings that appeared or disappeared between two runs
type Diff struct {
	Baseline         time.Time      `json:"baseline"`
	Current          time.Time      `json:"current"`
	NewFindings      []Finding      `json:"new_findings"`
	ResolvedFindings []Finding      `json:"resolved_findings"`
	NewBySeverity    map[string]int `json:"new_by_severity"`
	Delta            int            `json:"delta"` // positive = more actionable findings
}

// SeverityRank orders severity labels; unknown labels rank lowest
func SeverityRank(severity string) int {
	switch strings.ToLower(severity) {
	case "exception":
		return 4
	case "critical":
		return 3
	case "warning":
		return 2
	case "info":
		return 1
	case "verbose":
		return 0
	default:
		return -1
	}
}

// CalculateHealth determines overall health from the actionable counts
func CalculateHealth(critical, warning, exceptions int) string {
	switch {
	case critical > 0:
		return HealthCritical
	case warning > 0 || exceptions > 0:
		return HealthAttention
	default:
		return HealthHealthy
	}
}

// Table returns the named table, nil when absent
func (s *Snapshot) Table(name string) *Table {
	for n := range s.Tables {
		if s.Tables[n].Name == name {
			return &s.Tables[n]
		}
	}
	return nil
}
