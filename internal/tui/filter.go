package tui

import (
	"sort"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
)

// filterState holds current active filters.
type filterState struct {
	Table string
	// MinSeverity hides findings ranked below it
	MinSeverity string
	SearchText  string
}

// sortField enumerates columns that can be sorted.
type sortField int

const (
	sortBySeverity sortField = iota
	sortByTable
	sortByMessage
	sortByLogOrder
)

// sortFieldCount is the total number of sortable columns.
const sortFieldCount = 4

// severityLevels is the cycle of the minimum severity filter
var severityLevels = []string{
	"",
	models.SeverityInfo,
	models.SeverityWarning,
	models.SeverityCritical,
}

// applyFilters returns findings matching all active filters.
func applyFilters(findings []models.Finding, f filterState) []models.Finding {
	result := make([]models.Finding, 0, len(findings))
	searchLower := strings.ToLower(f.SearchText)
	minRank := -1
	if f.MinSeverity != "" {
		minRank = models.SeverityRank(f.MinSeverity)
	}

	for _, finding := range findings {
		if f.Table != "" && finding.Table != f.Table {
			continue
		}
		if models.SeverityRank(finding.Severity) < minRank {
			continue
		}
		if searchLower != "" && !matchesSearch(finding, searchLower) {
			continue
		}
		result = append(result, finding)
	}
	return result
}

func matchesSearch(f models.Finding, searchLower string) bool {
	return strings.Contains(strings.ToLower(f.Table), searchLower) ||
		strings.Contains(strings.ToLower(f.Severity), searchLower) ||
		strings.Contains(strings.ToLower(f.Message), searchLower) ||
		strings.Contains(strings.ToLower(f.ExceptionMessage), searchLower)
}

// indexed pairs a finding with its position in the log
type indexed struct {
	models.Finding
	pos int
}

// sortFindings sorts findings in place by the given field. Ties keep log order.
func sortFindings(findings []models.Finding, field sortField) {
	items := make([]indexed, len(findings))
	for n, f := range findings {
		items[n] = indexed{Finding: f, pos: n}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch field {
		case sortBySeverity:
			return models.SeverityRank(a.Severity) > models.SeverityRank(b.Severity)
		case sortByTable:
			return a.Table < b.Table
		case sortByMessage:
			return a.Message < b.Message
		default:
			return a.pos < b.pos
		}
	})
	for n := range items {
		findings[n] = items[n].Finding
	}
}

// uniqueTables returns deduplicated, sorted table names from findings.
func uniqueTables(findings []models.Finding) []string {
	seen := make(map[string]bool)
	var tables []string
	for _, f := range findings {
		if !seen[f.Table] {
			seen[f.Table] = true
			tables = append(tables, f.Table)
		}
	}
	sort.Strings(tables)
	return tables
}

// sortFieldName returns a human-readable name for the sort field.
func sortFieldName(f sortField) string {
	switch f {
	case sortBySeverity:
		return "severity"
	case sortByTable:
		return "table"
	case sortByMessage:
		return "message"
	case sortByLogOrder:
		return "log order"
	default:
		return "unknown"
	}
}
