package tui

import (
	"fmt"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
)

// headerHeight is the number of terminal lines the header occupies.
const headerHeight = 5

// renderHeader produces the header string from snapshot summary data.
func renderHeader(snap *models.Snapshot, sparkline []int, width int) string {
	var b strings.Builder
	summary := snap.Summary

	// Line 1: computer and health
	healthText := healthStyle(summary.Health).Render(strings.ToUpper(summary.Health))
	computer := snap.Computer
	if computer == "" {
		computer = "unknown computer"
	}
	b.WriteString(fmt.Sprintf("sqlcheck  %s  Health: %s", computer, healthText))

	if snap.Trend != nil {
		b.WriteString(fmt.Sprintf("  %s %d→%d",
			trendIndicator(snap.Trend.Direction), snap.Trend.PreviousFindings, snap.Trend.CurrentFindings))
	}
	b.WriteString("\n")

	// Line 2: tables and findings
	b.WriteString(fmt.Sprintf("Tables: %d  Rows: %d  Findings: %d (%d actionable)",
		summary.Tables, summary.Rows, summary.TotalFindings, summary.ActionableFindings))
	b.WriteString("\n")

	// Line 3: severity breakdown
	sevParts := make([]string, 0, 5)
	for _, sev := range []string{
		models.SeverityException, models.SeverityCritical, models.SeverityWarning,
		models.SeverityInfo, models.SeverityVerbose,
	} {
		if count := summary.BySeverity[sev]; count > 0 {
			label := fmt.Sprintf("%s:%d", sev, count)
			sevParts = append(sevParts, severityStyle(sev).Render(label))
		}
	}
	if len(sevParts) > 0 {
		b.WriteString(strings.Join(sevParts, "  "))
	}
	b.WriteString("\n")

	// Line 4: sparkline of stored runs
	if len(sparkline) > 0 {
		b.WriteString("Runs: ")
		b.WriteString(renderSparkline(sparkline))
	}

	return styleHeader.Width(width).Render(b.String())
}

func trendIndicator(direction string) string {
	switch direction {
	case "improving":
		return "↓"
	case "degrading":
		return "↑"
	default:
		return "→"
	}
}

// renderSparkline converts an int slice to a unicode sparkline string.
func renderSparkline(values []int) string {
	if len(values) == 0 {
		return ""
	}

	bars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	var b strings.Builder
	for _, v := range values {
		if hi == lo {
			b.WriteRune(bars[len(bars)/2])
		} else {
			normalized := float64(v-lo) / float64(hi-lo)
			idx := int(normalized * float64(len(bars)-1))
			b.WriteRune(bars[idx])
		}
	}

	b.WriteString(fmt.Sprintf(" [%d→%d]", values[0], values[len(values)-1]))
	return b.String()
}

// Sparkline returns the actionable finding count of each run, in run order.
func Sparkline(runs []*models.Snapshot) []int {
	out := make([]int, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.Summary.ActionableFindings)
	}
	return out
}
