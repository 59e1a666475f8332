package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
)

// detailHeight is the fixed number of lines for the detail panel.
const detailHeight = 5

// maxRowFields caps the row preview in the detail panel
const maxRowFields = 4

// renderDetail produces the detail view for a selected finding. row is the
// table row the finding was logged against, nil for table scoped findings.
func renderDetail(f *models.Finding, row map[string]any, width int) string {
	if f == nil {
		return styleDetailPanel.Width(width).Render("No finding selected")
	}

	var b strings.Builder

	sevStyled := severityStyle(f.Severity).Render(strings.ToUpper(f.Severity))
	scope := f.Table
	if f.Row != 0 {
		scope = fmt.Sprintf("%s #%d", f.Table, f.Row)
	}
	b.WriteString(fmt.Sprintf("%s  %s\n", sevStyled, scope))
	b.WriteString(f.Message)
	b.WriteString("\n")

	if f.ExceptionType != "" || f.ExceptionMessage != "" {
		b.WriteString(fmt.Sprintf("%s: %s\n", f.ExceptionType, f.ExceptionMessage))
	}
	if preview := rowPreview(row); preview != "" {
		b.WriteString(preview)
	}

	return styleDetailPanel.Width(width).Render(b.String())
}

// rowPreview lists the first few populated columns of a row, keys sorted
func rowPreview(row map[string]any) string {
	if len(row) == 0 {
		return ""
	}
	names := make([]string, 0, len(row))
	for name := range row {
		if name == dataset.ColID || name == dataset.ColParentID {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > maxRowFields {
		names = names[:maxRowFields]
	}
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", name, row[name]))
	}
	return "Row: " + strings.Join(parts, "  ")
}

// findRow returns the row of table with the given ID. IDs decode as float64
// when the snapshot was loaded from disk.
func findRow(snap *models.Snapshot, table string, id int64) map[string]any {
	if snap == nil || id == 0 {
		return nil
	}
	t := snap.Table(table)
	if t == nil {
		return nil
	}
	for _, r := range t.Rows {
		switch v := r[dataset.ColID].(type) {
		case int64:
			if v == id {
				return r
			}
		case float64:
			if int64(v) == id {
				return r
			}
		}
	}
	return nil
}
