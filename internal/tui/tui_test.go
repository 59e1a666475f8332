package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
)

func testFindings() []models.Finding {
	return []models.Finding{
		{Table: "TLS", Row: 3, Severity: models.SeverityCritical, Message: "TLS 1.2 is disabled for Client"},
		{Table: "Computer", Row: 1, Severity: models.SeverityInfo, Message: "Computer is joined to contoso.com"},
		{Table: "SQLAlias", Severity: models.SeverityWarning, Message: "Alias SALES is defined in the 64-bit view only"},
		{Table: "DiskDrive", Severity: models.SeverityException, Message: "Error reading disk drives",
			ExceptionType: "*errors.errorString", ExceptionMessage: "host probe failed"},
		{Table: "Computer", Row: 1, Severity: models.SeverityVerbose, Message: "fltmc is not available"},
	}
}

func testSnapshot() *models.Snapshot {
	findings := testFindings()
	return &models.Snapshot{
		Tool:      models.ToolName,
		Timestamp: time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC),
		Computer:  "sql01.contoso.com",
		Tables: []models.Table{
			{Name: "Computer", Rows: []map[string]any{{"ID": int64(1), "NETBIOSName": "SQL01", "WindowsBuild": int64(20348)}}},
			{Name: "TLS", Parent: "Computer", Rows: []map[string]any{
				{"ID": float64(3), "ParentID": float64(1), "Protocol": "TLS 1.2", "Role": "Client", "EffectiveValue": "Disabled"},
			}},
		},
		Findings: findings,
		Summary: models.Summary{
			TotalFindings:      len(findings),
			ActionableFindings: 3,
			Health:             models.HealthCritical,
			Tables:             2,
			Rows:               2,
			BySeverity: map[string]int{
				models.SeverityCritical: 1, models.SeverityWarning: 1, models.SeverityException: 1,
				models.SeverityInfo: 1, models.SeverityVerbose: 1,
			},
		},
	}
}

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func testModel() Model {
	m := New(testSnapshot(), nil)
	m.out = &bytes.Buffer{}
	return m
}

// --- Filter tests ---

func TestApplyFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter filterState
		want   int
	}{
		{"none", filterState{}, 5},
		{"table", filterState{Table: "Computer"}, 2},
		{"warning and above", filterState{MinSeverity: models.SeverityWarning}, 3},
		{"critical and above", filterState{MinSeverity: models.SeverityCritical}, 2},
		{"search message", filterState{SearchText: "ALIAS"}, 1},
		{"search exception", filterState{SearchText: "host probe"}, 1},
		{"combined", filterState{Table: "Computer", MinSeverity: models.SeverityInfo}, 1},
		{"no match", filterState{SearchText: "kerberos"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := applyFilters(testFindings(), tt.filter); len(got) != tt.want {
				t.Errorf("got %d findings, want %d", len(got), tt.want)
			}
		})
	}
}

func TestSortFindings(t *testing.T) {
	tests := []struct {
		field sortField
		first string
	}{
		{sortBySeverity, models.SeverityException},
		{sortByTable, "Computer"},
		{sortByMessage, "Alias SALES is defined in the 64-bit view only"},
		{sortByLogOrder, "TLS 1.2 is disabled for Client"},
	}
	for _, tt := range tests {
		t.Run(sortFieldName(tt.field), func(t *testing.T) {
			f := testFindings()
			sortFindings(f, tt.field)
			got := f[0].Message
			switch tt.field {
			case sortBySeverity:
				got = f[0].Severity
			case sortByTable:
				got = f[0].Table
			}
			if got != tt.first {
				t.Errorf("first = %q, want %q", got, tt.first)
			}
		})
	}
}

func TestSortBySeverityKeepsLogOrderForTies(t *testing.T) {
	f := []models.Finding{
		{Table: "A", Severity: models.SeverityWarning, Message: "first"},
		{Table: "B", Severity: models.SeverityWarning, Message: "second"},
	}
	sortFindings(f, sortBySeverity)
	if f[0].Message != "first" {
		t.Errorf("tie order = %q, %q", f[0].Message, f[1].Message)
	}
}

func TestUniqueTables(t *testing.T) {
	got := uniqueTables(testFindings())
	want := []string{"Computer", "DiskDrive", "SQLAlias", "TLS"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("uniqueTables = %v", got)
	}
	if len(uniqueTables(nil)) != 0 {
		t.Error("expected no tables")
	}
}

func TestSortFieldName(t *testing.T) {
	if sortFieldName(sortField(99)) != "unknown" {
		t.Error("expected unknown for out of range field")
	}
}

// --- Table tests ---

func TestBuildRows(t *testing.T) {
	rows := buildRows(testFindings())
	if len(rows) != 5 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0][0] != models.SeverityCritical || rows[0][1] != "TLS" || rows[0][2] != "3" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if rows[2][2] != "" {
		t.Errorf("table scoped finding shows row %q", rows[2][2])
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
		{"ümläutümläut", 8, "ümläu..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

// --- Header and detail tests ---

func TestRenderHeader(t *testing.T) {
	snap := testSnapshot()
	snap.Trend = &models.Trend{Direction: "improving", PreviousFindings: 5, CurrentFindings: 3}
	out := renderHeader(snap, []int{5, 4, 3}, 100)

	for _, want := range []string{"sql01.contoso.com", "CRITICAL", "Findings: 5 (3 actionable)", "Critical:1", "↓ 5→3", "[5→3]"} {
		if !strings.Contains(out, want) {
			t.Errorf("header missing %q:\n%s", want, out)
		}
	}
}

func TestRenderHeaderWithoutComputer(t *testing.T) {
	snap := testSnapshot()
	snap.Computer = ""
	if out := renderHeader(snap, nil, 100); !strings.Contains(out, "unknown computer") {
		t.Errorf("header = %s", out)
	}
}

func TestRenderDetail(t *testing.T) {
	if out := renderDetail(nil, nil, 80); !strings.Contains(out, "No finding selected") {
		t.Errorf("nil detail = %q", out)
	}

	snap := testSnapshot()
	f := snap.Findings[0]
	out := renderDetail(&f, findRow(snap, f.Table, f.Row), 120)
	for _, want := range []string{"CRITICAL", "TLS #3", "TLS 1.2 is disabled", "EffectiveValue=Disabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("detail missing %q:\n%s", want, out)
		}
	}

	exc := snap.Findings[3]
	out = renderDetail(&exc, nil, 120)
	if !strings.Contains(out, "host probe failed") {
		t.Errorf("exception detail = %s", out)
	}
}

func TestFindRow(t *testing.T) {
	snap := testSnapshot()
	if r := findRow(snap, "Computer", 1); r == nil || r["NETBIOSName"] != "SQL01" {
		t.Errorf("Computer row = %v", r)
	}
	if r := findRow(snap, "TLS", 3); r == nil {
		t.Error("decoded float ID not matched")
	}
	if findRow(snap, "TLS", 0) != nil || findRow(snap, "Missing", 1) != nil {
		t.Error("expected nil")
	}
}

func TestRenderSparkline(t *testing.T) {
	if renderSparkline(nil) != "" {
		t.Error("empty sparkline should render nothing")
	}
	if out := renderSparkline([]int{2, 2, 2}); !strings.HasPrefix(out, "▅▅▅") {
		t.Errorf("constant = %q", out)
	}
	if out := renderSparkline([]int{0, 7}); !strings.HasPrefix(out, "▁█") || !strings.HasSuffix(out, "[0→7]") {
		t.Errorf("increasing = %q", out)
	}
}

func TestSparkline(t *testing.T) {
	runs := []*models.Snapshot{
		{Summary: models.Summary{ActionableFindings: 4}},
		{Summary: models.Summary{ActionableFindings: 1}},
	}
	got := Sparkline(runs)
	if len(got) != 2 || got[0] != 4 || got[1] != 1 {
		t.Errorf("Sparkline = %v", got)
	}
}

func TestTrendIndicator(t *testing.T) {
	for dir, want := range map[string]string{"improving": "↓", "degrading": "↑", "stable": "→"} {
		if got := trendIndicator(dir); got != want {
			t.Errorf("trendIndicator(%q) = %q", dir, got)
		}
	}
}

// --- Model tests ---

func TestModelInitialState(t *testing.T) {
	m := testModel()
	if m.Init() != nil {
		t.Error("Init should return nil")
	}
	if m.allFindings[0].Severity != models.SeverityException {
		t.Errorf("initial order starts with %s", m.allFindings[0].Severity)
	}
	if len(m.tableChoices) != 4 {
		t.Errorf("table choices = %v", m.tableChoices)
	}
}

func TestModelWindowResize(t *testing.T) {
	updated, _ := testModel().Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m := updated.(Model)
	if m.width != 120 || m.height != 40 {
		t.Errorf("size = %dx%d", m.width, m.height)
	}
}

func TestModelQuit(t *testing.T) {
	_, cmd := testModel().Update(keyPress('q'))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestModelSearch(t *testing.T) {
	updated, _ := testModel().Update(keyPress('/'))
	m := updated.(Model)
	if m.mode != modeSearch {
		t.Fatal("expected search mode")
	}
	if !strings.Contains(m.View(), "/ ") {
		t.Error("search prompt not shown")
	}

	m.searchInput.SetValue("alias")
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if m.mode != modeNormal || len(m.filteredFindings) != 1 {
		t.Errorf("mode = %d, findings = %d", m.mode, len(m.filteredFindings))
	}
}

func TestModelSearchEscape(t *testing.T) {
	updated, _ := testModel().Update(keyPress('/'))
	m := updated.(Model)
	m.searchInput.SetValue("partial")
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEscape})
	m = updated.(Model)
	if m.mode != modeNormal || m.searchInput.Value() != "" || len(m.filteredFindings) != 5 {
		t.Error("escape should cancel the search")
	}
}

func TestModelFilterTable(t *testing.T) {
	updated, _ := testModel().Update(keyPress('t'))
	m := updated.(Model)
	if m.mode != modeFilterTable {
		t.Fatal("expected table filter mode")
	}
	if !strings.Contains(m.View(), "Filter by table:") {
		t.Error("table filter not shown")
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(Model)
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if m.filters.Table != "Computer" || len(m.filteredFindings) != 2 {
		t.Errorf("filter = %q, findings = %d", m.filters.Table, len(m.filteredFindings))
	}
	if m.statusMsg != "Table: Computer" {
		t.Errorf("status = %q", m.statusMsg)
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEscape})
	m = updated.(Model)
	if m.filters.Table != "" || len(m.filteredFindings) != 5 {
		t.Error("escape should clear filters")
	}
}

func TestModelFilterTableCursorBounds(t *testing.T) {
	updated, _ := testModel().Update(keyPress('t'))
	m := updated.(Model)
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = updated.(Model)
	if m.tableCursor != 0 {
		t.Errorf("cursor = %d", m.tableCursor)
	}
	for i := 0; i < 10; i++ {
		updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m = updated.(Model)
	}
	if m.tableCursor != len(m.tableChoices) {
		t.Errorf("cursor = %d, want %d", m.tableCursor, len(m.tableChoices))
	}
}

func TestModelSeverityCycle(t *testing.T) {
	m := testModel()
	want := []int{4, 3, 2, 5}
	for n, w := range want {
		updated, _ := m.Update(keyPress('v'))
		m = updated.(Model)
		if len(m.filteredFindings) != w {
			t.Errorf("step %d: findings = %d, want %d", n+1, len(m.filteredFindings), w)
		}
	}
	if m.statusMsg != "Severity: all" {
		t.Errorf("status = %q", m.statusMsg)
	}
}

func TestModelCycleSort(t *testing.T) {
	updated, _ := testModel().Update(keyPress('s'))
	m := updated.(Model)
	if m.sortBy != sortByTable || m.statusMsg != "Sort: table" {
		t.Errorf("sortBy = %d, status = %q", m.sortBy, m.statusMsg)
	}
	if m.filteredFindings[0].Table != "Computer" {
		t.Errorf("first = %s", m.filteredFindings[0].Table)
	}
}

func TestModelCopy(t *testing.T) {
	m := testModel()
	buf := &bytes.Buffer{}
	m.out = buf
	updated, _ := m.Update(keyPress('c'))
	m = updated.(Model)
	if !strings.HasPrefix(m.clipboard, "[Exception] DiskDrive: Error reading disk drives") {
		t.Errorf("clipboard = %q", m.clipboard)
	}
	if !strings.HasPrefix(buf.String(), "\033]52;c;") {
		t.Errorf("OSC 52 sequence not written: %q", buf.String())
	}
}

func TestModelCopyNothing(t *testing.T) {
	m := New(&models.Snapshot{}, nil)
	m.out = &bytes.Buffer{}
	updated, _ := m.Update(keyPress('c'))
	if updated.(Model).statusMsg != "Nothing to copy" {
		t.Error("expected nothing to copy")
	}
}

func TestModelView(t *testing.T) {
	out := testModel().View()
	for _, want := range []string{"sqlcheck", "Severity", "Message", "5/5 findings", "q:quit"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
