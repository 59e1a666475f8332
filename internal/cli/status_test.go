package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
)

func TestWriteStatusTextNoRuns(t *testing.T) {
	var buf bytes.Buffer
	result := statusResult{Config: statusConfig{StorageDir: "/var/lib/sqlcheck"}}
	if err := writeStatusText(&buf, result); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"defaults (no sqlcheck.yaml found)", "/var/lib/sqlcheck (0 run(s))", "No stored runs"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteStatusTextLatest(t *testing.T) {
	var buf bytes.Buffer
	result := statusResult{
		ConfigFile: "/etc/sqlcheck/sqlcheck.yaml",
		Config:     statusConfig{StorageDir: "/var/lib/sqlcheck"},
		Runs:       3,
		Latest: &statusLatest{
			Timestamp: time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC),
			Computer:  "sql01.contoso.com",
			Summary: models.Summary{
				Health:             models.HealthCritical,
				TotalFindings:      7,
				ActionableFindings: 3,
				BySeverity:         map[string]int{models.SeverityCritical: 1, models.SeverityWarning: 2, models.SeverityInfo: 4},
			},
			Trend: &models.Trend{
				Direction:        "degrading",
				PreviousFindings: 2,
				CurrentFindings:  3,
				NewFindings:      1,
			},
			Recommendations: map[string][]models.Recommendation{
				models.SeverityCritical: {{Severity: models.SeverityCritical, Table: "TLS", Action: "TLS 1.2 is disabled", Count: 1}},
				models.SeverityWarning:  {{Severity: models.SeverityWarning, Table: "Network", Action: "KeepAliveTime is low", Count: 2}},
			},
		},
	}
	if err := writeStatusText(&buf, result); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Config:   /etc/sqlcheck/sqlcheck.yaml",
		"(3 run(s))",
		"on sql01.contoso.com",
		"Health:   critical",
		"Findings: 7 (3 actionable)",
		"degrading (2 → 3, +1 new, -0 resolved)",
		"- [TLS] TLS 1.2 is disabled",
		"- [Network] KeepAliveTime is low (x2)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Info") {
		t.Errorf("Info counts should not be listed:\n%s", out)
	}
}

func TestRunStatusJSON(t *testing.T) {
	c := testConfig(t)
	withTestConfig(t, c)
	storeRuns(t, c.StorageDir, []models.Finding{keepAlive}, []models.Finding{keepAlive, tlsDisabled})
	old := statusFormat
	statusFormat = "json"
	t.Cleanup(func() { statusFormat = old })

	var err error
	out := captureStdout(t, func() { err = runStatus(statusCmd, nil) })
	if err != nil {
		t.Fatalf("runStatus: %v", err)
	}
	var result statusResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("json: %v\n%s", err, out)
	}
	if result.Runs != 2 || result.Latest == nil {
		t.Fatalf("result = %+v", result)
	}
	if result.Latest.Summary.ActionableFindings != 2 || result.Config.StorageDir != c.StorageDir {
		t.Errorf("latest = %+v", result.Latest)
	}
}
