package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
)

func withDiffFlags(t *testing.T, format, baseline string, failNew bool) {
	t.Helper()
	oldFormat, oldOutput, oldBaseline, oldFail := diffFormat, diffOutput, diffBaseline, diffFailNew
	diffFormat, diffOutput, diffBaseline, diffFailNew = format, "", baseline, failNew
	t.Cleanup(func() {
		diffFormat, diffOutput, diffBaseline, diffFailNew = oldFormat, oldOutput, oldBaseline, oldFail
	})
}

var (
	tlsDisabled  = models.Finding{Table: "TLS", Severity: models.SeverityCritical, Message: "TLS 1.2 is disabled"}
	aliasWarning = models.Finding{Table: "SQLAlias", Severity: models.SeverityWarning, Message: "alias defined in one view only"}
	keepAlive    = models.Finding{Table: "Network", Severity: models.SeverityWarning, Message: "KeepAliveTime is low"}
	domainInfo   = models.Finding{Table: "Computer", Severity: models.SeverityInfo, Message: "domain joined"}
)

func TestRunDiffStoredRuns(t *testing.T) {
	c := testConfig(t)
	withTestConfig(t, c)
	withDiffFlags(t, "text", "", false)
	storeRuns(t, c.StorageDir,
		[]models.Finding{tlsDisabled, keepAlive},
		[]models.Finding{keepAlive, aliasWarning, domainInfo},
	)

	var err error
	out := captureStdout(t, func() { err = runDiff(diffCmd, nil) })
	if err != nil {
		t.Fatalf("runDiff: %v", err)
	}
	for _, want := range []string{
		"New: 1   Resolved: 1",
		"[Warning] SQLAlias: alias defined in one view only",
		"✓ TLS: TLS 1.2 is disabled",
		"Warning: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("diff output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "domain joined") {
		t.Error("Info findings should not appear in a diff")
	}
}

func TestRunDiffFailNew(t *testing.T) {
	c := testConfig(t)
	withTestConfig(t, c)
	withDiffFlags(t, "json", "", true)
	storeRuns(t, c.StorageDir, []models.Finding{keepAlive}, []models.Finding{keepAlive, tlsDisabled})

	var err error
	out := captureStdout(t, func() { err = runDiff(diffCmd, nil) })
	if code := HandleError(err); code != ExitPolicyFail {
		t.Errorf("exit code = %d (%v), want %d", code, err, ExitPolicyFail)
	}

	var d models.Diff
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("json output: %v", err)
	}
	if len(d.NewFindings) != 1 || d.NewFindings[0].Table != "TLS" || d.Delta != 1 {
		t.Errorf("diff = %+v", d)
	}
}

func TestRunDiffNoNewFindingsPasses(t *testing.T) {
	c := testConfig(t)
	withTestConfig(t, c)
	withDiffFlags(t, "text", "", true)
	storeRuns(t, c.StorageDir, []models.Finding{keepAlive, tlsDisabled}, []models.Finding{keepAlive})

	var err error
	out := captureStdout(t, func() { err = runDiff(diffCmd, nil) })
	if err != nil {
		t.Errorf("runDiff: %v", err)
	}
	if !strings.Contains(out, "only improvements") {
		t.Errorf("output = %s", out)
	}
}

func TestRunDiffBaselineFile(t *testing.T) {
	c := testConfig(t)
	withTestConfig(t, c)
	storeRuns(t, c.StorageDir, []models.Finding{keepAlive})

	baseline := &models.Snapshot{Tool: models.ToolName, Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Findings: []models.Finding{keepAlive}}
	data, _ := json.Marshal(baseline)
	path := filepath.Join(t.TempDir(), "baseline.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	withDiffFlags(t, "text", path, true)

	var err error
	out := captureStdout(t, func() { err = runDiff(diffCmd, nil) })
	if err != nil {
		t.Fatalf("runDiff: %v", err)
	}
	if !strings.Contains(out, "No drift detected.") || !strings.Contains(out, "2026-01-01 00:00:00") {
		t.Errorf("output = %s", out)
	}
}

func TestRunDiffErrors(t *testing.T) {
	t.Run("no runs", func(t *testing.T) {
		withTestConfig(t, testConfig(t))
		withDiffFlags(t, "text", "", false)
		if code := HandleError(runDiff(diffCmd, nil)); code != ExitInvalidInput {
			t.Errorf("exit code = %d", code)
		}
	})

	t.Run("one run", func(t *testing.T) {
		c := testConfig(t)
		withTestConfig(t, c)
		withDiffFlags(t, "text", "", false)
		storeRuns(t, c.StorageDir, []models.Finding{keepAlive})
		var err error
		out := captureStdout(t, func() { err = runDiff(diffCmd, nil) })
		if err != nil || !strings.Contains(out, "Need at least 2 stored runs") {
			t.Errorf("err = %v, output = %q", err, out)
		}
	})

	t.Run("bad format", func(t *testing.T) {
		withTestConfig(t, testConfig(t))
		withDiffFlags(t, "csv", "", false)
		if code := HandleError(runDiff(diffCmd, nil)); code != ExitInvalidInput {
			t.Errorf("exit code = %d", code)
		}
	})

	t.Run("bad baseline", func(t *testing.T) {
		c := testConfig(t)
		withTestConfig(t, c)
		storeRuns(t, c.StorageDir, []models.Finding{keepAlive})
		withDiffFlags(t, "text", filepath.Join(t.TempDir(), "missing.json"), false)
		if code := HandleError(runDiff(diffCmd, nil)); code != ExitInvalidInput {
			t.Errorf("exit code = %d", code)
		}
	})
}

func TestPrintDiffTextNoDrift(t *testing.T) {
	var buf bytes.Buffer
	d := &models.Diff{Delta: -2, NewBySeverity: map[string]int{}}
	if err := printDiffText(&buf, d); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Actionable findings: -2") || !strings.Contains(buf.String(), "No drift detected.") {
		t.Errorf("output = %s", buf.String())
	}
}
