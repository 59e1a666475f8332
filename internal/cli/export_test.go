package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
)

func withExportFlags(t *testing.T, output, at string, findingsOnly, compact bool) {
	t.Helper()
	o, a, f, c := exportOutput, exportAt, exportFindingsOnly, exportCompact
	exportOutput, exportAt, exportFindingsOnly, exportCompact = output, at, findingsOnly, compact
	t.Cleanup(func() { exportOutput, exportAt, exportFindingsOnly, exportCompact = o, a, f, c })
}

func TestWriteExport(t *testing.T) {
	snap := &models.Snapshot{
		Tool:     models.ToolName,
		Computer: "sql01.contoso.com",
		Tables: []models.Table{{
			Name:    "Computer",
			Columns: []models.Column{{Name: "NETBIOSName", Type: "string"}},
			Rows:    []map[string]any{{"ID": 1, "NETBIOSName": "SQL01"}},
		}},
		Findings: []models.Finding{tlsDisabled},
	}

	t.Run("full", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeExport(&buf, snap, false, true); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), `"NETBIOSName": "SQL01"`) {
			t.Errorf("full export should carry table data:\n%s", buf.String())
		}
	})

	t.Run("findings only", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeExport(&buf, snap, true, false); err != nil {
			t.Fatal(err)
		}
		var out map[string]any
		if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
			t.Fatal(err)
		}
		if _, ok := out["tables"]; ok {
			t.Error("findings-only export should omit tables")
		}
		if _, ok := out["findings"]; !ok {
			t.Error("findings-only export should carry findings")
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Errorf("compact output should be one line:\n%s", buf.String())
		}
	})
}

func TestRunExport(t *testing.T) {
	c := testConfig(t)
	withTestConfig(t, c)
	runs := storeRuns(t, c.StorageDir, []models.Finding{keepAlive}, []models.Finding{tlsDisabled})

	t.Run("latest to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.json")
		withExportFlags(t, path, "", false, false)
		if err := runExport(exportCmd, nil); err != nil {
			t.Fatalf("runExport: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "TLS 1.2 is disabled") {
			t.Errorf("export = %s", data)
		}
	})

	t.Run("at timestamp", func(t *testing.T) {
		withExportFlags(t, "", runs[0].Timestamp.Format("2006-01-02T15:04:05Z07:00"), true, false)
		var err error
		out := captureStdout(t, func() { err = runExport(exportCmd, nil) })
		if err != nil {
			t.Fatalf("runExport: %v", err)
		}
		if !strings.Contains(out, "KeepAliveTime is low") || strings.Contains(out, "TLS 1.2 is disabled") {
			t.Errorf("export = %s", out)
		}
	})

	t.Run("bad timestamp", func(t *testing.T) {
		withExportFlags(t, "", "yesterday", false, false)
		if code := HandleError(runExport(exportCmd, nil)); code != ExitInvalidInput {
			t.Errorf("exit code = %d", code)
		}
	})

	t.Run("no run at timestamp", func(t *testing.T) {
		withExportFlags(t, "", "2020-01-01T00:00:00Z", false, false)
		if code := HandleError(runExport(exportCmd, nil)); code != ExitInvalidInput {
			t.Errorf("exit code = %d", code)
		}
	})
}
