package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/reporter"
	"github.com/spf13/cobra"
)

var (
	exportOutput       string
	exportAt           string
	exportFindingsOnly bool
	exportCompact      bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stored run as JSON",
	Long: `Export writes a snapshot saved with --store as JSON, by default the
latest one. --findings-only drops the table data and keeps the summary,
findings, recommendations and trend.

Example:
  sqlcheck export -o snapshot.json
  sqlcheck export --findings-only --compact
  sqlcheck export --at 2026-02-15T10:00:00Z`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"write output to file (default: stdout)")
	exportCmd.Flags().StringVar(&exportAt, "at", "",
		"timestamp of the run to export (RFC 3339, default: latest)")
	exportCmd.Flags().BoolVar(&exportFindingsOnly, "findings-only", false,
		"omit table data")
	exportCmd.Flags().BoolVar(&exportCompact, "compact", false,
		"write JSON without indentation")
}

func runExport(cmd *cobra.Command, args []string) error {
	store, err := openStore(cfg.StorageDir)
	if err != nil {
		return err
	}

	var snap *models.Snapshot
	if exportAt != "" {
		at, err := time.Parse(time.RFC3339, exportAt)
		if err != nil {
			return &ValidationError{Message: fmt.Sprintf("invalid --at: %v", err)}
		}
		if snap, err = store.LoadSnapshot(at); err != nil {
			return &ValidationError{Message: fmt.Sprintf("no stored run at %s", at.UTC().Format(time.RFC3339))}
		}
	} else if snap, err = loadStored(store); err != nil {
		return err
	}

	var writer io.Writer = os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		writer = f
	}

	logVerbose("Exporting run from %s", snap.Timestamp)
	return writeExport(writer, snap, exportFindingsOnly, !exportCompact)
}

func writeExport(w io.Writer, snap *models.Snapshot, findingsOnly, pretty bool) error {
	r := reporter.NewJSONReporter(w, pretty)
	if findingsOnly {
		return r.GenerateFindingsOnly(snap)
	}
	return r.Generate(snap)
}
