package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/aggregator"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/storage"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	diffFormat   string
	diffOutput   string
	diffBaseline string
	diffFailNew  bool
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show what changed between two audit runs",
	Long: `Compare the latest stored run against a baseline to show drift.

Shows actionable findings (Warning, Critical, Exception) that appeared or
were resolved. Findings match on table, severity and message text.

By default compares the two most recent stored runs. Use --baseline to
compare against a snapshot written with --format json.

Exit codes:
  0  No new findings (or --fail-new not set)
  1  New findings detected (with --fail-new)

Example:
  sqlcheck diff
  sqlcheck diff --fail-new
  sqlcheck diff --baseline ./baseline.json --format json`,
	Args: cobra.NoArgs,
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVarP(&diffFormat, "format", "f", "text",
		"output format: text or json")
	diffCmd.Flags().StringVarP(&diffOutput, "output", "o", "",
		"write output to file instead of stdout")
	diffCmd.Flags().StringVar(&diffBaseline, "baseline", "",
		"path to baseline snapshot JSON (default: previous stored run)")
	diffCmd.Flags().BoolVar(&diffFailNew, "fail-new", false,
		"exit 1 if new findings are found (for CI gating)")
}

func runDiff(cmd *cobra.Command, args []string) error {
	if diffFormat != "text" && diffFormat != "json" {
		return &ValidationError{Message: fmt.Sprintf("unsupported format: %s (use text or json)", diffFormat)}
	}

	store, err := openStore(cfg.StorageDir)
	if err != nil {
		logError("Failed to get storage path: %v", err)
		return err
	}

	current, err := loadStored(store)
	if err != nil {
		return err
	}

	var baseline *models.Snapshot
	if diffBaseline != "" {
		baseline, err = storage.LoadFile(afero.NewOsFs(), diffBaseline)
		if err != nil {
			return &ValidationError{Message: fmt.Sprintf("failed to load baseline: %v", err)}
		}
	} else {
		runs, err := store.GetLastNRuns(2)
		if err != nil || len(runs) < 2 {
			fmt.Println("Need at least 2 stored runs for diff.")
			fmt.Println("Run 'sqlcheck --store' to record another run.")
			return nil
		}
		baseline = runs[0]
	}

	logVerbose("Comparing %s (current) vs %s (baseline)",
		current.Timestamp.Format("2006-01-02 15:04"),
		baseline.Timestamp.Format("2006-01-02 15:04"))

	result := aggregator.ComputeDiff(baseline, current)

	if err := outputDiff(result, diffFormat, diffOutput); err != nil {
		return err
	}

	if diffFailNew && len(result.NewFindings) > 0 {
		return &PolicyError{
			Violations: len(result.NewFindings),
			Reason:     fmt.Sprintf("%d new finding(s) since %s", len(result.NewFindings), baseline.Timestamp.Format("2006-01-02 15:04")),
		}
	}
	return nil
}

// outputDiff renders the diff to the chosen format.
func outputDiff(d *models.Diff, format, outputPath string) error {
	var writer io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		writer = f
	}

	switch format {
	case "json":
		enc := json.NewEncoder(writer)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case "text":
		return printDiffText(writer, d)
	default:
		return fmt.Errorf("unsupported format: %s (use text or json)", format)
	}
}

func printDiffText(w io.Writer, d *models.Diff) error {
	p := func(format string, args ...any) {
		_, _ = fmt.Fprintf(w, format, args...)
	}

	p("sqlcheck drift\n")
	p("==============\n\n")

	p("Baseline: %s\n", d.Baseline.Format("2006-01-02 15:04:05"))
	p("Current:  %s\n\n", d.Current.Format("2006-01-02 15:04:05"))

	deltaSign := "+"
	if d.Delta < 0 {
		deltaSign = ""
	}
	p("Actionable findings: %s%d\n", deltaSign, d.Delta)
	p("New: %d   Resolved: %d\n\n", len(d.NewFindings), len(d.ResolvedFindings))

	if len(d.NewFindings) > 0 {
		p("New Findings:\n")
		p("--------------------------------------------------\n")
		for _, f := range d.NewFindings {
			p("  [%s] %s: %s\n", f.Severity, f.Table, f.Message)
		}
		p("\n")
	}

	if len(d.ResolvedFindings) > 0 {
		p("Resolved Findings:\n")
		p("--------------------------------------------------\n")
		for _, f := range d.ResolvedFindings {
			p("  ✓ %s: %s\n", f.Table, f.Message)
		}
		p("\n")
	}

	if len(d.NewBySeverity) > 0 {
		sevs := make([]string, 0, len(d.NewBySeverity))
		for sev := range d.NewBySeverity {
			sevs = append(sevs, sev)
		}
		sort.Slice(sevs, func(i, j int) bool {
			return models.SeverityRank(sevs[i]) > models.SeverityRank(sevs[j])
		})
		p("New by Severity:\n")
		for _, sev := range sevs {
			p("  %s: %d\n", sev, d.NewBySeverity[sev])
		}
		p("\n")
	}

	switch {
	case len(d.NewFindings) == 0 && len(d.ResolvedFindings) == 0:
		p("No drift detected.\n")
	case len(d.NewFindings) == 0:
		p("No new findings, only improvements.\n")
	}
	return nil
}
