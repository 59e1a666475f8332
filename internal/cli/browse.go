package cli

import (
	"os"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	browseFresh bool
	browseLastN int
)

// runTUI starts the browser; tests replace it
var runTUI = tui.Run

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse findings interactively",
	Long: `Browse opens an interactive view of the findings of the latest stored
run: filter by table or minimum severity, search, sort and inspect the row
each finding was logged against. The header charts the actionable findings
of the last stored runs.

Use --fresh to collect a new snapshot instead of reading the store.

Keys: / search, t table filter, v minimum severity, s sort, c copy, esc clear, q quit.

Example:
  sqlcheck browse
  sqlcheck browse --fresh --connect-test`,
	Args: cobra.NoArgs,
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().BoolVar(&browseFresh, "fresh", false,
		"collect a new snapshot instead of using the latest stored run")
	browseCmd.Flags().IntVarP(&browseLastN, "last", "n", 10,
		"number of stored runs charted in the header")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return &ValidationError{Message: "browse needs an interactive terminal; use --format json instead"}
	}

	snap, sparkline, err := browseData(cmd)
	if err != nil {
		return err
	}
	return runTUI(snap, sparkline)
}

// browseData loads the snapshot to browse and the run history chart
func browseData(cmd *cobra.Command) (*models.Snapshot, []int, error) {
	store, err := openStore(cfg.StorageDir)
	if err != nil {
		return nil, nil, err
	}

	var sparkline []int
	if runs, err := store.GetLastNRuns(browseLastN); err == nil {
		sparkline = tui.Sparkline(runs)
	}

	if !browseFresh {
		snap, err := loadStored(store)
		if err != nil {
			return nil, nil, err
		}
		return snap, sparkline, nil
	}

	ds, results, err := collect(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return buildSnapshot(ds, results, store), sparkline, nil
}
