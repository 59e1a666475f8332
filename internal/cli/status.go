package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/aggregator"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
	"github.com/spf13/cobra"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest stored run and configuration",
	Long: `Status summarises the latest run saved with --store: health, findings
by severity, trend against the run before it, and the recommendations
grouped by severity. It also shows where configuration and snapshots live.

Example:
  sqlcheck status
  sqlcheck status --format json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "text",
		"output format: text or json")
}

type statusResult struct {
	Config     statusConfig  `json:"config"`
	ConfigFile string        `json:"config_file,omitempty"`
	Runs       int           `json:"runs"`
	Latest     *statusLatest `json:"latest,omitempty"`
}

type statusConfig struct {
	StorageDir         string   `json:"storage_dir"`
	Format             string   `json:"format"`
	ConnectTest        bool     `json:"connect_test"`
	DisabledCollectors []string `json:"disabled_collectors,omitempty"`
}

type statusLatest struct {
	Timestamp       time.Time                          `json:"timestamp"`
	Computer        string                             `json:"computer,omitempty"`
	Summary         models.Summary                     `json:"summary"`
	Trend           *models.Trend                      `json:"trend,omitempty"`
	Recommendations map[string][]models.Recommendation `json:"recommendations,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	result := statusResult{
		Config: statusConfig{
			StorageDir:         cfg.StorageDir,
			Format:             cfg.Format,
			ConnectTest:        cfg.ConnectTest,
			DisabledCollectors: cfg.DisabledCollectors,
		},
		ConfigFile: cfg.ConfigFile,
	}

	store, err := openStore(cfg.StorageDir)
	if err != nil {
		return err
	}
	runs, err := store.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	result.Runs = len(runs)

	if len(runs) > 0 {
		snap, err := store.GetLatestRun()
		if err != nil {
			return fmt.Errorf("failed to load latest run: %w", err)
		}
		result.Latest = &statusLatest{
			Timestamp:       snap.Timestamp,
			Computer:        snap.Computer,
			Summary:         snap.Summary,
			Trend:           snap.Trend,
			Recommendations: aggregator.NewRecommendationGenerator().GroupBySeverity(snap.Recommendations),
		}
	}

	if statusFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return writeStatusText(os.Stdout, result)
}

func writeStatusText(w io.Writer, result statusResult) error {
	p := func(format string, args ...any) {
		_, _ = fmt.Fprintf(w, format, args...)
	}

	if result.ConfigFile != "" {
		p("Config:   %s\n", result.ConfigFile)
	} else {
		p("Config:   defaults (no sqlcheck.yaml found)\n")
	}
	p("Storage:  %s (%d run(s))\n", result.Config.StorageDir, result.Runs)

	latest := result.Latest
	if latest == nil {
		p("\nNo stored runs. Run 'sqlcheck --store' to record one.\n")
		return nil
	}

	p("\nLatest run: %s", latest.Timestamp.Local().Format("2006-01-02 15:04:05"))
	if latest.Computer != "" {
		p(" on %s", latest.Computer)
	}
	p("\n")
	p("Health:   %s\n", latest.Summary.Health)
	p("Findings: %d (%d actionable)\n", latest.Summary.TotalFindings, latest.Summary.ActionableFindings)
	for _, sev := range []string{models.SeverityException, models.SeverityCritical, models.SeverityWarning} {
		if n := latest.Summary.BySeverity[sev]; n > 0 {
			p("  %-10s %d\n", sev, n)
		}
	}
	if t := latest.Trend; t != nil {
		p("Trend:    %s %s (%d → %d, +%d new, -%d resolved)\n",
			aggregator.GetTrendIndicator(t.Direction), t.Direction,
			t.PreviousFindings, t.CurrentFindings, t.NewFindings, t.ResolvedFindings)
	}

	for _, sev := range []string{models.SeverityException, models.SeverityCritical, models.SeverityWarning} {
		recs := latest.Recommendations[sev]
		if len(recs) == 0 {
			continue
		}
		p("\n%s:\n", sev)
		for _, r := range recs {
			if r.Count > 1 {
				p("  - [%s] %s (x%d)\n", r.Table, r.Action, r.Count)
			} else {
				p("  - [%s] %s\n", r.Table, r.Action)
			}
		}
	}
	return nil
}
