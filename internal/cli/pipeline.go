package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/aggregator"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/collector"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/config"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/policy"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/reporter"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/storage"
	"golang.org/x/term"
)

// bothJSONFile receives the JSON half of --format both when writing to stdout
const bothJSONFile = "sqlcheck-report.json"

// PipelineConfig holds options for turning a collected dataset into output.
type PipelineConfig struct {
	Format      string
	Output      string
	Store       bool
	StorageDir  string
	PolicyFile  string
	ShowVerbose bool
	ShowIDs     bool
	Color       string
}

// Validate rejects unknown formats and colour modes
func (p PipelineConfig) Validate() error {
	switch p.Format {
	case "text", "json", "both":
	default:
		return &ValidationError{Message: fmt.Sprintf("unsupported format: %s (use text, json, or both)", p.Format)}
	}
	switch p.Color {
	case "", "auto", "always", "never":
	default:
		return &ValidationError{Message: fmt.Sprintf("unsupported color: %s (use auto, always, or never)", p.Color)}
	}
	return nil
}

// RunPipeline aggregates a collected dataset and reports it:
// aggregate → trend → store → output → policy check.
func RunPipeline(ds *dataset.Dataset, results []collector.RunResult, pcfg PipelineConfig) (*models.Snapshot, error) {
	var store storage.Storage
	if pcfg.Store {
		var err error
		if store, err = openStore(pcfg.StorageDir); err != nil {
			logError("Failed to get storage path: %v", err)
			return nil, err
		}
	}

	// Step 1: Aggregate, with a trend against the previous stored run
	snap := buildSnapshot(ds, results, store)
	logVerbose("Aggregated %d findings (%d actionable) across %d tables",
		snap.Summary.TotalFindings, snap.Summary.ActionableFindings, snap.Summary.Tables)

	// Step 2: Store
	if store != nil {
		if err := store.SaveSnapshot(snap); err != nil {
			logError("Failed to store snapshot: %v", err)
			return snap, err
		}
		logVerbose("Stored snapshot in: %s", pcfg.StorageDir)
	}

	// Step 3: Output
	if err := generateOutput(ds, snap, pcfg); err != nil {
		logError("Failed to generate output: %v", err)
		return snap, err
	}

	// Step 4: Policy
	return snap, checkPolicy(snap, pcfg.PolicyFile)
}

// buildSnapshot aggregates the dataset; a non-nil store adds the trend
// against its latest run
func buildSnapshot(ds *dataset.Dataset, results []collector.RunResult, store storage.Storage) *models.Snapshot {
	snap := aggregator.New(buildVersion).Aggregate(ds, results)
	if store == nil {
		return snap
	}
	if previous, err := store.GetLatestRun(); err == nil {
		logVerbose("Found previous run from %s", previous.Timestamp)
		aggregator.AddTrend(snap, previous)
	} else {
		logDebug("No previous run found: %v", err)
	}
	return snap
}

// openStore opens the snapshot store below dir
func openStore(dir string) (storage.Storage, error) {
	path, err := (&config.Config{StorageDir: dir}).GetStoragePath()
	if err != nil {
		return nil, err
	}
	return storage.NewLocal(path), nil
}

// checkPolicy evaluates the snapshot against an explicit policy file or the
// nearest .sqlcheck-policy.yaml
func checkPolicy(snap *models.Snapshot, explicit string) error {
	path := explicit
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil
		}
		path = policy.FindPolicyFile(cwd)
		if path == "" {
			return nil
		}
	}
	logVerbose("Using policy file: %s", path)

	pol, err := policy.LoadFromFile(path)
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	if pol == nil {
		return &ValidationError{Message: fmt.Sprintf("policy file not found: %s", path)}
	}

	result := pol.Evaluate(snap)
	if result.Pass {
		logVerbose("Policy check passed")
		return nil
	}
	for _, v := range result.Violations {
		logError("Policy violation [%s]: %s", v.Rule, v.Message)
	}
	return &PolicyError{Violations: len(result.Violations)}
}

// generateOutput writes the report in the requested format(s)
func generateOutput(ds *dataset.Dataset, snap *models.Snapshot, pcfg PipelineConfig) (err error) {
	var writer io.Writer = os.Stdout
	toStdout := pcfg.Output == ""
	if !toStdout {
		f, err := os.Create(pcfg.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		writer = f
	}

	text := func(w io.Writer) error {
		return reporter.NewTextRenderer(w, reporter.TextOptions{
			ShowIDs:     pcfg.ShowIDs,
			ShowVerbose: pcfg.ShowVerbose,
			Color:       useColor(pcfg.Color, toStdout),
			Title:       "sqlcheck " + buildVersion,
			Timestamp:   snap.Timestamp,
		}).Render(ds)
	}

	switch pcfg.Format {
	case "text":
		return text(writer)

	case "json":
		return reporter.NewJSONReporter(writer, true).Generate(snap)

	case "both":
		if err := text(writer); err != nil {
			return err
		}
		if toStdout {
			f, err := os.Create(bothJSONFile)
			if err != nil {
				return fmt.Errorf("failed to create JSON file: %w", err)
			}
			defer func() { _ = f.Close() }()
			logVerbose("JSON snapshot written to %s", bothJSONFile)
			return reporter.NewJSONReporter(f, true).Generate(snap)
		}
		if _, err := fmt.Fprintf(writer, "\n=== JSON Output ===\n\n"); err != nil {
			return err
		}
		return reporter.NewJSONReporter(writer, true).Generate(snap)

	default:
		return fmt.Errorf("unsupported format: %s (use text, json, or both)", pcfg.Format)
	}
}

// useColor resolves auto/always/never; auto colours only a terminal stdout
func useColor(mode string, toStdout bool) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if !toStdout || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// loadStored returns the latest stored snapshot, or a ValidationError
// pointing at --store when there is none
func loadStored(store storage.Storage) (*models.Snapshot, error) {
	snap, err := store.GetLatestRun()
	if errors.Is(err, storage.ErrNoRuns) {
		return nil, &ValidationError{Message: "no stored runs found; run 'sqlcheck --store' first"}
	}
	return snap, err
}
