package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/collector"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/config"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/policy"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/storage"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a snapshot, policy or config file",
	Long: `Validate checks a file sqlcheck reads:

  *.json                     snapshot written by --format json or --store
  .sqlcheck-policy.yaml      policy file
  sqlcheck.yaml              configuration file

Returns exit 0 if valid, exit 2 if invalid with details on stderr.

Example:
  sqlcheck validate baseline.json
  sqlcheck validate .sqlcheck-policy.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	kind, err := validateFile(afero.NewOsFs(), path)
	if err != nil {
		return &ValidationError{Message: fmt.Sprintf("INVALID: %v", err)}
	}
	fmt.Printf("VALID: %s %s\n", kind, path)
	return nil
}

// validateFile picks the check by file name and returns what the file is
func validateFile(fs afero.Fs, path string) (string, error) {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".json"):
		snap, err := storage.LoadFile(fs, path)
		if err != nil {
			return "", err
		}
		return "snapshot", validateSnapshot(snap)

	case strings.HasPrefix(name, ".sqlcheck-policy"):
		pol, err := policy.LoadFromFile(path)
		if err != nil {
			return "", err
		}
		if pol == nil {
			return "", fmt.Errorf("%s: file not found", path)
		}
		return "policy", validatePolicy(pol)

	case strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml"):
		if _, err := config.LoadFromFile(path); err != nil {
			return "", err
		}
		return "config", nil

	default:
		return "", fmt.Errorf("unrecognised file type: %s", path)
	}
}

func validateSnapshot(snap *models.Snapshot) error {
	if snap.Tool != models.ToolName {
		return fmt.Errorf("tool is %q, want %q", snap.Tool, models.ToolName)
	}
	if snap.SchemaVersion != dataset.SchemaVersion {
		return fmt.Errorf("schema version %d, want %d", snap.SchemaVersion, dataset.SchemaVersion)
	}
	if snap.Timestamp.IsZero() {
		return fmt.Errorf("missing timestamp")
	}
	for _, f := range snap.Findings {
		if models.SeverityRank(f.Severity) < 0 {
			return fmt.Errorf("finding on %s has unknown severity %q", f.Table, f.Severity)
		}
	}
	return nil
}

func validatePolicy(pol *policy.Policy) error {
	limits := []struct {
		name string
		lim  *int
	}{
		{"max_findings", pol.Rules.MaxFindings},
		{"max_critical", pol.Rules.MaxCritical},
		{"max_warning", pol.Rules.MaxWarning},
		{"max_exceptions", pol.Rules.MaxExceptions},
	}
	for _, l := range limits {
		if l.lim != nil && *l.lim < 0 {
			return fmt.Errorf("%s cannot be negative", l.name)
		}
	}

	tables := make(map[string]bool)
	for _, t := range dataset.New().Tables() {
		tables[strings.ToLower(t.Name())] = true
	}
	for _, table := range pol.Rules.ForbidTables {
		if !tables[strings.ToLower(table)] {
			return fmt.Errorf("forbid_tables: unknown table %q", table)
		}
	}
	for _, name := range pol.Rules.RequireCollectors {
		if _, ok := collector.Lookup(name); !ok {
			return fmt.Errorf("require_collectors: unknown collector %q", name)
		}
	}
	return nil
}
