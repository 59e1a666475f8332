package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
	"gopkg.in/yaml.v3"
)

// Policy defines the limits a run must stay within to pass.
type Policy struct {
	Version string `yaml:"version"`
	Rules   Rules  `yaml:"rules"`
}

// Rules contains all configurable policy rules. Nil limits are not checked.
type Rules struct {
	MaxFindings       *int     `yaml:"max_findings,omitempty"`
	MaxCritical       *int     `yaml:"max_critical,omitempty"`
	MaxWarning        *int     `yaml:"max_warning,omitempty"`
	MaxExceptions     *int     `yaml:"max_exceptions,omitempty"`
	ForbidTables      []string `yaml:"forbid_tables,omitempty"`
	RequireCollectors []string `yaml:"require_collectors,omitempty"`
}

// Violation is a single policy failure.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Result holds the outcome of a policy check.
type Result struct {
	Pass       bool        `json:"pass"`
	Violations []Violation `json:"violations"`
}

// FileNames are the policy file names FindPolicyFile looks for
var FileNames = []string{".sqlcheck-policy.yaml", ".sqlcheck-policy.yml"}

// LoadFromFile reads a policy file. A missing file yields a nil policy.
func LoadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read policy: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}

	return &p, nil
}

// FindPolicyFile searches dir and its parents for a policy file.
func FindPolicyFile(dir string) string {
	for {
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Evaluate checks a snapshot against the policy rules.
func (p *Policy) Evaluate(snap *models.Snapshot) *Result {
	if p == nil {
		return &Result{Pass: true}
	}

	var violations []Violation
	limit := func(rule, what string, count int, lim *int) {
		if lim != nil && count > *lim {
			violations = append(violations, Violation{
				Rule:    rule,
				Message: fmt.Sprintf("%s %d exceeds limit %d", what, count, *lim),
			})
		}
	}

	limit("max_findings", "actionable findings", snap.Summary.ActionableFindings, p.Rules.MaxFindings)
	limit("max_critical", "critical findings", snap.Summary.BySeverity[models.SeverityCritical], p.Rules.MaxCritical)
	limit("max_warning", "warnings", snap.Summary.BySeverity[models.SeverityWarning], p.Rules.MaxWarning)
	limit("max_exceptions", "exceptions", snap.Summary.BySeverity[models.SeverityException], p.Rules.MaxExceptions)

	// forbid_tables
	if len(p.Rules.ForbidTables) > 0 {
		forbidden := make(map[string]bool, len(p.Rules.ForbidTables))
		for _, t := range p.Rules.ForbidTables {
			forbidden[strings.ToLower(t)] = true
		}
		tables := make([]string, 0, len(snap.Summary.ByTable))
		for table := range snap.Summary.ByTable {
			tables = append(tables, table)
		}
		sort.Strings(tables)
		for _, table := range tables {
			if count := snap.Summary.ByTable[table]; forbidden[strings.ToLower(table)] && count > 0 {
				violations = append(violations, Violation{
					Rule:    "forbid_tables",
					Message: fmt.Sprintf("forbidden table %q has %d actionable findings", table, count),
				})
			}
		}
	}

	// require_collectors
	for _, name := range p.Rules.RequireCollectors {
		if !collectorRan(snap, name) {
			violations = append(violations, Violation{
				Rule:    "require_collectors",
				Message: fmt.Sprintf("required collector %q did not run", name),
			})
		}
	}

	return &Result{
		Pass:       len(violations) == 0,
		Violations: violations,
	}
}

func collectorRan(snap *models.Snapshot, name string) bool {
	for _, c := range snap.Collectors {
		if strings.EqualFold(c.Name, name) {
			return c.Skipped == "" && c.Error == ""
		}
	}
	return false
}
