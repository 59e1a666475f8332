package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/collector"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/config"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe"
	"github.com/spf13/cobra"
)

var (
	auditFormat      string
	auditOutput      string
	auditStore       bool
	auditPolicy      string
	auditShowVerbose bool
	auditShowIDs     bool
	auditColor       string
)

// newProbes builds the probe set for a run; tests swap in fakes
var newProbes = func(c *config.Config) *probe.Set {
	return probe.NewSystem(probe.SystemOptions{
		LDAP: probe.LDAPOptions{
			DomainController: c.LDAP.DomainController,
			User:             c.LDAP.User,
			Password:         c.LDAP.Password,
		},
		ConnectTimeout: c.ConnectTimeout,
		ExecTimeout:    c.ExecTimeout,
	})
}

func addAuditFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&auditFormat, "format", "",
		"output format: text, json, or both (default from config: text)")
	cmd.Flags().StringVarP(&auditOutput, "output", "o", "",
		"write output to file")
	cmd.Flags().BoolVar(&auditStore, "store", false,
		"persist the snapshot for trends and diff")
	cmd.Flags().StringVar(&auditPolicy, "policy", "",
		"policy file (default: search for .sqlcheck-policy.yaml)")
	cmd.Flags().BoolVar(&auditShowVerbose, "show-verbose", false,
		"include Verbose messages in the text report")
	cmd.Flags().BoolVar(&auditShowIDs, "show-ids", false,
		"show the ID and ParentID columns")
	cmd.Flags().StringVar(&auditColor, "color", "",
		"colour severity tags: auto, always, or never")
}

func runAudit(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &ValidationError{Message: fmt.Sprintf("unexpected argument %q (see 'sqlcheck --help')", args[0])}
	}

	pcfg := PipelineConfig{
		Format:      firstNonEmpty(auditFormat, cfg.Format),
		Output:      auditOutput,
		Store:       auditStore,
		StorageDir:  cfg.StorageDir,
		PolicyFile:  firstNonEmpty(auditPolicy, cfg.PolicyFile),
		ShowVerbose: auditShowVerbose || cfg.ShowVerbose,
		ShowIDs:     auditShowIDs || cfg.ShowIDs,
		Color:       firstNonEmpty(auditColor, cfg.Color),
	}
	if err := pcfg.Validate(); err != nil {
		return err
	}

	ds, results, err := collect(cmd.Context())
	if err != nil {
		return err
	}

	_, err = RunPipeline(ds, results, pcfg)
	return err
}

// collect runs every enabled collector against a fresh dataset
func collect(ctx context.Context) (*dataset.Dataset, []collector.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	for _, name := range cfg.DisabledCollectors {
		if _, ok := collector.Lookup(name); !ok {
			return nil, nil, &ValidationError{Message: fmt.Sprintf("unknown collector %q (see 'sqlcheck collectors')", name)}
		}
	}

	runner, err := collector.NewRunner(collector.Registry())
	if err != nil {
		return nil, nil, fmt.Errorf("invalid collector graph: %w", err)
	}

	probes := newProbes(cfg)
	defer func() {
		if err := probes.Close(); err != nil {
			logDebug("closing probes: %v", err)
		}
	}()

	ds := dataset.New()
	env := collector.NewEnv(ds, probes, collector.Options{
		ConnectTest: cfg.ConnectTest,
		Disabled:    cfg.DisabledCollectors,
	})
	env.Progress = logVerbose

	results := runner.Run(ctx, env)
	for _, res := range results {
		switch {
		case res.Error != "":
			logError("%s: %s", res.Collector, res.Error)
		case res.Skipped != "":
			logDebug("%s skipped: %s", res.Collector, res.Skipped)
		default:
			logDebug("%s done in %s", res.Collector, res.Duration)
		}
	}
	return ds, results, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
