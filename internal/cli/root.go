package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/config"
	"github.com/spf13/cobra"
)

const (
	ExitOK           = 0 // Success
	ExitPolicyFail   = 1 // Policy violated or new findings with --fail-new
	ExitInvalidInput = 2 // Bad flags, config or input file
	ExitRuntimeError = 3 // I/O, permissions, or runtime error
)

var (
	// Global config instance
	cfg *config.Config

	// Build version, set from main
	buildVersion = "dev"

	// Global flags
	configFile  string
	verbose     bool
	debug       bool
	connectTest bool
	disable     []string
)

// rootCmd runs the full audit when invoked without a subcommand
var rootCmd = &cobra.Command{
	Use:   "sqlcheck",
	Short: "sqlcheck - SQL Server connectivity and configuration audit",
	Long: `sqlcheck inspects the local computer for settings that break or degrade
SQL Server connectivity: domain membership and trusts, TLS and cipher
configuration, network settings, client drivers and aliases, certificates,
service accounts, SPNs and constrained delegation, and every local
SQL Server instance.

Running sqlcheck with no subcommand collects everything and prints the
report, each table followed by the warnings found in it.

Quick start:
  sqlcheck
  sqlcheck --format json -o report.json
  sqlcheck --store && sqlcheck diff

Other commands:
  sqlcheck collectors
  sqlcheck doctor
  sqlcheck browse
  sqlcheck init`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return &ValidationError{Message: fmt.Sprintf("failed to load config: %v", err)}
		}

		// Flags override config
		if verbose {
			cfg.Verbose = true
		}
		if debug {
			cfg.Debug = true
			cfg.Verbose = true
		}
		if connectTest {
			cfg.ConnectTest = true
		}
		if len(disable) > 0 {
			cfg.DisabledCollectors = append(cfg.DisabledCollectors, disable...)
		}

		logDebug("config file: %q", cfg.ConfigFile)
		return nil
	},
	RunE: runAudit,
}

// SetVersion records the build version shown by 'sqlcheck version' and
// stamped into snapshots
func SetVersion(v string) {
	if v != "" {
		buildVersion = v
	}
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		var pe *PolicyError
		if !errors.As(err, &pe) {
			logError("%v", err)
		}
	}
	return HandleError(err)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default: ./sqlcheck.yaml or ~/sqlcheck.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"debug mode (very verbose)")
	rootCmd.PersistentFlags().BoolVar(&connectTest, "connect-test", false,
		"open a test connection to every running local instance")
	rootCmd.PersistentFlags().StringSliceVar(&disable, "disable", nil,
		"collectors to skip (comma separated, see 'sqlcheck collectors')")

	addAuditFlags(rootCmd)

	rootCmd.AddCommand(collectorsCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sqlcheck %s\n", buildVersion)
		fmt.Println("SQL Server connectivity and configuration audit")
	},
}

// HandleError determines the appropriate exit code for an error
func HandleError(err error) int {
	if err == nil {
		return ExitOK
	}

	var ve *ValidationError
	var pe *PolicyError
	switch {
	case errors.As(err, &ve):
		return ExitInvalidInput
	case errors.As(err, &pe):
		return ExitPolicyFail
	case isUsageError(err):
		return ExitInvalidInput
	default:
		return ExitRuntimeError
	}
}

// isUsageError recognises cobra's flag and argument errors
func isUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{"unknown flag", "unknown shorthand flag", "unknown command", "invalid argument", "accepts ", "requires "} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

// ValidationError represents invalid flags, configuration or input
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// PolicyError reports a failed policy or CI gate
type PolicyError struct {
	Violations int
	Reason     string
}

func (e *PolicyError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("policy failed with %d violation(s)", e.Violations)
}

// logVerbose prints a message if verbose mode is enabled
func logVerbose(format string, args ...any) {
	if cfg != nil && cfg.Verbose {
		fmt.Fprintf(os.Stderr, "[INFO] "+format+"\n", args...)
	}
}

// logDebug prints a message if debug mode is enabled
func logDebug(format string, args ...any) {
	if cfg != nil && cfg.Debug {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// logError prints an error message
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[ERROR] "+format+"\n", args...)
}
