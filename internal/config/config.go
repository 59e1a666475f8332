package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for sqlcheck
type Config struct {
	// Storage directory for --store snapshots
	StorageDir string `mapstructure:"storage_dir"`

	// Output format (text, json, both)
	Format string `mapstructure:"format"`

	// Colour: auto, always or never
	Color string `mapstructure:"color"`

	// Verbose output
	Verbose bool `mapstructure:"verbose"`

	// Debug mode
	Debug bool `mapstructure:"debug"`

	// Report options
	ShowVerbose bool `mapstructure:"show_verbose"`
	ShowIDs     bool `mapstructure:"show_ids"`

	// Open a test connection to every running local instance
	ConnectTest    bool          `mapstructure:"connect_test"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	// Upper bound for external tools (fltmc, netsh, tasklist)
	ExecTimeout time.Duration `mapstructure:"exec_timeout"`

	// Collectors to skip, by name
	DisabledCollectors []string `mapstructure:"disabled_collectors"`

	// Policy file; empty searches for .sqlcheck-policy.yaml
	PolicyFile string `mapstructure:"policy_file"`

	LDAP LDAPConfig `mapstructure:"ldap"`

	// File the configuration was read from, empty when none was found
	ConfigFile string `mapstructure:"-"`
}

// LDAPConfig configures the directory probe
type LDAPConfig struct {
	DomainController string `mapstructure:"domain_controller"`
	User             string `mapstructure:"user"`
	Password         string `mapstructure:"password"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		StorageDir:     ".sqlcheck",
		Format:         "text",
		Color:          "auto",
		ConnectTimeout: 15 * time.Second,
		ExecTimeout:    30 * time.Second,
	}
}

// Load loads configuration with the following precedence (lowest to highest):
// 1. Default values
// 2. Config file (./sqlcheck.yaml, ~/sqlcheck.yaml, $XDG_CONFIG_HOME/sqlcheck/sqlcheck.yaml)
// 3. Environment variables (SQLCHECK_*)
// 4. CLI flags (handled by caller)
func Load() (*Config, error) {
	return LoadFromFile("")
}

// LoadFromFile loads configuration from a specific file path.
// If path is empty, it searches for config in standard locations.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("storage_dir", defaults.StorageDir)
	v.SetDefault("format", defaults.Format)
	v.SetDefault("color", defaults.Color)
	v.SetDefault("verbose", false)
	v.SetDefault("debug", false)
	v.SetDefault("show_verbose", false)
	v.SetDefault("show_ids", false)
	v.SetDefault("connect_test", false)
	v.SetDefault("connect_timeout", defaults.ConnectTimeout)
	v.SetDefault("exec_timeout", defaults.ExecTimeout)
	v.SetDefault("disabled_collectors", []string{})
	v.SetDefault("policy_file", "")
	v.SetDefault("ldap.domain_controller", "")
	v.SetDefault("ldap.user", "")
	v.SetDefault("ldap.password", "")

	v.SetConfigName("sqlcheck")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		for _, dir := range SearchPaths() {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix("SQLCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	// AutomaticEnv does not split lists
	if env := os.Getenv("SQLCHECK_DISABLED_COLLECTORS"); env != "" {
		cfg.DisabledCollectors = SplitList(env)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SearchPaths lists the directories searched for sqlcheck.yaml, in order
func SearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		paths = append(paths, filepath.Join(xdgConfig, "sqlcheck"))
	}
	return paths
}

// SplitList splits a comma or space separated list, dropping empty items
func SplitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validFormats := map[string]bool{
		"text": true,
		"json": true,
		"both": true,
	}
	if !validFormats[c.Format] {
		return fmt.Errorf("invalid format: %s (must be text, json, or both)", c.Format)
	}

	switch c.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("invalid color: %s (must be auto, always, or never)", c.Color)
	}

	if c.ConnectTimeout < 0 {
		return fmt.Errorf("connect_timeout cannot be negative")
	}
	if c.ExecTimeout < 0 {
		return fmt.Errorf("exec_timeout cannot be negative")
	}

	if c.StorageDir == "" {
		return fmt.Errorf("storage_dir cannot be empty")
	}

	if c.LDAP.Password != "" && c.LDAP.User == "" {
		return fmt.Errorf("ldap.password requires ldap.user")
	}

	return nil
}

// GetStoragePath returns the absolute path to the storage directory
func (c *Config) GetStoragePath() (string, error) {
	dir := c.StorageDir
	if strings.HasPrefix(dir, "~/") || strings.HasPrefix(dir, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, dir[2:])
	}

	absPath, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	return absPath, nil
}

// GenerateSampleConfig generates a sample configuration file content
func GenerateSampleConfig() string {
	return `# sqlcheck configuration
# Save this file as ./sqlcheck.yaml or ~/sqlcheck.yaml

# Directory for snapshots written with --store
storage_dir: .sqlcheck

# Output format: text, json, or both
format: text

# Colour severity tags: auto, always, or never
color: auto

# Enable verbose output
verbose: false

# Enable debug mode
debug: false

# Show Verbose messages and the ID/ParentID columns in the text report
show_verbose: false
show_ids: false

# Open a test connection to every running local SQL Server instance
connect_test: false
connect_timeout: 15s

# Timeout for fltmc, netsh and tasklist
exec_timeout: 30s

# Collectors to skip (see: sqlcheck collectors)
# disabled_collectors:
#   - ProcessDrivers

# Policy file for CI gating (default: search for .sqlcheck-policy.yaml)
# policy_file: .sqlcheck-policy.yaml

# Directory access; by default the domain controller is located through DNS
# and the current Windows credentials are used
# ldap:
#   domain_controller: dc01.contoso.com
#   user: CONTOSO\auditor
#   password: ""
`
}
