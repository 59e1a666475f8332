package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a sample configuration file",
	Long: `Init writes a commented sqlcheck.yaml with every setting at its default.
The file goes to the given path, the --config path, or ./sqlcheck.yaml.

Example:
  sqlcheck init
  sqlcheck init ~/sqlcheck.yaml --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false,
		"overwrite an existing file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := "sqlcheck.yaml"
	switch {
	case len(args) == 1:
		path = args[0]
	case configFile != "":
		path = configFile
	}

	if err := writeSampleConfig(path, initForce); err != nil {
		return err
	}
	fmt.Printf("Config written to %s\n", path)
	return nil
}

func writeSampleConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return &ValidationError{Message: fmt.Sprintf("%s already exists (use --force to overwrite)", path)}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if err := os.WriteFile(path, []byte(config.GenerateSampleConfig()), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
