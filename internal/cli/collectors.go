package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/collector"
	"github.com/spf13/cobra"
)

var collectorsFormat string

var collectorsCmd = &cobra.Command{
	Use:   "collectors",
	Short: "List collectors in run order",
	Long: `Collectors lists every collector in the order a run executes them, with
the collectors each one depends on. Retired collectors and those disabled
through --disable or disabled_collectors are marked with the reason.

Example:
  sqlcheck collectors
  sqlcheck collectors --disable ProcessDrivers
  sqlcheck collectors --format json`,
	Args: cobra.NoArgs,
	RunE: runCollectors,
}

func init() {
	collectorsCmd.Flags().StringVar(&collectorsFormat, "format", "text",
		"output format: text or json")
}

type collectorInfo struct {
	Position  int      `json:"position"`
	Name      string   `json:"name"`
	DependsOn []string `json:"depends_on,omitempty"`
	Disabled  string   `json:"disabled,omitempty"`
}

func runCollectors(cmd *cobra.Command, args []string) error {
	infos, err := listCollectors(cfg.DisabledCollectors)
	if err != nil {
		return err
	}

	if collectorsFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	return writeCollectorsText(os.Stdout, infos)
}

// listCollectors returns the run order with disabled reasons filled in
func listCollectors(disabled []string) ([]collectorInfo, error) {
	runner, err := collector.NewRunner(collector.Registry())
	if err != nil {
		return nil, fmt.Errorf("invalid collector graph: %w", err)
	}

	off := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		c, ok := collector.Lookup(name)
		if !ok {
			return nil, &ValidationError{Message: fmt.Sprintf("unknown collector %q", name)}
		}
		off[c.Name] = true
	}

	ordered := runner.Collectors()
	infos := make([]collectorInfo, 0, len(ordered))
	for n, c := range ordered {
		info := collectorInfo{Position: n + 1, Name: c.Name, DependsOn: c.DependsOn, Disabled: c.Disabled}
		if info.Disabled == "" && off[c.Name] {
			info.Disabled = "disabled by configuration"
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func writeCollectorsText(w io.Writer, infos []collectorInfo) error {
	nameWidth := 0
	for _, info := range infos {
		nameWidth = max(nameWidth, len(info.Name))
	}
	for _, info := range infos {
		line := fmt.Sprintf("%3d. %-*s", info.Position, nameWidth, info.Name)
		if len(info.DependsOn) > 0 {
			line += "  after " + strings.Join(info.DependsOn, ", ")
		}
		if info.Disabled != "" {
			line += "  [disabled: " + info.Disabled + "]"
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}
