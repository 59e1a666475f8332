package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe"
	"github.com/spf13/cobra"
)

var doctorFormat string

// lookPath finds external tools; tests replace it
var lookPath = exec.LookPath

// doctorTimeout bounds each probe check
const doctorTimeout = 20 * time.Second

// externalTools are the commands collectors shell out to
var externalTools = []string{"fltmc", "netsh", "tasklist"}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment readiness and diagnose common problems",
	Long: `Doctor checks that sqlcheck can see what it needs:

  1. Config file found and valid?
  2. Storage directory writable?
  3. Registry, WMI, services, host and certificate probes available?
  4. External tools (fltmc, netsh, tasklist) on PATH?
  5. Active Directory domain reachable over LDAP?

A probe that is unavailable does not stop a run; the affected tables stay
empty and the report says so.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "text",
		"output format: text or json")
}

type doctorCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok", "warn", "fail"
	Detail string `json:"detail,omitempty"`
}

type doctorResult struct {
	Checks  []doctorCheck `json:"checks"`
	Summary string        `json:"summary"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	probes := newProbes(cfg)
	defer func() { _ = probes.Close() }()

	checks := []doctorCheck{checkConfig(), checkStorage()}
	checks = append(checks, checkProbes(ctx, probes)...)
	checks = append(checks, checkTools()...)
	checks = append(checks, checkDomain(ctx, probes))

	result := summarizeChecks(checks)

	if doctorFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return writeDoctorText(os.Stdout, result)
}

func summarizeChecks(checks []doctorCheck) doctorResult {
	fails, warns := 0, 0
	for _, c := range checks {
		switch c.Status {
		case "fail":
			fails++
		case "warn":
			warns++
		}
	}

	summary := "all checks passed"
	if fails > 0 {
		summary = fmt.Sprintf("%d issue(s) found", fails)
	} else if warns > 0 {
		summary = fmt.Sprintf("ok with %d warning(s)", warns)
	}
	return doctorResult{Checks: checks, Summary: summary}
}

func writeDoctorText(w io.Writer, result doctorResult) error {
	icons := map[string]string{
		"ok":   "✓",
		"warn": "△",
		"fail": "✗",
	}

	for _, c := range result.Checks {
		icon := icons[c.Status]
		if c.Detail != "" {
			fmt.Fprintf(w, "  %s %-20s %s\n", icon, c.Name, c.Detail)
		} else {
			fmt.Fprintf(w, "  %s %s\n", icon, c.Name)
		}
	}

	_, err := fmt.Fprintf(w, "\n%s\n", result.Summary)
	return err
}

func checkConfig() doctorCheck {
	path := cfg.ConfigFile
	if configFile != "" {
		path = configFile
	}
	if path == "" {
		return doctorCheck{
			Name:   "config",
			Status: "warn",
			Detail: "no config file found (using defaults). Run: sqlcheck init",
		}
	}
	return doctorCheck{Name: "config", Status: "ok", Detail: path}
}

func checkStorage() doctorCheck {
	storagePath, err := cfg.GetStoragePath()
	if err != nil {
		return doctorCheck{Name: "storage", Status: "fail", Detail: err.Error()}
	}

	info, err := os.Stat(storagePath)
	if err != nil {
		return doctorCheck{
			Name:   "storage",
			Status: "ok",
			Detail: fmt.Sprintf("%s (will be created on first --store)", storagePath),
		}
	}
	if !info.IsDir() {
		return doctorCheck{
			Name:   "storage",
			Status: "fail",
			Detail: fmt.Sprintf("%s exists but is not a directory", storagePath),
		}
	}

	tmpFile := filepath.Join(storagePath, ".doctor-check")
	if err := os.WriteFile(tmpFile, []byte("ok"), 0o600); err != nil {
		return doctorCheck{
			Name:   "storage",
			Status: "fail",
			Detail: fmt.Sprintf("%s not writable: %v", storagePath, err),
		}
	}
	_ = os.Remove(tmpFile)

	return doctorCheck{Name: "storage", Status: "ok", Detail: storagePath}
}

// probeCheck turns a probe call's outcome into a check. Unsupported probes
// warn: the run still works, the tables they feed stay empty.
func probeCheck(name string, err error, okDetail string) doctorCheck {
	switch {
	case err == nil:
		return doctorCheck{Name: name, Status: "ok", Detail: okDetail}
	case errors.Is(err, probe.ErrUnsupported):
		return doctorCheck{Name: name, Status: "warn", Detail: "not available on this platform"}
	default:
		return doctorCheck{Name: name, Status: "fail", Detail: err.Error()}
	}
}

func checkProbes(ctx context.Context, p *probe.Set) []doctorCheck {
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	var checks []doctorCheck

	build, err := p.Registry.String(probe.View64, `SOFTWARE\Microsoft\Windows NT\CurrentVersion`, "CurrentBuildNumber")
	if errors.Is(err, probe.ErrNotFound) {
		err = nil
		build = "unknown"
	}
	checks = append(checks, probeCheck("registry", err, "Windows build "+build))

	recs, err := p.WMI.Query(ctx, "", "SELECT Name FROM Win32_ComputerSystem", []string{"Name"})
	checks = append(checks, probeCheck("wmi", err, fmt.Sprintf("%d computer record(s)", len(recs))))

	svcs, err := p.Services.List(ctx, func(string) bool { return true })
	checks = append(checks, probeCheck("services", err, fmt.Sprintf("%d service(s)", len(svcs))))

	facts, err := p.Host.Facts(ctx)
	checks = append(checks, probeCheck("host", err, fmt.Sprintf("%s %s %s", facts.Hostname, facts.Platform, facts.PlatformVersion)))

	certs, err := p.Certs.Certificates(ctx, "MY")
	checks = append(checks, probeCheck("certificates", err, fmt.Sprintf("%d in LocalMachine\\MY", len(certs))))

	return checks
}

func checkTools() []doctorCheck {
	checks := make([]doctorCheck, 0, len(externalTools))
	for _, tool := range externalTools {
		path, err := lookPath(tool)
		if err != nil {
			checks = append(checks, doctorCheck{
				Name:   tool,
				Status: "warn",
				Detail: "not found on PATH",
			})
			continue
		}
		checks = append(checks, doctorCheck{Name: tool, Status: "ok", Detail: path})
	}
	return checks
}

func checkDomain(ctx context.Context, p *probe.Set) doctorCheck {
	domain := p.Env("USERDNSDOMAIN")
	if domain == "" {
		return doctorCheck{
			Name:   "domain",
			Status: "warn",
			Detail: "USERDNSDOMAIN not set (workgroup computer or local account)",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	info, err := p.Directory.Domain(ctx, domain)
	if err != nil {
		return probeCheck("domain", err, "")
	}
	return doctorCheck{Name: "domain", Status: "ok", Detail: fmt.Sprintf("%s (%s)", info.Name, info.DN)}
}
