package collector

import (
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe"
	"github.com/spf13/afero"
)

// regReader reads the registry on behalf of one owner: missing keys and
// values are quiet misses, any other failure is logged as an Exception
// against the owner.
type regReader struct {
	env   *Env
	owner diag.Owner
	view  probe.View
}

func (e *Env) reg(owner diag.Owner) *regReader {
	return &regReader{env: e, owner: owner, view: probe.View64}
}

// in returns a reader for another registry view
func (r *regReader) in(view probe.View) *regReader {
	return &regReader{env: r.env, owner: r.owner, view: view}
}

func (r *regReader) failed(what string, err error) bool {
	if err == nil {
		return false
	}
	if !errors.Is(err, probe.ErrNotFound) && !errors.Is(err, probe.ErrUnsupported) {
		diag.LogException(r.env.Log, r.owner, err, "Failed to read %s", what)
	}
	return true
}

func (r *regReader) String(path, name string) (string, bool) {
	v, err := r.env.Probes.Registry.String(r.view, path, name)
	if r.failed(path+`\`+name, err) {
		return "", false
	}
	return v, true
}

func (r *regReader) Int(path, name string) (int64, bool) {
	v, err := r.env.Probes.Registry.Integer(r.view, path, name)
	if r.failed(path+`\`+name, err) {
		return 0, false
	}
	return v, true
}

// IntDefault reads an integer, returning def when it is not set
func (r *regReader) IntDefault(path, name string, def int64) (int64, bool) {
	v, ok := r.Int(path, name)
	if !ok {
		return def, false
	}
	return v, true
}

// Raw reads a value as text for CheckRange; "" when absent
func (r *regReader) Raw(path, name string) string {
	v, _ := r.String(path, name)
	return v
}

func (r *regReader) Strings(path, name string) []string {
	v, err := r.env.Probes.Registry.Strings(r.view, path, name)
	if r.failed(path+`\`+name, err) {
		return nil
	}
	return v
}

func (r *regReader) SubKeys(path string) []string {
	v, err := r.env.Probes.Registry.SubKeys(r.view, path)
	if r.failed(path, err) {
		return nil
	}
	return v
}

func (r *regReader) ValueNames(path string) []string {
	v, err := r.env.Probes.Registry.ValueNames(r.view, path)
	if r.failed(path, err) {
		return nil
	}
	return v
}

func (r *regReader) Exists(path string) bool {
	return probe.KeyExists(r.env.Probes.Registry, r.view, path)
}

// Flag reads a DWORD as a boolean: set and non-zero
func (r *regReader) Flag(path, name string) bool {
	v, ok := r.Int(path, name)
	return ok && v != 0
}

// exec runs an external tool, logging failures against owner. A tool that
// is not installed only rates a Verbose note.
func (e *Env) exec(ctx context.Context, owner diag.Owner, name string, args ...string) (string, bool) {
	if e.Probes.Exec == nil {
		return "", false
	}
	out, err := e.Probes.Exec(ctx, name, args...)
	switch {
	case err == nil:
	case errors.Is(err, probe.ErrUnsupported):
		return "", false
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, probe.ErrNotFound):
		diag.LogVerbose(e.Log, owner, "%s is not available: %v", name, err)
		return "", false
	default:
		diag.LogException(e.Log, owner, err, "Failed to run %s %s", name, strings.Join(args, " "))
		return "", false
	}
	return string(out), true
}

// wmi runs a query in root\cimv2 unless namespace is given
func (e *Env) wmi(ctx context.Context, owner diag.Owner, namespace, query string, props ...string) ([]probe.Record, bool) {
	if namespace == "" {
		namespace = `root\cimv2`
	}
	recs, err := e.Probes.WMI.Query(ctx, namespace, query, props)
	if err != nil {
		if !errors.Is(err, probe.ErrUnsupported) {
			diag.LogException(e.Log, owner, err, "WMI query failed: %s", query)
		}
		return nil, false
	}
	return recs, true
}

// readFile reads path through the file probe
func readFile(env *Env, path string) ([]byte, error) {
	return afero.ReadFile(env.Probes.Files, path)
}

// statFile stats path through the file probe
func statFile(env *Env, path string) (fs.FileInfo, error) {
	return env.Probes.Files.Stat(path)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// windir returns the Windows directory
func (e *Env) windir() string {
	if d := e.Probes.Env("windir"); d != "" {
		return d
	}
	if d := e.Probes.Env("SystemRoot"); d != "" {
		return d
	}
	return `C:\Windows`
}

// AddUnique appends s unless list already holds it, ignoring case
func AddUnique(list []string, s string) []string {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return list
		}
	}
	return append(list, s)
}

// parseColonLines reads "Label : value" lines as printed by netsh and friends
func parseColonLines(out string) map[string]string {
	values := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		values[k] = strings.TrimSpace(v)
	}
	return values
}

func atoi(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}
