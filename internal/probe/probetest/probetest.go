// Package probetest provides in-memory probes for collector tests and dry runs.
package probetest

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe"
	"github.com/spf13/afero"
)

// Fakes holds one fake per probe; Set wires them into a *probe.Set
type Fakes struct {
	Registry  *Registry
	WMI       *WMI
	Directory *Directory
	Services  *Services
	Host      *Host
	Certs     *CertStore
	SQL       *SQL
	Exec      *Exec
	Files     afero.Fs
	Env       map[string]string
}

// New returns empty fakes: every registry read misses, every list is empty
func New() *Fakes {
	return &Fakes{
		Registry:  NewRegistry(),
		WMI:       &WMI{Results: make(map[string][]probe.Record)},
		Directory: NewDirectory(),
		Services:  &Services{},
		Host:      &Host{},
		Certs:     &CertStore{},
		SQL:       &SQL{},
		Exec:      &Exec{Outputs: make(map[string]string)},
		Files:     afero.NewMemMapFs(),
		Env:       make(map[string]string),
	}
}

// Set returns a probe set backed by the fakes
func (f *Fakes) Set() *probe.Set {
	return &probe.Set{
		Registry:  f.Registry,
		WMI:       f.WMI,
		Directory: f.Directory,
		Services:  f.Services,
		Host:      f.Host,
		Certs:     f.Certs,
		SQL:       f.SQL,
		Exec:      f.Exec.Run,
		Files:     f.Files,
		Getenv:    func(name string) string { return f.Env[name] },
	}
}

// Registry is an in-memory HKLM. Paths and value names match case-insensitively.
type Registry struct {
	values map[string]any
	names  map[string]string // lower-cased value key -> original value name
	keys   map[string]string // lower-cased key -> original spelling
	fail   map[string]error
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		values: make(map[string]any),
		names:  make(map[string]string),
		keys:   make(map[string]string),
		fail:   make(map[string]error),
	}
}

func keyOf(view probe.View, path string) string {
	return fmt.Sprintf("%d|%s", view, strings.ToLower(strings.Trim(path, `\`)))
}

// AddKey creates path and its ancestors in view
func (r *Registry) AddKey(view probe.View, path string) {
	path = strings.Trim(path, `\`)
	parts := strings.Split(path, `\`)
	for n := range parts {
		sub := strings.Join(parts[:n+1], `\`)
		r.keys[keyOf(view, sub)] = sub
	}
}

// Set stores a value in view; v is a string, []string or any integer type
func (r *Registry) Set(view probe.View, path, name string, v any) {
	r.AddKey(view, path)
	k := keyOf(view, path) + "|" + strings.ToLower(name)
	r.values[k] = v
	r.names[k] = name
}

// SetBoth stores the same value in both registry views
func (r *Registry) SetBoth(path, name string, v any) {
	for _, view := range probe.Views {
		r.Set(view, path, name, v)
	}
}

// Fail makes every read under path return err
func (r *Registry) Fail(path string, err error) {
	for _, view := range probe.Views {
		r.fail[keyOf(view, path)] = err
	}
}

func (r *Registry) lookup(view probe.View, path, name string) (any, error) {
	k := keyOf(view, path)
	if err, ok := r.fail[k]; ok {
		return nil, err
	}
	if _, ok := r.keys[k]; !ok {
		return nil, fmt.Errorf("%s: %w", path, probe.ErrNotFound)
	}
	v, ok := r.values[k+"|"+strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%s\\%s: %w", path, name, probe.ErrNotFound)
	}
	return v, nil
}

func (r *Registry) String(view probe.View, path, name string) (string, error) {
	v, err := r.lookup(view, path, name)
	if err != nil {
		return "", err
	}
	switch sv := v.(type) {
	case string:
		return sv, nil
	case []string:
		return strings.Join(sv, " "), nil
	default:
		n, _ := toInt(v)
		return strconv.FormatInt(n, 10), nil
	}
}

func (r *Registry) Integer(view probe.View, path, name string) (int64, error) {
	v, err := r.lookup(view, path, name)
	if err != nil {
		return 0, err
	}
	if sv, ok := v.(string); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(sv), 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%s\\%s: %w", path, name, err)
		}
		return n, nil
	}
	n, ok := toInt(v)
	if !ok {
		return 0, fmt.Errorf("%s\\%s: unexpected type %T", path, name, v)
	}
	return n, nil
}

func (r *Registry) Strings(view probe.View, path, name string) ([]string, error) {
	v, err := r.lookup(view, path, name)
	if err != nil {
		return nil, err
	}
	switch sv := v.(type) {
	case []string:
		return sv, nil
	case string:
		return []string{sv}, nil
	default:
		return nil, fmt.Errorf("%s\\%s: unexpected type %T", path, name, v)
	}
}

func (r *Registry) SubKeys(view probe.View, path string) ([]string, error) {
	k := keyOf(view, path)
	if err, ok := r.fail[k]; ok {
		return nil, err
	}
	if _, ok := r.keys[k]; !ok {
		return nil, fmt.Errorf("%s: %w", path, probe.ErrNotFound)
	}
	prefix := k + `\`
	var out []string
	for lk, orig := range r.keys {
		if !strings.HasPrefix(lk, prefix) {
			continue
		}
		rest := lk[len(prefix):]
		if strings.Contains(rest, `\`) {
			continue
		}
		out = append(out, orig[strings.LastIndex(orig, `\`)+1:])
	}
	sort.Strings(out)
	return out, nil
}

func (r *Registry) ValueNames(view probe.View, path string) ([]string, error) {
	k := keyOf(view, path)
	if err, ok := r.fail[k]; ok {
		return nil, err
	}
	if _, ok := r.keys[k]; !ok {
		return nil, fmt.Errorf("%s: %w", path, probe.ErrNotFound)
	}
	prefix := k + "|"
	var out []string
	for vk := range r.values {
		if strings.HasPrefix(vk, prefix) {
			out = append(out, r.names[vk])
		}
	}
	sort.Strings(out)
	return out, nil
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

var fromClass = regexp.MustCompile(`(?i)\bfrom\s+(\w+)`)

// WMI answers queries by the class named in their FROM clause
type WMI struct {
	Results map[string][]probe.Record
	Err     error
	Queries []string
}

// Add registers records for a class
func (w *WMI) Add(class string, recs ...probe.Record) {
	w.Results[strings.ToLower(class)] = append(w.Results[strings.ToLower(class)], recs...)
}

func (w *WMI) Query(_ context.Context, namespace, query string, _ []string) ([]probe.Record, error) {
	w.Queries = append(w.Queries, query)
	if w.Err != nil {
		return nil, w.Err
	}
	m := fromClass.FindStringSubmatch(query)
	if m == nil {
		return nil, fmt.Errorf("unparseable query %q", query)
	}
	return w.Results[strings.ToLower(m[1])], nil
}

// Directory is an in-memory Active Directory
type Directory struct {
	Domains  map[string]*probe.DomainInfo
	Trust    map[string][]probe.Trust
	Accounts map[string]*probe.Account
	Err      error
	Lookups  []string
	Closed   bool
}

// NewDirectory returns an empty directory
func NewDirectory() *Directory {
	return &Directory{
		Domains:  make(map[string]*probe.DomainInfo),
		Trust:    make(map[string][]probe.Trust),
		Accounts: make(map[string]*probe.Account),
	}
}

// AddDomain registers a domain by its DNS name
func (d *Directory) AddDomain(info probe.DomainInfo) {
	d.Domains[strings.ToLower(info.Name)] = &info
}

// AddAccount registers an account by sAMAccountName
func (d *Directory) AddAccount(acct probe.Account) {
	d.Accounts[strings.ToLower(acct.SAMAccountName)] = &acct
}

func (d *Directory) Domain(_ context.Context, name string) (*probe.DomainInfo, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	info, ok := d.Domains[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("domain %s: %w", name, probe.ErrNotFound)
	}
	return info, nil
}

func (d *Directory) Trusts(_ context.Context, domain string) ([]probe.Trust, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Trust[strings.ToLower(domain)], nil
}

func (d *Directory) Account(_ context.Context, domain, account string) (*probe.Account, error) {
	d.Lookups = append(d.Lookups, account)
	if d.Err != nil {
		return nil, d.Err
	}
	name := account
	if _, after, ok := strings.Cut(name, `\`); ok {
		name = after
	} else if before, _, ok := strings.Cut(name, "@"); ok {
		name = before
	}
	acct, ok := d.Accounts[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", account, probe.ErrNotFound)
	}
	return acct, nil
}

func (d *Directory) SPNOwners(_ context.Context, domain, spn string) ([]string, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	var owners []string
	for _, acct := range d.Accounts {
		for _, s := range acct.SPNs {
			if strings.EqualFold(s, spn) {
				owners = append(owners, acct.SAMAccountName)
				break
			}
		}
	}
	sort.Strings(owners)
	return owners, nil
}

func (d *Directory) Close() error {
	d.Closed = true
	return nil
}

// Services is a fixed service list
type Services struct {
	Items []probe.Service
	Err   error
}

func (s *Services) List(_ context.Context, match func(string) bool) ([]probe.Service, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var out []probe.Service
	for _, svc := range s.Items {
		if match == nil || match(svc.Name) {
			out = append(out, svc)
		}
	}
	return out, nil
}

// Host returns fixed host facts
type Host struct {
	HostFacts probe.HostFacts
	DiskList  []probe.Disk
	IfaceList []probe.Interface
	Err       error
}

func (h *Host) Facts(context.Context) (probe.HostFacts, error) { return h.HostFacts, h.Err }

func (h *Host) Disks(context.Context) ([]probe.Disk, error) { return h.DiskList, h.Err }

func (h *Host) Interfaces(context.Context) ([]probe.Interface, error) { return h.IfaceList, h.Err }

// CertStore returns a fixed certificate list for every store
type CertStore struct {
	Items []probe.Certificate
	Err   error
}

func (c *CertStore) Certificates(context.Context, string) ([]probe.Certificate, error) {
	return c.Items, c.Err
}

// SQL returns a fixed connection result
type SQL struct {
	Info    probe.ConnectionInfo
	Err     error
	Servers []string
}

func (s *SQL) Test(_ context.Context, server string) (probe.ConnectionInfo, error) {
	s.Servers = append(s.Servers, server)
	return s.Info, s.Err
}

// Exec maps "name arg1 arg2" command lines to canned stdout
type Exec struct {
	Outputs map[string]string
	Err     error
	Calls   []string
}

// Run implements probe.ExecFunc
func (e *Exec) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	e.Calls = append(e.Calls, line)
	if e.Err != nil {
		return nil, e.Err
	}
	out, ok := e.Outputs[line]
	if !ok {
		return nil, fmt.Errorf("%s: %w", line, probe.ErrNotFound)
	}
	return []byte(out), nil
}
