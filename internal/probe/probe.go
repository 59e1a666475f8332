// Package probe wraps the operating system facilities sqlcheck reads from.
//
// Every probe is a thin adapter returning plain strings, integers, booleans
// and times. Collectors never talk to the registry, WMI, the directory or the
// service manager directly; they go through a *Set, which tests replace with
// the in-memory fakes from probe/probetest.
package probe

import (
	"context"
	"crypto/x509"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

var (
	// ErrNotFound is returned when a key, value, object or account does not exist
	ErrNotFound = errors.New("not found")
	// ErrUnsupported is returned by probes that cannot run on this platform
	ErrUnsupported = errors.New("not supported on this platform")
)

// View selects the 64-bit or 32-bit (WOW6432Node) registry view
type View int

const (
	View64 View = iota
	View32
)

// Views lists both registry views, native first
var Views = []View{View64, View32}

func (v View) String() string {
	if v == View32 {
		return "32-bit"
	}
	return "64-bit"
}

// Registry reads values below HKEY_LOCAL_MACHINE. Missing keys and values
// yield ErrNotFound.
type Registry interface {
	// String reads REG_SZ / REG_EXPAND_SZ; DWORD values are formatted as decimal
	String(view View, path, name string) (string, error)
	// Integer reads REG_DWORD / REG_QWORD; numeric strings are parsed
	Integer(view View, path, name string) (int64, error)
	// Strings reads REG_MULTI_SZ
	Strings(view View, path, name string) ([]string, error)
	SubKeys(view View, path string) ([]string, error)
	ValueNames(view View, path string) ([]string, error)
}

// KeyExists reports whether path can be opened in view
func KeyExists(r Registry, view View, path string) bool {
	_, err := r.ValueNames(view, path)
	return err == nil
}

// Record is one WMI object, keyed by property name
type Record map[string]any

// String returns a property formatted as text, "" when absent or null
func (r Record) String(name string) string {
	switch v := r[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	default:
		return ""
	}
}

// Int returns a numeric property, 0 when absent or not numeric
func (r Record) Int(name string) int64 {
	switch v := r[name].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n
	default:
		return 0
	}
}

// Bool returns a boolean property, false when absent
func (r Record) Bool(name string) bool {
	switch v := r[name].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// WMI runs WQL queries against a local namespace such as root\cimv2
type WMI interface {
	Query(ctx context.Context, namespace, query string, props []string) ([]Record, error)
}

// DomainInfo describes one Active Directory domain
type DomainInfo struct {
	Name            string // DNS name
	ShortName       string // NetBIOS name
	DN              string
	Parent          string
	Forest          string
	EncryptionTypes int64
	HasEncTypes     bool
}

// Trust is one trustedDomain object
type Trust struct {
	Partner         string
	FlatName        string
	Direction       int64
	Type            int64
	Attributes      int64
	EncryptionTypes int64
	HasEncTypes     bool
}

// Account is a user, managed service or computer account
type Account struct {
	SAMAccountName      string
	DN                  string
	UserAccountControl  int64
	SPNs                []string
	AllowedToDelegateTo []string
	EncryptionTypes     int64
	HasEncTypes         bool
}

// Directory answers the Active Directory questions collectors ask.
// Lookups of accounts that do not exist return ErrNotFound.
type Directory interface {
	Domain(ctx context.Context, name string) (*DomainInfo, error)
	Trusts(ctx context.Context, domain string) ([]Trust, error)
	Account(ctx context.Context, domain, account string) (*Account, error)
	// SPNOwners returns the sAMAccountName of every account carrying spn
	SPNOwners(ctx context.Context, domain, spn string) ([]string, error)
	Close() error
}

// Service is one entry of the service control manager
type Service struct {
	Name        string
	DisplayName string
	StartMode   string
	State       string
	PID         int64
	Account     string
	BinaryPath  string
}

// Services enumerates installed services whose name satisfies match
type Services interface {
	List(ctx context.Context, match func(name string) bool) ([]Service, error)
}

// HostFacts is the OS level identity of the machine
type HostFacts struct {
	Hostname        string
	OS              string
	Platform        string
	PlatformVersion string
	KernelArch      string
	BootTime        time.Time
}

// Disk is one mounted volume
type Disk struct {
	Mountpoint string
	FSType     string
	Total      uint64
	Free       uint64
}

// Interface is one network interface and its addresses
type Interface struct {
	Name  string
	MAC   string
	Addrs []string
	Up    bool
}

// Host reports host, disk and interface facts
type Host interface {
	Facts(ctx context.Context) (HostFacts, error)
	Disks(ctx context.Context) ([]Disk, error)
	Interfaces(ctx context.Context) ([]Interface, error)
}

// Certificate is one certificate from a system store
type Certificate struct {
	Thumbprint    string
	FriendlyName  string
	HasPrivateKey bool
	Cert          *x509.Certificate
}

// CertStore enumerates the local machine certificate stores
type CertStore interface {
	Certificates(ctx context.Context, store string) ([]Certificate, error)
}

// ConnectionInfo describes a live SQL Server connection
type ConnectionInfo struct {
	AuthScheme    string
	EncryptOption string
}

// SQLConnector opens a test connection to a SQL Server instance
type SQLConnector interface {
	Test(ctx context.Context, server string) (ConnectionInfo, error)
}

// ExecFunc is the signature for running a command and capturing stdout.
// It receives the context, binary path, and args.
type ExecFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// DefaultExec runs a command with os/exec
func DefaultExec(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Set bundles every probe a collector may use
type Set struct {
	Registry  Registry
	WMI       WMI
	Directory Directory
	Services  Services
	Host      Host
	Certs     CertStore
	SQL       SQLConnector
	Exec      ExecFunc
	Files     afero.Fs
	Getenv    func(string) string
}

// Env looks up an environment variable, "" when the Set has no Getenv
func (s *Set) Env(name string) string {
	if s.Getenv == nil {
		return ""
	}
	return s.Getenv(name)
}

// Close releases probes that hold connections
func (s *Set) Close() error {
	if s.Directory != nil {
		return s.Directory.Close()
	}
	return nil
}
