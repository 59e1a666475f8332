package probe

import (
	"context"
	"os"
	"time"

	"github.com/spf13/afero"
)

// SystemOptions configures the live probe set
type SystemOptions struct {
	LDAP           LDAPOptions
	ConnectTimeout time.Duration
	ExecTimeout    time.Duration
}

// NewSystem wires every probe to the running machine
func NewSystem(opts SystemOptions) *Set {
	return &Set{
		Registry:  NewRegistry(),
		WMI:       NewWMI(),
		Directory: NewLDAPDirectory(opts.LDAP),
		Services:  NewServices(),
		Host:      NewHost(),
		Certs:     NewCertStore(),
		SQL:       NewSQLConnector(opts.ConnectTimeout),
		Exec:      WithTimeout(DefaultExec, opts.ExecTimeout),
		Files:     afero.NewReadOnlyFs(afero.NewOsFs()),
		Getenv:    os.Getenv,
	}
}

// WithTimeout bounds every call of fn by d; d <= 0 leaves fn unchanged
func WithTimeout(fn ExecFunc, d time.Duration) ExecFunc {
	if d <= 0 {
		return fn
	}
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return fn(ctx, name, args...)
	}
}
