//go:build !windows

package probe

import "context"

type unsupportedCertStore struct{}

// NewCertStore returns the platform certificate probe
func NewCertStore() CertStore { return unsupportedCertStore{} }

func (unsupportedCertStore) Certificates(context.Context, string) ([]Certificate, error) {
	return nil, ErrUnsupported
}
