//go:build !windows

package probe

import "context"

type unsupportedServices struct{}

// NewServices returns the platform service probe
func NewServices() Services { return unsupportedServices{} }

func (unsupportedServices) List(context.Context, func(string) bool) ([]Service, error) {
	return nil, ErrUnsupported
}
