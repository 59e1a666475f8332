//go:build !windows

package probe

import "context"

type unsupportedWMI struct{}

// NewWMI returns the platform WMI probe
func NewWMI() WMI { return unsupportedWMI{} }

func (unsupportedWMI) Query(context.Context, string, string, []string) ([]Record, error) {
	return nil, ErrUnsupported
}
