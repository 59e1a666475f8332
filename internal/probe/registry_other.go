//go:build !windows

package probe

// unsupportedRegistry stands in for the registry on non-Windows builds
type unsupportedRegistry struct{}

// NewRegistry returns the platform registry probe
func NewRegistry() Registry { return unsupportedRegistry{} }

func (unsupportedRegistry) String(View, string, string) (string, error) { return "", ErrUnsupported }
func (unsupportedRegistry) Integer(View, string, string) (int64, error) { return 0, ErrUnsupported }
func (unsupportedRegistry) Strings(View, string, string) ([]string, error) {
	return nil, ErrUnsupported
}
func (unsupportedRegistry) SubKeys(View, string) ([]string, error)    { return nil, ErrUnsupported }
func (unsupportedRegistry) ValueNames(View, string) ([]string, error) { return nil, ErrUnsupported }
