//go:build windows

package probe

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/windows/registry"
)

// WindowsRegistry reads HKEY_LOCAL_MACHINE
type WindowsRegistry struct{}

// NewRegistry returns the platform registry probe
func NewRegistry() Registry { return WindowsRegistry{} }

func (WindowsRegistry) open(view View, path string) (registry.Key, error) {
	access := uint32(registry.QUERY_VALUE | registry.ENUMERATE_SUB_KEYS)
	if view == View32 {
		access |= registry.WOW64_32KEY
	} else {
		access |= registry.WOW64_64KEY
	}
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, path, access)
	if err != nil {
		return 0, wrapRegistryErr(path, err)
	}
	return k, nil
}

func wrapRegistryErr(what string, err error) error {
	if errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (w WindowsRegistry) String(view View, path, name string) (string, error) {
	k, err := w.open(view, path)
	if err != nil {
		return "", err
	}
	defer k.Close()

	s, _, err := k.GetStringValue(name)
	if errors.Is(err, registry.ErrUnexpectedType) {
		n, _, ierr := k.GetIntegerValue(name)
		if ierr != nil {
			return "", wrapRegistryErr(path+`\`+name, ierr)
		}
		return strconv.FormatUint(n, 10), nil
	}
	if err != nil {
		return "", wrapRegistryErr(path+`\`+name, err)
	}
	return s, nil
}

func (w WindowsRegistry) Integer(view View, path, name string) (int64, error) {
	k, err := w.open(view, path)
	if err != nil {
		return 0, err
	}
	defer k.Close()

	n, _, err := k.GetIntegerValue(name)
	if errors.Is(err, registry.ErrUnexpectedType) {
		s, _, serr := k.GetStringValue(name)
		if serr != nil {
			return 0, wrapRegistryErr(path+`\`+name, serr)
		}
		v, perr := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
		if perr != nil {
			return 0, fmt.Errorf("%s\\%s: %w", path, name, perr)
		}
		return v, nil
	}
	if err != nil {
		return 0, wrapRegistryErr(path+`\`+name, err)
	}
	return int64(n), nil
}

func (w WindowsRegistry) Strings(view View, path, name string) ([]string, error) {
	k, err := w.open(view, path)
	if err != nil {
		return nil, err
	}
	defer k.Close()

	vals, _, err := k.GetStringsValue(name)
	if errors.Is(err, registry.ErrUnexpectedType) {
		s, _, serr := k.GetStringValue(name)
		if serr != nil {
			return nil, wrapRegistryErr(path+`\`+name, serr)
		}
		return []string{s}, nil
	}
	if err != nil {
		return nil, wrapRegistryErr(path+`\`+name, err)
	}
	return vals, nil
}

func (w WindowsRegistry) SubKeys(view View, path string) ([]string, error) {
	k, err := w.open(view, path)
	if err != nil {
		return nil, err
	}
	defer k.Close()

	names, err := k.ReadSubKeyNames(-1)
	if err != nil {
		return nil, wrapRegistryErr(path, err)
	}
	return names, nil
}

func (w WindowsRegistry) ValueNames(view View, path string) ([]string, error) {
	k, err := w.open(view, path)
	if err != nil {
		return nil, err
	}
	defer k.Close()

	names, err := k.ReadValueNames(-1)
	if err != nil {
		return nil, wrapRegistryErr(path, err)
	}
	return names, nil
}
