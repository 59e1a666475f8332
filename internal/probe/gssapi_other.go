//go:build !windows

package probe

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

func newGSSAPIClient(domain, user, password string) (ldap.GSSAPIClient, func() error, error) {
	return nil, nil, fmt.Errorf("GSSAPI bind with the current user: %w", ErrUnsupported)
}
