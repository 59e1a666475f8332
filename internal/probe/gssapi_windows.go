//go:build windows

package probe

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
)

func newGSSAPIClient(domain, user, password string) (ldap.GSSAPIClient, func() error, error) {
	if user != "" && password != "" {
		if upnUser, upnDomain, ok := strings.Cut(user, "@"); ok {
			if client, err := gssapi.NewSSPIClientWithUserCredentials(upnDomain, upnUser, password); err == nil {
				return client, client.Close, nil
			}
			if client, err := gssapi.NewSSPIClientWithUserCredentials("", user, password); err == nil {
				return client, client.Close, nil
			}
		} else {
			userDomain, username := splitDomainUser(user, domain)
			if client, err := gssapi.NewSSPIClientWithUserCredentials(userDomain, username, password); err == nil {
				return client, client.Close, nil
			}
		}
		return nil, nil, fmt.Errorf("failed to acquire SSPI credentials for %s", user)
	}

	client, err := gssapi.NewSSPIClient()
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}
