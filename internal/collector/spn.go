package collector

import (
	"context"
	"errors"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe"
)

// userAccountControl bits
const (
	uacTrustedForDelegation       = 0x80000
	uacNotDelegated               = 0x100000
	uacTrustedToAuthForDelegation = 0x1000000
)

// SPN is a parsed service principal name
type SPN struct {
	ServiceClass string
	Host         string
	Port         string
}

// ParseSPN splits "class/host:port" or "class/host:instance"
func ParseSPN(s string) SPN {
	class, rest, _ := strings.Cut(s, "/")
	// a trailing /service-name is not part of the host
	rest, _, _ = strings.Cut(rest, "/")
	host, port, _ := strings.Cut(rest, ":")
	return SPN{ServiceClass: class, Host: host, Port: port}
}

func isSQLSPN(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "mssqlsvc/")
}

func collectSPNAccounts(ctx context.Context, env *Env) {
	comp := env.computer()
	if comp == nil || !comp.GetBoolean("ConnectedToDomain") {
		return
	}
	dom := env.DS.Table(dataset.TableDomain).First()
	if dom == nil {
		return
	}
	domain := dom.GetString("DomainName")

	var accounts []string
	for _, s := range env.DS.Table(dataset.TableService).Rows() {
		if a := s.GetString("DomainAccount"); a != "" {
			accounts = AddUnique(accounts, a)
		}
	}

	acctTbl := env.DS.Table(dataset.TableSPNAccount)
	spnTbl := env.DS.Table(dataset.TableSPN)
	delegTbl := env.DS.Table(dataset.TableConstrainedDelegationSPN)

	for _, name := range accounts {
		acct, err := env.Probes.Directory.Account(ctx, domain, name)
		if errors.Is(err, probe.ErrNotFound) {
			diag.LogWarning(env.Log, dom, "Service account %s was not found in %s", name, domain)
			continue
		}
		if err != nil {
			diag.LogException(env.Log, dom, err, "Failed to look up service account %s", name)
			continue
		}

		row := acctTbl.NewChildRow(dom)
		uac := acct.UserAccountControl
		row.Set("Account", name)
		row.Set("DistinguishedName", acct.DN)
		row.Set("UserAccountControl", uac)
		row.Set("TrustedForDelegation", uac&uacTrustedForDelegation != 0)
		row.Set("TrustedToAuthForDelegation", uac&uacTrustedToAuthForDelegation != 0)
		row.Set("SensitiveNoDelegation", uac&uacNotDelegated != 0)
		row.Set("SupportedEncryptionTypes", EncryptionTypes(acct.EncryptionTypes, acct.HasEncTypes))
		if acct.HasEncTypes {
			checkEncryptionTypes(env, row, "Account "+name, acct.EncryptionTypes, true)
		}
		if uac&uacNotDelegated != 0 {
			diag.LogInfo(env.Log, row, "Account %s is sensitive and cannot be delegated; linked server and double-hop connections will fail", name)
		}

		sqlSPNs := 0
		for _, s := range acct.SPNs {
			if !isSQLSPN(s) {
				continue
			}
			sqlSPNs++
			p := ParseSPN(s)
			r := spnTbl.NewChildRow(row)
			r.Set("SPN", s)
			r.Set("ServiceClass", p.ServiceClass)
			r.Set("HostName", p.Host)
			r.Set("Port", p.Port)
		}
		if sqlSPNs == 0 {
			diag.LogInfo(env.Log, row, "Account %s has no MSSQLSvc SPNs", name)
		}

		for _, target := range acct.AllowedToDelegateTo {
			r := delegTbl.NewChildRow(row)
			r.Set("SPN", target)
		}
	}
}
