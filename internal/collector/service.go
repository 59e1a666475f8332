package collector

import (
	"context"
	"errors"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe"
)

// Service kinds
const (
	KindEngine      = "SQL Server"
	KindAgent       = "SQL Agent"
	KindBrowser     = "SQL Browser"
	KindOLAP        = "Analysis Services"
	KindReporting   = "Reporting Services"
	KindFullText    = "Full-Text"
	KindWriter      = "SQL Writer"
	KindIntegration = "Integration Services"
	KindLaunchpad   = "Launchpad"
	KindTelemetry   = "Telemetry"
)

var serviceKinds = []struct {
	prefix string
	exact  bool
	kind   string
}{
	{"MSSQLSERVER", true, KindEngine},
	{"MSSQL$", false, KindEngine},
	{"SQLSERVERAGENT", true, KindAgent},
	{"SQLAGENT$", false, KindAgent},
	{"SQLBROWSER", true, KindBrowser},
	{"MSSQLSERVEROLAPSERVICE", true, KindOLAP},
	{"MSOLAP$", false, KindOLAP},
	{"REPORTSERVER", false, KindReporting},
	{"SQLSERVERREPORTINGSERVICES", true, KindReporting},
	{"POWERBIREPORTSERVER", true, KindReporting},
	{"MSSQLFDLAUNCHER", false, KindFullText},
	{"SQLWRITER", true, KindWriter},
	{"MSDTSSERVER", false, KindIntegration},
	{"MSSQLLAUNCHPAD", false, KindLaunchpad},
	{"SQLTELEMETRY", false, KindTelemetry},
	{"SSISTELEMETRY", false, KindTelemetry},
	{"SSASTELEMETRY", false, KindTelemetry},
}

// ServiceKind classifies a service name, "" when it is not a SQL Server service
func ServiceKind(name string) string {
	n := strings.ToUpper(name)
	for _, k := range serviceKinds {
		if (k.exact && n == k.prefix) || (!k.exact && strings.HasPrefix(n, k.prefix)) {
			return k.kind
		}
	}
	return ""
}

// machineAccounts authenticate on the network as the computer account
var machineAccounts = map[string]bool{
	"localsystem":                  true,
	`nt authority\system`:          true,
	`nt authority\networkservice`:  true,
	`nt authority\network service`: true,
}

// DomainAccount returns the account a service authenticates as on the
// network, "" when it cannot use Kerberos. domain is the NetBIOS domain name.
func DomainAccount(account, netbios, domain string, joined bool) string {
	a := strings.TrimSpace(account)
	lower := strings.ToLower(a)
	switch {
	case a == "":
		return ""
	case machineAccounts[lower], strings.HasPrefix(lower, `nt service\`):
		if !joined || netbios == "" || domain == "" {
			return ""
		}
		return strings.ToUpper(domain) + `\` + strings.ToUpper(netbios) + "$"
	case strings.HasPrefix(lower, `nt authority\`):
		return ""
	case strings.HasPrefix(a, `.\`):
		return ""
	case strings.Contains(a, "@"):
		return a
	}
	if dom, _, ok := strings.Cut(a, `\`); ok {
		if strings.EqualFold(dom, netbios) {
			return ""
		}
		return a
	}
	return ""
}

// netbiosDomain derives the NetBIOS domain name from the Computer row
func netbiosDomain(ds *dataset.Dataset, comp *dataset.Row) string {
	if d := ds.Table(dataset.TableDomain).First(); d != nil && d.GetString("DomainShortName") != "" {
		return d.GetString("DomainShortName")
	}
	if comp == nil {
		return ""
	}
	dom, _, _ := strings.Cut(comp.GetString("DomainOrWorkgroup"), ".")
	return strings.ToUpper(dom)
}

func collectServices(ctx context.Context, env *Env) {
	comp := env.computer()
	tbl := env.DS.Table(dataset.TableService)

	services, err := env.Probes.Services.List(ctx, func(name string) bool { return ServiceKind(name) != "" })
	if err != nil {
		if !errors.Is(err, probe.ErrUnsupported) {
			diag.LogException(env.Log, tbl, err, "Failed to enumerate services")
		}
		return
	}

	netbios, joined := "", false
	if comp != nil {
		netbios = comp.GetString("NETBIOSName")
		joined = comp.GetBoolean("JoinedToDomain")
	}
	domain := netbiosDomain(env.DS, comp)

	for _, s := range services {
		row := tbl.NewChildRow(comp)
		kind := ServiceKind(s.Name)
		row.Set("Name", s.Name)
		row.Set("DisplayName", s.DisplayName)
		row.Set("Kind", kind)
		row.Set("StartMode", s.StartMode)
		row.Set("State", s.State)
		row.Set("ProcessID", s.PID)
		row.Set("ServiceAccount", s.Account)
		row.Set("DomainAccount", DomainAccount(s.Account, netbios, domain, joined))
		row.Set("BinaryPath", s.BinaryPath)

		if kind == KindEngine && strings.EqualFold(s.StartMode, "Disabled") {
			diag.LogWarning(env.Log, row, "Service %s is disabled", s.Name)
		}
		if kind == KindEngine && joined && row.GetString("DomainAccount") == "" {
			diag.LogInfo(env.Log, row, "Service %s runs as local account %s; remote Kerberos connections are not possible", s.Name, s.Account)
		}
	}
}
