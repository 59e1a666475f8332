package collector

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe/probetest"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/reporter"
)

func workgroupFakes() *probetest.Fakes {
	f := probetest.New()
	f.Registry.Set(probe.View64, keyActiveComputerName, "ComputerName", "WS01")
	f.Registry.Set(probe.View64, keyTcpipParameters, "Hostname", "ws01")
	f.Registry.Set(probe.View64, keyCurrentVersion, "CurrentBuildNumber", "19045")
	f.WMI.Add("Win32_ComputerSystem", probe.Record{"Name": "WS01", "Domain": "WORKGROUP", "PartOfDomain": false})
	f.Services.Items = []probe.Service{
		{Name: "MSSQLSERVER", State: "Running", Account: `NT Service\MSSQLSERVER`},
	}
	return f
}

// domainFakes is sql01.contoso.com running a default instance as CONTOSO\svcsql
func domainFakes() *probetest.Fakes {
	f := probetest.New()
	f.Registry.Set(probe.View64, keyActiveComputerName, "ComputerName", "SQL01")
	f.Registry.Set(probe.View64, keyTcpipParameters, "Hostname", "sql01")
	f.Registry.Set(probe.View64, keyTcpipParameters, "Domain", "contoso.com")
	f.Registry.Set(probe.View64, keyCurrentVersion, "CurrentBuildNumber", "20348")
	f.WMI.Add("Win32_ComputerSystem", probe.Record{"Name": "SQL01", "Domain": "contoso.com", "PartOfDomain": true})

	f.Directory.AddDomain(probe.DomainInfo{Name: "contoso.com", ShortName: "CONTOSO", DN: "DC=contoso,DC=com"})
	f.Directory.AddAccount(probe.Account{
		SAMAccountName:      "svcsql",
		DN:                  "CN=svcsql,OU=Service,DC=contoso,DC=com",
		UserAccountControl:  0x200,
		SPNs:                []string{"MSSQLSvc/sql01.contoso.com:1433", "MSSQLSvc/sql01.contoso.com", "HTTP/web01"},
		AllowedToDelegateTo: []string{"MSSQLSvc/sql02.contoso.com:1433"},
		EncryptionTypes:     0x18,
		HasEncTypes:         true,
	})
	f.Directory.AddAccount(probe.Account{SAMAccountName: "olduser", SPNs: []string{"MSSQLSvc/SQL01:1433"}})

	f.Services.Items = []probe.Service{
		{Name: "MSSQLSERVER", State: "Running", Account: `CONTOSO\svcsql`,
			BinaryPath: `"C:\Program Files\Microsoft SQL Server\MSSQL16.MSSQLSERVER\MSSQL\Binn\sqlservr.exe" -sMSSQLSERVER`},
		{Name: "SQLSERVERAGENT", State: "Running", Account: `contoso\SVCSQL`},
		{Name: "SQLBrowser", State: "Stopped", Account: `NT AUTHORITY\LOCALSERVICE`},
	}

	f.Registry.Set(probe.View64, keyInstanceNames+`\SQL`, "MSSQLSERVER", "MSSQL16.MSSQLSERVER")
	netlib := keySQLServerRoot + `\MSSQL16.MSSQLSERVER\MSSQLServer\SuperSocketNetLib`
	f.Registry.Set(probe.View64, keySQLServerRoot+`\MSSQL16.MSSQLSERVER\Setup`, "Version", "16.0.1000.6")
	f.Registry.Set(probe.View64, netlib+`\Tcp`, "Enabled", 1)
	f.Registry.Set(probe.View64, netlib+`\Tcp\IPAll`, "TcpPort", "1433")
	return f
}

func TestWorkgroupComputer(t *testing.T) {
	f := workgroupFakes()
	env := newTestEnv(f)
	runCollectors(t, env)

	comp := env.DS.Table(dataset.TableComputer).First()
	if comp == nil {
		t.Fatal("no Computer row")
	}
	if comp.GetBoolean("JoinedToDomain") || comp.GetBoolean("ConnectedToDomain") {
		t.Error("workgroup computer reported as domain joined")
	}
	for _, table := range []string{
		dataset.TableDomain, dataset.TableRelatedDomain, dataset.TableRootDomainRelatedDomain,
		dataset.TableForestRelatedDomain, dataset.TableSPNAccount, dataset.TableSPN,
	} {
		if n := env.DS.Table(table).Len(); n != 0 {
			t.Errorf("%s rows = %d, want 0", table, n)
		}
	}
	if len(f.Directory.Lookups) != 0 {
		t.Errorf("directory queried for %v", f.Directory.Lookups)
	}
	if svc := env.DS.Table(dataset.TableService).First(); svc == nil || svc.GetString("DomainAccount") != "" {
		t.Error("virtual account on a workgroup computer should have no domain account")
	}
}

func TestDomainComputer(t *testing.T) {
	f := domainFakes()
	env := newTestEnv(f)
	runCollectors(t, env)

	comp := env.DS.Table(dataset.TableComputer).First()
	if !comp.GetBoolean("ConnectedToDomain") {
		t.Fatal("ConnectedToDomain not set")
	}
	if got := comp.GetString("FQDN"); got != "sql01.contoso.com" {
		t.Errorf("FQDN = %q", got)
	}

	// both services run as the same account, spelled differently
	if len(f.Directory.Lookups) != 1 {
		t.Errorf("account lookups = %v, want one", f.Directory.Lookups)
	}
	accounts := env.DS.Table(dataset.TableSPNAccount).Rows()
	if len(accounts) != 1 {
		t.Fatalf("SPNAccount rows = %d, want 1", len(accounts))
	}
	acct := accounts[0]
	if acct.ParentID() != env.DS.Table(dataset.TableDomain).First().ID() {
		t.Error("SPNAccount is not a child of the Domain row")
	}
	if got := env.DS.Table(dataset.TableSPN).Children(acct.ID()); len(got) != 2 {
		t.Errorf("SPN rows = %d, want the 2 MSSQLSvc SPNs", len(got))
	}
	if got := env.DS.Table(dataset.TableConstrainedDelegationSPN).Len(); got != 1 {
		t.Errorf("ConstrainedDelegationSPN rows = %d, want 1", got)
	}

	server := env.DS.Table(dataset.TableSQLServer).First()
	if server == nil {
		t.Fatal("no SQLServer row")
	}
	if server.GetString("ServiceName") != "MSSQLSERVER" || !server.GetBoolean("ServiceRunning") {
		t.Errorf("service cross-reference = %q running=%v", server.GetString("ServiceName"), server.GetBoolean("ServiceRunning"))
	}

	status := make(map[string]string)
	for _, s := range env.DS.Table(dataset.TableSuggestedSPN).Children(server.ID()) {
		status[s.GetString("SPNName")] = s.GetString("Status")
	}
	want := map[string]string{
		"MSSQLSvc/SQL01":                  SPNMissing,
		"MSSQLSvc/SQL01:1433":             SPNWrongAccount,
		"MSSQLSvc/sql01.contoso.com":      SPNOK,
		"MSSQLSvc/sql01.contoso.com:1433": SPNOK,
	}
	if len(status) != len(want) {
		t.Errorf("suggested SPNs = %v", status)
	}
	for spn, w := range want {
		if status[spn] != w {
			t.Errorf("%s = %q, want %q", spn, status[spn], w)
		}
	}
	if !hasMessage(env.DS, dataset.TableSuggestedSPN, diag.Critical, "olduser") {
		t.Error("missing Critical for SPN on the wrong account")
	}
}

func TestDomainUnreachable(t *testing.T) {
	f := domainFakes()
	f.Directory.Err = errors.New("ldap: connection refused")
	env := newTestEnv(f)
	runCollectors(t, env)

	comp := env.DS.Table(dataset.TableComputer).First()
	if comp.GetBoolean("ConnectedToDomain") {
		t.Error("ConnectedToDomain set although the directory failed")
	}
	if env.DS.Table(dataset.TableDomain).Len() != 0 || env.DS.Table(dataset.TableSPNAccount).Len() != 0 {
		t.Error("domain rows written although the directory failed")
	}
	found := false
	for _, m := range diag.Messages(env.DS) {
		if m.Severity == diag.Exception && m.Table == dataset.TableComputer && m.Row == comp.ID() {
			found = true
		}
	}
	if !found {
		t.Error("directory failure not logged on the Computer row")
	}
}

func TestProbeFailuresDoNotStopTheRun(t *testing.T) {
	f := domainFakes()
	f.WMI.Err = errors.New("RPC server unavailable")
	f.Registry.Fail(keySchannelProtocols+`\TLS 1.2\Client`, errors.New("access denied"))
	f.Host.Err = errors.New("host probe failed")
	env := newTestEnv(f)

	results := runCollectors(t, env)
	for _, res := range results {
		if res.Error != "" {
			t.Errorf("%s failed: %s", res.Collector, res.Error)
		}
	}
	if env.DS.Table(dataset.TableTLS).Len() != 12 {
		t.Errorf("TLS rows = %d, want 12", env.DS.Table(dataset.TableTLS).Len())
	}
	if len(messagesOf(env.DS, dataset.TableTLS, diag.Exception)) == 0 {
		t.Error("registry failure was not logged")
	}
	if len(messagesOf(env.DS, dataset.TableDiskDrive, diag.Exception)) != 1 {
		t.Error("disk probe failure was not logged on DiskDrive")
	}

	var buf bytes.Buffer
	if err := reporter.NewTextRenderer(&buf, reporter.TextOptions{}).Render(env.DS); err != nil {
		t.Fatalf("Render after probe failures: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Exception:", "access denied", "host probe failed", "TLS 1.2"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestServiceDomainAccounts(t *testing.T) {
	f := domainFakes()
	f.Services.Items = []probe.Service{
		{Name: "MSSQLSERVER", Account: "LocalSystem"},
		{Name: "MSSQL$SALES", Account: `NT Service\MSSQL$SALES`},
		{Name: "MSSQL$HR", Account: `.\sqluser`},
		{Name: "MSSQL$FIN", Account: "svcfin@contoso.com"},
		{Name: "MSSQL$OPS", Account: `SQL01\localuser`},
		{Name: "Spooler", Account: "LocalSystem"},
	}
	env := newTestEnv(f)
	runCollectors(t, env, "Computer", "Domain", "Service")

	got := make(map[string]string)
	for _, r := range env.DS.Table(dataset.TableService).Rows() {
		got[r.GetString("Name")] = r.GetString("DomainAccount")
	}
	want := map[string]string{
		"MSSQLSERVER": `CONTOSO\SQL01$`,
		"MSSQL$SALES": `CONTOSO\SQL01$`,
		"MSSQL$HR":    "",
		"MSSQL$FIN":   "svcfin@contoso.com",
		"MSSQL$OPS":   "",
	}
	if len(got) != len(want) {
		t.Errorf("services = %v, want only SQL services", got)
	}
	for name, w := range want {
		if got[name] != w {
			t.Errorf("%s DomainAccount = %q, want %q", name, got[name], w)
		}
	}
}
