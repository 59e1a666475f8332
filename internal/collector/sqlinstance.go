package collector

import (
	"context"
	"errors"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe"
)

const (
	keySQLServerRoot    = `SOFTWARE\Microsoft\Microsoft SQL Server`
	keyInstanceNames    = keySQLServerRoot + `\Instance Names`
	defaultInstanceName = "MSSQLSERVER"
)

// SuggestedSPN states
const (
	SPNOK           = "OK"
	SPNMissing      = "Missing"
	SPNWrongAccount = "Wrong Account"
	SPNDuplicate    = "Duplicate"
)

var instanceTypes = []struct {
	key  string
	name string
}{
	{"SQL", "Database Engine"},
	{"OLAP", "Analysis Services"},
	{"RS", "Reporting Services"},
}

// SplitPorts parses a TcpPort value such as "1433, 1533"
func SplitPorts(s string) []string {
	var ports []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" && p != "0" {
			ports = append(ports, p)
		}
	}
	return ports
}

// ExpectedSPNs lists the MSSQLSvc SPNs an engine instance should register
// for each host name: the instance name (or the bare host for the default
// instance) and every static TCP port.
func ExpectedSPNs(hosts []string, instance string, ports []string) []string {
	var spns []string
	for _, h := range hosts {
		if h == "" {
			continue
		}
		if strings.EqualFold(instance, defaultInstanceName) {
			spns = AddUnique(spns, "MSSQLSvc/"+h)
		} else {
			spns = AddUnique(spns, "MSSQLSvc/"+h+":"+instance)
		}
		for _, p := range ports {
			spns = AddUnique(spns, "MSSQLSvc/"+h+":"+p)
		}
	}
	return spns
}

// ClassifySPN rates the directory owners of an SPN against the expected account
func ClassifySPN(owners []string, account string) string {
	switch len(owners) {
	case 0:
		return SPNMissing
	case 1:
		if strings.EqualFold(owners[0], samName(account)) {
			return SPNOK
		}
		return SPNWrongAccount
	default:
		return SPNDuplicate
	}
}

// samName strips the domain from DOMAIN\user or user@domain
func samName(account string) string {
	if _, after, ok := strings.Cut(account, `\`); ok {
		return after
	}
	before, _, _ := strings.Cut(account, "@")
	return before
}

func collectSQLInstances(ctx context.Context, env *Env) {
	comp := env.computer()
	instTbl := env.DS.Table(dataset.TableSQLInstance)

	named := false
	for _, view := range probe.Views {
		reg := env.reg(instTbl).in(view)
		for _, it := range instanceTypes {
			key := keyInstanceNames + `\` + it.key
			for _, name := range reg.ValueNames(key) {
				id, ok := reg.String(key, name)
				if !ok {
					continue
				}
				row := instTbl.NewChildRow(comp)
				row.Set("InstanceName", name)
				row.Set("InstanceID", id)
				row.Set("InstanceType", it.name)
				row.Set("Wow64", view == probe.View32)
				if it.key != "SQL" {
					continue
				}
				if !strings.EqualFold(name, defaultInstanceName) {
					named = true
				}
				collectSQLServer(ctx, env, row, view, name, id)
			}
		}
	}

	if named {
		checkBrowser(env, instTbl)
	}
}

// checkBrowser warns when named instances exist but SQL Browser is not running
func checkBrowser(env *Env, owner diag.Owner) {
	for _, s := range env.DS.Table(dataset.TableService).Rows() {
		if s.GetString("Kind") == KindBrowser {
			if !strings.EqualFold(s.GetString("State"), "Running") {
				diag.LogWarning(env.Log, s, "SQL Browser is %s; clients cannot resolve named instances without a port number", strings.ToLower(s.GetString("State")))
			}
			return
		}
	}
	diag.LogWarning(env.Log, owner, "Named instances are installed but the SQL Browser service was not found")
}

// findEngineService locates the service hosting instance id
func findEngineService(ds *dataset.Dataset, name, id string) *dataset.Row {
	marker := strings.ToLower(`\` + id + `\`)
	expected := "MSSQL$" + name
	if strings.EqualFold(name, defaultInstanceName) {
		expected = defaultInstanceName
	}
	var byName *dataset.Row
	for _, s := range ds.Table(dataset.TableService).Rows() {
		if s.GetString("Kind") != KindEngine {
			continue
		}
		if strings.Contains(strings.ToLower(s.GetString("BinaryPath")), marker) {
			return s
		}
		if strings.EqualFold(s.GetString("Name"), expected) {
			byName = s
		}
	}
	return byName
}

func collectSQLServer(ctx context.Context, env *Env, inst *dataset.Row, view probe.View, name, id string) {
	row := env.DS.Table(dataset.TableSQLServer).NewChildRow(inst)
	reg := env.reg(row).in(view)
	base := keySQLServerRoot + `\` + id
	netlib := base + `\MSSQLServer\SuperSocketNetLib`

	row.Set("InstanceName", name)
	version, _ := reg.String(base+`\Setup`, "Version")
	patch, _ := reg.String(base+`\Setup`, "PatchLevel")
	edition, _ := reg.String(base+`\Setup`, "Edition")
	path, _ := reg.String(base+`\Setup`, "SQLPath")
	row.Set("Version", version)
	row.Set("PatchLevel", patch)
	row.Set("Edition", edition)
	row.Set("SQLPath", path)

	clustered := reg.Exists(base + `\Cluster`)
	row.Set("Clustered", clustered)
	virtual := ""
	if clustered {
		virtual, _ = reg.String(base+`\Cluster`, "ClusterName")
		row.Set("VirtualServerName", virtual)
	}

	tcp := reg.Flag(netlib+`\Tcp`, "Enabled")
	ports, _ := reg.String(netlib+`\Tcp\IPAll`, "TcpPort")
	dynamic, _ := reg.String(netlib+`\Tcp\IPAll`, "TcpDynamicPorts")
	row.Set("TcpEnabled", tcp)
	row.Set("TcpPorts", ports)
	row.Set("TcpDynamicPorts", dynamic)
	row.Set("ListenAll", reg.Flag(netlib+`\Tcp`, "ListenOnAllIPs"))
	row.Set("NamedPipesEnabled", reg.Flag(netlib+`\Np`, "Enabled"))
	pipe, _ := reg.String(netlib+`\Np`, "PipeName")
	row.Set("PipeName", pipe)
	row.Set("SharedMemoryEnabled", reg.Flag(netlib+`\Sm`, "Enabled"))
	row.Set("ForceEncryption", reg.Flag(netlib, "ForceEncryption"))
	if v, ok := reg.Int(netlib, "ExtendedProtection"); ok {
		row.Set("ExtendedProtection", v)
	}
	row.Set("HideInstance", reg.Flag(netlib, "HideInstance"))
	thumb, _ := reg.String(netlib, "Certificate")
	thumb = strings.ToUpper(strings.TrimSpace(thumb))
	row.Set("CertificateThumbprint", thumb)

	if tcp && strings.TrimSpace(dynamic) != "" && strings.TrimSpace(dynamic) != "0" && len(SplitPorts(ports)) == 0 {
		diag.LogInfo(env.Log, row, "Instance %s uses dynamic port %s; SPNs and firewall rules must follow it", name, dynamic)
	}

	svc := findEngineService(env.DS, name, id)
	domainAccount := ""
	if svc == nil {
		diag.LogWarning(env.Log, row, "No service was found for instance %s (%s)", name, id)
	} else {
		domainAccount = svc.GetString("DomainAccount")
		row.Set("ServiceName", svc.GetString("Name"))
		row.Set("ServiceAccount", svc.GetString("ServiceAccount"))
		row.Set("DomainAccount", domainAccount)
		row.Set("ServiceRunning", strings.EqualFold(svc.GetString("State"), "Running"))
	}

	hostName, fqdn := hostNames(env, virtual)
	checkServerCertificate(env, row, thumb, fqdn)
	suggestSPNs(ctx, env, row, name, domainAccount, []string{hostName, fqdn}, SplitPorts(ports))

	if env.Options.ConnectTest && row.GetBoolean("ServiceRunning") {
		testConnection(ctx, env, row, hostName, name)
	}
}

// hostNames returns the NetBIOS and DNS names clients use for the instance
func hostNames(env *Env, virtual string) (string, string) {
	comp := env.computer()
	if comp == nil {
		return virtual, ""
	}
	fqdn := comp.GetString("FQDN")
	if virtual == "" {
		return comp.GetString("NETBIOSName"), fqdn
	}
	suffix := comp.GetString("DNSSuffix")
	if suffix == "" {
		_, suffix, _ = strings.Cut(fqdn, ".")
	}
	if suffix == "" {
		return virtual, ""
	}
	return virtual, strings.ToLower(virtual + "." + suffix)
}

func checkServerCertificate(env *Env, row *dataset.Row, thumb, fqdn string) {
	if thumb == "" {
		diag.LogVerbose(env.Log, row, "No certificate is configured; SQL Server encrypts the login with a self-signed certificate")
		return
	}
	var cert *dataset.Row
	for _, c := range env.DS.Table(dataset.TableCertificate).Rows() {
		if strings.EqualFold(c.GetString("Thumbprint"), thumb) {
			cert = c
			break
		}
	}
	if cert == nil {
		diag.LogWarning(env.Log, row, "Configured certificate %s is not in the local machine MY store; the service will fail to start with encryption", thumb)
		return
	}
	if cert.GetDateTime("NotAfter").Before(env.now()) {
		diag.LogCritical(env.Log, row, "Configured certificate %s expired on %s", thumb, cert.Format("NotAfter"))
	}
	if fqdn != "" && !cert.GetBoolean("FQDNMatch") {
		diag.LogWarning(env.Log, row, "Configured certificate %s does not match %s; clients validating the certificate will fail", thumb, fqdn)
	}
	if !cert.GetBoolean("HasPrivateKey") {
		diag.LogWarning(env.Log, row, "Configured certificate %s has no private key", thumb)
	}
}

func suggestSPNs(ctx context.Context, env *Env, row *dataset.Row, instance, account string, hosts, ports []string) {
	comp := env.computer()
	if comp == nil || !comp.GetBoolean("ConnectedToDomain") {
		return
	}
	if account == "" {
		diag.LogInfo(env.Log, row, "Instance %s runs under a local account; Kerberos is not available and no SPNs are expected", instance)
		return
	}
	domain := ""
	if d := env.DS.Table(dataset.TableDomain).First(); d != nil {
		domain = d.GetString("DomainName")
	}

	tbl := env.DS.Table(dataset.TableSuggestedSPN)
	for _, spn := range ExpectedSPNs(hosts, instance, ports) {
		s := tbl.NewChildRow(row)
		s.Set("SPNName", spn)
		s.Set("Account", account)

		owners, err := env.Probes.Directory.SPNOwners(ctx, domain, spn)
		if err != nil && !errors.Is(err, probe.ErrNotFound) {
			diag.LogException(env.Log, s, err, "Failed to look up SPN %s", spn)
			continue
		}
		status := ClassifySPN(owners, account)
		s.Set("Status", status)
		s.Set("AccountsFound", owners)

		switch status {
		case SPNMissing:
			diag.LogWarning(env.Log, s, "SPN %s is not registered; Kerberos connections will fall back to NTLM", spn)
		case SPNWrongAccount:
			diag.LogCritical(env.Log, s, "SPN %s is registered on %s instead of %s; Kerberos connections will fail", spn, owners[0], account)
		case SPNDuplicate:
			diag.LogCritical(env.Log, s, "SPN %s is registered on more than one account (%s); Kerberos connections will fail", spn, strings.Join(owners, ", "))
		}
	}
}

func testConnection(ctx context.Context, env *Env, row *dataset.Row, host, instance string) {
	if env.Probes.SQL == nil {
		return
	}
	server := host
	if server == "" {
		server = "localhost"
	}
	if !strings.EqualFold(instance, defaultInstanceName) {
		server += `\` + instance
	}

	info, err := env.Probes.SQL.Test(ctx, server)
	if err != nil {
		row.Set("ConnectionTest", "Failed")
		diag.LogWarning(env.Log, row, "Test connection to %s failed: %v", server, err)
		return
	}
	row.Set("ConnectionTest", "Success")
	row.Set("AuthScheme", info.AuthScheme)
	row.Set("EncryptOption", info.EncryptOption)

	comp := env.computer()
	if comp != nil && comp.GetBoolean("JoinedToDomain") && strings.EqualFold(info.AuthScheme, "NTLM") {
		diag.LogWarning(env.Log, row, "Test connection to %s used NTLM instead of Kerberos", server)
	}
}
