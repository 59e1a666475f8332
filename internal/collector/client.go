package collector

import (
	"context"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe"
)

const (
	keyMSSQLServerClient = `SOFTWARE\Microsoft\MSSQLServer\Client`
	keyConnectTo         = keyMSSQLServerClient + `\ConnectTo`
	keyDBNETLIB          = keyMSSQLServerClient + `\SuperSocketNetLib`
)

// sniProtocolNames maps client protocol codes to names
var sniProtocolNames = map[string]string{
	"sm":  "Shared Memory",
	"tcp": "TCP/IP",
	"np":  "Named Pipes",
	"via": "VIA",
}

// clientProvider is one client network library configuration key
type clientProvider struct {
	name string
	key  string
}

// clientProviders lists DBNETLIB followed by every SNI version present
func clientProviders(reg *regReader) []clientProvider {
	var out []clientProvider
	if reg.Exists(keyDBNETLIB) {
		out = append(out, clientProvider{name: "DBNETLIB", key: keyDBNETLIB})
	}
	for _, sub := range reg.SubKeys(keyMSSQLServerClient) {
		if strings.HasPrefix(strings.ToUpper(sub), "SNI") {
			out = append(out, clientProvider{name: sub, key: keyMSSQLServerClient + `\` + sub})
		}
	}
	return out
}

func collectClientSNI(ctx context.Context, env *Env) {
	tbl := env.DS.Table(dataset.TableClientSNI)
	orderTbl := env.DS.Table(dataset.TableProtocolOrder)

	for _, view := range probe.Views {
		for _, p := range clientProviders(env.reg(tbl).in(view)) {
			row := tbl.NewRow()
			reg := env.reg(row).in(view)

			row.Set("Provider", p.name)
			row.Set("Wow64", view == probe.View32)

			force := reg.Flag(p.key, "Encrypt")
			if !force {
				force = reg.Flag(p.key, "ForceEncryption")
			}
			trust := reg.Flag(p.key, "TrustServerCertificate")
			row.Set("ForceEncryption", force)
			row.Set("TrustServerCertificate", trust)

			tcpKey := p.key + `\tcp`
			if port, ok := reg.Int(tcpKey, "DefaultPort"); ok {
				row.Set("TcpDefaultPort", port)
			}
			if v, ok := reg.Int(tcpKey, "KeepAlive"); ok {
				row.Set("TcpKeepAlive", v)
			}
			if v, ok := reg.Int(tcpKey, "KeepAliveInterval"); ok {
				row.Set("TcpKeepAliveInterval", v)
			}
			pipe, _ := reg.String(p.key+`\np`, "DefaultPipe")
			row.Set("NPDefaultPipe", pipe)

			order := reg.Strings(p.key, "ProtocolOrder")
			enabled := make(map[string]bool)
			for _, code := range reg.Strings(p.key, "ProtocolsSupported") {
				enabled[strings.ToLower(code)] = true
			}
			var names []string
			for n, code := range order {
				name := protocolName(code)
				names = append(names, name)
				o := orderTbl.NewChildRow(row)
				o.Set("Position", n+1)
				o.Set("Protocol", name)
				o.Set("Enabled", len(enabled) == 0 || enabled[strings.ToLower(code)])
			}
			row.Set("ProtocolOrder", names)

			if force {
				diag.LogInfo(env.Log, row, "%s (%s) forces encryption on every client connection", p.name, view)
			}
			if trust {
				diag.LogWarning(env.Log, row, "%s (%s) trusts every server certificate; encrypted connections are not protected against impersonation", p.name, view)
			}
		}
	}
}

func protocolName(code string) string {
	if name, ok := sniProtocolNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

// SQLAliasTarget is the parsed value of a ConnectTo alias
type SQLAliasTarget struct {
	Protocol string
	Server   string
	Port     string
}

// ParseSQLAlias splits a ConnectTo value such as "DBMSSOCN,server,1433"
func ParseSQLAlias(value string) SQLAliasTarget {
	parts := strings.Split(value, ",")
	var t SQLAliasTarget
	switch strings.ToUpper(strings.TrimSpace(parts[0])) {
	case "DBMSSOCN":
		t.Protocol = "TCP/IP"
	case "DBNMPNTW":
		t.Protocol = "Named Pipes"
	case "DBMSLPCN":
		t.Protocol = "Shared Memory"
	default:
		// no library prefix
		t.Protocol = "Default"
		t.Server = strings.TrimSpace(parts[0])
		if len(parts) > 1 {
			t.Port = strings.TrimSpace(parts[1])
		}
		return t
	}
	if len(parts) > 1 {
		t.Server = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		t.Port = strings.TrimSpace(parts[2])
	}
	return t
}

func collectSQLAliases(ctx context.Context, env *Env) {
	tbl := env.DS.Table(dataset.TableSQLAlias)

	seen := make(map[string][]probe.View)
	var rows []*dataset.Row
	for _, view := range probe.Views {
		reg := env.reg(tbl).in(view)
		for _, name := range reg.ValueNames(keyConnectTo) {
			value, ok := reg.String(keyConnectTo, name)
			if !ok {
				continue
			}
			t := ParseSQLAlias(value)
			row := tbl.NewRow()
			row.Set("AliasName", name)
			row.Set("Protocol", t.Protocol)
			row.Set("ServerName", t.Server)
			row.Set("Port", t.Port)
			row.Set("Wow64", view == probe.View32)
			key := strings.ToLower(name)
			seen[key] = append(seen[key], view)
			rows = append(rows, row)
		}
	}

	for _, row := range rows {
		views := seen[strings.ToLower(row.GetString("AliasName"))]
		if len(views) == 1 {
			missing := probe.View32
			if views[0] == probe.View32 {
				missing = probe.View64
			}
			diag.LogWarning(env.Log, row, "Alias %s is only defined in the %s registry; %s applications will not see it",
				row.GetString("AliasName"), views[0], missing)
		}
	}
}
