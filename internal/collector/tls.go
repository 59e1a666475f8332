package collector

import (
	"context"
	"strconv"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
)

const keySchannelProtocols = `SYSTEM\CurrentControlSet\Control\SecurityProviders\SCHANNEL\Protocols`

// TLS states
const (
	TLSEnabled      = "Enabled"
	TLSDisabled     = "Disabled"
	TLSNotSupported = "Not Supported"
)

// Protocol versions and roles, in report order
var (
	TLSProtocols = []string{"SSL 2.0", "SSL 3.0", "TLS 1.0", "TLS 1.1", "TLS 1.2", "TLS 1.3"}
	TLSRoles     = []string{"Client", "Server"}
)

// tlsDefaults is one OS build band of the default protocol table. Values
// are indexed like TLSProtocols; ssl2Server differs from the client only on
// Windows 7 / 2008 R2.
type tlsDefaults struct {
	minBuild   int64
	values     [6]string
	ssl2Server string
}

// tlsDefaultTable is ordered by descending minimum build
var tlsDefaultTable = []tlsDefaults{
	{20348, [6]string{TLSNotSupported, TLSDisabled, TLSEnabled, TLSEnabled, TLSEnabled, TLSEnabled}, TLSNotSupported},
	{14393, [6]string{TLSNotSupported, TLSDisabled, TLSEnabled, TLSEnabled, TLSEnabled, TLSNotSupported}, TLSNotSupported},
	{10240, [6]string{TLSNotSupported, TLSEnabled, TLSEnabled, TLSEnabled, TLSEnabled, TLSNotSupported}, TLSNotSupported},
	{9200, [6]string{TLSDisabled, TLSEnabled, TLSEnabled, TLSEnabled, TLSEnabled, TLSNotSupported}, TLSDisabled},
	{7600, [6]string{TLSDisabled, TLSEnabled, TLSEnabled, TLSDisabled, TLSDisabled, TLSNotSupported}, TLSEnabled},
	{0, [6]string{TLSEnabled, TLSEnabled, TLSEnabled, TLSNotSupported, TLSNotSupported, TLSNotSupported}, TLSEnabled},
}

// DefaultTLSValue returns the OS default state of a protocol for a role
func DefaultTLSValue(build int64, protocol, role string) string {
	idx := -1
	for n, p := range TLSProtocols {
		if p == protocol {
			idx = n
			break
		}
	}
	if idx < 0 {
		return TLSNotSupported
	}
	for _, band := range tlsDefaultTable {
		if build < band.minBuild {
			continue
		}
		if idx == 0 && role == "Server" {
			return band.ssl2Server
		}
		return band.values[idx]
	}
	return TLSNotSupported
}

// EffectiveTLSValue combines the OS default with the Enabled and
// DisabledByDefault overrides. Overrides are the raw registry values, ""
// when absent. A protocol the OS does not support stays Not Supported and
// with no override at all the default stands. Otherwise an Enabled of 0
// disables it, a DisabledByDefault of 0 or absent enables it and any other
// DisabledByDefault disables it.
func EffectiveTLSValue(defaultValue, enabled, disabledByDefault string) string {
	if defaultValue == TLSNotSupported {
		return TLSNotSupported
	}
	if enabled == "" && disabledByDefault == "" {
		return defaultValue
	}
	if enabled != "" && diag.ParseInt(enabled) == 0 {
		return TLSDisabled
	}
	if disabledByDefault == "" || diag.ParseInt(disabledByDefault) == 0 {
		return TLSEnabled
	}
	return TLSDisabled
}

func collectTLS(ctx context.Context, env *Env) {
	comp := env.computer()
	build := int64(0)
	if comp != nil {
		build = comp.GetInteger("WindowsBuild")
	}
	tbl := env.DS.Table(dataset.TableTLS)

	for _, protocol := range TLSProtocols {
		for _, role := range TLSRoles {
			row := tbl.NewChildRow(comp)
			reg := env.reg(row)
			path := keySchannelProtocols + `\` + protocol + `\` + role

			enabled := ""
			if v, ok := reg.Int(path, "Enabled"); ok {
				enabled = strconv.FormatInt(v, 10)
			}
			dbd := ""
			if v, ok := reg.Int(path, "DisabledByDefault"); ok {
				dbd = strconv.FormatInt(v, 10)
			}

			def := DefaultTLSValue(build, protocol, role)
			eff := EffectiveTLSValue(def, enabled, dbd)

			row.Set("Protocol", protocol)
			row.Set("Role", role)
			row.Set("DefaultValue", def)
			row.Set("EnabledValue", enabled)
			row.Set("DisabledByDefaultValue", dbd)
			row.Set("EffectiveValue", eff)

			switch {
			case protocol == "TLS 1.2" && eff == TLSDisabled:
				diag.LogCritical(env.Log, row, "TLS 1.2 %s is disabled; connections to servers that require TLS 1.2 will fail", role)
			case (protocol == "SSL 2.0" || protocol == "SSL 3.0") && eff == TLSEnabled:
				diag.LogWarning(env.Log, row, "%s %s is enabled; it is insecure and should be disabled", protocol, role)
			}
		}
	}
}

// effectiveTLS looks up a collected effective value, "" when not collected
func effectiveTLS(ds *dataset.Dataset, protocol, role string) string {
	for _, r := range ds.Table(dataset.TableTLS).Rows() {
		if r.GetString("Protocol") == protocol && r.GetString("Role") == role {
			return r.GetString("EffectiveValue")
		}
	}
	return ""
}
