package collector

import (
	"fmt"
	"testing"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe/probetest"
)

func TestEffectiveTLSValue(t *testing.T) {
	// enabled / disabledByDefault: "1" true, "0" false, "" absent
	grid := []struct {
		def     string
		enabled string
		dbd     string
		want    string
	}{
		{TLSNotSupported, "1", "1", TLSNotSupported},
		{TLSNotSupported, "1", "0", TLSNotSupported},
		{TLSNotSupported, "1", "", TLSNotSupported},
		{TLSNotSupported, "0", "1", TLSNotSupported},
		{TLSNotSupported, "0", "0", TLSNotSupported},
		{TLSNotSupported, "0", "", TLSNotSupported},
		{TLSNotSupported, "", "1", TLSNotSupported},
		{TLSNotSupported, "", "0", TLSNotSupported},
		{TLSNotSupported, "", "", TLSNotSupported},

		{TLSDisabled, "1", "1", TLSDisabled},
		{TLSDisabled, "1", "0", TLSEnabled},
		{TLSDisabled, "1", "", TLSEnabled},
		{TLSDisabled, "0", "1", TLSDisabled},
		{TLSDisabled, "0", "0", TLSDisabled},
		{TLSDisabled, "0", "", TLSDisabled},
		{TLSDisabled, "", "1", TLSDisabled},
		{TLSDisabled, "", "0", TLSEnabled},
		{TLSDisabled, "", "", TLSDisabled},

		{TLSEnabled, "1", "1", TLSDisabled},
		{TLSEnabled, "1", "0", TLSEnabled},
		{TLSEnabled, "1", "", TLSEnabled},
		{TLSEnabled, "0", "1", TLSDisabled},
		{TLSEnabled, "0", "0", TLSDisabled},
		{TLSEnabled, "0", "", TLSDisabled},
		{TLSEnabled, "", "1", TLSDisabled},
		{TLSEnabled, "", "0", TLSEnabled},
		{TLSEnabled, "", "", TLSEnabled},
	}

	for _, protocol := range TLSProtocols {
		for _, role := range TLSRoles {
			for _, g := range grid {
				name := fmt.Sprintf("%s/%s/%s/enabled=%q/dbd=%q", protocol, role, g.def, g.enabled, g.dbd)
				t.Run(name, func(t *testing.T) {
					if got := EffectiveTLSValue(g.def, g.enabled, g.dbd); got != g.want {
						t.Errorf("EffectiveTLSValue = %q, want %q", got, g.want)
					}
				})
			}
		}
	}
}

func TestEffectiveTLSValueNonBooleanOverrides(t *testing.T) {
	// any non-zero DWORD reads as true
	if got := EffectiveTLSValue(TLSEnabled, "0xffffffff", "0"); got != TLSEnabled {
		t.Errorf("Enabled=0xffffffff: got %q", got)
	}
	if got := EffectiveTLSValue(TLSEnabled, "1", "2"); got != TLSDisabled {
		t.Errorf("DisabledByDefault=2: got %q", got)
	}
}

func TestDefaultTLSValue(t *testing.T) {
	tests := []struct {
		build    int64
		protocol string
		role     string
		want     string
	}{
		{6002, "SSL 2.0", "Client", TLSEnabled},
		{6002, "TLS 1.1", "Server", TLSNotSupported},
		{7601, "SSL 2.0", "Client", TLSDisabled},
		{7601, "SSL 2.0", "Server", TLSEnabled},
		{7601, "TLS 1.2", "Client", TLSDisabled},
		{9600, "SSL 2.0", "Server", TLSDisabled},
		{9600, "TLS 1.2", "Server", TLSEnabled},
		{10240, "SSL 2.0", "Client", TLSNotSupported},
		{10240, "SSL 3.0", "Client", TLSEnabled},
		{14393, "SSL 3.0", "Server", TLSDisabled},
		{17763, "TLS 1.3", "Client", TLSNotSupported},
		{20348, "TLS 1.3", "Server", TLSEnabled},
		{22631, "TLS 1.0", "Client", TLSEnabled},
		{22631, "TLS 9.9", "Client", TLSNotSupported},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d %s %s", tt.build, tt.protocol, tt.role), func(t *testing.T) {
			if got := DefaultTLSValue(tt.build, tt.protocol, tt.role); got != tt.want {
				t.Errorf("DefaultTLSValue = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTLSWindows11(t *testing.T) {
	f := probetest.New()
	f.Registry.Set(probe.View64, keyCurrentVersion, "CurrentBuildNumber", "22000")
	f.Registry.Set(probe.View64, keyCurrentVersion, "ProductName", "Windows 10 Pro")
	env := newTestEnv(f)

	runCollectors(t, env, "Computer", "TLS")

	comp := env.DS.Table(dataset.TableComputer).First()
	if got := comp.GetString("WindowsName"); got != "Windows 11 Pro" {
		t.Errorf("WindowsName = %q", got)
	}

	want := map[string]string{
		"SSL 2.0": TLSNotSupported,
		"SSL 3.0": TLSDisabled,
		"TLS 1.0": TLSEnabled,
		"TLS 1.1": TLSEnabled,
		"TLS 1.2": TLSEnabled,
		"TLS 1.3": TLSEnabled,
	}
	rows := env.DS.Table(dataset.TableTLS).Rows()
	if len(rows) != 12 {
		t.Fatalf("TLS rows = %d, want 12", len(rows))
	}
	for _, r := range rows {
		protocol := r.GetString("Protocol")
		if got := r.GetString("DefaultValue"); got != want[protocol] {
			t.Errorf("%s %s default = %q, want %q", protocol, r.GetString("Role"), got, want[protocol])
		}
		if got := r.GetString("EffectiveValue"); got != want[protocol] {
			t.Errorf("%s %s effective = %q, want %q", protocol, r.GetString("Role"), got, want[protocol])
		}
		if r.ParentID() != comp.ID() {
			t.Errorf("%s ParentID = %d, want %d", protocol, r.ParentID(), comp.ID())
		}
	}
	if msgs := messagesOf(env.DS, dataset.TableTLS, diag.Warning); len(msgs) != 0 {
		t.Errorf("unexpected TLS warnings: %+v", msgs)
	}
}

func TestTLSOverrides(t *testing.T) {
	f := probetest.New()
	f.Registry.Set(probe.View64, keyCurrentVersion, "CurrentBuildNumber", "17763")
	f.Registry.Set(probe.View64, keySchannelProtocols+`\TLS 1.2\Client`, "Enabled", 0)
	f.Registry.Set(probe.View64, keySchannelProtocols+`\SSL 3.0\Server`, "Enabled", 1)
	f.Registry.Set(probe.View64, keySchannelProtocols+`\SSL 3.0\Server`, "DisabledByDefault", 0)
	env := newTestEnv(f)

	runCollectors(t, env, "Computer", "TLS")

	if got := effectiveTLS(env.DS, "TLS 1.2", "Client"); got != TLSDisabled {
		t.Errorf("TLS 1.2 Client = %q", got)
	}
	if got := effectiveTLS(env.DS, "SSL 3.0", "Server"); got != TLSEnabled {
		t.Errorf("SSL 3.0 Server = %q", got)
	}
	if !hasMessage(env.DS, dataset.TableTLS, diag.Critical, "TLS 1.2 Client") {
		t.Error("missing Critical for disabled TLS 1.2")
	}
	if !hasMessage(env.DS, dataset.TableTLS, diag.Warning, "SSL 3.0 Server") {
		t.Error("missing Warning for enabled SSL 3.0")
	}

	for _, r := range env.DS.Table(dataset.TableTLS).Rows() {
		if r.GetString("Protocol") == "TLS 1.2" && r.GetString("Role") == "Client" {
			if r.GetString("EnabledValue") != "0" || r.GetString("DisabledByDefaultValue") != "" {
				t.Errorf("raw overrides = %q/%q", r.GetString("EnabledValue"), r.GetString("DisabledByDefaultValue"))
			}
		}
	}
}
