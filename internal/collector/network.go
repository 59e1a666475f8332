package collector

import (
	"context"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
)

const (
	keyTcpip6Parameters = `SYSTEM\CurrentControlSet\Services\Tcpip6\Parameters`

	defaultKeepAliveTime             = 7200000
	defaultKeepAliveInterval         = 1000
	defaultTcpMaxDataRetransmissions = 5
	defaultTcpTimedWaitDelay         = 120
	ipv6DisabledAll                  = 0xFF
)

func collectNetwork(ctx context.Context, env *Env) {
	row := env.DS.Table(dataset.TableNetwork).NewChildRow(env.computer())
	reg := env.reg(row)

	keepAlive, _ := reg.IntDefault(keyTcpipParameters, "KeepAliveTime", defaultKeepAliveTime)
	interval, _ := reg.IntDefault(keyTcpipParameters, "KeepAliveInterval", defaultKeepAliveInterval)
	retrans, _ := reg.IntDefault(keyTcpipParameters, "TcpMaxDataRetransmissions", defaultTcpMaxDataRetransmissions)
	row.Set("KeepAliveTime", keepAlive)
	row.Set("KeepAliveInterval", interval)
	row.Set("TcpMaxDataRetransmissions", retrans)

	switch {
	case retrans == 0:
		diag.LogCritical(env.Log, row, "TcpMaxDataRetransmissions is 0; a single lost packet drops the connection")
	case retrans < 4:
		diag.LogWarning(env.Log, row, "TcpMaxDataRetransmissions is %d; connections may drop on a lossy network", retrans)
	}
	if keepAlive < 60000 {
		diag.LogWarning(env.Log, row, "KeepAliveTime is %d ms; idle connections generate extra keep-alive traffic", keepAlive)
	}

	if raw := reg.Raw(keyTcpipParameters, "TcpTimedWaitDelay"); raw != "" {
		row.Set("TcpTimedWaitDelay", diag.CheckRange(env.Log, row, "TcpTimedWaitDelay", raw, 30, 240))
	} else {
		row.Set("TcpTimedWaitDelay", defaultTcpTimedWaitDelay)
	}
	if port, ok := reg.Int(keyTcpipParameters, "MaxUserPort"); ok {
		row.Set("MaxUserPort", port)
		if port < 5000 {
			diag.LogWarning(env.Log, row, "MaxUserPort is %d; outbound connections may exhaust ephemeral ports", port)
		}
	}
	if v, ok := reg.Int(keyTcpipParameters, "SynAttackProtect"); ok {
		row.Set("SynAttackProtect", v)
	}
	if v, ok := reg.Int(keyTcpip6Parameters, "DisabledComponents"); ok {
		row.Set("DisabledComponents", v)
		if v == ipv6DisabledAll {
			diag.LogInfo(env.Log, row, "IPv6 is disabled on all interfaces (DisabledComponents 0xFF)")
		}
	}

	if out, ok := env.exec(ctx, row, "netsh", "int", "ipv4", "show", "dynamicport", "tcp"); ok {
		values := parseColonLines(out)
		start := atoi(values["start port"])
		count := atoi(values["number of ports"])
		row.Set("DynamicPortStart", start)
		row.Set("DynamicPortCount", count)
		if count > 0 && count < 10000 {
			diag.LogWarning(env.Log, row, "Only %d dynamic TCP ports starting at %d; busy clients may run out of ephemeral ports", count, start)
		}
	}

	if out, ok := env.exec(ctx, row, "netsh", "int", "tcp", "show", "global"); ok {
		values := parseColonLines(out)
		row.Set("ChimneyState", values["chimney offload state"])
		row.Set("RSSState", values["receive-side scaling state"])
		row.Set("AutoTuningLevel", values["receive window auto-tuning level"])
		if values["chimney offload state"] == "enabled" {
			diag.LogWarning(env.Log, row, "TCP Chimney offload is enabled; it is known to cause dropped connections")
		}
	}
}
