package collector

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"time"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe"
)

const (
	wmiStandardCimv2 = `root\StandardCimv2`
	cimTimeLayout    = "20060102150405"
	gigabit          = 1000000000
)

// parseCIMTime reads the date part of a CIM_DATETIME such as
// 20190311000000.000000-000
func parseCIMTime(s string) (time.Time, bool) {
	if len(s) < len(cimTimeLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(cimTimeLayout, s[:len(cimTimeLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func collectNetworkAdapters(ctx context.Context, env *Env) {
	comp := env.computer()
	tbl := env.DS.Table(dataset.TableNetworkAdapter)

	adapters, ok := env.wmi(ctx, tbl, "",
		"SELECT Name, NetConnectionID, Manufacturer, ServiceName, MACAddress, Speed, NetEnabled, PNPDeviceID FROM Win32_NetworkAdapter WHERE PhysicalAdapter = TRUE",
		"Name", "NetConnectionID", "Manufacturer", "ServiceName", "MACAddress", "Speed", "NetEnabled", "PNPDeviceID")
	if !ok {
		adaptersFromHost(ctx, env, comp)
		return
	}

	drivers := make(map[string]probe.Record)
	if recs, ok := env.wmi(ctx, tbl, "",
		"SELECT DeviceID, DriverVersion, DriverDate FROM Win32_PnPSignedDriver WHERE DeviceClass = 'NET'",
		"DeviceID", "DriverVersion", "DriverDate"); ok {
		for _, r := range recs {
			drivers[strings.ToUpper(r.String("DeviceID"))] = r
		}
	}

	stale := env.now().AddDate(-3, 0, 0)
	for _, a := range adapters {
		row := tbl.NewChildRow(comp)
		row.Set("Name", a.String("Name"))
		row.Set("ConnectionID", a.String("NetConnectionID"))
		row.Set("Manufacturer", a.String("Manufacturer"))
		row.Set("ServiceName", a.String("ServiceName"))
		row.Set("MACAddress", a.String("MACAddress"))
		speed := a.Int("Speed")
		row.Set("Speed", speed)
		row.Set("NetEnabled", a.Bool("NetEnabled"))

		if d, ok := drivers[strings.ToUpper(a.String("PNPDeviceID"))]; ok {
			row.Set("DriverVersion", d.String("DriverVersion"))
			if date, ok := parseCIMTime(d.String("DriverDate")); ok {
				row.Set("DriverDate", date)
				if date.Before(stale) {
					diag.LogWarning(env.Log, row, "Driver for %s is dated %s, more than 3 years old", a.String("Name"), date.Format("2006-01-02"))
				}
			}
		}
		if a.Bool("NetEnabled") && speed > 0 && speed < gigabit {
			diag.LogInfo(env.Log, row, "%s is connected at %d Mbps, below 1 Gbps", a.String("Name"), speed/1000000)
		}
	}
}

// adaptersFromHost lists interfaces from the host probe when WMI is unavailable
func adaptersFromHost(ctx context.Context, env *Env, comp *dataset.Row) {
	tbl := env.DS.Table(dataset.TableNetworkAdapter)
	ifaces, err := env.Probes.Host.Interfaces(ctx)
	if err != nil {
		if !errors.Is(err, probe.ErrUnsupported) {
			diag.LogException(env.Log, tbl, err, "Failed to list network interfaces")
		}
		return
	}
	for _, ifc := range ifaces {
		if ifc.MAC == "" {
			continue
		}
		row := tbl.NewChildRow(comp)
		row.Set("Name", ifc.Name)
		row.Set("ConnectionID", ifc.Name)
		row.Set("MACAddress", strings.ToUpper(ifc.MAC))
		row.Set("NetEnabled", ifc.Up)
	}
}

func collectNetworkMiniDrivers(ctx context.Context, env *Env) {
	comp := env.computer()
	tbl := env.DS.Table(dataset.TableNetworkMiniDriver)

	bindings, ok := env.wmi(ctx, tbl, wmiStandardCimv2,
		"SELECT Name, ComponentID, DisplayName, Enabled FROM MSFT_NetAdapterBindingSettingData",
		"Name", "ComponentID", "DisplayName", "Enabled")
	if !ok {
		return
	}

	known := make(map[string]bool)
	for _, a := range env.DS.Table(dataset.TableNetworkAdapter).Rows() {
		if id := a.GetString("ConnectionID"); id != "" {
			known[strings.ToLower(id)] = true
		}
	}

	for _, b := range bindings {
		adapter := b.String("Name")
		if len(known) > 0 && !known[strings.ToLower(adapter)] {
			continue
		}
		row := tbl.NewChildRow(comp)
		component := b.String("ComponentID")
		row.Set("Adapter", adapter)
		row.Set("ComponentID", component)
		row.Set("DisplayName", b.String("DisplayName"))
		row.Set("Enabled", b.Bool("Enabled"))
		if b.Bool("Enabled") && !strings.HasPrefix(strings.ToLower(component), "ms_") {
			diag.LogInfo(env.Log, row, "Third-party network filter %s (%s) is bound to %s", b.String("DisplayName"), component, adapter)
		}
	}
}

// knownAVFilters are minifilter names of common anti-virus products
var knownAVFilters = map[string]string{
	"wdfilter":        "Microsoft Defender",
	"mfehidk":         "McAfee",
	"mfencfilter":     "McAfee",
	"symefa":          "Symantec",
	"srtsp":           "Symantec",
	"symevent":        "Symantec",
	"klif":            "Kaspersky",
	"eamonm":          "ESET",
	"tmpreflt":        "Trend Micro",
	"tmxmon":          "Trend Micro",
	"sentinelmonitor": "SentinelOne",
	"csagent":         "CrowdStrike",
	"cyverak":         "Palo Alto Cortex XDR",
	"cbk7":            "Carbon Black",
	"avgntflt":        "Avira",
	"aswsp":           "Avast",
}

// Filter is one line of "fltmc filters"
type Filter struct {
	Name      string
	Instances int64
	Altitude  string
	Frame     string
}

// ParseFltmc parses the table printed by "fltmc filters"
func ParseFltmc(out string) []Filter {
	var filters []Filter
	body := false
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "---") {
			body = true
			continue
		}
		if !body || line == "" {
			continue
		}
		f := strings.Fields(line)
		switch len(f) {
		case 0, 1:
			continue
		case 2:
			filters = append(filters, Filter{Name: f[0], Altitude: f[1]})
		case 3:
			filters = append(filters, Filter{Name: f[0], Instances: atoi(f[1]), Altitude: f[2]})
		default:
			filters = append(filters, Filter{Name: f[0], Instances: atoi(f[1]), Altitude: f[2], Frame: f[3]})
		}
	}
	return filters
}

func collectFltmc(ctx context.Context, env *Env) {
	comp := env.computer()
	tbl := env.DS.Table(dataset.TableFLTMC)

	out, ok := env.exec(ctx, tbl, "fltmc", "filters")
	if !ok {
		return
	}
	for _, f := range ParseFltmc(out) {
		row := tbl.NewChildRow(comp)
		row.Set("FilterName", f.Name)
		row.Set("Instances", f.Instances)
		row.Set("Altitude", f.Altitude)
		row.Set("Frame", f.Frame)

		altitude := atoi(f.Altitude)
		if product, ok := knownAVFilters[strings.ToLower(f.Name)]; ok {
			diag.LogInfo(env.Log, row, "%s is a %s anti-virus filter; exclude SQL Server data and log folders from scanning", f.Name, product)
		} else if altitude >= 320000 && altitude <= 329999 {
			diag.LogInfo(env.Log, row, "%s loads at altitude %s, in the anti-virus range", f.Name, f.Altitude)
		}
	}
}

func collectDiskDrives(ctx context.Context, env *Env) {
	comp := env.computer()
	tbl := env.DS.Table(dataset.TableDiskDrive)

	disks, err := env.Probes.Host.Disks(ctx)
	if err != nil {
		if !errors.Is(err, probe.ErrUnsupported) {
			diag.LogException(env.Log, tbl, err, "Failed to list disk drives")
		}
		return
	}
	for _, d := range disks {
		row := tbl.NewChildRow(comp)
		row.Set("Drive", d.Mountpoint)
		row.Set("FileSystem", d.FSType)
		row.Set("TotalBytes", int64(d.Total))
		row.Set("FreeBytes", int64(d.Free))
		if d.Total == 0 {
			continue
		}
		pct := int64(d.Free * 100 / d.Total)
		row.Set("PercentFree", pct)
		if pct < 10 {
			diag.LogWarning(env.Log, row, "Drive %s has only %d%% free space", d.Mountpoint, pct)
		}
	}
}

var apipa = netip.MustParsePrefix("169.254.0.0/16")

func collectIPAddresses(ctx context.Context, env *Env) {
	comp := env.computer()
	tbl := env.DS.Table(dataset.TableIPAddress)

	ifaces, err := env.Probes.Host.Interfaces(ctx)
	if err != nil {
		if !errors.Is(err, probe.ErrUnsupported) {
			diag.LogException(env.Log, tbl, err, "Failed to list network interfaces")
		}
		return
	}
	for _, ifc := range ifaces {
		for _, a := range ifc.Addrs {
			addr, ok := parseAddr(a)
			if !ok || addr.IsLoopback() {
				continue
			}
			row := tbl.NewChildRow(comp)
			row.Set("Adapter", ifc.Name)
			row.Set("Address", addr.String())
			if addr.Is4() {
				row.Set("AddressFamily", "IPv4")
			} else {
				row.Set("AddressFamily", "IPv6")
			}
			if apipa.Contains(addr) {
				diag.LogWarning(env.Log, row, "%s has the self-assigned address %s; DHCP did not answer", ifc.Name, addr)
			}
		}
	}
}

// parseAddr accepts "10.0.0.5" or "10.0.0.5/24"
func parseAddr(s string) (netip.Addr, bool) {
	if p, err := netip.ParsePrefix(s); err == nil {
		return p.Addr().Unmap(), true
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}

func collectHostsEntries(ctx context.Context, env *Env) {
	comp := env.computer()
	tbl := env.DS.Table(dataset.TableHostsEntries)
	path := env.windir() + `\System32\drivers\etc\hosts`

	if env.Probes.Files == nil {
		return
	}
	data, err := readFile(env, path)
	if err != nil {
		if !isNotExist(err) {
			diag.LogException(env.Log, tbl, err, "Failed to read %s", path)
		}
		return
	}

	var names []string
	if comp != nil {
		names = []string{comp.GetString("NETBIOSName"), comp.GetString("FQDN")}
	}

	for _, e := range ParseHosts(string(data)) {
		row := tbl.NewChildRow(comp)
		row.Set("IPAddress", e.Address)
		row.Set("HostName", e.Host)
		row.Set("Comment", e.Comment)
		for _, n := range names {
			if n != "" && strings.EqualFold(n, e.Host) {
				diag.LogWarning(env.Log, row, "The hosts file maps this computer's name %s to %s; Kerberos and SPN lookups may resolve the wrong address", e.Host, e.Address)
				break
			}
		}
	}
}

// HostsEntry is one host name mapping from a hosts file
type HostsEntry struct {
	Address string
	Host    string
	Comment string
}

// ParseHosts reads a hosts file, one entry per host name
func ParseHosts(data string) []HostsEntry {
	var entries []HostsEntry
	for _, line := range strings.Split(data, "\n") {
		line, comment, _ := strings.Cut(line, "#")
		f := strings.Fields(line)
		if len(f) < 2 {
			continue
		}
		for _, h := range f[1:] {
			entries = append(entries, HostsEntry{Address: f[0], Host: h, Comment: strings.TrimSpace(comment)})
		}
	}
	return entries
}
