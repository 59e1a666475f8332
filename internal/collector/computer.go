package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe"
)

const (
	keyActiveComputerName = `SYSTEM\CurrentControlSet\Control\ComputerName\ActiveComputerName`
	keyTcpipParameters    = `SYSTEM\CurrentControlSet\Services\Tcpip\Parameters`
	keyCurrentVersion     = `SOFTWARE\Microsoft\Windows NT\CurrentVersion`
	keyNDP4Full           = `SOFTWARE\Microsoft\NET Framework Setup\NDP\v4\Full`
	keyNetFx4             = `SOFTWARE\Microsoft\.NETFramework\v4.0.30319`
	keyNetFx2             = `SOFTWARE\Microsoft\.NETFramework\v2.0.50727`
	keyCluster            = `Cluster`
	keySessionManager     = `SYSTEM\CurrentControlSet\Control\Session Manager`
	keyCBSRebootPending   = `SOFTWARE\Microsoft\Windows\CurrentVersion\Component Based Servicing\RebootPending`
)

// dotNet4Releases maps the minimum NDP v4 Release DWORD to its version, newest first
var dotNet4Releases = []struct {
	release int64
	version string
}{
	{533320, "4.8.1"},
	{528040, "4.8"},
	{461808, "4.7.2"},
	{461308, "4.7.1"},
	{460798, "4.7"},
	{394802, "4.6.2"},
	{394254, "4.6.1"},
	{393295, "4.6"},
	{379893, "4.5.2"},
	{378675, "4.5.1"},
	{378389, "4.5"},
}

// DotNet4Version maps an NDP v4 Release value to a framework version
func DotNet4Version(release int64) string {
	for _, r := range dotNet4Releases {
		if release >= r.release {
			return r.version
		}
	}
	if release > 0 {
		return "4.0"
	}
	return ""
}

// DiffieHellmanVersion infers the client DH padding behaviour from the OS build
func DiffieHellmanVersion(build int64) string {
	switch {
	case build < 9200:
		return "Legacy"
	case build < 14393:
		return "1"
	default:
		return "2"
	}
}

func collectComputer(ctx context.Context, env *Env) {
	row := env.DS.Table(dataset.TableComputer).NewRow()
	reg := env.reg(row)

	if _, err := env.Probes.Registry.SubKeys(probe.View64, keyCurrentVersion); errors.Is(err, probe.ErrUnsupported) {
		diag.LogWarning(env.Log, row, "Registry is not available on this platform; Windows configuration was not collected")
	}

	// Names
	netbios, _ := reg.String(keyActiveComputerName, "ComputerName")
	hostname, _ := reg.String(keyTcpipParameters, "Hostname")
	suffix, _ := reg.String(keyTcpipParameters, "Domain")
	if netbios == "" {
		netbios = strings.ToUpper(env.Probes.Env("COMPUTERNAME"))
	}
	facts, factsErr := env.Probes.Host.Facts(ctx)
	if factsErr != nil && !errors.Is(factsErr, probe.ErrUnsupported) {
		diag.LogException(env.Log, row, factsErr, "Failed to read host information")
	}
	if hostname == "" {
		hostname = facts.Hostname
	}
	if netbios == "" && hostname != "" {
		netbios = strings.ToUpper(strings.SplitN(hostname, ".", 2)[0])
	}
	row.Set("NETBIOSName", netbios)
	row.Set("DNSSuffix", suffix)
	if hostname != "" {
		fqdn := hostname
		if suffix != "" && !strings.Contains(hostname, ".") {
			fqdn = hostname + "." + suffix
		}
		row.Set("FQDN", strings.ToLower(fqdn))
	}

	// Domain membership
	joined := false
	if recs, ok := env.wmi(ctx, row, "", "SELECT Name, Domain, PartOfDomain FROM Win32_ComputerSystem",
		"Name", "Domain", "PartOfDomain"); ok && len(recs) > 0 {
		joined = recs[0].Bool("PartOfDomain")
		row.Set("DomainOrWorkgroup", recs[0].String("Domain"))
	} else if dom := env.Probes.Env("USERDNSDOMAIN"); dom != "" {
		joined = true
		row.Set("DomainOrWorkgroup", strings.ToLower(dom))
		diag.LogVerbose(env.Log, row, "Domain membership taken from USERDNSDOMAIN")
	}
	row.Set("JoinedToDomain", joined)
	row.Set("ConnectedToDomain", false)
	if !joined {
		diag.LogInfo(env.Log, row, "This computer is not joined to a domain; Kerberos authentication is not possible")
	}

	collectOSVersion(env, row, reg, facts)

	if !facts.BootTime.IsZero() {
		row.Set("LastBootTime", facts.BootTime)
	}

	collectDotNet(env, row, reg)

	// Cluster
	if reg.Exists(keyCluster) {
		row.Set("Clustered", true)
		name, _ := reg.String(keyCluster, "ClusterName")
		row.Set("ClusterName", name)
	} else {
		row.Set("Clustered", false)
	}

	build := row.GetInteger("WindowsBuild")
	if build > 0 {
		dh := DiffieHellmanVersion(build)
		row.Set("DiffieHellmanVersion", dh)
		if dh != "2" {
			diag.LogWarning(env.Log, row, "Diffie-Hellman version %s: TLS handshakes using DHE cipher suites may fail intermittently with peers using the newer key padding", dh)
		}
	}

	// Pending reboot
	pending := len(reg.Strings(keySessionManager, "PendingFileRenameOperations")) > 0 || reg.Exists(keyCBSRebootPending)
	row.Set("RebootNeeded", pending)
	if pending {
		diag.LogWarning(env.Log, row, "A reboot is pending; configuration changes may not have taken effect")
	}
}

func collectOSVersion(env *Env, row *dataset.Row, reg *regReader, facts probe.HostFacts) {
	product, _ := reg.String(keyCurrentVersion, "ProductName")
	buildStr, _ := reg.String(keyCurrentVersion, "CurrentBuildNumber")
	build := atoi(buildStr)

	major, okMajor := reg.Int(keyCurrentVersion, "CurrentMajorVersionNumber")
	minor, _ := reg.Int(keyCurrentVersion, "CurrentMinorVersionNumber")
	version := ""
	if okMajor {
		version = fmt.Sprintf("%d.%d", major, minor)
	} else {
		version, _ = reg.String(keyCurrentVersion, "CurrentVersion")
	}

	release, _ := reg.String(keyCurrentVersion, "DisplayVersion")
	if release == "" {
		release, _ = reg.String(keyCurrentVersion, "ReleaseId")
	}

	// Windows 11 still reports "Windows 10" in ProductName
	if build >= 22000 && strings.Contains(product, "Windows 10") {
		product = strings.Replace(product, "Windows 10", "Windows 11", 1)
	}
	if product == "" {
		product = facts.Platform
	}
	if version == "" {
		version = facts.PlatformVersion
	}

	row.Set("WindowsName", product)
	row.Set("WindowsVersion", version)
	row.Set("WindowsReleaseID", release)
	if build > 0 {
		row.Set("WindowsBuild", build)
	}
	if ubr, ok := reg.Int(keyCurrentVersion, "UBR"); ok {
		row.Set("WindowsUBR", ubr)
	}

	arch := env.Probes.Env("PROCESSOR_ARCHITEW6432")
	if arch == "" {
		arch = env.Probes.Env("PROCESSOR_ARCHITECTURE")
	}
	if arch == "" {
		arch = facts.KernelArch
	}
	row.Set("CPU64Bit", strings.Contains(arch, "64"))
}

func collectDotNet(env *Env, row *dataset.Row, reg *regReader) {
	if rel, ok := reg.Int(keyNDP4Full, "Release"); ok {
		row.Set("DotNet4Release", rel)
		row.Set("DotNet4Version", DotNet4Version(rel))
	} else {
		diag.LogInfo(env.Log, row, ".NET Framework 4.5 or later is not installed")
	}

	flags := []struct {
		column string
		view   probe.View
		key    string
		label  string
	}{
		{"DotNet4StrongCrypto", probe.View32, keyNetFx4, ".NET 4 (32-bit)"},
		{"DotNet4StrongCrypto64", probe.View64, keyNetFx4, ".NET 4 (64-bit)"},
		{"DotNet2StrongCrypto", probe.View32, keyNetFx2, ".NET 2 (32-bit)"},
		{"DotNet2StrongCrypto64", probe.View64, keyNetFx2, ".NET 2 (64-bit)"},
	}
	var weak []string
	for _, f := range flags {
		on := reg.in(f.view).Flag(f.key, "SchUseStrongCrypto")
		row.Set(f.column, on)
		if !on {
			weak = append(weak, f.label)
		}
	}
	row.Set("DotNet4SystemDefaultTLS", reg.Flag(keyNetFx4, "SystemDefaultTlsVersions"))

	if len(weak) > 0 {
		diag.LogWarning(env.Log, row, "SchUseStrongCrypto is not set for %s; those runtimes use legacy crypto defaults and may not negotiate TLS 1.2",
			strings.Join(weak, ", "))
	}
}
