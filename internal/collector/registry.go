package collector

import "strings"

// Registry returns every collector in registration order. Dependencies name
// the collectors whose rows a collector reads.
func Registry() []Collector {
	return []Collector{
		{Name: "Computer", Collect: collectComputer},
		{Name: "Domain", DependsOn: []string{"Computer"}, Collect: collectDomain},
		{Name: "Security", DependsOn: []string{"Computer"}, Collect: collectSecurity},
		{Name: "TLS", DependsOn: []string{"Computer"}, Collect: collectTLS},
		{Name: "Network", DependsOn: []string{"Computer"}, Collect: collectNetwork},
		{Name: "NetworkAdapter", DependsOn: []string{"Computer"}, Collect: collectNetworkAdapters},
		{Name: "NetworkMiniDriver", DependsOn: []string{"NetworkAdapter"}, Collect: collectNetworkMiniDrivers},
		{Name: "FLTMC", DependsOn: []string{"Computer"}, Collect: collectFltmc},
		{Name: "DiskDrive", DependsOn: []string{"Computer"}, Collect: collectDiskDrives},
		{Name: "HostAlias", DependsOn: []string{"Computer"}, Disabled: "inconsistent results"},
		{Name: "HostsEntries", DependsOn: []string{"Computer"}, Collect: collectHostsEntries},
		{Name: "IPAddress", DependsOn: []string{"Computer"}, Collect: collectIPAddresses},
		{Name: "ClientSNI", Collect: collectClientSNI},
		{Name: "SQLAlias", Collect: collectSQLAliases},
		{Name: "DatabaseDriver", DependsOn: []string{"TLS"}, Collect: collectDatabaseDrivers},
		{Name: "ODBC", DependsOn: []string{"DatabaseDriver"}, Collect: collectODBC},
		{Name: "ADAL", Collect: collectADAL},
		{Name: "ProcessDrivers", DependsOn: []string{"DatabaseDriver"}, Collect: collectProcessDrivers},
		{Name: "Certificate", DependsOn: []string{"Computer"}, Collect: collectCertificates},
		{Name: "Service", DependsOn: []string{"Computer", "Domain"}, Collect: collectServices},
		{Name: "SPNAccount", DependsOn: []string{"Service", "Domain"}, Collect: collectSPNAccounts},
		{Name: "SQLInstance", DependsOn: []string{"Service", "Certificate", "SPNAccount"}, Collect: collectSQLInstances},
	}
}

// Lookup finds a registered collector by name, ignoring case
func Lookup(name string) (Collector, bool) {
	for _, c := range Registry() {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Collector{}, false
}
