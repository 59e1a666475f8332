package dataset

// SchemaVersion identifies the table/column layout below. Bump it whenever a
// table or column is added, removed or renamed so stored snapshots from an
// older layout can be recognised.
const SchemaVersion = 1

// ColumnType is the storage type of a column
type ColumnType int

const (
	String ColumnType = iota
	Int
	Bool
	DateTime
)

// String returns the type name used in JSON snapshots
func (t ColumnType) String() string {
	switch t {
	case Int:
		return "int"
	case Bool:
		return "bool"
	case DateTime:
		return "datetime"
	default:
		return "string"
	}
}

// Column is one typed column of a table
type Column struct {
	Name string
	Type ColumnType
}

// TableSchema describes a table's fixed shape
type TableSchema struct {
	Name string
	// Parent is the table ParentID points into, empty for top-level tables
	Parent string
	// Vertical tables render as "label : value" blocks instead of a grid
	Vertical bool
	Columns  []Column
}

// Table names
const (
	TableComputer                 = "Computer"
	TableDomain                   = "Domain"
	TableRelatedDomain            = "RelatedDomain"
	TableRootDomainRelatedDomain  = "RootDomainRelatedDomain"
	TableForestRelatedDomain      = "ForestRelatedDomain"
	TableSecurity                 = "Security"
	TableTLS                      = "TLS"
	TableClientSNI                = "ClientSNI"
	TableProtocolOrder            = "ProtocolOrder"
	TableODBC                     = "ODBC"
	TableDatabaseDriver           = "DatabaseDriver"
	TableADALFile                 = "ADALFile"
	TableADALRegistry             = "ADALRegistry"
	TableProcessDrivers           = "ProcessDrivers"
	TableNetwork                  = "Network"
	TableNetworkAdapter           = "NetworkAdapter"
	TableFLTMC                    = "FLTMC"
	TableNetworkMiniDriver        = "NetworkMiniDriver"
	TableDiskDrive                = "DiskDrive"
	TableHostAlias                = "HostAlias"
	TableHostsEntries             = "HostsEntries"
	TableIPAddress                = "IPAddress"
	TableSQLAlias                 = "SQLAlias"
	TableService                  = "Service"
	TableSPNAccount               = "SPNAccount"
	TableConstrainedDelegationSPN = "ConstrainedDelegationSPN"
	TableSPN                      = "SPN"
	TableSQLInstance              = "SQLInstance"
	TableSQLServer                = "SQLServer"
	TableSuggestedSPN             = "SuggestedSPN"
	TableCertificate              = "Certificate"
	TableMessage                  = "Message"
)

// Implicit key columns carried by every table except Message
const (
	ColID       = "ID"
	ColParentID = "ParentID"
)

func strCol(name string) Column { return Column{Name: name, Type: String} }
func intCol(name string) Column { return Column{Name: name, Type: Int} }
func boolCol(name string) Column { return Column{Name: name, Type: Bool} }
func timeCol(name string) Column { return Column{Name: name, Type: DateTime} }

func trustColumns() []Column {
	return []Column{
		strCol("SourceDomain"), strCol("TargetDomain"), strCol("TargetShortName"), strCol("TrustDirection"),
		strCol("TrustType"), strCol("TrustAttributes"), boolCol("Transitive"), boolCol("SelectiveAuthentication"),
		strCol("SupportedEncryptionTypes"),
	}
}

// Schema lists every table in creation order. Collectors never add or remove
// columns; the layout is the de facto contract with the report renderer.
var Schema = []TableSchema{
	{Name: TableComputer, Vertical: true, Columns: []Column{
		strCol("NETBIOSName"), strCol("FQDN"), strCol("DNSSuffix"), strCol("DomainOrWorkgroup"),
		boolCol("JoinedToDomain"), boolCol("ConnectedToDomain"),
		strCol("WindowsName"), strCol("WindowsVersion"), intCol("WindowsBuild"), strCol("WindowsReleaseID"), intCol("WindowsUBR"),
		boolCol("CPU64Bit"), timeCol("LastBootTime"),
		strCol("DotNet4Version"), intCol("DotNet4Release"), boolCol("DotNet4StrongCrypto"), boolCol("DotNet4StrongCrypto64"),
		boolCol("DotNet4SystemDefaultTLS"), boolCol("DotNet2StrongCrypto"), boolCol("DotNet2StrongCrypto64"),
		boolCol("Clustered"), strCol("ClusterName"), strCol("DiffieHellmanVersion"), boolCol("RebootNeeded"),
	}},
	{Name: TableDomain, Parent: TableComputer, Vertical: true, Columns: []Column{
		strCol("DomainName"), strCol("DomainShortName"), strCol("ParentDomain"), strCol("ForestName"),
		strCol("RootDomain"), strCol("DomainDN"), strCol("SupportedEncryptionTypes"),
	}},
	{Name: TableRelatedDomain, Parent: TableDomain, Columns: trustColumns()},
	{Name: TableRootDomainRelatedDomain, Parent: TableDomain, Columns: trustColumns()},
	{Name: TableForestRelatedDomain, Parent: TableDomain, Columns: trustColumns()},
	{Name: TableSecurity, Parent: TableComputer, Vertical: true, Columns: []Column{
		intCol("LanmanCompatibilityLevel"), boolCol("DisableLoopbackCheck"), strCol("BackConnectionHostNames"),
		intCol("CrashOnAuditFail"), intCol("RestrictSendingNTLM"), intCol("RestrictReceivingNTLM"),
		boolCol("CredentialGuard"), boolCol("FIPSEnabled"), intCol("KerberosMaxTokenSize"), intCol("KerberosLogLevel"),
		strCol("KerberosEncryptionTypes"), intCol("CipherSuitePolicyCount"),
	}},
	{Name: TableTLS, Parent: TableComputer, Columns: []Column{
		strCol("Protocol"), strCol("Role"), strCol("DefaultValue"), strCol("EnabledValue"),
		strCol("DisabledByDefaultValue"), strCol("EffectiveValue"),
	}},
	{Name: TableClientSNI, Columns: []Column{
		strCol("Provider"), boolCol("Wow64"), boolCol("ForceEncryption"), boolCol("TrustServerCertificate"),
		intCol("TcpDefaultPort"), intCol("TcpKeepAlive"), intCol("TcpKeepAliveInterval"), strCol("NPDefaultPipe"),
		strCol("ProtocolOrder"),
	}},
	{Name: TableProtocolOrder, Parent: TableClientSNI, Columns: []Column{
		intCol("Position"), strCol("Protocol"), boolCol("Enabled"),
	}},
	{Name: TableODBC, Columns: []Column{
		strCol("DSN"), strCol("Driver"), strCol("Server"), strCol("Database"), boolCol("TrustedConnection"), strCol("Encrypt"), boolCol("Wow64"),
	}},
	{Name: TableDatabaseDriver, Columns: []Column{
		strCol("DriverName"), strCol("DriverType"), strCol("Path"), boolCol("Wow64"), strCol("TLS12Support"),
	}},
	{Name: TableADALFile, Columns: []Column{
		strCol("FilePath"), boolCol("Exists"), intCol("FileSize"), timeCol("ModifiedDate"),
	}},
	{Name: TableADALRegistry, Columns: []Column{
		strCol("RegistryPath"), strCol("TargetDir"), boolCol("FileExists"), boolCol("Wow64"),
	}},
	{Name: TableProcessDrivers, Columns: []Column{
		strCol("ProcessName"), intCol("PID"), strCol("DriverName"),
	}},
	{Name: TableNetwork, Parent: TableComputer, Vertical: true, Columns: []Column{
		intCol("KeepAliveTime"), intCol("KeepAliveInterval"), intCol("TcpMaxDataRetransmissions"), intCol("MaxUserPort"),
		intCol("TcpTimedWaitDelay"), intCol("SynAttackProtect"), intCol("DisabledComponents"),
		intCol("DynamicPortStart"), intCol("DynamicPortCount"), strCol("ChimneyState"), strCol("RSSState"), strCol("AutoTuningLevel"),
	}},
	{Name: TableNetworkAdapter, Parent: TableComputer, Columns: []Column{
		strCol("Name"), strCol("ConnectionID"), strCol("Manufacturer"), strCol("ServiceName"), strCol("MACAddress"),
		intCol("Speed"), boolCol("NetEnabled"), strCol("DriverVersion"), timeCol("DriverDate"),
	}},
	{Name: TableFLTMC, Parent: TableComputer, Columns: []Column{
		strCol("FilterName"), intCol("Instances"), strCol("Altitude"), strCol("Frame"),
	}},
	{Name: TableNetworkMiniDriver, Parent: TableComputer, Columns: []Column{
		strCol("Adapter"), strCol("ComponentID"), strCol("DisplayName"), boolCol("Enabled"),
	}},
	{Name: TableDiskDrive, Parent: TableComputer, Columns: []Column{
		strCol("Drive"), strCol("FileSystem"), intCol("TotalBytes"), intCol("FreeBytes"), intCol("PercentFree"),
	}},
	{Name: TableHostAlias, Parent: TableComputer, Columns: []Column{
		strCol("AliasName"), strCol("AliasType"), strCol("Target"),
	}},
	{Name: TableHostsEntries, Parent: TableComputer, Columns: []Column{
		strCol("IPAddress"), strCol("HostName"), strCol("Comment"),
	}},
	{Name: TableIPAddress, Parent: TableComputer, Columns: []Column{
		strCol("Adapter"), strCol("Address"), strCol("AddressFamily"),
	}},
	{Name: TableSQLAlias, Columns: []Column{
		strCol("AliasName"), strCol("Protocol"), strCol("ServerName"), strCol("Port"), boolCol("Wow64"),
	}},
	{Name: TableService, Parent: TableComputer, Columns: []Column{
		strCol("Name"), strCol("DisplayName"), strCol("Kind"), strCol("StartMode"), strCol("State"), intCol("ProcessID"),
		strCol("ServiceAccount"), strCol("DomainAccount"), strCol("BinaryPath"),
	}},
	{Name: TableSPNAccount, Parent: TableDomain, Columns: []Column{
		strCol("Account"), strCol("DistinguishedName"), intCol("UserAccountControl"), boolCol("TrustedForDelegation"),
		boolCol("TrustedToAuthForDelegation"), boolCol("SensitiveNoDelegation"), strCol("SupportedEncryptionTypes"),
	}},
	{Name: TableConstrainedDelegationSPN, Parent: TableSPNAccount, Columns: []Column{
		strCol("SPN"),
	}},
	{Name: TableSPN, Parent: TableSPNAccount, Columns: []Column{
		strCol("SPN"), strCol("ServiceClass"), strCol("HostName"), strCol("Port"),
	}},
	{Name: TableSQLInstance, Parent: TableComputer, Columns: []Column{
		strCol("InstanceName"), strCol("InstanceID"), strCol("InstanceType"), boolCol("Wow64"),
	}},
	{Name: TableSQLServer, Parent: TableSQLInstance, Vertical: true, Columns: []Column{
		strCol("InstanceName"), strCol("Version"), strCol("PatchLevel"), strCol("Edition"), boolCol("Clustered"),
		strCol("VirtualServerName"), strCol("SQLPath"), strCol("ServiceName"), strCol("ServiceAccount"), strCol("DomainAccount"),
		boolCol("ServiceRunning"), boolCol("TcpEnabled"), strCol("TcpPorts"), strCol("TcpDynamicPorts"), boolCol("ListenAll"),
		boolCol("NamedPipesEnabled"), strCol("PipeName"), boolCol("SharedMemoryEnabled"), boolCol("ForceEncryption"),
		intCol("ExtendedProtection"), boolCol("HideInstance"), strCol("CertificateThumbprint"),
		strCol("AuthScheme"), strCol("EncryptOption"), strCol("ConnectionTest"),
	}},
	{Name: TableSuggestedSPN, Parent: TableSQLServer, Columns: []Column{
		strCol("SPNName"), strCol("Account"), strCol("Status"), strCol("AccountsFound"),
	}},
	{Name: TableCertificate, Parent: TableComputer, Columns: []Column{
		strCol("Thumbprint"), strCol("Subject"), strCol("FriendlyName"), strCol("Issuer"), timeCol("NotBefore"), timeCol("NotAfter"),
		boolCol("HasPrivateKey"), boolCol("ServerAuthEKU"), strCol("SubjectAlternativeNames"), strCol("SignatureAlgorithm"),
		intCol("KeySize"), boolCol("FQDNMatch"),
	}},
	{Name: TableMessage, Columns: []Column{
		strCol("TableName"), intCol("TableRow"), strCol("Severity"), strCol("Message"),
		strCol("ExceptionType"), strCol("ExceptionMessage"), strCol("StackTrace"),
	}},
}

// RenderOrder is the fixed order in which the text report prints tables.
var RenderOrder = []string{
	TableComputer,
	TableDomain,
	TableRelatedDomain,
	TableRootDomainRelatedDomain,
	TableForestRelatedDomain,
	TableSecurity,
	TableTLS,
	TableNetwork,
	TableNetworkAdapter,
	TableNetworkMiniDriver,
	TableFLTMC,
	TableDiskDrive,
	TableIPAddress,
	TableHostAlias,
	TableHostsEntries,
	TableClientSNI,
	TableProtocolOrder,
	TableSQLAlias,
	TableDatabaseDriver,
	TableODBC,
	TableADALFile,
	TableADALRegistry,
	TableProcessDrivers,
	TableCertificate,
	TableService,
	TableSPNAccount,
	TableSPN,
	TableConstrainedDelegationSPN,
	TableSQLInstance,
	TableSQLServer,
	TableSuggestedSPN,
}
