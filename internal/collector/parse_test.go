package collector

import (
	"reflect"
	"testing"
)

func TestParseFltmc(t *testing.T) {
	out := `
Filter Name                     Num Instances    Altitude    Frame
------------------------------  -------------  ------------  -----
bindflt                                 1       409800         0
WdFilter                               10       328010         0
storqosflt                              0       244000         0
`
	got := ParseFltmc(out)
	want := []Filter{
		{Name: "bindflt", Instances: 1, Altitude: "409800", Frame: "0"},
		{Name: "WdFilter", Instances: 10, Altitude: "328010", Frame: "0"},
		{Name: "storqosflt", Instances: 0, Altitude: "244000", Frame: "0"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseFltmc =\n%+v\nwant\n%+v", got, want)
	}
}

func TestParseHosts(t *testing.T) {
	data := "# comment only\r\n127.0.0.1 localhost\r\n10.0.0.5  sql01 sql01.contoso.com # moved\r\n\r\nbadline\r\n"
	got := ParseHosts(data)
	want := []HostsEntry{
		{Address: "127.0.0.1", Host: "localhost"},
		{Address: "10.0.0.5", Host: "sql01", Comment: "moved"},
		{Address: "10.0.0.5", Host: "sql01.contoso.com", Comment: "moved"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseHosts = %+v", got)
	}
}

func TestParseTasklist(t *testing.T) {
	out := "\"sqlservr.exe\",\"4120\",\"sqlncli11.dll\"\r\n\"app.exe\",\"880\",\"msoledbsql.dll,sqlncli11.dll\"\r\n"
	got, err := ParseTasklist(out)
	if err != nil {
		t.Fatal(err)
	}
	want := []ProcessModule{
		{Process: "sqlservr.exe", PID: 4120, Modules: []string{"sqlncli11.dll"}},
		{Process: "app.exe", PID: 880, Modules: []string{"msoledbsql.dll", "sqlncli11.dll"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseTasklist = %+v", got)
	}

	none, err := ParseTasklist("INFO: No tasks are running which match the specified criteria.\r\n")
	if err != nil || len(none) != 0 {
		t.Errorf("no-match output = %v, %v", none, err)
	}
}

func TestParseSQLAlias(t *testing.T) {
	tests := []struct {
		value string
		want  SQLAliasTarget
	}{
		{"DBMSSOCN,sql01.contoso.com,1433", SQLAliasTarget{"TCP/IP", "sql01.contoso.com", "1433"}},
		{"DBNMPNTW,\\\\sql01\\pipe\\sql\\query", SQLAliasTarget{"Named Pipes", `\\sql01\pipe\sql\query`, ""}},
		{"DBMSLPCN,(local)", SQLAliasTarget{"Shared Memory", "(local)", ""}},
		{"sql02,1500", SQLAliasTarget{"Default", "sql02", "1500"}},
	}
	for _, tt := range tests {
		if got := ParseSQLAlias(tt.value); got != tt.want {
			t.Errorf("ParseSQLAlias(%q) = %+v, want %+v", tt.value, got, tt.want)
		}
	}
}

func TestParseSPN(t *testing.T) {
	tests := []struct {
		in   string
		want SPN
	}{
		{"MSSQLSvc/sql01.contoso.com:1433", SPN{"MSSQLSvc", "sql01.contoso.com", "1433"}},
		{"MSSQLSvc/sql01:SALES", SPN{"MSSQLSvc", "sql01", "SALES"}},
		{"MSSQLSvc/sql01", SPN{"MSSQLSvc", "sql01", ""}},
		{"ldap/dc01.contoso.com/contoso.com", SPN{"ldap", "dc01.contoso.com", ""}},
	}
	for _, tt := range tests {
		if got := ParseSPN(tt.in); got != tt.want {
			t.Errorf("ParseSPN(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestHostMatches(t *testing.T) {
	tests := []struct {
		pattern, host string
		want          bool
	}{
		{"sql01.contoso.com", "SQL01.contoso.com", true},
		{"*.contoso.com", "sql01.contoso.com", true},
		{"*.contoso.com", "a.b.contoso.com", false},
		{"*.contoso.com", "contoso.com", false},
		{"sql02.contoso.com", "sql01.contoso.com", false},
		{"", "sql01", false},
	}
	for _, tt := range tests {
		if got := HostMatches(tt.pattern, tt.host); got != tt.want {
			t.Errorf("HostMatches(%q, %q) = %v", tt.pattern, tt.host, got)
		}
	}
}

func TestDomainAccount(t *testing.T) {
	tests := []struct {
		account string
		joined  bool
		want    string
	}{
		{"LocalSystem", true, `CONTOSO\SQL01$`},
		{`NT AUTHORITY\NETWORK SERVICE`, true, `CONTOSO\SQL01$`},
		{`NT SERVICE\MSSQLSERVER`, true, `CONTOSO\SQL01$`},
		{`NT SERVICE\MSSQLSERVER`, false, ""},
		{`NT AUTHORITY\LocalService`, true, ""},
		{`.\sqluser`, true, ""},
		{`sql01\sqluser`, true, ""},
		{`CONTOSO\svcsql`, true, `CONTOSO\svcsql`},
		{"svcsql@contoso.com", true, "svcsql@contoso.com"},
		{"", true, ""},
	}
	for _, tt := range tests {
		if got := DomainAccount(tt.account, "SQL01", "CONTOSO", tt.joined); got != tt.want {
			t.Errorf("DomainAccount(%q, joined=%v) = %q, want %q", tt.account, tt.joined, got, tt.want)
		}
	}
}

func TestServiceKind(t *testing.T) {
	tests := map[string]string{
		"MSSQLSERVER":           KindEngine,
		"MSSQL$SALES":           KindEngine,
		"SQLAgent$SALES":        KindAgent,
		"SQLBrowser":            KindBrowser,
		"ReportServer$SALES":    KindReporting,
		"MSSQLFDLauncher$SALES": KindFullText,
		"MSSQLSERVERX":          "",
		"Spooler":               "",
	}
	for name, want := range tests {
		if got := ServiceKind(name); got != want {
			t.Errorf("ServiceKind(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestExpectedSPNs(t *testing.T) {
	got := ExpectedSPNs([]string{"SQL01", "sql01.contoso.com"}, "SALES", []string{"1500"})
	want := []string{
		"MSSQLSvc/SQL01:SALES", "MSSQLSvc/SQL01:1500",
		"MSSQLSvc/sql01.contoso.com:SALES", "MSSQLSvc/sql01.contoso.com:1500",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExpectedSPNs = %v", got)
	}

	if got := ExpectedSPNs([]string{"SQL01", ""}, "mssqlserver", nil); !reflect.DeepEqual(got, []string{"MSSQLSvc/SQL01"}) {
		t.Errorf("default instance SPNs = %v", got)
	}
}

func TestClassifySPN(t *testing.T) {
	tests := []struct {
		owners  []string
		account string
		want    string
	}{
		{nil, `CONTOSO\svcsql`, SPNMissing},
		{[]string{"SVCSQL"}, `CONTOSO\svcsql`, SPNOK},
		{[]string{"svcsql"}, "svcsql@contoso.com", SPNOK},
		{[]string{"SQL01$"}, `CONTOSO\SQL01$`, SPNOK},
		{[]string{"other"}, `CONTOSO\svcsql`, SPNWrongAccount},
		{[]string{"svcsql", "other"}, `CONTOSO\svcsql`, SPNDuplicate},
	}
	for _, tt := range tests {
		if got := ClassifySPN(tt.owners, tt.account); got != tt.want {
			t.Errorf("ClassifySPN(%v, %q) = %q, want %q", tt.owners, tt.account, got, tt.want)
		}
	}
}

func TestSplitPorts(t *testing.T) {
	if got := SplitPorts(" 1433, 1533 ,,0"); !reflect.DeepEqual(got, []string{"1433", "1533"}) {
		t.Errorf("SplitPorts = %v", got)
	}
}

func TestDriverTLS12Support(t *testing.T) {
	tests := []struct {
		name  string
		build int64
		want  string
	}{
		{"SQL Server", 9600, TLS12Yes},
		{"SQL Server", 7601, TLS12UpdateRequired},
		{"SQLOLEDB", 20348, TLS12Yes},
		{"SQL Native Client", 20348, TLS12No},
		{"SQL Server Native Client 11.0", 20348, TLS12UpdateRequired},
		{"SQLNCLI10", 20348, TLS12UpdateRequired},
		{"ODBC Driver 11 for SQL Server", 20348, TLS12UpdateRequired},
		{"ODBC Driver 18 for SQL Server", 20348, TLS12Yes},
		{"MSOLEDBSQL19", 20348, TLS12Yes},
		{"SQL Server Native Client RDA 11.0", 20348, TLS12Yes},
		{"Some Vendor SQL Server Driver", 20348, TLS12Yes},
		{"Some Vendor SQL Server Driver", 7601, TLS12Yes},
	}
	for _, tt := range tests {
		if got := DriverTLS12Support(tt.name, tt.build); got != tt.want {
			t.Errorf("DriverTLS12Support(%q, %d) = %q, want %q", tt.name, tt.build, got, tt.want)
		}
	}
}

func TestDecoders(t *testing.T) {
	if got := EncryptionTypes(0x1C, true); got != "RC4, AES128, AES256" {
		t.Errorf("EncryptionTypes = %q", got)
	}
	if got := EncryptionTypes(0, false); got != "Not set (RC4)" {
		t.Errorf("unset EncryptionTypes = %q", got)
	}
	if got := TrustAttributes(0x8 | 0x10); got != "Forest Transitive, Selective Authentication" {
		t.Errorf("TrustAttributes = %q", got)
	}
	if got := TrustDirection(3); got != "Bidirectional" {
		t.Errorf("TrustDirection = %q", got)
	}
	if got := DotNet4Version(528449); got != "4.8" {
		t.Errorf("DotNet4Version = %q", got)
	}
	if got := DotNet4Version(0); got != "" {
		t.Errorf("DotNet4Version(0) = %q", got)
	}
	for build, want := range map[int64]string{7601: "Legacy", 9600: "1", 14393: "2"} {
		if got := DiffieHellmanVersion(build); got != want {
			t.Errorf("DiffieHellmanVersion(%d) = %q, want %q", build, got, want)
		}
	}
}
