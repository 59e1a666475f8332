package collector

import (
	"context"
	"encoding/csv"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe"
)

const (
	keyODBCInst        = `SOFTWARE\ODBC\ODBCINST.INI`
	keyODBCDrivers     = keyODBCInst + `\ODBC Drivers`
	keyODBCIni         = `SOFTWARE\ODBC\ODBC.INI`
	keyODBCDataSources = keyODBCIni + `\ODBC Data Sources`
	keyClasses         = `SOFTWARE\Classes`
	keyMSADALSQL       = `SOFTWARE\Microsoft\MSADALSQL`
)

// TLS 1.2 support classes
const (
	TLS12Yes            = "Yes"
	TLS12No             = "No"
	TLS12UpdateRequired = "Update Required"
)

// oleDBProviders are the SQL Server OLE DB ProgIDs
var oleDBProviders = []string{"SQLOLEDB", "SQLNCLI", "SQLNCLI10", "SQLNCLI11", "MSOLEDBSQL", "MSOLEDBSQL19"}

// isSQLDriver reports whether an ODBC driver name talks to SQL Server
func isSQLDriver(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "sql server") || strings.Contains(n, "sql native client")
}

// DriverTLS12Support classifies a SQL Server client driver by name
func DriverTLS12Support(name string, build int64) string {
	n := strings.ToUpper(name)
	switch {
	case n == "SQL SERVER" || n == "SQLOLEDB":
		// ships with Windows and uses the OS TLS stack
		if build >= 9200 {
			return TLS12Yes
		}
		return TLS12UpdateRequired
	case n == "SQL NATIVE CLIENT" || n == "SQLNCLI":
		return TLS12No
	case strings.Contains(n, "NATIVE CLIENT 10.0") || n == "SQLNCLI10":
		return TLS12UpdateRequired
	case strings.Contains(n, "NATIVE CLIENT 11.0") || n == "SQLNCLI11":
		return TLS12UpdateRequired
	case strings.Contains(n, "ODBC DRIVER 11"):
		return TLS12UpdateRequired
	case strings.Contains(n, "ODBC DRIVER"), strings.HasPrefix(n, "MSOLEDBSQL"):
		return TLS12Yes
	default:
		return TLS12Yes
	}
}

func collectDatabaseDrivers(ctx context.Context, env *Env) {
	tbl := env.DS.Table(dataset.TableDatabaseDriver)
	build := int64(0)
	if comp := env.computer(); comp != nil {
		build = comp.GetInteger("WindowsBuild")
	}
	legacyOff := effectiveTLS(env.DS, "TLS 1.0", "Client") == TLSDisabled &&
		effectiveTLS(env.DS, "TLS 1.1", "Client") == TLSDisabled

	for _, view := range probe.Views {
		reg := env.reg(tbl).in(view)

		for _, name := range reg.ValueNames(keyODBCDrivers) {
			if !isSQLDriver(name) {
				continue
			}
			path, _ := reg.String(keyODBCInst+`\`+name, "Driver")
			addDriverRow(env, name, "ODBC", path, view, build, legacyOff)
		}

		for _, progID := range oleDBProviders {
			clsid, ok := reg.String(keyClasses+`\`+progID+`\CLSID`, "")
			if !ok || clsid == "" {
				continue
			}
			path, _ := reg.String(keyClasses+`\CLSID\`+clsid+`\InprocServer32`, "")
			addDriverRow(env, progID, "OLE DB", path, view, build, legacyOff)
		}
	}
}

func addDriverRow(env *Env, name, kind, path string, view probe.View, build int64, legacyOff bool) {
	row := env.DS.Table(dataset.TableDatabaseDriver).NewRow()
	support := DriverTLS12Support(name, build)
	row.Set("DriverName", name)
	row.Set("DriverType", kind)
	row.Set("Path", path)
	row.Set("Wow64", view == probe.View32)
	row.Set("TLS12Support", support)

	if support == TLS12Yes {
		return
	}
	if legacyOff {
		diag.LogCritical(env.Log, row, "%s driver %s does not support TLS 1.2 (%s) and TLS 1.0 and 1.1 are disabled; it cannot connect", kind, name, support)
		return
	}
	diag.LogWarning(env.Log, row, "%s driver %s does not support TLS 1.2 (%s)", kind, name, support)
}

func collectODBC(ctx context.Context, env *Env) {
	tbl := env.DS.Table(dataset.TableODBC)

	installed := make(map[string]bool)
	for _, d := range env.DS.Table(dataset.TableDatabaseDriver).Rows() {
		if d.GetString("DriverType") == "ODBC" {
			installed[driverKey(d.GetString("DriverName"), d.GetBoolean("Wow64"))] = true
		}
	}

	for _, view := range probe.Views {
		reg := env.reg(tbl).in(view)
		wow := view == probe.View32
		for _, dsn := range reg.ValueNames(keyODBCDataSources) {
			driver, _ := reg.String(keyODBCDataSources, dsn)
			if !isSQLDriver(driver) {
				continue
			}
			row := tbl.NewRow()
			rr := env.reg(row).in(view)
			key := keyODBCIni + `\` + dsn
			server, _ := rr.String(key, "Server")
			database, _ := rr.String(key, "Database")
			trusted, _ := rr.String(key, "Trusted_Connection")
			encrypt, _ := rr.String(key, "Encrypt")

			row.Set("DSN", dsn)
			row.Set("Driver", driver)
			row.Set("Server", server)
			row.Set("Database", database)
			row.Set("TrustedConnection", strings.EqualFold(trusted, "yes"))
			row.Set("Encrypt", encrypt)
			row.Set("Wow64", wow)

			if !installed[driverKey(driver, wow)] {
				diag.LogWarning(env.Log, row, "DSN %s uses driver %s, which is not installed in the %s registry", dsn, driver, view)
			}
		}
	}
}

func driverKey(name string, wow bool) string {
	if wow {
		return "32|" + strings.ToLower(name)
	}
	return "64|" + strings.ToLower(name)
}

func collectADAL(ctx context.Context, env *Env) {
	fileTbl := env.DS.Table(dataset.TableADALFile)
	regTbl := env.DS.Table(dataset.TableADALRegistry)
	if env.Probes.Files == nil {
		return
	}

	windir := env.windir()
	for _, path := range []string{windir + `\System32\adal.dll`, windir + `\SysWOW64\adal.dll`} {
		row := fileTbl.NewRow()
		row.Set("FilePath", path)
		info, err := statFile(env, path)
		if err != nil {
			row.Set("Exists", false)
			if !isNotExist(err) {
				diag.LogException(env.Log, row, err, "Failed to read %s", path)
			}
			continue
		}
		row.Set("Exists", true)
		row.Set("FileSize", info.Size())
		row.Set("ModifiedDate", info.ModTime())
	}

	for _, view := range probe.Views {
		dir, ok := env.reg(regTbl).in(view).String(keyMSADALSQL, "TargetDir")
		if !ok {
			continue
		}
		row := regTbl.NewRow()
		row.Set("RegistryPath", keyMSADALSQL)
		row.Set("TargetDir", dir)
		row.Set("Wow64", view == probe.View32)

		_, err := statFile(env, dir)
		row.Set("FileExists", err == nil)
		if err != nil {
			diag.LogWarning(env.Log, row, "MSADALSQL TargetDir %s does not exist; Azure Active Directory authentication will fail", dir)
		}
	}
}

// ProcessModule is one row of "tasklist /m"
type ProcessModule struct {
	Process string
	PID     int64
	Modules []string
}

// ParseTasklist reads "tasklist /m <dll> /fo csv /nh" output
func ParseTasklist(out string) ([]ProcessModule, error) {
	if strings.HasPrefix(strings.TrimSpace(out), "INFO:") {
		return nil, nil
	}
	r := csv.NewReader(strings.NewReader(out))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	var procs []ProcessModule
	for _, rec := range records {
		if len(rec) < 3 {
			continue
		}
		p := ProcessModule{Process: rec[0], PID: atoi(rec[1])}
		for _, m := range strings.Split(rec[2], ",") {
			if m = strings.TrimSpace(m); m != "" {
				p.Modules = append(p.Modules, m)
			}
		}
		procs = append(procs, p)
	}
	return procs, nil
}

// baseName returns the file part of a Windows path
func baseName(path string) string {
	path = strings.Trim(path, `"`)
	if i := strings.LastIndexAny(path, `\/`); i >= 0 {
		return path[i+1:]
	}
	return path
}

func collectProcessDrivers(ctx context.Context, env *Env) {
	tbl := env.DS.Table(dataset.TableProcessDrivers)

	var dlls []string
	for _, d := range env.DS.Table(dataset.TableDatabaseDriver).Rows() {
		if dll := baseName(d.GetString("Path")); dll != "" {
			dlls = AddUnique(dlls, strings.ToLower(dll))
		}
	}

	for _, dll := range dlls {
		out, ok := env.exec(ctx, tbl, "tasklist", "/m", dll, "/fo", "csv", "/nh")
		if !ok {
			continue
		}
		procs, err := ParseTasklist(out)
		if err != nil {
			diag.LogException(env.Log, tbl, err, "Failed to parse tasklist output for %s", dll)
			continue
		}
		for _, p := range procs {
			row := tbl.NewRow()
			row.Set("ProcessName", p.Process)
			row.Set("PID", p.PID)
			row.Set("DriverName", dll)
		}
	}
}
