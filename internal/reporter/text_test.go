package reporter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
)

func sampleDataset() *dataset.Dataset {
	ds := dataset.New()
	log := diag.NewLog(ds)

	comp := ds.Table(dataset.TableComputer).NewRow()
	comp.Set("NETBIOSName", "SQL01")
	comp.Set("WindowsBuild", 20348)
	comp.Set("JoinedToDomain", true)
	diag.LogInfo(log, comp, "joined to contoso.com")
	diag.LogVerbose(log, comp, "fltmc is not available")

	disks := ds.Table(dataset.TableDiskDrive)
	c := disks.NewChildRow(comp)
	c.Set("Drive", "C:")
	c.Set("FileSystem", "NTFS")
	c.Set("TotalBytes", 1000)
	c.Set("FreeBytes", 500)
	c.Set("PercentFree", 50)
	d := disks.NewChildRow(comp)
	d.Set("Drive", "D:")
	d.Set("FileSystem", "ReFS")
	d.Set("TotalBytes", 20)
	d.Set("FreeBytes", 1)
	d.Set("PercentFree", 5)
	diag.LogWarning(log, d, "D: has 5%% free")

	diag.LogWarning(log, ds.Table(dataset.TableSQLAlias), "alias defined in one view only")
	diag.LogVerbose(log, ds.Table(dataset.TableODBC), "no DSNs")
	return ds
}

func render(t *testing.T, ds *dataset.Dataset, opts TextOptions) string {
	t.Helper()
	var buf bytes.Buffer
	if err := NewTextRenderer(&buf, opts).Render(ds); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestTextRendererGrid(t *testing.T) {
	out := render(t, sampleDataset(), TextOptions{})

	want := strings.Join([]string{
		"DiskDrive",
		"=========",
		"Drive FileSystem TotalBytes FreeBytes PercentFree",
		"----- ---------- ---------- --------- -----------",
		"C:   " + " " + "NTFS      " + " " + "      1000" + " " + "      500" + " " + "         50",
		"D:   " + " " + "ReFS      " + " " + "        20" + " " + "        1" + " " + "          5",
		"    Warning: D: has 5% free",
		"",
	}, "\n")
	if !strings.Contains(out, want) {
		t.Errorf("grid not found in output:\n%s\nwant:\n%s", out, want)
	}
}

func TestColumnWidths(t *testing.T) {
	ds := sampleDataset()
	disks := ds.Table(dataset.TableDiskDrive)
	cols := disks.Columns()[2:]
	got := ColumnWidths(disks, cols)
	want := []int{5, 10, 10, 9, 11}
	for n := range want {
		if got[n] != want[n] {
			t.Errorf("%s width = %d, want %d", cols[n].Name, got[n], want[n])
		}
	}
}

func TestTextRendererVertical(t *testing.T) {
	out := render(t, sampleDataset(), TextOptions{})

	lines := strings.Split(out, "\n")
	if lines[0] != "Computer" || lines[1] != "========" {
		t.Fatalf("output does not start with the Computer table:\n%s", out)
	}
	var labelCol int
	for _, l := range lines {
		if strings.HasPrefix(l, "NETBIOSName ") {
			if !strings.HasSuffix(l, " : SQL01") {
				t.Errorf("NETBIOSName line = %q", l)
			}
			labelCol = strings.Index(l, " : ")
		}
	}
	for _, l := range lines {
		if strings.HasPrefix(l, "WindowsBuild ") && strings.Index(l, " : ") != labelCol {
			t.Errorf("labels not aligned: %q", l)
		}
		if strings.HasPrefix(l, "JoinedToDomain ") && !strings.HasSuffix(l, " : True") {
			t.Errorf("JoinedToDomain line = %q", l)
		}
	}
	if !strings.Contains(out, "Info: joined to contoso.com") {
		t.Error("row message missing")
	}
}

func TestTextRendererOrderAndEmptyTables(t *testing.T) {
	out := render(t, sampleDataset(), TextOptions{})

	computer := strings.Index(out, "Computer\n")
	disk := strings.Index(out, "DiskDrive\n")
	alias := strings.Index(out, "SQLAlias\n")
	if !(computer >= 0 && computer < disk && disk < alias) {
		t.Errorf("tables out of order: Computer=%d DiskDrive=%d SQLAlias=%d", computer, disk, alias)
	}
	if !strings.Contains(out, "SQLAlias\n========\nWarning: alias defined in one view only\n") {
		t.Errorf("empty table with a table message not printed:\n%s", out)
	}
	for _, absent := range []string{"Domain\n", "TLS\n", "ODBC\n"} {
		if strings.Contains(out, absent) {
			t.Errorf("empty table %q printed", absent)
		}
	}
}

func TestTextRendererOptions(t *testing.T) {
	ds := sampleDataset()

	plain := render(t, ds, TextOptions{})
	if strings.Contains(plain, "fltmc is not available") {
		t.Error("verbose message shown by default")
	}
	if strings.Contains(plain, "ParentID") {
		t.Error("ID columns shown by default")
	}
	if strings.Contains(plain, "\x1b[") {
		t.Error("colour codes without Color")
	}

	full := render(t, ds, TextOptions{ShowVerbose: true, ShowIDs: true})
	if !strings.Contains(full, "Verbose: fltmc is not available") {
		t.Error("verbose message hidden with ShowVerbose")
	}
	if !strings.Contains(full, "ODBC\n====\nVerbose: no DSNs") {
		t.Error("table with only a verbose message hidden with ShowVerbose")
	}
	if !strings.Contains(full, "ID ParentID Drive") {
		t.Error("ID columns hidden with ShowIDs")
	}

	colored := render(t, ds, TextOptions{Color: true})
	if !strings.Contains(colored, "\x1b[") {
		t.Error("no colour codes with Color")
	}
}

func TestTextRendererHeader(t *testing.T) {
	out := render(t, dataset.New(), TextOptions{
		Title:     "SQLCheck",
		Timestamp: time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC),
	})
	if out != "SQLCheck\nCollected: 2026-02-15 10:00:00\n\n" {
		t.Errorf("header = %q", out)
	}
}

func TestTextRendererException(t *testing.T) {
	ds := dataset.New()
	log := diag.NewLog(ds)
	comp := ds.Table(dataset.TableComputer).NewRow()
	diag.LogException(log, comp, errTest("access denied"), "reading the registry")

	out := render(t, ds, TextOptions{})
	if !strings.Contains(out, "Exception: reading the registry") {
		t.Errorf("exception line missing:\n%s", out)
	}
	if !strings.Contains(out, "reporter.errTest: access denied") {
		t.Errorf("exception detail missing:\n%s", out)
	}
}

func TestTextRendererDoesNotMutate(t *testing.T) {
	ds := sampleDataset()
	msgs := ds.Table(dataset.TableMessage).Len()
	rows := ds.Table(dataset.TableDiskDrive).Len()

	render(t, ds, TextOptions{ShowIDs: true, ShowVerbose: true})

	if ds.Table(dataset.TableMessage).Len() != msgs || ds.Table(dataset.TableDiskDrive).Len() != rows {
		t.Error("rendering changed the dataset")
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
