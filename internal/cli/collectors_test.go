package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestListCollectors(t *testing.T) {
	infos, err := listCollectors([]string{"processdrivers"})
	if err != nil {
		t.Fatalf("listCollectors: %v", err)
	}

	pos := make(map[string]collectorInfo, len(infos))
	for n, info := range infos {
		if info.Position != n+1 {
			t.Errorf("%s position = %d, want %d", info.Name, info.Position, n+1)
		}
		pos[info.Name] = info
	}
	if infos[0].Name != "Computer" {
		t.Errorf("first collector = %s, want Computer", infos[0].Name)
	}
	for _, dep := range []string{"Service", "Domain"} {
		if pos[dep].Position >= pos["SPNAccount"].Position {
			t.Errorf("%s should run before SPNAccount", dep)
		}
	}
	if got := pos["HostAlias"].Disabled; got != "inconsistent results" {
		t.Errorf("HostAlias disabled = %q", got)
	}
	if got := pos["ProcessDrivers"].Disabled; got != "disabled by configuration" {
		t.Errorf("ProcessDrivers disabled = %q", got)
	}
	if pos["TLS"].Disabled != "" {
		t.Errorf("TLS should be enabled")
	}
}

func TestListCollectorsUnknown(t *testing.T) {
	_, err := listCollectors([]string{"Firewall"})
	if code := HandleError(err); code != ExitInvalidInput {
		t.Errorf("exit code = %d (%v)", code, err)
	}
}

func TestWriteCollectorsText(t *testing.T) {
	infos := []collectorInfo{
		{Position: 1, Name: "Computer"},
		{Position: 2, Name: "SPNAccount", DependsOn: []string{"Service", "Domain"}},
		{Position: 3, Name: "HostAlias", Disabled: "inconsistent results"},
	}
	var buf bytes.Buffer
	if err := writeCollectorsText(&buf, infos); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{
		"1. Computer",
		"2. SPNAccount  after Service, Domain",
		"3. HostAlias   [disabled: inconsistent results]",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	for n := range want {
		if strings.TrimSpace(lines[n]) != want[n] {
			t.Errorf("line %d = %q, want %q", n, lines[n], want[n])
		}
	}
}
