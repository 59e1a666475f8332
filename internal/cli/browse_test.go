package cli

import (
	"testing"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe/probetest"
)

func withBrowseFlags(t *testing.T, fresh bool, lastN int) {
	t.Helper()
	oldFresh, oldLast := browseFresh, browseLastN
	browseFresh, browseLastN = fresh, lastN
	t.Cleanup(func() { browseFresh, browseLastN = oldFresh, oldLast })
}

func TestBrowseDataStored(t *testing.T) {
	c := testConfig(t)
	withTestConfig(t, c)
	withBrowseFlags(t, false, 10)
	storeRuns(t, c.StorageDir,
		[]models.Finding{keepAlive},
		[]models.Finding{keepAlive, tlsDisabled, aliasWarning},
		[]models.Finding{keepAlive, domainInfo},
	)

	snap, sparkline, err := browseData(browseCmd)
	if err != nil {
		t.Fatalf("browseData: %v", err)
	}
	if len(snap.Findings) != 2 {
		t.Errorf("latest snapshot has %d findings, want 2", len(snap.Findings))
	}
	want := []int{1, 3, 1}
	if len(sparkline) != len(want) {
		t.Fatalf("sparkline = %v, want %v", sparkline, want)
	}
	for n := range want {
		if sparkline[n] != want[n] {
			t.Errorf("sparkline = %v, want %v", sparkline, want)
			break
		}
	}
}

func TestBrowseDataNoRuns(t *testing.T) {
	withTestConfig(t, testConfig(t))
	withBrowseFlags(t, false, 10)
	_, _, err := browseData(browseCmd)
	if code := HandleError(err); code != ExitInvalidInput {
		t.Errorf("exit code = %d (%v)", code, err)
	}
}

func TestBrowseDataFresh(t *testing.T) {
	c := testConfig(t)
	withTestConfig(t, c)
	withBrowseFlags(t, true, 10)
	withFakeProbes(t, probetest.New())
	storeRuns(t, c.StorageDir, []models.Finding{tlsDisabled})

	browseCmd.SetContext(testContext(t))
	var (
		snap *models.Snapshot
		err  error
	)
	captureStderr(t, func() { snap, _, err = browseData(browseCmd) })
	if err != nil {
		t.Fatalf("browseData: %v", err)
	}
	if snap.Tool != models.ToolName || snap.Trend == nil {
		t.Errorf("fresh snapshot should carry a trend against the stored run: %+v", snap.Trend)
	}
}
