package aggregator

import (
	"sort"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
)

// AddTrend compares current with the previous stored run
func AddTrend(current, previous *models.Snapshot) {
	if previous == nil {
		return
	}
	diff := ComputeDiff(previous, current)
	trend := &models.Trend{
		PreviousFindings: previous.Summary.ActionableFindings,
		CurrentFindings:  current.Summary.ActionableFindings,
		ComparedWith:     previous.Timestamp,
		NewFindings:      len(diff.NewFindings),
		ResolvedFindings: len(diff.ResolvedFindings),
	}

	switch change := trend.CurrentFindings - trend.PreviousFindings; {
	case change < 0:
		trend.Direction = "improving"
	case change > 0:
		trend.Direction = "degrading"
	default:
		trend.Direction = "stable"
	}
	current.Trend = trend
}

// ComputeDiff returns the actionable findings that appeared in current or
// disappeared since baseline. Findings match on Finding.Key.
func ComputeDiff(baseline, current *models.Snapshot) *models.Diff {
	base := actionableSet(baseline)
	curr := actionableSet(current)

	d := &models.Diff{
		Baseline:      baseline.Timestamp,
		Current:       current.Timestamp,
		NewBySeverity: make(map[string]int),
		Delta:         len(curr) - len(base),
	}
	for key, f := range curr {
		if _, found := base[key]; !found {
			d.NewFindings = append(d.NewFindings, f)
			d.NewBySeverity[f.Severity]++
		}
	}
	for key, f := range base {
		if _, found := curr[key]; !found {
			d.ResolvedFindings = append(d.ResolvedFindings, f)
		}
	}
	sortFindings(d.NewFindings)
	sortFindings(d.ResolvedFindings)
	return d
}

func actionableSet(snap *models.Snapshot) map[string]models.Finding {
	set := make(map[string]models.Finding)
	for _, f := range snap.Findings {
		if !f.Actionable() {
			continue
		}
		if _, dup := set[f.Key()]; !dup {
			set[f.Key()] = f
		}
	}
	return set
}

func sortFindings(fs []models.Finding) {
	sort.Slice(fs, func(i, j int) bool {
		ri, rj := models.SeverityRank(fs[i].Severity), models.SeverityRank(fs[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if fs[i].Table != fs[j].Table {
			return fs[i].Table < fs[j].Table
		}
		return fs[i].Message < fs[j].Message
	})
}

// GetTrendIndicator returns an arrow for the trend direction
func GetTrendIndicator(direction string) string {
	switch direction {
	case "improving":
		return "↓"
	case "degrading":
		return "↑"
	default:
		return "→"
	}
}
