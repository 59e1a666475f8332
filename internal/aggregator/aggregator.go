package aggregator

import (
	"time"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/collector"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
)

// Aggregator turns a filled dataset into a Snapshot
type Aggregator struct {
	normalizer *Normalizer
	version    string
	now        func() time.Time
}

// New creates a new aggregator; version is recorded in every snapshot
func New(version string) *Aggregator {
	return &Aggregator{
		normalizer: NewNormalizer(),
		version:    version,
		now:        time.Now,
	}
}

// Aggregate builds the snapshot of ds and the collector outcomes in results.
// The dataset is only read.
func (a *Aggregator) Aggregate(ds *dataset.Dataset, results []collector.RunResult) *models.Snapshot {
	snap := &models.Snapshot{
		SchemaVersion: dataset.SchemaVersion,
		Tool:          models.ToolName,
		Version:       a.version,
		Timestamp:     a.now().UTC(),
		Tables:        a.normalizer.Tables(ds),
		Findings:      a.normalizer.Findings(ds),
	}
	if comp := ds.Table(dataset.TableComputer).First(); comp != nil {
		snap.Computer = comp.GetString("FQDN")
		if snap.Computer == "" {
			snap.Computer = comp.GetString("NETBIOSName")
		}
	}
	for _, res := range results {
		snap.Collectors = append(snap.Collectors, models.CollectorRun{
			Name:       res.Collector,
			DurationMS: res.Duration.Milliseconds(),
			Skipped:    res.Skipped,
			Error:      res.Error,
		})
	}

	a.calculateSummary(snap)
	snap.Recommendations = NewRecommendationGenerator().GenerateRecommendations(snap)
	return snap
}

// calculateSummary computes summary statistics from the findings and tables
func (a *Aggregator) calculateSummary(snap *models.Snapshot) {
	s := models.Summary{
		BySeverity: make(map[string]int),
		ByTable:    make(map[string]int),
	}
	for _, f := range snap.Findings {
		s.TotalFindings++
		s.BySeverity[f.Severity]++
		if f.Actionable() {
			s.ActionableFindings++
			s.ByTable[f.Table]++
		}
	}
	for _, t := range snap.Tables {
		if len(t.Rows) > 0 {
			s.Tables++
			s.Rows += len(t.Rows)
		}
	}
	for _, c := range snap.Collectors {
		switch {
		case c.Skipped != "":
			s.CollectorsSkipped++
		case c.Error != "":
			s.CollectorsFailed++
			s.CollectorsRun++
		default:
			s.CollectorsRun++
		}
	}

	s.Health = models.CalculateHealth(
		s.BySeverity[models.SeverityCritical],
		s.BySeverity[models.SeverityWarning],
		s.BySeverity[models.SeverityException],
	)
	if s.Rows == 0 {
		s.Health = models.HealthUnknown
	}
	snap.Summary = s
}
