package aggregator

import (
	"sort"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
)

// findingGroup is every actionable finding sharing table, severity and text
type findingGroup struct {
	table    string
	severity string
	message  string
	rows     []int64
	order    int
}

// RecommendationGenerator creates prioritized actions from actionable findings
type RecommendationGenerator struct{}

// NewRecommendationGenerator creates a new recommendation generator
func NewRecommendationGenerator() *RecommendationGenerator {
	return &RecommendationGenerator{}
}

// GenerateRecommendations groups identical actionable findings and orders
// the groups by severity, then by first appearance
func (r *RecommendationGenerator) GenerateRecommendations(snap *models.Snapshot) []models.Recommendation {
	groups := make(map[string]*findingGroup)
	for _, f := range snap.Findings {
		if !f.Actionable() {
			continue
		}
		g, ok := groups[f.Key()]
		if !ok {
			g = &findingGroup{table: f.Table, severity: f.Severity, message: f.Message, order: len(groups)}
			groups[f.Key()] = g
		}
		if f.Row != 0 {
			g.rows = append(g.rows, f.Row)
		}
	}

	sorted := make([]*findingGroup, 0, len(groups))
	for _, g := range groups {
		sorted = append(sorted, g)
	}
	sort.Slice(sorted, func(i, j int) bool {
		ri, rj := models.SeverityRank(sorted[i].severity), models.SeverityRank(sorted[j].severity)
		if ri != rj {
			return ri > rj
		}
		return sorted[i].order < sorted[j].order
	})

	recs := make([]models.Recommendation, 0, len(sorted))
	for _, g := range sorted {
		count := len(g.rows)
		if count == 0 {
			count = 1
		}
		recs = append(recs, models.Recommendation{
			Severity: g.severity,
			Table:    g.table,
			Action:   g.message,
			Count:    count,
			Rows:     g.rows,
		})
	}
	return recs
}

// GroupBySeverity groups recommendations by severity
func (r *RecommendationGenerator) GroupBySeverity(recs []models.Recommendation) map[string][]models.Recommendation {
	grouped := make(map[string][]models.Recommendation)
	for _, rec := range recs {
		grouped[rec.Severity] = append(grouped[rec.Severity], rec)
	}
	return grouped
}
