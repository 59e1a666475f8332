package reporter

import (
	"encoding/json"
	"io"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
)

// JSONReporter writes snapshots as JSON
type JSONReporter struct {
	writer io.Writer
	pretty bool
}

// NewJSONReporter creates a new JSON reporter
func NewJSONReporter(writer io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{
		writer: writer,
		pretty: pretty,
	}
}

// Generate writes the complete snapshot
func (r *JSONReporter) Generate(snap *models.Snapshot) error {
	return r.write(snap)
}

// GenerateFindingsOnly writes the snapshot without table data
func (r *JSONReporter) GenerateFindingsOnly(snap *models.Snapshot) error {
	findings := struct {
		Timestamp       string                  `json:"timestamp"`
		Computer        string                  `json:"computer,omitempty"`
		Summary         models.Summary          `json:"summary"`
		Findings        []models.Finding        `json:"findings"`
		Recommendations []models.Recommendation `json:"recommendations,omitempty"`
		Trend           *models.Trend           `json:"trend,omitempty"`
	}{
		Timestamp:       snap.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		Computer:        snap.Computer,
		Summary:         snap.Summary,
		Findings:        snap.Findings,
		Recommendations: snap.Recommendations,
		Trend:           snap.Trend,
	}
	return r.write(findings)
}

func (r *JSONReporter) write(v any) error {
	var data []byte
	var err error

	if r.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	if _, err = r.writer.Write(data); err != nil {
		return err
	}

	// Add trailing newline for terminal output
	_, err = r.writer.Write([]byte("\n"))
	return err
}
