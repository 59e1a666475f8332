package storage

import (
	"time"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
)

// Storage defines the interface for persisting run snapshots
type Storage interface {
	// SaveSnapshot stores a complete snapshot
	SaveSnapshot(snap *models.Snapshot) error

	// LoadSnapshot loads the snapshot taken at timestamp
	LoadSnapshot(timestamp time.Time) (*models.Snapshot, error)

	// GetLatestRun retrieves the most recent snapshot
	GetLatestRun() (*models.Snapshot, error)

	// GetLastNRuns retrieves the last N snapshots, oldest first
	GetLastNRuns(n int) ([]*models.Snapshot, error)

	// ListRuns returns all available run timestamps
	ListRuns() ([]time.Time, error)
}
