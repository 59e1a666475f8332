package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
	"github.com/spf13/afero"
)

const (
	runsDir        = "runs"
	snapshotSuffix = "-snapshot.json"
	fileTimeLayout = "2006-01-02T15-04-05"
)

// ErrNoRuns is returned when the store holds no snapshot
var ErrNoRuns = errors.New("no runs found")

// LocalStorage implements Storage on a filesystem as runs/<timestamp>-snapshot.json
type LocalStorage struct {
	fs      afero.Fs
	baseDir string
}

// NewLocal creates a store below baseDir on the OS filesystem
func NewLocal(baseDir string) *LocalStorage {
	return NewLocalFs(afero.NewOsFs(), baseDir)
}

// NewLocalFs creates a store below baseDir on fs
func NewLocalFs(fs afero.Fs, baseDir string) *LocalStorage {
	return &LocalStorage{
		fs:      fs,
		baseDir: baseDir,
	}
}

// SaveSnapshot stores a snapshot to disk
func (s *LocalStorage) SaveSnapshot(snap *models.Snapshot) error {
	if err := s.EnsureDirectoryExists(); err != nil {
		return fmt.Errorf("failed to create runs directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := afero.WriteFile(s.fs, s.path(snap.Timestamp), data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// LoadSnapshot loads the snapshot taken at timestamp
func (s *LocalStorage) LoadSnapshot(timestamp time.Time) (*models.Snapshot, error) {
	return s.loadFromFile(s.path(timestamp))
}

// GetLatestRun retrieves the most recent snapshot
func (s *LocalStorage) GetLatestRun() (*models.Snapshot, error) {
	timestamps, err := s.ListRuns()
	if err != nil {
		return nil, err
	}
	if len(timestamps) == 0 {
		return nil, ErrNoRuns
	}
	return s.LoadSnapshot(timestamps[len(timestamps)-1])
}

// GetLastNRuns retrieves the last N snapshots, oldest first. Files that fail
// to load are skipped.
func (s *LocalStorage) GetLastNRuns(n int) ([]*models.Snapshot, error) {
	timestamps, err := s.ListRuns()
	if err != nil {
		return nil, err
	}
	if len(timestamps) == 0 {
		return nil, ErrNoRuns
	}

	start := len(timestamps) - n
	if start < 0 {
		start = 0
	}

	snaps := make([]*models.Snapshot, 0, len(timestamps)-start)
	for _, timestamp := range timestamps[start:] {
		snap, err := s.LoadSnapshot(timestamp)
		if err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// ListRuns returns all available run timestamps sorted chronologically
func (s *LocalStorage) ListRuns() ([]time.Time, error) {
	entries, err := afero.ReadDir(s.fs, filepath.Join(s.baseDir, runsDir))
	if errors.Is(err, fs.ErrNotExist) {
		return []time.Time{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var timestamps []time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotSuffix) {
			continue
		}
		timestamp, err := time.Parse(fileTimeLayout, strings.TrimSuffix(entry.Name(), snapshotSuffix))
		if err != nil {
			continue
		}
		timestamps = append(timestamps, timestamp)
	}

	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i].Before(timestamps[j])
	})
	return timestamps, nil
}

func (s *LocalStorage) loadFromFile(path string) (*models.Snapshot, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("snapshot not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (s *LocalStorage) path(t time.Time) string {
	return filepath.Join(s.baseDir, runsDir, t.UTC().Format(fileTimeLayout)+snapshotSuffix)
}

// GetStoragePath returns the storage directory
func (s *LocalStorage) GetStoragePath() string {
	return s.baseDir
}

// EnsureDirectoryExists creates the runs directory if it doesn't exist
func (s *LocalStorage) EnsureDirectoryExists() error {
	return s.fs.MkdirAll(filepath.Join(s.baseDir, runsDir), 0o755)
}

// LoadFile reads a snapshot written by --format json or --store
func LoadFile(afs afero.Fs, path string) (*models.Snapshot, error) {
	return (&LocalStorage{fs: afs}).loadFromFile(path)
}
