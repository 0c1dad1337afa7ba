package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brouie/team-microservices-factory/models"
)

// FileStore persists the registry snapshot as a single JSON blob on disk.
// Writes go through a temp file and rename, so a crash mid-write never
// leaves a truncated blob behind.
type FileStore struct {
	path string
}

// NewFileStore creates a store writing to the given path. Parent
// directories are created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save writes the full snapshot atomically
func (s *FileStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot from disk. A missing file yields (nil, nil).
func (s *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	snap := NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return snap, nil
}

// LookupEvents reads the persisted event log for a service id from the
// snapshot blob. Satisfies EventLookup so the store can serve as the
// summary fallback source.
func (s *FileStore) LookupEvents(ctx context.Context, serviceID string) ([]models.ServiceEvent, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}
	return snap.Events[serviceID], nil
}

// EventsFile reads a standalone events blob (service id -> ordered event
// list), the layout produced by older exports
type EventsFile struct {
	path string
}

// NewEventsFile creates a lookup over the given events blob path
func NewEventsFile(path string) *EventsFile {
	return &EventsFile{path: path}
}

// LookupEvents returns the persisted events for a service id. A missing
// file or unknown id yields an empty result.
func (f *EventsFile) LookupEvents(ctx context.Context, serviceID string) ([]models.ServiceEvent, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}

	var payload map[string][]models.ServiceEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse events file: %w", err)
	}
	return payload[serviceID], nil
}
