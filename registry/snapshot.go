package registry

import (
	"context"

	"github.com/brouie/team-microservices-factory/models"
)

// Snapshot is the full persisted state of the registry: every record, the
// per-service event logs, and the issued API keys, all keyed by service id.
type Snapshot struct {
	Services map[string]*models.ServiceRecord `json:"services"`
	Events   map[string][]models.ServiceEvent `json:"events"`
	APIKeys  map[string]string                `json:"api_keys"`
}

// NewSnapshot returns an empty snapshot with all maps allocated
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Services: make(map[string]*models.ServiceRecord),
		Events:   make(map[string][]models.ServiceEvent),
		APIKeys:  make(map[string]string),
	}
}

// SnapshotStore mirrors the registry state to durable storage. The registry
// writes the whole snapshot after every mutation and loads it once at
// startup; the in-memory state remains the source of truth, so Save errors
// are logged by the caller rather than failing the mutation.
type SnapshotStore interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}

// EventLookup resolves persisted events for a service id from an external
// source. Used as a fallback when the live log has no entries.
type EventLookup interface {
	LookupEvents(ctx context.Context, serviceID string) ([]models.ServiceEvent, error)
}
