package registry

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/brouie/team-microservices-factory/models"
	"github.com/brouie/team-microservices-factory/observability"
)

// apiKeyBytes is the entropy of a generated API key before encoding
const apiKeyBytes = 32

// Registry owns all service records, their event logs, and their API keys.
// All mutations run under a single mutex; request volume is low and
// operations are short, so global mutual exclusion keeps the
// check-then-create paths (API keys, write-once fields) race-free.
type Registry struct {
	mu       sync.Mutex
	services map[string]*models.ServiceRecord
	order    []string // insertion order for List
	events   map[string][]models.ServiceEvent
	apiKeys  map[string]string

	store  SnapshotStore // optional mirror, may be nil
	lookup EventLookup   // optional persisted-events fallback, may be nil
}

// Option configures a Registry
type Option func(*Registry)

// WithSnapshotStore mirrors every mutation to the given store
func WithSnapshotStore(store SnapshotStore) Option {
	return func(r *Registry) { r.store = store }
}

// WithEventLookup sets the fallback source for EventSummary when the live
// log is empty
func WithEventLookup(lookup EventLookup) Option {
	return func(r *Registry) { r.lookup = lookup }
}

// New creates an empty registry
func New(opts ...Option) *Registry {
	r := &Registry{
		services: make(map[string]*models.ServiceRecord),
		events:   make(map[string][]models.ServiceEvent),
		apiKeys:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Restore loads the snapshot from the configured store into the registry.
// Call once at startup, before serving requests. A missing snapshot is not
// an error; the registry simply starts empty.
func (r *Registry) Restore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	snap, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if snap == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, record := range snap.Services {
		r.services[id] = record
		r.order = append(r.order, id)
	}
	for id, events := range snap.Events {
		r.events[id] = events
	}
	for id, key := range snap.APIKeys {
		r.apiKeys[id] = key
	}
	observability.Info("registry restored from snapshot", "services", len(snap.Services))
	return nil
}

// Create validates the submission and registers a new queued service with
// an initial queued event
func (r *Registry) Create(ctx context.Context, sub models.IdeaSubmission) (*models.ServiceRecord, error) {
	if err := sub.Validate(); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	record := models.NewServiceRecord(sub.Idea, sub.RequesterID, sub.Metadata)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[record.ID] = record
	r.order = append(r.order, record.ID)
	r.events[record.ID] = []models.ServiceEvent{
		models.NewServiceEvent(record.ID, models.StatusQueued, ""),
	}
	r.mirror(ctx)

	observability.GetMetrics().RecordRegistryOp("create")
	return record.Clone(), nil
}

// Get returns the record for the given id
func (r *Registry) Get(ctx context.Context, id string) (*models.ServiceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.services[id]
	if !ok {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}

// List returns all records in insertion order
func (r *Registry) List(ctx context.Context) []*models.ServiceRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := make([]*models.ServiceRecord, 0, len(r.order))
	for _, id := range r.order {
		records = append(records, r.services[id].Clone())
	}
	return records
}

// UpdateStatus moves the service to a new status and appends an event
// carrying the status and message. Illegal transitions are rejected.
func (r *Registry) UpdateStatus(ctx context.Context, id string, status models.ServiceStatus, message string) (*models.ServiceRecord, error) {
	if !status.Valid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown status %q", status)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.services[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !record.Status.CanTransition(status) {
		return nil, &TransitionError{From: record.Status, To: status}
	}

	record.Status = status
	record.UpdatedAt = time.Now().UTC()
	r.events[id] = append(r.events[id], models.NewServiceEvent(id, status, message))
	r.mirror(ctx)

	observability.GetMetrics().RecordStatusTransition(string(status))
	return record.Clone(), nil
}

// SetAPIBaseURL sets the deployed base URL. The field is write-once:
// re-setting the same value only bumps the updated timestamp, a different
// value is a conflict.
func (r *Registry) SetAPIBaseURL(ctx context.Context, id, url string) (*models.ServiceRecord, error) {
	return r.setOnce(ctx, id, "api_base_url", url)
}

// SetTokenAddress sets the token address, with the same write-once contract
// as SetAPIBaseURL
func (r *Registry) SetTokenAddress(ctx context.Context, id, address string) (*models.ServiceRecord, error) {
	return r.setOnce(ctx, id, "token_address", address)
}

func (r *Registry) setOnce(ctx context.Context, id, field, value string) (*models.ServiceRecord, error) {
	if value == "" {
		return nil, &ValidationError{Reason: field + " must not be empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.services[id]
	if !ok {
		return nil, ErrNotFound
	}

	var target *string
	switch field {
	case "api_base_url":
		target = &record.APIBaseURL
	case "token_address":
		target = &record.TokenAddress
	}
	if *target != "" && *target != value {
		return nil, &ConflictError{Field: field, Existing: *target}
	}

	*target = value
	record.UpdatedAt = time.Now().UTC()
	r.mirror(ctx)
	return record.Clone(), nil
}

// EnsureAPIKey returns the service's API key, generating and storing one on
// first use. Repeat calls always return the same key; the check-then-create
// sequence runs inside the registry lock.
func (r *Registry) EnsureAPIKey(ctx context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.services[id]; !ok {
		return "", ErrNotFound
	}
	if key, ok := r.apiKeys[id]; ok {
		return key, nil
	}

	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	key := base64.RawURLEncoding.EncodeToString(buf)
	r.apiKeys[id] = key
	r.mirror(ctx)

	observability.Info("api key issued", "service_id", id)
	return key, nil
}

// ListEvents returns the event log for the given id in append order.
// Unknown ids yield an empty slice, not an error.
func (r *Registry) ListEvents(ctx context.Context, id string) []models.ServiceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]models.ServiceEvent, len(r.events[id]))
	copy(events, r.events[id])
	return events
}

// EventSummary aggregates the service's event log. When the live log is
// empty and an EventLookup is configured, persisted events are consulted.
func (r *Registry) EventSummary(ctx context.Context, id string) (*models.EventSummary, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}

	events := r.ListEvents(ctx, id)
	if len(events) == 0 && r.lookup != nil {
		persisted, err := r.lookup.LookupEvents(ctx, id)
		if err != nil {
			observability.Warn("persisted event lookup failed", "service_id", id, "error", err)
		} else {
			events = persisted
		}
	}

	summary := &models.EventSummary{
		ServiceID:   id,
		TotalEvents: len(events),
		Counts:      make(map[string]int),
	}
	for _, event := range events {
		summary.Counts[string(event.Status)]++
	}
	if len(events) > 0 {
		last := events[len(events)-1]
		summary.LastEvent = &last
	}
	return summary, nil
}

// Stats aggregates all services in the registry
func (r *Registry) Stats(ctx context.Context) *models.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &models.Stats{
		TotalServices: len(r.services),
		StatusCounts:  make(map[string]int),
	}
	for _, record := range r.services {
		stats.StatusCounts[string(record.Status)]++
		if record.IsDeployed() {
			stats.DeployedCount++
		}
		if record.IsTokenized() {
			stats.TokenizedCount++
		}
	}
	return stats
}

// StatusDetail returns the detailed status view for a single service
func (r *Registry) StatusDetail(ctx context.Context, id string) (*models.StatusDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.services[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &models.StatusDetail{
		ServiceID:   id,
		Status:      record.Status,
		IsDeployed:  record.IsDeployed(),
		IsTokenized: record.IsTokenized(),
		EventCount:  len(r.events[id]),
		LastUpdated: record.UpdatedAt,
	}, nil
}

// mirror writes the full snapshot to the configured store. Callers must
// hold r.mu so the snapshot observes a consistent state and Save calls are
// serialized in event order. Failures are logged, never propagated: the
// in-memory registry is the source of truth.
func (r *Registry) mirror(ctx context.Context) {
	if r.store == nil {
		return
	}

	snap := NewSnapshot()
	for id, record := range r.services {
		snap.Services[id] = record.Clone()
	}
	for id, events := range r.events {
		copied := make([]models.ServiceEvent, len(events))
		copy(copied, events)
		snap.Events[id] = copied
	}
	for id, key := range r.apiKeys {
		snap.APIKeys[id] = key
	}

	if err := r.store.Save(ctx, snap); err != nil {
		observability.Error("snapshot save failed", "error", err)
	}
}
