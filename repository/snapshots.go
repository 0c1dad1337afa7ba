package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brouie/team-microservices-factory/models"
	"github.com/brouie/team-microservices-factory/registry"
)

// Compile-time interface verification
var (
	_ registry.SnapshotStore = (*Store)(nil)
	_ registry.EventLookup   = (*Store)(nil)
)

// Save rewrites the full snapshot inside one transaction. Registry volume
// is small and mutations are serialized by the registry lock, so a
// wholesale rewrite keeps the store a faithful mirror of memory.
func (s *Store) Save(ctx context.Context, snap *registry.Snapshot) error {
	tx, txStore, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"service_events", "service_api_keys", "services"} {
		if _, err := txStore.db.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, record := range snap.Services {
		var metadata []byte
		if record.Metadata != nil {
			metadata, err = json.Marshal(record.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal metadata for %s: %w", record.ID, err)
			}
		}
		_, err = txStore.db.Exec(ctx, `
			INSERT INTO services (id, idea, requester_id, metadata, status,
			                      token_address, api_base_url, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, record.ID, record.Idea, record.RequesterID, metadata, record.Status,
			record.TokenAddress, record.APIBaseURL, record.CreatedAt, record.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert service %s: %w", record.ID, err)
		}
	}

	for serviceID, events := range snap.Events {
		for _, event := range events {
			_, err = txStore.db.Exec(ctx, `
				INSERT INTO service_events (service_id, status, message, created_at)
				VALUES ($1, $2, $3, $4)
			`, serviceID, event.Status, event.Message, event.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert event for %s: %w", serviceID, err)
			}
		}
	}

	for serviceID, key := range snap.APIKeys {
		_, err = txStore.db.Exec(ctx, `
			INSERT INTO service_api_keys (service_id, api_key) VALUES ($1, $2)
		`, serviceID, key)
		if err != nil {
			return fmt.Errorf("failed to insert api key for %s: %w", serviceID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load reads the full snapshot. An empty database yields an empty snapshot.
func (s *Store) Load(ctx context.Context) (*registry.Snapshot, error) {
	snap := registry.NewSnapshot()

	rows, err := s.db.Query(ctx, `
		SELECT id, idea, requester_id, metadata, status,
		       token_address, api_base_url, created_at, updated_at
		FROM services
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query services: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var record models.ServiceRecord
		var metadata []byte
		err := rows.Scan(
			&record.ID,
			&record.Idea,
			&record.RequesterID,
			&metadata,
			&record.Status,
			&record.TokenAddress,
			&record.APIBaseURL,
			&record.CreatedAt,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", record.ID, err)
			}
		}
		snap.Services[record.ID] = &record
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating services: %w", err)
	}

	eventRows, err := s.db.Query(ctx, `
		SELECT service_id, status, message, created_at
		FROM service_events
		ORDER BY service_id, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer eventRows.Close()

	for eventRows.Next() {
		var event models.ServiceEvent
		err := eventRows.Scan(&event.ServiceID, &event.Status, &event.Message, &event.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		snap.Events[event.ServiceID] = append(snap.Events[event.ServiceID], event)
	}
	if err := eventRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	keyRows, err := s.db.Query(ctx, `SELECT service_id, api_key FROM service_api_keys`)
	if err != nil {
		return nil, fmt.Errorf("failed to query api keys: %w", err)
	}
	defer keyRows.Close()

	for keyRows.Next() {
		var serviceID, key string
		if err := keyRows.Scan(&serviceID, &key); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		snap.APIKeys[serviceID] = key
	}
	if err := keyRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating api keys: %w", err)
	}

	return snap, nil
}

// LookupEvents returns the persisted events for a service id, in append
// order. Satisfies registry.EventLookup for the summary fallback path.
func (s *Store) LookupEvents(ctx context.Context, serviceID string) ([]models.ServiceEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT service_id, status, message, created_at
		FROM service_events
		WHERE service_id = $1
		ORDER BY id
	`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for %s: %w", serviceID, err)
	}
	defer rows.Close()

	var events []models.ServiceEvent
	for rows.Next() {
		var event models.ServiceEvent
		if err := rows.Scan(&event.ServiceID, &event.Status, &event.Message, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}
