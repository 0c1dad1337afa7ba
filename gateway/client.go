package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/brouie/team-microservices-factory/models"
	"github.com/brouie/team-microservices-factory/registry"
)

// RegistryClient resolves service records from the factory API over HTTP,
// so the gateway always sees the registry's live state
type RegistryClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRegistryClient creates a client for the factory API at baseURL
func NewRegistryClient(baseURL string) *RegistryClient {
	return &RegistryClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Compile-time interface verification
var _ ServiceResolver = (*RegistryClient)(nil)

// Get fetches one service record by id. A 404 from the factory API maps to
// registry.ErrNotFound so callers keep a single not-found signal.
func (c *RegistryClient) Get(ctx context.Context, id string) (*models.ServiceRecord, error) {
	url := fmt.Sprintf("%s/services/%s", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach factory API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, registry.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("factory API returned status %d", resp.StatusCode)
	}

	var record models.ServiceRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode service record: %w", err)
	}
	return &record, nil
}
