package models

import "time"

// AccessGrant is the credential bundle for consuming a deployed service
// through the gateway
type AccessGrant struct {
	APIKey       string `json:"api_key"`
	APIBaseURL   string `json:"api_base_url"`
	TokenAddress string `json:"token_address"`
}

// EventSummary aggregates a service's event log
type EventSummary struct {
	ServiceID   string         `json:"service_id"`
	TotalEvents int            `json:"total_events"`
	Counts      map[string]int `json:"counts"`
	LastEvent   *ServiceEvent  `json:"last_event"`
}

// Stats aggregates all services in the registry
type Stats struct {
	TotalServices  int            `json:"total_services"`
	StatusCounts   map[string]int `json:"status_counts"`
	DeployedCount  int            `json:"deployed_count"`
	TokenizedCount int            `json:"tokenized_count"`
}

// StatusDetail is the detailed status view for a single service
type StatusDetail struct {
	ServiceID   string        `json:"service_id"`
	Status      ServiceStatus `json:"status"`
	IsDeployed  bool          `json:"is_deployed"`
	IsTokenized bool          `json:"is_tokenized"`
	EventCount  int           `json:"event_count"`
	LastUpdated time.Time     `json:"last_updated"`
}
