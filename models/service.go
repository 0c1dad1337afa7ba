package models

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ServiceStatus is the lifecycle state of a provisioned service
type ServiceStatus string

const (
	StatusQueued    ServiceStatus = "queued"
	StatusDeploying ServiceStatus = "deploying"
	StatusDeployed  ServiceStatus = "deployed"
	StatusFailed    ServiceStatus = "failed"
)

// Valid reports whether s is a known status value
func (s ServiceStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusDeploying, StatusDeployed, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition. Self-transitions are always allowed so that message-only
// events (e.g. "Token created") can be appended without changing state.
// A failed deployment may be retried via failed -> deploying.
func (s ServiceStatus) CanTransition(next ServiceStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusQueued:
		return next == StatusDeploying
	case StatusDeploying:
		return next == StatusDeployed || next == StatusFailed
	case StatusFailed:
		return next == StatusDeploying
	}
	return false
}

// Idea length bounds for submissions
const (
	IdeaMinLength        = 3
	IdeaMaxLength        = 1000
	RequesterIDMaxLength = 200
)

// ServiceRecord represents one generated microservice's provisioning lifecycle
type ServiceRecord struct {
	ID           string         `json:"id"`
	Idea         string         `json:"idea"`
	RequesterID  string         `json:"requester_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Status       ServiceStatus  `json:"status"`
	TokenAddress string         `json:"token_address,omitempty"`
	APIBaseURL   string         `json:"api_base_url,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewServiceRecord creates a queued record with a fresh id and UTC timestamps
func NewServiceRecord(idea, requesterID string, metadata map[string]any) *ServiceRecord {
	now := time.Now().UTC()
	return &ServiceRecord{
		ID:          uuid.New().String(),
		Idea:        idea,
		RequesterID: requesterID,
		Metadata:    metadata,
		Status:      StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a copy of the record with its own metadata map, so callers
// can never mutate registry-owned state
func (r *ServiceRecord) Clone() *ServiceRecord {
	copied := *r
	if r.Metadata != nil {
		copied.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			copied.Metadata[k] = v
		}
	}
	return &copied
}

// IsDeployed reports whether the service has a reachable base URL
func (r *ServiceRecord) IsDeployed() bool {
	return r.APIBaseURL != ""
}

// IsTokenized reports whether a token address has been assigned
func (r *ServiceRecord) IsTokenized() bool {
	return r.TokenAddress != ""
}

// IdeaSubmission is the payload for creating a new service
type IdeaSubmission struct {
	Idea        string         `json:"idea"`
	RequesterID string         `json:"requester_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Validate checks the submission against the idea length bounds
func (s *IdeaSubmission) Validate() error {
	if n := utf8.RuneCountInString(s.Idea); n < IdeaMinLength || n > IdeaMaxLength {
		return fmt.Errorf("idea must be between %d and %d characters, got %d",
			IdeaMinLength, IdeaMaxLength, n)
	}
	if len(s.RequesterID) > RequesterIDMaxLength {
		return fmt.Errorf("requester_id must be at most %d characters, got %d",
			RequesterIDMaxLength, len(s.RequesterID))
	}
	return nil
}
