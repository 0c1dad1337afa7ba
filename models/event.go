package models

import "time"

// ServiceEvent is an immutable status snapshot in a service's event log
type ServiceEvent struct {
	ServiceID string        `json:"service_id"`
	Status    ServiceStatus `json:"status"`
	Message   string        `json:"message,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewServiceEvent creates an event stamped with the current UTC time
func NewServiceEvent(serviceID string, status ServiceStatus, message string) ServiceEvent {
	return ServiceEvent{
		ServiceID: serviceID,
		Status:    status,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}
