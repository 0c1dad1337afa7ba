package registry

import (
	"errors"
	"fmt"

	"github.com/brouie/team-microservices-factory/models"
)

// ErrNotFound is returned when a service id is unknown to the registry
var ErrNotFound = errors.New("service not found")

// ValidationError indicates a malformed input (bad idea length, unknown
// status value). It is never retried and maps to a 400 at the HTTP boundary.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// TransitionError indicates an illegal lifecycle transition
type TransitionError struct {
	From, To models.ServiceStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

// ConflictError indicates an attempt to overwrite a write-once field
// (token address or api base URL) with a different value
type ConflictError struct {
	Field    string
	Existing string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already set to %q", e.Field, e.Existing)
}

// PreconditionError indicates access was requested before a provisioning
// step completed. Missing names the step: "token" or "deploy".
type PreconditionError struct {
	Missing string
}

func (e *PreconditionError) Error() string {
	switch e.Missing {
	case "token":
		return "token not created for service"
	case "deploy":
		return "service not deployed yet"
	}
	return "precondition not met: " + e.Missing
}
