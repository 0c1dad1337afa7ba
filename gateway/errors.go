package gateway

import "errors"

var (
	// ErrAccessDenied means the access gate rejected the request
	ErrAccessDenied = errors.New("token access required")

	// ErrNotDeployed means the service exists but has no base URL yet
	ErrNotDeployed = errors.New("service not deployed")

	// ErrUpstreamUnavailable means the service is deployed but the upstream
	// could not be reached within the forwarding timeout
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
