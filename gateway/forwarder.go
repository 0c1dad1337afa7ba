package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/brouie/team-microservices-factory/models"
	"github.com/brouie/team-microservices-factory/observability"
)

// ServiceResolver looks up a service record by id. Satisfied by
// registry.Registry; stubbed in tests.
type ServiceResolver interface {
	Get(ctx context.Context, id string) (*models.ServiceRecord, error)
}

// hopByHopHeaders are stripped in both directions so connection-scoped
// headers never cross the proxy boundary
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder is the token-gated reverse proxy core: it gates the request,
// resolves the service's deployed base URL, and makes exactly one upstream
// attempt per inbound request through a per-service circuit breaker.
type Forwarder struct {
	gate     AccessGate
	resolver ServiceResolver
	client   *http.Client
	breakers *breakerRegistry
}

// ForwarderOption configures a Forwarder
type ForwarderOption func(*Forwarder)

// WithHTTPClient overrides the upstream client (useful for tests)
func WithHTTPClient(client *http.Client) ForwarderOption {
	return func(f *Forwarder) { f.client = client }
}

// WithBreakerConfig overrides the circuit breaker tuning
func WithBreakerConfig(config BreakerConfig) ForwarderOption {
	return func(f *Forwarder) { f.breakers = newBreakerRegistry(config) }
}

// NewForwarder creates a Forwarder with the given upstream timeout
func NewForwarder(gate AccessGate, resolver ServiceResolver, upstreamTimeout time.Duration, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		gate:     gate,
		resolver: resolver,
		client:   &http.Client{Timeout: upstreamTimeout},
		breakers: newBreakerRegistry(DefaultBreakerConfig),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forward proxies the inbound request to the service's deployed endpoint
// and writes the upstream response verbatim to w. The access gate runs
// first: an unauthorized request performs no resolver or network work.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, serviceID, subPath string) error {
	start := time.Now()

	if !f.gate.Authorize(r.Header.Get(HeaderDevBypass), r.Header.Get(HeaderTokenBalance)) {
		observability.GetMetrics().RecordProxyRequest(serviceID, "denied", time.Since(start))
		return ErrAccessDenied
	}

	record, err := f.resolver.Get(r.Context(), serviceID)
	if err != nil {
		observability.GetMetrics().RecordProxyRequest(serviceID, "not_found", time.Since(start))
		return err
	}
	if !record.IsDeployed() {
		observability.GetMetrics().RecordProxyRequest(serviceID, "not_deployed", time.Since(start))
		return ErrNotDeployed
	}

	targetURL := strings.TrimRight(record.APIBaseURL, "/") + "/" + subPath
	if r.URL.RawQuery != "" {
		targetURL += "?" + r.URL.RawQuery
	}

	outbound, err := http.NewRequestWithContext(r.Context(), r.Method, targetURL, r.Body)
	if err != nil {
		return fmt.Errorf("failed to build upstream request: %w", err)
	}
	// r.Host stays out of the copy; net/http derives the upstream Host
	// from the target URL
	outbound.Header = copyHeaders(r.Header)

	resp, err := f.breakers.get(serviceID).Execute(func() (*http.Response, error) {
		return f.client.Do(outbound)
	})
	if err != nil {
		observability.GetMetrics().RecordProxyRequest(serviceID, "upstream_error", time.Since(start))
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			observability.Warn("circuit breaker rejecting upstream call", "service_id", serviceID)
			return fmt.Errorf("%w: circuit breaker open for %s", ErrUpstreamUnavailable, serviceID)
		}
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	header := w.Header()
	for key, values := range copyHeaders(resp.Header) {
		header[key] = values
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		// Status and headers are already on the wire, only log
		observability.Warn("failed to stream upstream body", "service_id", serviceID, "error", err)
	}

	observability.GetMetrics().RecordProxyRequest(serviceID, "forwarded", time.Since(start))
	return nil
}

// copyHeaders clones h minus the hop-by-hop set, including any headers
// named by the Connection header itself
func copyHeaders(h http.Header) http.Header {
	copied := h.Clone()
	for _, name := range strings.Split(h.Get("Connection"), ",") {
		if name = textproto.TrimString(name); name != "" {
			copied.Del(name)
		}
	}
	for _, name := range hopByHopHeaders {
		copied.Del(name)
	}
	return copied
}
