package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/brouie/team-microservices-factory/observability"
)

// BreakerConfig holds circuit breaker tuning for upstream calls
type BreakerConfig struct {
	MaxRequests uint32        // max requests allowed in half-open state
	Interval    time.Duration // cyclic period of the closed state to clear counts
	Timeout     time.Duration // period of the open state before transitioning to half-open
}

// DefaultBreakerConfig returns the defaults used by the gateway
var DefaultBreakerConfig = BreakerConfig{
	MaxRequests: 5,
	Interval:    1 * time.Minute,
	Timeout:     30 * time.Second,
}

// breakerRegistry manages one circuit breaker per upstream service id, so a
// flapping upstream only trips its own service's traffic
type breakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[*http.Response]
	config   BreakerConfig
}

func newBreakerRegistry(config BreakerConfig) *breakerRegistry {
	return &breakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[*http.Response]),
		config:   config,
	}
}

func (r *breakerRegistry) get(serviceID string) *gobreaker.CircuitBreaker[*http.Response] {
	r.mu.RLock()
	cb, exists := r.breakers[serviceID]
	r.mu.RUnlock()

	if exists {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if cb, exists = r.breakers[serviceID]; exists {
		return cb
	}

	settings := gobreaker.Settings{
		Name:        serviceID,
		MaxRequests: r.config.MaxRequests,
		Interval:    r.config.Interval,
		Timeout:     r.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip if failure ratio exceeds 50% with at least 5 requests
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			observability.Warn("upstream circuit breaker state change",
				"service_id", name,
				"from", from.String(),
				"to", to.String())
			observability.GetMetrics().SetCircuitBreakerState(name, stateToInt(to))
			if to == gobreaker.StateOpen {
				observability.GetMetrics().RecordCircuitBreakerTrip(name)
			}
		},
	}

	cb = gobreaker.NewCircuitBreaker[*http.Response](settings)
	r.breakers[serviceID] = cb
	return cb
}

// stateToInt converts a circuit breaker state to an integer for metrics
// 0=closed, 1=half-open, 2=open
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
