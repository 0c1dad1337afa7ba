package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brouie/team-microservices-factory/models"
	"github.com/brouie/team-microservices-factory/registry"
)

type stubResolver struct {
	record *models.ServiceRecord
	err    error
	calls  int
}

func (s *stubResolver) Get(ctx context.Context, id string) (*models.ServiceRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func deployedRecord(baseURL string) *models.ServiceRecord {
	return &models.ServiceRecord{
		ID:         "svc-1",
		Idea:       "an echo API",
		Status:     models.StatusDeployed,
		APIBaseURL: baseURL,
	}
}

func newProxyRequest(method, target string, headers map[string]string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestForward_AccessDenied(t *testing.T) {
	resolver := &stubResolver{record: deployedRecord("http://example.test")}
	f := NewForwarder(AccessGate{}, resolver, time.Second)

	w := httptest.NewRecorder()
	r := newProxyRequest(http.MethodGet, "/proxy/svc-1/items", nil)

	err := f.Forward(w, r, "svc-1", "items")
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("Expected ErrAccessDenied, got %v", err)
	}
	if resolver.calls != 0 {
		t.Error("Denied request must not reach the resolver")
	}
}

func TestForward_ServiceNotFound(t *testing.T) {
	resolver := &stubResolver{err: registry.ErrNotFound}
	f := NewForwarder(AccessGate{}, resolver, time.Second)

	w := httptest.NewRecorder()
	r := newProxyRequest(http.MethodGet, "/proxy/missing/items", map[string]string{
		HeaderTokenBalance: "5",
	})

	if err := f.Forward(w, r, "missing", "items"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestForward_NotDeployed(t *testing.T) {
	resolver := &stubResolver{record: &models.ServiceRecord{ID: "svc-1", Status: models.StatusQueued}}
	f := NewForwarder(AccessGate{}, resolver, time.Second)

	w := httptest.NewRecorder()
	r := newProxyRequest(http.MethodGet, "/proxy/svc-1/items", map[string]string{
		HeaderTokenBalance: "5",
	})

	if err := f.Forward(w, r, "svc-1", "items"); !errors.Is(err, ErrNotDeployed) {
		t.Fatalf("Expected ErrNotDeployed, got %v", err)
	}
}

func TestForward_PassThrough(t *testing.T) {
	var gotPath, gotQuery, gotCustom string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotCustom = r.Header.Get("X-Custom")
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"ok":true}`)
	}))
	defer upstream.Close()

	resolver := &stubResolver{record: deployedRecord(upstream.URL + "/")}
	f := NewForwarder(AccessGate{}, resolver, time.Second)

	w := httptest.NewRecorder()
	r := newProxyRequest(http.MethodGet, "/proxy/svc-1/items/42?limit=3", map[string]string{
		HeaderTokenBalance: "5",
		"X-Custom":         "carried",
	})

	if err := f.Forward(w, r, "svc-1", "items/42"); err != nil {
		t.Fatalf("Forward() error: %v", err)
	}

	if gotPath != "/items/42" {
		t.Errorf("Expected upstream path /items/42, got %q", gotPath)
	}
	if gotQuery != "limit=3" {
		t.Errorf("Expected query to be carried, got %q", gotQuery)
	}
	if gotCustom != "carried" {
		t.Error("Expected custom headers to be forwarded")
	}
	if w.Code != http.StatusCreated {
		t.Errorf("Expected upstream status 201, got %d", w.Code)
	}
	if w.Header().Get("X-Upstream") != "yes" {
		t.Error("Expected upstream response headers to be copied")
	}
	if w.Body.String() != `{"ok":true}` {
		t.Errorf("Expected upstream body verbatim, got %q", w.Body.String())
	}
}

func TestForward_StripsHopByHopHeaders(t *testing.T) {
	var gotKeepAlive, gotNamed string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKeepAlive = r.Header.Get("Keep-Alive")
		gotNamed = r.Header.Get("X-Per-Hop")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	resolver := &stubResolver{record: deployedRecord(upstream.URL)}
	f := NewForwarder(AccessGate{}, resolver, time.Second)

	w := httptest.NewRecorder()
	r := newProxyRequest(http.MethodGet, "/proxy/svc-1/items", map[string]string{
		HeaderTokenBalance: "5",
		"Keep-Alive":       "timeout=5",
		"Connection":       "X-Per-Hop",
		"X-Per-Hop":        "secret",
	})

	if err := f.Forward(w, r, "svc-1", "items"); err != nil {
		t.Fatalf("Forward() error: %v", err)
	}
	if gotKeepAlive != "" {
		t.Error("Keep-Alive must not cross the proxy")
	}
	if gotNamed != "" {
		t.Error("Headers named by Connection must not cross the proxy")
	}
}

func TestForward_UpstreamUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close() // nothing listens anymore

	resolver := &stubResolver{record: deployedRecord(upstream.URL)}
	f := NewForwarder(AccessGate{}, resolver, time.Second)

	w := httptest.NewRecorder()
	r := newProxyRequest(http.MethodGet, "/proxy/svc-1/items", map[string]string{
		HeaderTokenBalance: "5",
	})

	if err := f.Forward(w, r, "svc-1", "items"); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestForward_CircuitBreakerOpens(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close()

	resolver := &stubResolver{record: deployedRecord(upstream.URL)}
	f := NewForwarder(AccessGate{}, resolver, time.Second, WithBreakerConfig(BreakerConfig{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
	}))

	headers := map[string]string{HeaderTokenBalance: "5"}
	for i := 0; i < 6; i++ {
		w := httptest.NewRecorder()
		f.Forward(w, newProxyRequest(http.MethodGet, "/proxy/svc-1/items", headers), "svc-1", "items")
	}

	w := httptest.NewRecorder()
	err := f.Forward(w, newProxyRequest(http.MethodGet, "/proxy/svc-1/items", headers), "svc-1", "items")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Expected ErrUpstreamUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "circuit breaker open") {
		t.Errorf("Expected a breaker-open error, got %v", err)
	}
	if resolver.calls != 7 {
		t.Errorf("Expected the resolver to run before the breaker, got %d calls", resolver.calls)
	}
}

func TestForward_BreakersAreIsolatedPerService(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()
	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer alive.Close()

	resolvers := map[string]*stubResolver{
		"dead":  {record: &models.ServiceRecord{ID: "dead", Status: models.StatusDeployed, APIBaseURL: dead.URL}},
		"alive": {record: &models.ServiceRecord{ID: "alive", Status: models.StatusDeployed, APIBaseURL: alive.URL}},
	}
	resolver := resolverFunc(func(ctx context.Context, id string) (*models.ServiceRecord, error) {
		return resolvers[id].Get(ctx, id)
	})

	f := NewForwarder(AccessGate{}, resolver, time.Second, WithBreakerConfig(BreakerConfig{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
	}))

	headers := map[string]string{HeaderTokenBalance: "5"}
	for i := 0; i < 6; i++ {
		w := httptest.NewRecorder()
		f.Forward(w, newProxyRequest(http.MethodGet, "/proxy/dead/items", headers), "dead", "items")
	}

	w := httptest.NewRecorder()
	if err := f.Forward(w, newProxyRequest(http.MethodGet, "/proxy/alive/items", headers), "alive", "items"); err != nil {
		t.Errorf("Tripping one service's breaker must not affect another: %v", err)
	}
}

type resolverFunc func(ctx context.Context, id string) (*models.ServiceRecord, error)

func (f resolverFunc) Get(ctx context.Context, id string) (*models.ServiceRecord, error) {
	return f(ctx, id)
}

func TestForward_DevBypass(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	resolver := &stubResolver{record: deployedRecord(upstream.URL)}
	f := NewForwarder(AccessGate{AllowBypass: true}, resolver, time.Second)

	w := httptest.NewRecorder()
	r := newProxyRequest(http.MethodGet, "/proxy/svc-1/items", map[string]string{
		HeaderDevBypass: "1",
	})

	if err := f.Forward(w, r, "svc-1", "items"); err != nil {
		t.Fatalf("Forward() with bypass error: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}
