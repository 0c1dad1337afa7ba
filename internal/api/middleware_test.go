package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestStatusRecorder(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())

	if rec.status != http.StatusOK {
		t.Errorf("Expected default status 200, got %d", rec.status)
	}

	rec.WriteHeader(http.StatusNotFound)
	if rec.status != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.status)
	}

	body := []byte(`{"detail":"Service not found"}`)
	n, err := rec.Write(body)
	if err != nil {
		t.Errorf("Write returned error: %v", err)
	}
	if n != len(body) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(body), n)
	}
	if rec.bytes != len(body) {
		t.Errorf("Expected recorded size %d, got %d", len(body), rec.bytes)
	}

	// Writes accumulate
	n2, _ := rec.Write(body)
	if rec.bytes != len(body)+n2 {
		t.Errorf("Expected cumulative size %d, got %d", len(body)+n2, rec.bytes)
	}
}

func TestRoutePattern(t *testing.T) {
	t.Run("labels by pattern inside a chi route", func(t *testing.T) {
		var got string
		r := chi.NewRouter()
		r.Get("/services/{id}", func(w http.ResponseWriter, r *http.Request) {
			got = routePattern(r)
		})

		req := httptest.NewRequest(http.MethodGet, "/services/svc-1", nil)
		r.ServeHTTP(httptest.NewRecorder(), req)

		if got != "/services/{id}" {
			t.Errorf("Expected the route pattern, got %q", got)
		}
	})

	t.Run("falls back to the raw path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/bare/path", nil)
		if got := routePattern(req); got != "/bare/path" {
			t.Errorf("Expected the raw path, got %q", got)
		}
	})
}

func TestMetricsMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		method string
		status int
		body   string
	}{
		{"ok", http.MethodGet, http.StatusOK, "OK"},
		{"server error", http.MethodGet, http.StatusInternalServerError, "boom"},
		{"created", http.MethodPost, http.StatusCreated, `{"id":"123"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, httptest.NewRequest(tt.method, "/ideas", nil))

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			if w.Body.String() != tt.body {
				t.Errorf("Expected the body to pass through, got %q", w.Body.String())
			}
		})
	}
}
