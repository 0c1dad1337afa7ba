package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brouie/team-microservices-factory/models"
	"github.com/brouie/team-microservices-factory/registry"
)

func TestRegistryClientGet(t *testing.T) {
	factory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/services/svc-1":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"svc-1","idea":"an echo API","status":"deployed","api_base_url":"https://svc.vercel.app"}`))
		case "/services/broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "/services/garbled":
			w.Write([]byte("not json"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer factory.Close()

	client := NewRegistryClient(factory.URL)
	ctx := context.Background()

	t.Run("existing service", func(t *testing.T) {
		record, err := client.Get(ctx, "svc-1")
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if record.ID != "svc-1" || record.Status != models.StatusDeployed {
			t.Errorf("Unexpected record: %+v", record)
		}
		if record.APIBaseURL != "https://svc.vercel.app" {
			t.Errorf("Unexpected base url: %q", record.APIBaseURL)
		}
	})

	t.Run("missing service maps to ErrNotFound", func(t *testing.T) {
		if _, err := client.Get(ctx, "missing"); !errors.Is(err, registry.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("server error", func(t *testing.T) {
		if _, err := client.Get(ctx, "broken"); err == nil {
			t.Error("Expected an error for a 500 response")
		}
	})

	t.Run("bad payload", func(t *testing.T) {
		if _, err := client.Get(ctx, "garbled"); err == nil {
			t.Error("Expected an error for an undecodable body")
		}
	})

	t.Run("unreachable factory", func(t *testing.T) {
		down := NewRegistryClient("http://127.0.0.1:1")
		if _, err := down.Get(ctx, "svc-1"); err == nil {
			t.Error("Expected an error when the factory API is unreachable")
		}
	})
}
