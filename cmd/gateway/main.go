package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/brouie/team-microservices-factory/config"
	"github.com/brouie/team-microservices-factory/gateway"
	"github.com/brouie/team-microservices-factory/internal/api"
	"github.com/brouie/team-microservices-factory/observability"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		observability.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		observability.Fatal("invalid configuration", "error", err)
	}

	observability.InitLogger(cfg.Production)
	observability.InitMetrics()

	gate := gateway.AccessGate{AllowBypass: cfg.Gateway.AllowDevBypass}
	if cfg.Gateway.AllowDevBypass {
		observability.Warn("dev bypass header enabled")
	}

	// Resolve services through the factory API so the gateway always sees
	// live registry state
	resolver := gateway.NewRegistryClient(cfg.Gateway.BackendBase)

	upstreamTimeout := time.Duration(cfg.Gateway.UpstreamTimeoutSeconds) * time.Second
	forwarder := gateway.NewForwarder(gate, resolver, upstreamTimeout)

	handler := api.NewGatewayHandler(forwarder)
	router := api.NewGatewayRouter(handler, cfg)

	server := &http.Server{
		Addr:        cfg.Gateway.Addr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
	}

	go func() {
		observability.Info("starting gateway", "addr", cfg.Gateway.Addr, "backend", cfg.Gateway.BackendBase)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observability.Fatal("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("graceful shutdown failed", "error", err)
	}
}
