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
	"github.com/brouie/team-microservices-factory/deploy"
	"github.com/brouie/team-microservices-factory/internal/api"
	"github.com/brouie/team-microservices-factory/internal/app"
	"github.com/brouie/team-microservices-factory/observability"
	"github.com/brouie/team-microservices-factory/registry"
	"github.com/brouie/team-microservices-factory/repository"
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

	ctx := context.Background()

	// Pick the snapshot store: Postgres when configured, else the JSON
	// file blob, else memory-only
	var regOpts []registry.Option
	var handlerOpts []api.HandlerOption
	switch {
	case cfg.HasDatabase():
		store, err := repository.NewStore(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			observability.Fatal("failed to connect to database", "error", err)
		}
		defer store.Close()
		regOpts = append(regOpts, registry.WithSnapshotStore(store), registry.WithEventLookup(store))
		handlerOpts = append(handlerOpts, api.WithHealthChecker(store))
		observability.Info("using postgres snapshot store")
	case cfg.Store.SnapshotPath != "":
		store := registry.NewFileStore(cfg.Store.SnapshotPath)
		regOpts = append(regOpts, registry.WithSnapshotStore(store), registry.WithEventLookup(store))
		observability.Info("using file snapshot store", "path", cfg.Store.SnapshotPath)
	default:
		observability.Info("no snapshot store configured, state is memory-only")
	}
	if cfg.Store.EventsPath != "" {
		regOpts = append(regOpts, registry.WithEventLookup(registry.NewEventsFile(cfg.Store.EventsPath)))
	}

	reg := registry.New(regOpts...)
	if err := reg.Restore(ctx); err != nil {
		observability.Fatal("failed to restore registry state", "error", err)
	}

	// Optional model-backed generator; the static scaffold remains the
	// fallback either way
	var generator deploy.Generator
	if cfg.HasBedrock() {
		generator, err = deploy.NewBedrockGenerator(ctx, cfg.Bedrock.Region, cfg.Bedrock.ModelID, cfg.Bedrock.MaxTokens)
		if err != nil {
			observability.Warn("failed to initialize bedrock generator, using scaffold", "error", err)
			generator = nil
		}
	}

	deployTimeout := time.Duration(cfg.Deploy.TimeoutSeconds) * time.Second
	deployer := deploy.NewVercelDeployer(cfg.Deploy.VercelToken, deployTimeout,
		deploy.WithMockMode(cfg.Deploy.MockMode))
	if cfg.Deploy.MockMode {
		observability.Warn("deploy mock mode enabled, missing vercel CLI will yield synthetic URLs")
	}

	application := app.New(cfg, reg, deployer, generator)

	handler := api.NewHandler(application, cfg, handlerOpts...)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		observability.Info("starting factory API server", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observability.Fatal("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("graceful shutdown failed", "error", err)
	}
}
