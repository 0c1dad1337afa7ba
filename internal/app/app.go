package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/brouie/team-microservices-factory/config"
	"github.com/brouie/team-microservices-factory/deploy"
	"github.com/brouie/team-microservices-factory/models"
	"github.com/brouie/team-microservices-factory/observability"
	"github.com/brouie/team-microservices-factory/registry"
)

// RegistryInterface defines the registry operations needed by App
type RegistryInterface interface {
	Create(ctx context.Context, sub models.IdeaSubmission) (*models.ServiceRecord, error)
	Get(ctx context.Context, id string) (*models.ServiceRecord, error)
	List(ctx context.Context) []*models.ServiceRecord
	UpdateStatus(ctx context.Context, id string, status models.ServiceStatus, message string) (*models.ServiceRecord, error)
	SetAPIBaseURL(ctx context.Context, id, url string) (*models.ServiceRecord, error)
	SetTokenAddress(ctx context.Context, id, address string) (*models.ServiceRecord, error)
	EnsureAPIKey(ctx context.Context, id string) (string, error)
	ListEvents(ctx context.Context, id string) []models.ServiceEvent
	EventSummary(ctx context.Context, id string) (*models.EventSummary, error)
	Stats(ctx context.Context) *models.Stats
	StatusDetail(ctx context.Context, id string) (*models.StatusDetail, error)
}

// App wires the registry, the generator, and the deployer into the
// provisioning workflow exposed by the factory API
type App struct {
	cfg       *config.Config
	registry  RegistryInterface
	deployer  deploy.Deployer
	generator deploy.Generator
	scaffold  deploy.Generator // fallback when the primary generator fails
}

// New creates a new App. generator may be nil, in which case the static
// scaffold is used directly.
func New(cfg *config.Config, reg RegistryInterface, deployer deploy.Deployer, generator deploy.Generator) *App {
	scaffold := deploy.NewScaffoldGenerator()
	if generator == nil {
		generator = scaffold
	}
	return &App{
		cfg:       cfg,
		registry:  reg,
		deployer:  deployer,
		generator: generator,
		scaffold:  scaffold,
	}
}

// SubmitIdea validates and registers a new service idea
func (a *App) SubmitIdea(ctx context.Context, sub models.IdeaSubmission) (*models.ServiceRecord, error) {
	record, err := a.registry.Create(ctx, sub)
	if err != nil {
		return nil, err
	}
	observability.WithService(record.ID).Info("service created", "requester_id", record.RequesterID)
	return record, nil
}

// GetService returns the record for the given id
func (a *App) GetService(ctx context.Context, id string) (*models.ServiceRecord, error) {
	return a.registry.Get(ctx, id)
}

// ListServices returns all records in insertion order
func (a *App) ListServices(ctx context.Context) []*models.ServiceRecord {
	return a.registry.List(ctx)
}

// ListEvents returns the event log for the given id. The service must exist.
func (a *App) ListEvents(ctx context.Context, id string) ([]models.ServiceEvent, error) {
	if _, err := a.registry.Get(ctx, id); err != nil {
		return nil, err
	}
	return a.registry.ListEvents(ctx, id), nil
}

// EventSummary aggregates the event log for the given id
func (a *App) EventSummary(ctx context.Context, id string) (*models.EventSummary, error) {
	return a.registry.EventSummary(ctx, id)
}

// Stats aggregates all services
func (a *App) Stats(ctx context.Context) *models.Stats {
	return a.registry.Stats(ctx)
}

// StatusDetail returns the detailed status view for the given id
func (a *App) StatusDetail(ctx context.Context, id string) (*models.StatusDetail, error) {
	return a.registry.StatusDetail(ctx, id)
}

// DeployService drives the deployment workflow: queued -> deploying, then
// deployed with a base URL on success or failed with the error message.
// The deployment failure lands in the record's status rather than in the
// returned error; errors are reserved for unknown ids and illegal
// transitions.
func (a *App) DeployService(ctx context.Context, id string) (*models.ServiceRecord, error) {
	record, err := a.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := a.registry.UpdateStatus(ctx, id, models.StatusDeploying, "Deployment started"); err != nil {
		return nil, err
	}

	files, err := a.generator.Generate(ctx, record.Idea)
	if err != nil {
		observability.WithService(id).Warn("generator failed, falling back to scaffold", "error", err)
		files, _ = a.scaffold.Generate(ctx, record.Idea)
	}

	// Deploys run for minutes; detach from the request context so the
	// server's request timeout cannot cut the configured deploy bound short
	deployCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx),
		time.Duration(a.cfg.Deploy.TimeoutSeconds)*time.Second)
	defer cancel()

	start := time.Now()
	result, err := a.deployer.Deploy(deployCtx, id, files)
	if err != nil {
		observability.GetMetrics().RecordDeployment("failed", time.Since(start))
		observability.WithService(id).Error("deployment failed", "error", err)
		return a.registry.UpdateStatus(ctx, id, models.StatusFailed, err.Error())
	}
	observability.GetMetrics().RecordDeployment("deployed", time.Since(start))

	if _, err := a.registry.SetAPIBaseURL(ctx, id, result.URL); err != nil {
		return nil, err
	}
	return a.registry.UpdateStatus(ctx, id, models.StatusDeployed, "Deployment finished")
}

// CreateToken assigns the service's token address. The address is
// write-once: a second call returns the record unchanged.
func (a *App) CreateToken(ctx context.Context, id string) (*models.ServiceRecord, error) {
	record, err := a.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.IsTokenized() {
		return record, nil
	}

	address, err := newTokenAddress()
	if err != nil {
		return nil, err
	}
	if _, err := a.registry.SetTokenAddress(ctx, id, address); err != nil {
		return nil, err
	}
	// Message-only event; the status itself does not change
	return a.registry.UpdateStatus(ctx, id, record.Status, "Token created")
}

// CreateAccess returns the credential bundle for a fully provisioned
// service. Both the token and the deployment must exist first.
func (a *App) CreateAccess(ctx context.Context, id string) (*models.AccessGrant, error) {
	record, err := a.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.IsTokenized() {
		return nil, &registry.PreconditionError{Missing: "token"}
	}
	if !record.IsDeployed() {
		return nil, &registry.PreconditionError{Missing: "deploy"}
	}

	key, err := a.registry.EnsureAPIKey(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.AccessGrant{
		APIKey:       key,
		APIBaseURL:   record.APIBaseURL,
		TokenAddress: record.TokenAddress,
	}, nil
}

// newTokenAddress generates an opaque 0x-prefixed 40-hex-char address
func newTokenAddress() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token address: %w", err)
	}
	return "0x" + hex.EncodeToString(buf), nil
}
