package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/brouie/team-microservices-factory/observability"
)

// ErrDeployTimeout means the deployment ran past its bounded duration.
// Surfaced distinctly so callers can tell a slow deploy from a broken one.
var ErrDeployTimeout = errors.New("deployment timed out")

// Result is the outcome of a deployment attempt
type Result struct {
	URL      string `json:"url"`
	Platform string `json:"platform"`
}

// Deployer turns a service's generated files into a reachable URL.
// Exactly one attempt is made per call; retries belong to the caller.
type Deployer interface {
	Deploy(ctx context.Context, serviceID string, files map[string]string) (*Result, error)
}

// VercelDeployer deploys a file-set through the Vercel CLI
type VercelDeployer struct {
	token    string
	timeout  time.Duration
	mockMode bool
	baseDir  string // staging area, defaults to os.TempDir()
}

// VercelOption configures a VercelDeployer
type VercelOption func(*VercelDeployer)

// WithMockMode makes a missing Vercel CLI return a synthetic success URL
// instead of an error. Demo use only; every synthetic result is logged.
func WithMockMode(enabled bool) VercelOption {
	return func(d *VercelDeployer) { d.mockMode = enabled }
}

// WithBaseDir overrides the staging directory (useful for tests)
func WithBaseDir(dir string) VercelOption {
	return func(d *VercelDeployer) { d.baseDir = dir }
}

// NewVercelDeployer creates a deployer with a bounded per-deploy timeout
func NewVercelDeployer(token string, timeout time.Duration, opts ...VercelOption) *VercelDeployer {
	d := &VercelDeployer{
		token:   token,
		timeout: timeout,
		baseDir: os.TempDir(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// vercelConfig is the build configuration staged next to the service files
var vercelConfig = map[string]any{
	"builds": []map[string]string{
		{"src": "main.py", "use": "@vercel/python"},
	},
	"routes": []map[string]string{
		{"src": "/(.*)", "dest": "main.py"},
	},
}

// Deploy stages the files, adds vercel.json, and runs the Vercel CLI.
// The attempt is bounded by the configured timeout.
func (d *VercelDeployer) Deploy(ctx context.Context, serviceID string, files map[string]string) (*Result, error) {
	if d.token == "" && !d.mockMode {
		return nil, errors.New("vercel token not configured")
	}

	stageDir, err := os.MkdirTemp(d.baseDir, "deploy-"+serviceID+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stageDir)

	for name, content := range files {
		path := filepath.Join(stageDir, filepath.Clean(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to stage %s: %w", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("failed to stage %s: %w", name, err)
		}
	}

	configData, err := json.MarshalIndent(vercelConfig, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vercel config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(stageDir, "vercel.json"), configData, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write vercel config: %w", err)
	}

	return d.runDeploy(ctx, stageDir, serviceID)
}

// runDeploy invokes the Vercel CLI inside the staging directory
func (d *VercelDeployer) runDeploy(ctx context.Context, stageDir, projectName string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "vercel", "deploy", "--prod", "--yes",
		"--token", d.token, "--name", projectName)
	cmd.Dir = stageDir
	cmd.Env = append(os.Environ(), "VERCEL_TOKEN="+d.token)

	output, err := cmd.Output()
	if err == nil {
		// The CLI prints the deployment URL on its final line
		lines := strings.Split(strings.TrimSpace(string(output)), "\n")
		url := lines[len(lines)-1]
		observability.Info("deployment succeeded", "service_id", projectName, "url", url)
		return &Result{URL: url, Platform: "vercel"}, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w after %s", ErrDeployTimeout, d.timeout)
	}

	if errors.Is(err, exec.ErrNotFound) {
		if d.mockMode {
			url := fmt.Sprintf("https://%s.vercel.app", projectName)
			observability.Warn("vercel CLI not installed, returning synthetic deployment (mock mode)",
				"service_id", projectName, "url", url)
			return &Result{URL: url, Platform: "vercel"}, nil
		}
		return nil, errors.New("vercel CLI not installed")
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return nil, fmt.Errorf("deployment failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
	}
	return nil, fmt.Errorf("deployment failed: %w", err)
}
