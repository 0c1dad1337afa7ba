package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	// HTTP servers
	Server  ServerConfig
	Gateway GatewayConfig

	// Registry state persistence
	Store StoreConfig

	// Deployment orchestration
	Deploy DeployConfig

	// Optional model-backed code generation
	Bedrock BedrockConfig

	// Production switches the logger to JSON output
	Production bool
}

// ServerConfig holds factory API server configuration
type ServerConfig struct {
	Addr                  string
	CORSAllowedOrigins    string
	RequestTimeoutSeconds int
}

// GatewayConfig holds proxy gateway configuration
type GatewayConfig struct {
	Addr                   string
	BackendBase            string
	UpstreamTimeoutSeconds int
	// AllowDevBypass enables the X-Dev-Bypass header. On by default
	// outside production; Validate rejects it when APP_ENV=production.
	AllowDevBypass bool
}

// StoreConfig selects the snapshot store. When DatabaseURL is set the
// Postgres store is used; otherwise SnapshotPath selects the JSON file
// store; with neither, state is memory-only.
type StoreConfig struct {
	SnapshotPath string
	EventsPath   string
	DatabaseURL  string
}

// DeployConfig holds deployer configuration
type DeployConfig struct {
	VercelToken    string
	TimeoutSeconds int
	// MockMode turns a missing Vercel CLI into a synthetic success URL.
	// Demo use only; the deployer logs every synthetic result.
	MockMode bool
}

// BedrockConfig holds AWS Bedrock generator configuration. The generator
// is enabled only when both Region and ModelID are set.
type BedrockConfig struct {
	Region    string
	ModelID   string
	MaxTokens int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	production := getEnvString("APP_ENV", "development") == "production"

	cfg := &Config{
		Server: ServerConfig{
			Addr:                  getEnvString("SERVER_ADDR", ":8000"),
			CORSAllowedOrigins:    getEnvString("CORS_ALLOWED_ORIGINS", "*"),
			RequestTimeoutSeconds: getEnvInt("SERVER_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Gateway: GatewayConfig{
			Addr:                   getEnvString("GATEWAY_ADDR", ":8080"),
			BackendBase:            getEnvString("BACKEND_BASE", "http://localhost:8000"),
			UpstreamTimeoutSeconds: getEnvInt("GATEWAY_UPSTREAM_TIMEOUT_SECONDS", 30),
			AllowDevBypass:         getEnvBool("GATEWAY_ALLOW_DEV_BYPASS", !production),
		},
		Store: StoreConfig{
			SnapshotPath: os.Getenv("SERVICE_STORE_PATH"),
			EventsPath:   os.Getenv("SERVICE_EVENTS_PATH"),
			DatabaseURL:  os.Getenv("DATABASE_URL"),
		},
		Deploy: DeployConfig{
			VercelToken:    os.Getenv("VERCEL_TOKEN"),
			TimeoutSeconds: getEnvInt("DEPLOY_TIMEOUT_SECONDS", 300),
			MockMode:       getEnvBool("DEPLOY_MOCK_MODE", false),
		},
		Bedrock: BedrockConfig{
			Region:    os.Getenv("AWS_REGION"),
			ModelID:   os.Getenv("BEDROCK_MODEL_ID"),
			MaxTokens: getEnvInt("BEDROCK_MAX_TOKENS", 4096),
		},
		Production: production,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("SERVER_REQUEST_TIMEOUT_SECONDS must be positive, got %d", c.Server.RequestTimeoutSeconds)
	}
	if c.Gateway.UpstreamTimeoutSeconds <= 0 {
		return fmt.Errorf("GATEWAY_UPSTREAM_TIMEOUT_SECONDS must be positive, got %d", c.Gateway.UpstreamTimeoutSeconds)
	}
	if c.Deploy.TimeoutSeconds <= 0 {
		return fmt.Errorf("DEPLOY_TIMEOUT_SECONDS must be positive, got %d", c.Deploy.TimeoutSeconds)
	}
	if c.Store.SnapshotPath != "" && c.Store.DatabaseURL != "" {
		return fmt.Errorf("SERVICE_STORE_PATH and DATABASE_URL are mutually exclusive")
	}
	if c.Production && c.Gateway.AllowDevBypass {
		return fmt.Errorf("GATEWAY_ALLOW_DEV_BYPASS must not be enabled when APP_ENV=production")
	}
	if c.Production && c.Deploy.MockMode {
		return fmt.Errorf("DEPLOY_MOCK_MODE must not be enabled when APP_ENV=production")
	}
	return nil
}

// HasDatabase returns true if the Postgres snapshot store is configured
func (c *Config) HasDatabase() bool {
	return c.Store.DatabaseURL != ""
}

// HasBedrock returns true if the Bedrock generator is configured
func (c *Config) HasBedrock() bool {
	return c.Bedrock.Region != "" && c.Bedrock.ModelID != ""
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                  ":0",
			CORSAllowedOrigins:    "*",
			RequestTimeoutSeconds: 30,
		},
		Gateway: GatewayConfig{
			Addr:                   ":0",
			BackendBase:            "http://localhost:8000",
			UpstreamTimeoutSeconds: 5,
			AllowDevBypass:         true,
		},
		Store: StoreConfig{},
		Deploy: DeployConfig{
			TimeoutSeconds: 5,
			MockMode:       true,
		},
		Bedrock: BedrockConfig{
			MaxTokens: 4096,
		},
	}
}
