// Package config loads the view host configuration from defaults, an
// optional YAML file and TREEVIEW_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	domainconfig "treeview-ai/domain/config"
	"treeview-ai/pkg/utils"
)

// Config holds all application configuration.
type Config struct {
	Environment   string                    `yaml:"environment" validate:"oneof=development staging production"`
	API           APIConfig                 `yaml:"api"`
	Server        ServerConfig              `yaml:"server"`
	Session       SessionConfig             `yaml:"session"`
	Domain        domainconfig.DomainConfig `yaml:"domain"`
	Breaker       BreakerConfig             `yaml:"breaker"`
	Observability ObservabilityConfig       `yaml:"observability"`

	// LoadedFrom lists the sources applied, lowest priority first.
	LoadedFrom []string `yaml:"-"`
	// File is the YAML file that was read, if any.
	File string `yaml:"-"`
}

// APIConfig points at the session and chat API.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// ServerConfig configures the view host HTTP server.
type ServerConfig struct {
	Address         string        `yaml:"address" validate:"required"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// SessionConfig selects the session mounted at startup.
type SessionConfig struct {
	ID             string  `yaml:"id"`
	ViewportWidth  float64 `yaml:"viewport_width" validate:"gte=0"`
	ViewportHeight float64 `yaml:"viewport_height" validate:"gte=0"`
}

// BreakerConfig tunes the circuit breaker in front of the API.
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests" validate:"gt=0"`
	Interval         time.Duration `yaml:"interval" validate:"gte=0"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	FailureThreshold float64       `yaml:"failure_threshold" validate:"gt=0,lte=1"`
	MinRequests      uint32        `yaml:"min_requests"`
}

// ObservabilityConfig covers logging, metrics and tracing.
type ObservabilityConfig struct {
	LogLevel        string  `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	MetricsEnabled  bool    `yaml:"metrics_enabled"`
	Namespace       string  `yaml:"namespace" validate:"required"`
	TracingEndpoint string  `yaml:"tracing_endpoint"`
	TracingInsecure bool    `yaml:"tracing_insecure"`
	SampleRate      float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Environment: "development",
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Address:         ":8080",
			AllowedOrigins:  []string{"http://localhost:3000"},
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    45 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Domain: *domainconfig.DefaultDomainConfig(),
		Breaker: BreakerConfig{
			MaxRequests:      5,
			Interval:         30 * time.Second,
			Timeout:          60 * time.Second,
			FailureThreshold: 0.8,
			MinRequests:      5,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			MetricsEnabled: true,
			Namespace:      "treeview",
			SampleRate:     1,
		},
	}
}

// Load builds the configuration. path may be empty; a named file that does
// not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.LoadedFrom = append(cfg.LoadedFrom, "defaults")

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		cfg.LoadedFrom = append(cfg.LoadedFrom, path)
		cfg.File = path
	}

	cfg.loadEnvironmentVariables()
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadDomain reads only the engine tunables from path, on top of the
// defaults. The watcher uses it for hot reloads.
func LoadDomain(path string) (*domainconfig.DomainConfig, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(&cfg.Domain); err != nil {
		return nil, err
	}
	return &cfg.Domain, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnvironmentVariables() {
	c.Environment = getEnv("TREEVIEW_ENV", c.Environment)

	c.API.BaseURL = getEnv("TREEVIEW_API_URL", c.API.BaseURL)
	c.API.Token = getEnv("TREEVIEW_API_TOKEN", c.API.Token)
	c.API.Timeout = getEnvDuration("TREEVIEW_API_TIMEOUT", c.API.Timeout)

	c.Server.Address = getEnv("TREEVIEW_ADDR", c.Server.Address)
	if val := os.Getenv("TREEVIEW_ALLOWED_ORIGINS"); val != "" {
		c.Server.AllowedOrigins = splitList(val)
	}

	c.Session.ID = getEnv("TREEVIEW_SESSION_ID", c.Session.ID)

	c.Domain.Reconcile.ConnectSideFallback = getEnv("TREEVIEW_CONNECT_SIDE_FALLBACK", c.Domain.Reconcile.ConnectSideFallback)
	c.Domain.Highlight.AssistantDuration = getEnvDuration("TREEVIEW_HIGHLIGHT_DURATION", c.Domain.Highlight.AssistantDuration)

	c.Observability.LogLevel = getEnv("TREEVIEW_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.MetricsEnabled = getEnvBool("TREEVIEW_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.TracingEndpoint = getEnv("TREEVIEW_OTLP_ENDPOINT", c.Observability.TracingEndpoint)
	c.Observability.TracingInsecure = getEnvBool("TREEVIEW_OTLP_INSECURE", c.Observability.TracingInsecure)
	c.Observability.SampleRate = getEnvFloat("TREEVIEW_TRACE_SAMPLE_RATE", c.Observability.SampleRate)
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	if c.IsProduction() && c.API.Token == "" {
		return fmt.Errorf("TREEVIEW_API_TOKEN is required in production")
	}
	return nil
}

// IsProduction checks if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
