// Package config loads sentinel configuration from defaults, an optional YAML
// file and SENTINEL_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ecoai/sentinel/internal/economics"
)

// maxConfigSize bounds the YAML file read from disk
const maxConfigSize = 1 << 20

// Config represents the application configuration
type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// BackendConfig selects the generative backend and its models
type BackendConfig struct {
	Provider        string `yaml:"provider"` // gemini, vertexai, openai, bedrock, mock
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	Project         string `yaml:"project"`
	Region          string `yaml:"region"`
	ClassifierModel string `yaml:"classifier_model"`
	StandardModel   string `yaml:"standard_model"`
	DeepModel       string `yaml:"deep_model"`
}

// LedgerConfig holds the session's starting state
type LedgerConfig struct {
	InitialTokens int            `yaml:"initial_tokens"`
	InitialTier   economics.Tier `yaml:"initial_tier"`
	AutoMode      bool           `yaml:"auto_mode"`
	TokenPriceUSD float64        `yaml:"token_price_usd"`
}

// RetryConfig holds the backoff policy for backend calls
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// RateLimitConfig paces backend calls. Zero requests per second disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// CacheConfig holds the classification cache settings
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	TTL          time.Duration `yaml:"ttl"`
	MaxCostBytes int64         `yaml:"max_cost_bytes"`
	RedisAddr    string        `yaml:"redis_addr"`
	RedisPrefix  string        `yaml:"redis_prefix"`
}

// ServerConfig holds HTTP view settings
type ServerConfig struct {
	Addr             string        `yaml:"addr"`
	SnapshotSchedule string        `yaml:"snapshot_schedule"`
	ExchangeTimeout  time.Duration `yaml:"exchange_timeout"`
}

// LoggingConfig holds slog settings
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"` // json or text
	Service string `yaml:"service"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Exporter    string `yaml:"exporter"` // otlp, stdout, none
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// envOverrides lists the environment variables that override file values.
// Pointer fields stay nil when unset, so an explicit zero or false still
// overrides the file.
type envOverrides struct {
	Provider        string         `envconfig:"SENTINEL_PROVIDER"`
	APIKey          string         `envconfig:"SENTINEL_API_KEY"`
	BaseURL         string         `envconfig:"SENTINEL_BASE_URL"`
	Project         string         `envconfig:"SENTINEL_PROJECT"`
	Region          string         `envconfig:"SENTINEL_REGION"`
	ClassifierModel string         `envconfig:"SENTINEL_CLASSIFIER_MODEL"`
	StandardModel   string         `envconfig:"SENTINEL_STANDARD_MODEL"`
	DeepModel       string         `envconfig:"SENTINEL_DEEP_MODEL"`
	InitialTokens   *int           `envconfig:"SENTINEL_INITIAL_TOKENS"`
	InitialTier     economics.Tier `envconfig:"SENTINEL_INITIAL_TIER"`
	AutoMode        *bool          `envconfig:"SENTINEL_AUTO_MODE"`
	TokenPriceUSD   *float64       `envconfig:"SENTINEL_TOKEN_PRICE_USD"`
	MaxRetries      *int           `envconfig:"SENTINEL_MAX_RETRIES"`
	RetryDelay      *time.Duration `envconfig:"SENTINEL_RETRY_DELAY"`
	CacheEnabled    *bool          `envconfig:"SENTINEL_CACHE_ENABLED"`
	RedisAddr       string         `envconfig:"SENTINEL_REDIS_ADDR"`
	Addr            string         `envconfig:"SENTINEL_ADDR"`
	LogLevel        string         `envconfig:"SENTINEL_LOG_LEVEL"`
	LogFormat       string         `envconfig:"SENTINEL_LOG_FORMAT"`
	TracingExporter string         `envconfig:"SENTINEL_TRACING_EXPORTER"`
	TracingEndpoint string         `envconfig:"SENTINEL_TRACING_ENDPOINT"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Provider:        "gemini",
			ClassifierModel: "gemini-3-flash-preview",
			StandardModel:   "gemini-3-flash-preview",
			DeepModel:       "gemini-3-pro-preview",
		},
		Ledger: LedgerConfig{
			InitialTokens: economics.InitialTokenGrant,
			InitialTier:   economics.Medium,
			AutoMode:      true,
			TokenPriceUSD: economics.TokenPriceUSD,
		},
		Retry: RetryConfig{
			MaxRetries:   3,
			InitialDelay: time.Second,
		},
		Cache: CacheConfig{
			TTL:          24 * time.Hour,
			MaxCostBytes: 8 << 20,
			RedisPrefix:  "sentinel:classify:",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ExchangeTimeout: 2 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "text",
			Service: "eco-sentinel",
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			ServiceName: "eco-sentinel",
		},
	}
}

// Load builds the configuration. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	setString(&c.Backend.Provider, env.Provider)
	setString(&c.Backend.APIKey, env.APIKey)
	setString(&c.Backend.BaseURL, env.BaseURL)
	setString(&c.Backend.Project, env.Project)
	setString(&c.Backend.Region, env.Region)
	setString(&c.Backend.ClassifierModel, env.ClassifierModel)
	setString(&c.Backend.StandardModel, env.StandardModel)
	setString(&c.Backend.DeepModel, env.DeepModel)
	setString(&c.Cache.RedisAddr, env.RedisAddr)
	setString(&c.Server.Addr, env.Addr)
	setString(&c.Logging.Level, env.LogLevel)
	setString(&c.Logging.Format, env.LogFormat)
	setString(&c.Tracing.Endpoint, env.TracingEndpoint)

	if env.InitialTier != "" {
		c.Ledger.InitialTier = env.InitialTier
	}
	setPtr(&c.Ledger.InitialTokens, env.InitialTokens)
	setPtr(&c.Ledger.AutoMode, env.AutoMode)
	setPtr(&c.Ledger.TokenPriceUSD, env.TokenPriceUSD)
	setPtr(&c.Retry.MaxRetries, env.MaxRetries)
	setPtr(&c.Retry.InitialDelay, env.RetryDelay)
	setPtr(&c.Cache.Enabled, env.CacheEnabled)
	if env.TracingExporter != "" {
		c.Tracing.Exporter = env.TracingExporter
		c.Tracing.Enabled = env.TracingExporter != "none"
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

var knownProviders = map[string]bool{
	"gemini":   true,
	"vertexai": true,
	"openai":   true,
	"bedrock":  true,
	"mock":     true,
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error
	if !knownProviders[c.Backend.Provider] {
		errs = append(errs, fmt.Errorf("backend.provider: unknown provider %q", c.Backend.Provider))
	}
	if c.Ledger.InitialTokens <= 0 {
		errs = append(errs, fmt.Errorf("ledger.initial_tokens must be positive, got %d", c.Ledger.InitialTokens))
	}
	if !c.Ledger.InitialTier.Valid() {
		errs = append(errs, fmt.Errorf("ledger.initial_tier: unknown tier %q", c.Ledger.InitialTier))
	}
	if c.Ledger.TokenPriceUSD <= 0 {
		errs = append(errs, fmt.Errorf("ledger.token_price_usd must be positive, got %v", c.Ledger.TokenPriceUSD))
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries))
	}
	if c.Retry.InitialDelay < 0 {
		errs = append(errs, errors.New("retry.initial_delay must not be negative"))
	}
	if c.Cache.MaxCostBytes < 0 {
		errs = append(errs, errors.New("cache.max_cost_bytes must not be negative"))
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("rate_limit.requests_per_second must not be negative"))
	}
	return errors.Join(errs...)
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
