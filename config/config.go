// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/texlify/texlify/domain/conversion"
	"github.com/texlify/texlify/domain/ratelimit"
	"github.com/texlify/texlify/domain/tier"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	Gemini      GeminiConfig      `yaml:"gemini"`
	Billing     BillingConfig     `yaml:"billing"`
	Limiters    []LimiterConfig   `yaml:"limiters"`
	Tiers       []TierConfig      `yaml:"tiers"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures storage. Driver "sqlite" persists across
// restarts; "memory" keeps everything in process (tests, demos).
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	Path   string `yaml:"path"`
}

// AuthConfig configures identity verification.
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret,omitempty"`
	TokenLifetime time.Duration `yaml:"token_lifetime"`

	// AdminToken guards the administrative endpoints. Stored hashed in
	// memory at startup; the raw value never leaves this struct.
	AdminToken string `yaml:"admin_token,omitempty"`
}

// GeminiConfig configures the conversion model.
type GeminiConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// BillingConfig configures payment webhook handling.
// Use "none", "stripe", or "dummy".
type BillingConfig struct {
	Mode                string `yaml:"mode"`
	StripeKey           string `yaml:"stripe_key,omitempty"`
	StripeWebhookSecret string `yaml:"stripe_webhook_secret,omitempty"`
}

// LimiterConfig overrides one named limiter. Unnamed fields keep the
// built-in values.
type LimiterConfig struct {
	Name        string        `yaml:"name"`
	Kind        string        `yaml:"kind"` // "token_bucket" or "fixed_window"
	Rate        float64       `yaml:"rate"`
	Period      time.Duration `yaml:"period"`
	Capacity    float64       `yaml:"capacity"`
	MaxReserved float64       `yaml:"max_reserved"`
	Shards      int           `yaml:"shards"`
}

// TierConfig overrides the limits of one tier.
type TierConfig struct {
	Name             string           `yaml:"name"` // "anonymous", "free", "pro"
	DailyConversions *int64           `yaml:"daily_conversions,omitempty"`
	MaxInputLength   *int             `yaml:"max_input_length,omitempty"`
	Tools            map[string]int64 `yaml:"tools,omitempty"`
}

// MaintenanceConfig configures the background cleanup jobs.
type MaintenanceConfig struct {
	LimiterIdle         time.Duration `yaml:"limiter_idle"`
	UsageRetention      time.Duration `yaml:"usage_retention"`
	ConversionRetention time.Duration `yaml:"conversion_retention"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// Useful for container deployments where no config file is mounted.
//
// Environment variables:
//
//	TEXLIFY_GEMINI_API_KEY  - Gemini API key (required)
//	TEXLIFY_DATABASE_DRIVER - "sqlite" or "memory" (default: sqlite)
//	TEXLIFY_DATABASE_PATH   - Database path (default: texlify.db)
//	TEXLIFY_SERVER_HOST     - Server host (default: 0.0.0.0)
//	TEXLIFY_SERVER_PORT     - Server port (default: 8080)
//	TEXLIFY_JWT_SECRET      - Session token signing secret
//	TEXLIFY_ADMIN_TOKEN     - Admin endpoint bearer token
//	TEXLIFY_BILLING_MODE    - "none", "stripe", or "dummy" (default: none)
//	TEXLIFY_LOG_LEVEL       - debug, info, warn, error (default: info)
//	TEXLIFY_LOG_FORMAT      - json or console (default: json)
//	TEXLIFY_METRICS_ENABLED - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if os.Getenv("TEXLIFY_GEMINI_API_KEY") != "" {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set TEXLIFY_GEMINI_API_KEY")
}

// applyEnvOverrides applies TEXLIFY_* environment variables to the
// config. Environment variables always override file-based values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TEXLIFY_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("TEXLIFY_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TEXLIFY_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("TEXLIFY_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	if v := os.Getenv("TEXLIFY_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("TEXLIFY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("TEXLIFY_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("TEXLIFY_ADMIN_TOKEN"); v != "" {
		cfg.Auth.AdminToken = v
	}

	if v := os.Getenv("TEXLIFY_GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("TEXLIFY_GEMINI_MODEL"); v != "" {
		cfg.Gemini.Model = v
	}

	if v := os.Getenv("TEXLIFY_BILLING_MODE"); v != "" {
		cfg.Billing.Mode = v
	}
	if v := os.Getenv("TEXLIFY_STRIPE_KEY"); v != "" {
		cfg.Billing.StripeKey = v
	}
	if v := os.Getenv("TEXLIFY_STRIPE_WEBHOOK_SECRET"); v != "" {
		cfg.Billing.StripeWebhookSecret = v
	}

	if v := os.Getenv("TEXLIFY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TEXLIFY_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("TEXLIFY_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("TEXLIFY_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		// Conversions wait on the model; allow generous responses.
		cfg.Server.WriteTimeout = 120 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "texlify.db"
	}

	if cfg.Auth.TokenLifetime == 0 {
		cfg.Auth.TokenLifetime = 24 * time.Hour
	}

	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-flash-latest"
	}
	if cfg.Gemini.MaxTokens == 0 {
		cfg.Gemini.MaxTokens = 2000
	}
	if cfg.Gemini.Temperature == 0 {
		cfg.Gemini.Temperature = 0.1
	}

	if cfg.Billing.Mode == "" {
		cfg.Billing.Mode = "none"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	validDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'memory', got %q", cfg.Database.Driver)
	}

	validBillingModes := map[string]bool{"none": true, "stripe": true, "dummy": true}
	if !validBillingModes[cfg.Billing.Mode] {
		return fmt.Errorf("billing.mode must be one of: none, stripe, dummy")
	}
	if cfg.Billing.Mode == "stripe" && cfg.Billing.StripeWebhookSecret == "" {
		return fmt.Errorf("billing.stripe_webhook_secret is required when billing.mode is 'stripe'")
	}

	for i, l := range cfg.Limiters {
		if l.Name == "" {
			return fmt.Errorf("limiters[%d].name is required", i)
		}
		if l.Rate <= 0 {
			return fmt.Errorf("limiters[%d] (%s): rate must be positive", i, l.Name)
		}
		if l.Kind != "" && l.Kind != string(ratelimit.TokenBucket) && l.Kind != string(ratelimit.FixedWindow) {
			return fmt.Errorf("limiters[%d] (%s): unknown kind %q", i, l.Name, l.Kind)
		}
	}

	validTiers := map[string]bool{"anonymous": true, "free": true, "pro": true}
	for i, t := range cfg.Tiers {
		if !validTiers[t.Name] {
			return fmt.Errorf("tiers[%d]: unknown tier %q", i, t.Name)
		}
		for tool := range t.Tools {
			if _, ok := conversion.ParseTool(tool); !ok {
				return fmt.Errorf("tiers[%d] (%s): unknown tool %q", i, t.Name, tool)
			}
		}
	}

	return nil
}

// LimiterConfigs merges the configured overrides onto a base registry.
// The base is not mutated.
func (c *Config) LimiterConfigs(base map[string]ratelimit.Config) map[string]ratelimit.Config {
	merged := make(map[string]ratelimit.Config, len(base))
	for name, cfg := range base {
		merged[name] = cfg
	}
	for _, l := range c.Limiters {
		merged[l.Name] = ratelimit.Config{
			Kind:        ratelimit.Kind(l.Kind),
			Rate:        l.Rate,
			Period:      l.Period,
			Capacity:    l.Capacity,
			MaxReserved: l.MaxReserved,
			Shards:      l.Shards,
		}.Normalize()
	}
	return merged
}

// TierLimits merges the configured tier overrides onto the built-in
// defaults.
func (c *Config) TierLimits() map[tier.Name]tier.Limits {
	merged := tier.Defaults()
	for _, t := range c.Tiers {
		name := tier.Name(t.Name)
		limits := merged[name]
		if t.DailyConversions != nil {
			limits.DailyConversions = *t.DailyConversions
		}
		if t.MaxInputLength != nil {
			limits.MaxInputLength = *t.MaxInputLength
		}
		if len(t.Tools) > 0 {
			tools := make(map[conversion.Tool]int64, len(limits.ToolDaily))
			for k, v := range limits.ToolDaily {
				tools[k] = v
			}
			for k, v := range t.Tools {
				tools[conversion.Tool(k)] = v
			}
			limits.ToolDaily = tools
		}
		merged[name] = limits
	}
	return merged
}
