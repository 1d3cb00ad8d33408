// Package config loads the engine configuration from defaults, an
// optional YAML file and environment variable overrides, in that order.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("MEDIAFLOW").
//	    Load()
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration.
type Config struct {
	// Server is the HTTP server configuration.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Log is the logging configuration.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Redis is the outcome cache configuration.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database is the persistence configuration for health records and
	// the cost ledger.
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Budget is the spend gate configuration.
	Budget BudgetConfig `yaml:"budget" env:"BUDGET"`

	// Health is the quarantine monitor configuration.
	Health HealthConfig `yaml:"health" env:"HEALTH"`

	// Chain is the scene chain configuration.
	Chain ChainConfig `yaml:"chain" env:"CHAIN"`

	// Providers holds per-provider credentials and the enabled rotation.
	Providers ProvidersConfig `yaml:"providers" env:"PROVIDERS"`
}

// ServerConfig is the HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LogConfig is the logging configuration.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console.
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths are zap sink URLs.
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// RedisConfig is the outcome cache configuration. Disabled falls back to
// the in-process cache.
type RedisConfig struct {
	Enabled      bool   `yaml:"enabled" env:"ENABLED"`
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// DatabaseConfig is the persistence configuration. Only sqlite is wired;
// Path is the database file, or :memory: for tests.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" env:"PATH"`
}

// BudgetConfig is the spend gate configuration.
type BudgetConfig struct {
	DefaultDailyLimit   float64            `yaml:"default_daily_limit" env:"DEFAULT_DAILY_LIMIT"`
	ProviderDailyLimits map[string]float64 `yaml:"provider_daily_limits" env:"-"`
	RequireApproval     bool               `yaml:"require_approval" env:"REQUIRE_APPROVAL"`
}

// HealthConfig is the quarantine monitor configuration.
type HealthConfig struct {
	CooldownPeriod       time.Duration `yaml:"cooldown_period" env:"COOLDOWN_PERIOD"`
	WindowSize           int           `yaml:"window_size" env:"WINDOW_SIZE"`
	MinSamples           int           `yaml:"min_samples" env:"MIN_SAMPLES"`
	FailureRateThreshold float64       `yaml:"failure_rate_threshold" env:"FAILURE_RATE_THRESHOLD"`
}

// ChainConfig is the scene chain configuration.
type ChainConfig struct {
	MaxHops int `yaml:"max_hops" env:"MAX_HOPS"`
	// MaxRetries is the per-scene retry budget. A negative value disables
	// retries entirely (one attempt per scene).
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryDelay     time.Duration `yaml:"retry_delay" env:"RETRY_DELAY"`
	MaxWaitPerStep time.Duration `yaml:"max_wait_per_step" env:"MAX_WAIT_PER_STEP"`
	PollInterval   time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
}

// EnabledProviderConfig is one rotation entry.
type EnabledProviderConfig struct {
	ProviderID string `yaml:"provider_id"`
	Priority   int    `yaml:"priority"`
	Enabled    bool   `yaml:"enabled"`
}

// ProvidersConfig holds per-provider credentials and the rotation.
type ProvidersConfig struct {
	Runway     RunwayConfig     `yaml:"runway" env:"RUNWAY"`
	Veo        VeoConfig        `yaml:"veo" env:"VEO"`
	Kling      KlingConfig      `yaml:"kling" env:"KLING"`
	Flux       FluxConfig       `yaml:"flux" env:"FLUX"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs" env:"ELEVENLABS"`

	// Enabled is the default rotation used when a request does not carry
	// its own provider list.
	Enabled []EnabledProviderConfig `yaml:"enabled" env:"-"`

	// RequestsPerSecond applies a per-provider rate limit. Zero means
	// unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
}

// RunwayConfig holds Runway credentials.
type RunwayConfig struct {
	APIKey  string `yaml:"api_key" env:"API_KEY"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	Model   string `yaml:"model" env:"MODEL"`
}

// VeoConfig holds Veo credentials.
type VeoConfig struct {
	APIKey  string `yaml:"api_key" env:"API_KEY"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	Model   string `yaml:"model" env:"MODEL"`
}

// KlingConfig holds Kling credentials.
type KlingConfig struct {
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	BaseURL   string `yaml:"base_url" env:"BASE_URL"`
	Model     string `yaml:"model" env:"MODEL"`
}

// FluxConfig holds Flux credentials.
type FluxConfig struct {
	APIKey  string `yaml:"api_key" env:"API_KEY"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	Model   string `yaml:"model" env:"MODEL"`
}

// ElevenLabsConfig holds ElevenLabs credentials.
type ElevenLabsConfig struct {
	APIKey  string `yaml:"api_key" env:"API_KEY"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	Voice   string `yaml:"voice" env:"VOICE"`
}

// Loader loads configuration with builder-style options.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the MEDIAFLOW env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "MEDIAFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator appends a validation function run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves the configuration: defaults, then YAML, then env.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Missing file falls back to defaults.
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// Comma-separated string slices only.
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad loads the configuration or panics.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server addr must not be empty")
	}
	if c.Chain.MaxHops <= 0 {
		errs = append(errs, "chain max_hops must be positive")
	}
	if c.Health.FailureRateThreshold < 0 || c.Health.FailureRateThreshold > 1 {
		errs = append(errs, "health failure_rate_threshold must be between 0 and 1")
	}
	if c.Budget.DefaultDailyLimit < 0 {
		errs = append(errs, "budget default_daily_limit must not be negative")
	}
	for _, p := range c.Providers.Enabled {
		if p.ProviderID == "" {
			errs = append(errs, "enabled provider entries need a provider_id")
			break
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
