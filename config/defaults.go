package config

import "time"

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Log:       DefaultLogConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Budget:    DefaultBudgetConfig(),
		Health:    DefaultHealthConfig(),
		Chain:     DefaultChainConfig(),
		Providers: DefaultProvidersConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// DefaultLogConfig returns the default log configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}

// DefaultRedisConfig returns the default Redis configuration. Disabled by
// default: single-process deployments use the in-memory outcome cache.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig returns the default database configuration.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Enabled: true,
		Path:    "mediaflow.db",
	}
}

// DefaultBudgetConfig returns the default budget configuration.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		DefaultDailyLimit: 50.0,
		RequireApproval:   false,
	}
}

// DefaultHealthConfig returns the default quarantine monitor configuration.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		CooldownPeriod:       30 * time.Minute,
		WindowSize:           20,
		MinSamples:           10,
		FailureRateThreshold: 0.5,
	}
}

// DefaultChainConfig returns the default scene chain configuration.
func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		MaxHops:        20,
		MaxRetries:     2,
		RetryDelay:     5 * time.Second,
		MaxWaitPerStep: 5 * time.Minute,
		PollInterval:   5 * time.Second,
	}
}

// DefaultProvidersConfig returns the default provider configuration: all
// video providers in rotation, keyless until credentials arrive via YAML
// or environment.
func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		Enabled: []EnabledProviderConfig{
			{ProviderID: "runway", Priority: 1, Enabled: true},
			{ProviderID: "veo", Priority: 2, Enabled: true},
			{ProviderID: "kling", Priority: 3, Enabled: true},
		},
		RequestsPerSecond: 2,
	}
}
