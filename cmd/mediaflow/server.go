package main

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/inkwell-ai/mediaflow/api"
	"github.com/inkwell-ai/mediaflow/config"
	"github.com/inkwell-ai/mediaflow/internal/cache"
	"github.com/inkwell-ai/mediaflow/internal/database"
	"github.com/inkwell-ai/mediaflow/internal/metrics"
	"github.com/inkwell-ai/mediaflow/internal/server"
	"github.com/inkwell-ai/mediaflow/media"
	"github.com/inkwell-ai/mediaflow/media/budget"
	"github.com/inkwell-ai/mediaflow/media/chain"
	"github.com/inkwell-ai/mediaflow/media/health"
	"github.com/inkwell-ai/mediaflow/media/image"
	"github.com/inkwell-ai/mediaflow/media/speech"
	"github.com/inkwell-ai/mediaflow/media/video"
)

// Server owns every runtime component and their shutdown order.
type Server struct {
	cfg        *config.Config
	logger     *zap.Logger
	manager    *server.Manager
	redisCache *cache.Manager
	pool       *database.PoolManager
}

// NewServer wires the full component graph from configuration: metrics,
// outcome cache, health monitor, budget gate, provider registry,
// orchestration engine, chain builder and the HTTP router. pool may be
// nil; the monitor and gate then run in-memory only.
func NewServer(cfg *config.Config, logger *zap.Logger, pool *database.PoolManager) (*Server, error) {
	collector := metrics.NewCollector("mediaflow", nil, logger)

	s := &Server{cfg: cfg, logger: logger, pool: pool}

	var db *gorm.DB
	if pool != nil {
		db = pool.DB()
	}

	var statusCache media.StatusCache
	if cfg.Redis.Enabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.Addr = cfg.Redis.Addr
		cacheCfg.Password = cfg.Redis.Password
		cacheCfg.DB = cfg.Redis.DB
		if cfg.Redis.PoolSize > 0 {
			cacheCfg.PoolSize = cfg.Redis.PoolSize
		}
		if cfg.Redis.MinIdleConns > 0 {
			cacheCfg.MinIdleConns = cfg.Redis.MinIdleConns
		}
		redisCache, err := cache.NewManager(cacheCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect outcome cache: %w", err)
		}
		s.redisCache = redisCache
		statusCache = redisCache
	} else {
		statusCache = cache.NewMemory()
	}

	monitor := health.NewMonitor(health.Config{
		CooldownPeriod:       cfg.Health.CooldownPeriod,
		WindowSize:           cfg.Health.WindowSize,
		MinSamples:           cfg.Health.MinSamples,
		FailureRateThreshold: cfg.Health.FailureRateThreshold,
	}, db, collector, logger)

	gate := budget.NewGate(budget.Config{
		DefaultDailyLimit:   cfg.Budget.DefaultDailyLimit,
		ProviderDailyLimits: cfg.Budget.ProviderDailyLimits,
		RequireApproval:     cfg.Budget.RequireApproval,
	}, db, collector, logger)

	if db != nil {
		if err := monitor.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("migrate health records: %w", err)
		}
		if err := gate.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("migrate cost ledger: %w", err)
		}
	}

	registry := buildRegistry(cfg.Providers, logger)

	engine := media.NewEngine(registry, monitor, gate, statusCache, logger)
	builder := chain.NewBuilder(engine, logger)

	router := api.NewRouter(api.Deps{
		Engine:           engine,
		Builder:          builder,
		Registry:         registry,
		Monitor:          monitor,
		Gate:             gate,
		DefaultProviders: defaultRotation(cfg.Providers.Enabled),
		ChainDefaults: chain.Config{
			MaxHops:        cfg.Chain.MaxHops,
			MaxRetries:     cfg.Chain.MaxRetries,
			RetryDelay:     cfg.Chain.RetryDelay,
			MaxWaitPerStep: cfg.Chain.MaxWaitPerStep,
			PollInterval:   cfg.Chain.PollInterval,
		},
		Collector: collector,
		Version:   Version,
		Logger:    logger,
	})

	s.manager = server.NewManager(router, server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	return s, nil
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.manager.Start()
}

// WaitForShutdown blocks until a termination signal or server error, then
// drains in-flight requests and closes the outcome cache.
func (s *Server) WaitForShutdown() {
	s.manager.WaitForShutdown()
	if s.redisCache != nil {
		if err := s.redisCache.Close(); err != nil {
			s.logger.Warn("failed to close outcome cache", zap.Error(err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			s.logger.Warn("failed to close database pool", zap.Error(err))
		}
	}
}

// buildRegistry registers every provider adapter. Adapters without
// credentials are still registered; the orchestrator skips unconfigured
// providers so a missing key degrades the rotation instead of failing it.
func buildRegistry(cfg config.ProvidersConfig, logger *zap.Logger) *media.Registry {
	registry := media.NewRegistry()
	rps := cfg.RequestsPerSecond
	burst := 1
	if rps > 1 {
		burst = int(rps)
	}

	runwayCfg := video.DefaultRunwayConfig()
	runwayCfg.APIKey = cfg.Runway.APIKey
	if cfg.Runway.BaseURL != "" {
		runwayCfg.BaseURL = cfg.Runway.BaseURL
	}
	if cfg.Runway.Model != "" {
		runwayCfg.Model = cfg.Runway.Model
	}
	registry.RegisterWithLimit(video.NewRunwayProvider(runwayCfg, logger), rps, burst)

	veoCfg := video.DefaultVeoConfig()
	veoCfg.APIKey = cfg.Veo.APIKey
	if cfg.Veo.BaseURL != "" {
		veoCfg.BaseURL = cfg.Veo.BaseURL
	}
	if cfg.Veo.Model != "" {
		veoCfg.Model = cfg.Veo.Model
	}
	registry.RegisterWithLimit(video.NewVeoProvider(veoCfg, logger), rps, burst)

	klingCfg := video.DefaultKlingConfig()
	klingCfg.AccessKey = cfg.Kling.AccessKey
	klingCfg.SecretKey = cfg.Kling.SecretKey
	if cfg.Kling.BaseURL != "" {
		klingCfg.BaseURL = cfg.Kling.BaseURL
	}
	if cfg.Kling.Model != "" {
		klingCfg.Model = cfg.Kling.Model
	}
	registry.RegisterWithLimit(video.NewKlingProvider(klingCfg, logger), rps, burst)

	fluxCfg := image.DefaultFluxConfig()
	fluxCfg.APIKey = cfg.Flux.APIKey
	if cfg.Flux.BaseURL != "" {
		fluxCfg.BaseURL = cfg.Flux.BaseURL
	}
	if cfg.Flux.Model != "" {
		fluxCfg.Model = cfg.Flux.Model
	}
	registry.RegisterWithLimit(image.NewFluxProvider(fluxCfg, logger), rps, burst)

	elevenCfg := speech.DefaultElevenLabsConfig()
	elevenCfg.APIKey = cfg.ElevenLabs.APIKey
	if cfg.ElevenLabs.BaseURL != "" {
		elevenCfg.BaseURL = cfg.ElevenLabs.BaseURL
	}
	if cfg.ElevenLabs.Voice != "" {
		elevenCfg.Voice = cfg.ElevenLabs.Voice
	}
	registry.RegisterWithLimit(speech.NewElevenLabsProvider(elevenCfg, logger), rps, burst)

	return registry
}

// defaultRotation converts the configured rotation entries into the
// engine's enabled-provider form.
func defaultRotation(entries []config.EnabledProviderConfig) []media.EnabledProvider {
	out := make([]media.EnabledProvider, 0, len(entries))
	for _, e := range entries {
		out = append(out, media.EnabledProvider{
			ProviderID: e.ProviderID,
			Priority:   e.Priority,
			Enabled:    e.Enabled,
		})
	}
	return out
}
