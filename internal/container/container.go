package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go-eye-inspector/internal/analyzer"
	"go-eye-inspector/internal/cache"
	"go-eye-inspector/internal/config"
	"go-eye-inspector/internal/ensemble"
	"go-eye-inspector/internal/factory"
	"go-eye-inspector/internal/logger"
	"go-eye-inspector/internal/observer"
	"go-eye-inspector/internal/repository"
	"go-eye-inspector/internal/service"
	"go-eye-inspector/internal/transport"
	"go-eye-inspector/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	events          *observer.EventPublisher
	metrics         *observer.MetricsObserver
	artifacts       repository.ArtifactRepository
	registry        *ensemble.Registry
	engine          *analyzer.Engine
	cache           cache.Cache
	analysisService service.AnalysisService
	handler         http.Handler
}

// NewContainer builds the dependency graph from cfg. Models are not loaded
// here; see Warm.
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Engine == nil {
		return nil, errors.New("engine config is required")
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	fetchers := factory.NewFetcherFactory(cfg.ArtifactTimeout, cfg.AzureAccountName, cfg.AzureAccountKey)
	artifacts := repository.NewArtifactRepository(cfg.ModelCacheDir, fetchers, validation.NewLocationValidator())

	var registry *ensemble.Registry
	if specs := ensemble.SpecsFromConfig(cfg.Engine); len(specs) > 0 {
		builder := factory.NewModelFactory(artifacts, cfg.Engine.Ensemble.LibraryPath, &http.Client{Timeout: cfg.Engine.Ensemble.ModelTimeout})
		registry = ensemble.NewRegistry(specs, builder, events)
	}
	engine := analyzer.NewEngine(cfg.Engine, registry, events)

	var resultCache cache.Cache = cache.NoopCache{}
	if cfg.CacheEnabled() {
		redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisCache.Ping(ctx); err != nil {
			// stays enabled; failed lookups count as misses
			logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("Result cache unreachable at startup")
		}
		cancel()
		resultCache = redisCache
	}

	analysisService := service.NewAnalysisService(engine, resultCache, events, service.Options{
		MaxConcurrent:     cfg.MaxConcurrentAnalyses,
		Timeout:           cfg.AnalysisTimeout,
		EngineFingerprint: cfg.Engine.Fingerprint(),
	})
	handler := transport.NewHandler(analysisService, metrics, cfg)

	return &Container{
		config:          cfg,
		events:          events,
		metrics:         metrics,
		artifacts:       artifacts,
		registry:        registry,
		engine:          engine,
		cache:           resultCache,
		analysisService: analysisService,
		handler:         handler,
	}, nil
}

// Warm loads the configured models ahead of the first request
func (c *Container) Warm(ctx context.Context) {
	if c.registry == nil {
		return
	}
	loaded := c.registry.Load(ctx)
	logger.WithFields(map[string]interface{}{
		"loaded":     len(loaded),
		"configured": len(c.config.Engine.Models),
	}).Info("Model registry ready")
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the analysis service
func (c *Container) Service() service.AnalysisService {
	return c.analysisService
}

// Engine returns the analysis engine
func (c *Container) Engine() *analyzer.Engine {
	return c.engine
}

// Metrics returns the event counters
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// Close releases models, the worker pool and the cache connection
func (c *Container) Close() error {
	var errs []error
	if err := c.engine.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.registry != nil {
		if err := c.registry.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.cache.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
