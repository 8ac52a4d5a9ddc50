package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-eye-inspector/internal/analyzer"
	"go-eye-inspector/internal/cache"
	apperrors "go-eye-inspector/internal/errors"
	"go-eye-inspector/internal/logger"
	"go-eye-inspector/internal/observer"
	"go-eye-inspector/internal/strategy"
	"go-eye-inspector/pkg/models"
)

// AnalysisService runs eye photo analyses for the outer surfaces
type AnalysisService interface {
	// Analyze runs the named profile over raw image bytes
	Analyze(ctx context.Context, data []byte, profile string) (*models.AnalysisResponse, error)

	// Runtime reports the model registry state
	Runtime() models.RuntimeStatus
}

// Options tunes the service
type Options struct {
	// MaxConcurrent bounds analyses in flight; further requests wait
	MaxConcurrent int
	// Timeout bounds a single analysis after it leaves the queue
	Timeout time.Duration
	// EngineFingerprint identifies the engine configuration in cache keys
	EngineFingerprint string
}

// analysisService implements AnalysisService
type analysisService struct {
	engine   analyzer.EyeAnalyzer
	cache    cache.Cache
	events   observer.Subject
	sem      chan struct{}
	timeout  time.Duration
	engineFP string
}

// NewAnalysisService creates a new analysis service. A nil cache disables caching.
func NewAnalysisService(engine analyzer.EyeAnalyzer, c cache.Cache, events observer.Subject, opts Options) AnalysisService {
	if c == nil {
		c = cache.NoopCache{}
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &analysisService{
		engine:   engine,
		cache:    c,
		events:   events,
		sem:      make(chan struct{}, opts.MaxConcurrent),
		timeout:  opts.Timeout,
		engineFP: opts.EngineFingerprint,
	}
}

func (s *analysisService) Analyze(ctx context.Context, data []byte, profile string) (*models.AnalysisResponse, error) {
	start := time.Now()

	strat, err := strategy.Resolve(profile)
	if err != nil {
		return nil, err
	}
	opts := strat.Options(s.engine.DefaultOptions())

	digest := sha1.Sum(data)
	resp := &models.AnalysisResponse{
		RequestID: uuid.NewString(),
		ImageSHA1: hex.EncodeToString(digest[:]),
		Timestamp: start.UTC().Format(time.RFC3339),
		Profile:   strat.GetStrategyName(),
	}
	log := logger.Component("analysis_service").WithFields(logrus.Fields{
		"request_id": resp.RequestID,
		"image_sha1": resp.ImageSHA1,
		"profile":    resp.Profile,
	})

	s.publish(ctx, observer.AnalysisStarted, resp, 0, nil)

	key := cache.Key(resp.ImageSHA1, cache.Fingerprint(struct {
		Engine  string
		Options analyzer.AnalysisOptions
	}{s.engineFP, opts}))

	if cached, ok := s.cache.Get(ctx, key); ok {
		resp.CacheHit = true
		resp.Result = *cached
		resp.ProcessingTimeSec = time.Since(start).Seconds()
		s.publish(ctx, observer.CacheHit, resp, 0, nil)
		s.publish(ctx, observer.AnalysisCompleted, resp, time.Since(start), nil)
		log.Debug("Served analysis from cache")
		return resp, nil
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		err := s.contextError(ctx.Err())
		s.publish(ctx, observer.AnalysisFailed, resp, time.Since(start), err)
		return nil, err
	}

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.engine.AnalyzeWithOptions(runCtx, data, opts)
	if err != nil {
		s.publish(ctx, observer.AnalysisFailed, resp, time.Since(start), err)
		log.WithError(err).Warn("Analysis failed")
		return nil, err
	}

	resp.Result = result
	resp.ProcessingTimeSec = time.Since(start).Seconds()

	if s.cacheable(result, opts) {
		// a result produced after the caller left is still valid for the cache
		s.cache.Set(context.WithoutCancel(ctx), key, result)
	} else {
		log.WithField("model_count", result.Runtime.ModelCount).Debug("Skipping cache for degraded ensemble result")
	}
	s.publish(ctx, observer.AnalysisCompleted, resp, time.Since(start), nil)

	log.WithFields(logrus.Fields{
		"diagnosis":          result.Diagnosis,
		"severity":           result.Severity,
		"decision_source":    result.DecisionSource,
		"processing_time_ms": time.Since(start).Milliseconds(),
	}).Info("Analysis completed")

	return resp, nil
}

// cacheable rejects results where loaded models dropped out of the ensemble;
// those failures are transient and must not outlive the request.
func (s *analysisService) cacheable(result models.FusionResult, opts analyzer.AnalysisOptions) bool {
	if opts.SkipEnsemble {
		return true
	}
	return result.Runtime.ModelCount >= s.engine.Runtime().Loaded
}

func (s *analysisService) Runtime() models.RuntimeStatus {
	return s.engine.Runtime()
}

func (s *analysisService) contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("timed out waiting for an analysis slot", err)
	}
	return apperrors.NewProcessingError("request cancelled while queued", err)
}

func (s *analysisService) publish(ctx context.Context, eventType observer.EventType, resp *models.AnalysisResponse, took time.Duration, err error) {
	event := observer.AnalysisEvent{
		EventType:      eventType,
		RequestID:      resp.RequestID,
		ImageSHA1:      resp.ImageSHA1,
		ProcessingTime: took,
		Success:        err == nil,
		Metadata:       map[string]interface{}{"profile": resp.Profile},
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	observer.Publish(ctx, s.events, event)
}
