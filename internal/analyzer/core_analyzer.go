package analyzer

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"go-eye-inspector/internal/ensemble"
	"go-eye-inspector/internal/fusion"
	"go-eye-inspector/internal/logger"
	"go-eye-inspector/internal/observer"
	"go-eye-inspector/internal/report"
	engineconfig "go-eye-inspector/pkg/config"
	"go-eye-inspector/pkg/models"
	"go-eye-inspector/pkg/validation"
)

// Engine orchestrates feature extraction, the ensemble, fusion and result
// assembly. It is safe for concurrent use.
type Engine struct {
	workerPool       *WorkerPool
	extractor        FeatureExtractor
	classifier       Classifier
	qualityValidator *validation.QualityValidator
	assembler        *report.Assembler
	events           observer.Subject
	defaults         AnalysisOptions
}

// NewEngine builds an engine from configuration and a model registry. A nil
// registry runs the heuristic path only.
func NewEngine(cfg *engineconfig.EngineConfig, registry *ensemble.Registry, events observer.Subject) *Engine {
	if cfg == nil {
		cfg = engineconfig.Default()
	}
	var classifier Classifier
	if registry != nil {
		classifier = ensemble.NewClassifier(registry, events, cfg.Ensemble.ModelTimeout, cfg.Ensemble.MaxParallel)
	}
	return NewEngineWithClassifier(OptionsFromConfig(cfg), classifier, events)
}

// NewEngineWithClassifier builds an engine around any classifier; nil
// disables the ensemble.
func NewEngineWithClassifier(defaults AnalysisOptions, classifier Classifier, events observer.Subject) *Engine {
	workerPool := NewWorkerPool(0) // Use default CPU count
	workerPool.Start()

	calc := NewMetricsCalculator(workerPool)
	return &Engine{
		workerPool:       workerPool,
		extractor:        NewFeatureExtractor(calc, NewRegionDetector(calc)),
		classifier:       classifier,
		qualityValidator: validation.NewQualityValidator(),
		assembler:        report.NewAssembler(nil),
		events:           events,
		defaults:         defaults,
	}
}

// DefaultOptions returns the options Analyze uses
func (e *Engine) DefaultOptions() AnalysisOptions {
	return e.defaults
}

// Analyze runs the full pipeline with the configured options
func (e *Engine) Analyze(ctx context.Context, data []byte) (models.FusionResult, error) {
	return e.AnalyzeWithOptions(ctx, data, e.defaults)
}

// AnalyzeWithOptions runs the full pipeline. The only error it returns is
// an invalid_image error for undecodable input; model failures degrade to
// the heuristic path.
func (e *Engine) AnalyzeWithOptions(ctx context.Context, data []byte, opts AnalysisOptions) (models.FusionResult, error) {
	start := time.Now()
	log := logger.Component("engine")

	buf, err := DecodeImageWithLimit(data, opts.MaxPixels)
	if err != nil {
		return models.FusionResult{}, err
	}

	var (
		features models.FeatureSet
		result   ensemble.Result
	)
	runEnsemble := e.classifier != nil && !opts.SkipEnsemble

	g := new(errgroup.Group)
	g.Go(func() error {
		features = e.extractor.Extract(buf, opts)
		return nil
	})
	if runEnsemble {
		g.Go(func() error {
			result = e.classifier.Classify(ctx, buf.Image(), ensemble.ClassifyOptions{
				Views: max(1, opts.Augmentations),
				Seed:  ensemble.DeriveSeed(opts.Seed, data),
			})
			return nil
		})
	}
	_ = g.Wait()

	if !result.Ran() {
		result = ensemble.Result{Runtime: models.RuntimeInfo{Providers: []string{}}}
	}

	fuser := fusion.NewEngine(opts.Thresholds, opts.LowQualityCap)
	decision := fuser.Decide(features, result.Probabilities)

	scores := fusion.HeuristicScores(features)
	if result.Ran() {
		scores = *result.Probabilities
	}
	coFindings := fusion.NewDetector(opts.Thresholds).CoFindings(scores, decision.MatchedClass)

	issues := e.qualityValidator.Validate(features)
	if features.IsLowQuality() {
		observer.Publish(ctx, e.events, observer.AnalysisEvent{
			EventType: observer.QualityLow,
			Metadata:  map[string]interface{}{"quality_score": features.QualityScore},
		})
	}

	fr := e.assembler.Assemble(report.Inputs{
		Decision:      decision,
		Features:      features,
		CoFindings:    coFindings,
		Uncertainty:   result.Uncertainty,
		Runtime:       result.Runtime,
		Probabilities: result.Probabilities,
		QualityIssues: e.qualityValidator.ConvertIssuesToMessages(issues),
	})

	log.WithFields(map[string]interface{}{
		"diagnosis":       fr.Diagnosis,
		"severity":        fr.Severity,
		"confidence":      fr.ConfidenceScore,
		"decision_source": fr.DecisionSource,
		"model_count":     fr.Runtime.ModelCount,
		"width":           buf.Width,
		"height":          buf.Height,
		"format":          buf.Format,
		"duration_ms":     time.Since(start).Milliseconds(),
	}).Debug("Analysis finished")

	return fr, nil
}

// Runtime reports the model registry state
func (e *Engine) Runtime() models.RuntimeStatus {
	if e.classifier == nil {
		return models.RuntimeStatus{Initialized: true, Providers: []string{}, Models: []models.ModelStatus{}}
	}
	return e.classifier.Status()
}

// PoolStats exposes the pixel-scan pool counters
func (e *Engine) PoolStats() PoolStats {
	return e.workerPool.GetStats()
}

// Close releases the worker pool
func (e *Engine) Close() error {
	e.workerPool.Close()
	return nil
}
