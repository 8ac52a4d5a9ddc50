package ensemble

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"go-eye-inspector/internal/logger"
	"go-eye-inspector/internal/observer"
	"go-eye-inspector/pkg/models"
)

// ClassifyOptions controls test-time augmentation for one call.
type ClassifyOptions struct {
	Views int
	Seed  uint64
}

// Result is the ensemble output for one image. Probabilities and
// Uncertainty are nil when no model produced a vector.
type Result struct {
	Probabilities *models.ClassProbabilities
	Uncertainty   *models.UncertaintyEstimate
	Runtime       models.RuntimeInfo
	PerModel      []models.ModelContribution
}

// Ran reports whether at least one model contributed.
func (r Result) Ran() bool {
	return r.Probabilities != nil && !r.Probabilities.IsEmpty()
}

// Classifier runs every loaded model over the augmented views of an image
// and combines the outputs.
type Classifier struct {
	registry     *Registry
	augmenter    Augmenter
	events       observer.Subject
	modelTimeout time.Duration
	maxParallel  int
}

// NewClassifier creates a classifier over a registry. Non-positive limits
// mean no timeout and a parallelism of one.
func NewClassifier(registry *Registry, events observer.Subject, modelTimeout time.Duration, maxParallel int) *Classifier {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Classifier{
		registry:     registry,
		events:       events,
		modelTimeout: modelTimeout,
		maxParallel:  maxParallel,
	}
}

// Status exposes the registry state.
func (c *Classifier) Status() models.RuntimeStatus {
	if c.registry == nil {
		return models.RuntimeStatus{Providers: []string{}}
	}
	return c.registry.Status()
}

type modelRun struct {
	model ModelInfo
	runs  []models.ClassProbabilities
	errs  []error
}

// Classify never fails: models that error or time out are dropped and
// reported through events.
func (c *Classifier) Classify(ctx context.Context, img image.Image, opts ClassifyOptions) Result {
	empty := Result{Runtime: models.RuntimeInfo{Providers: []string{}}}
	if c.registry == nil {
		return empty
	}
	loaded := c.registry.Load(ctx)
	if len(loaded) == 0 {
		return empty
	}

	views := c.augmenter.Views(img, opts.Views, opts.Seed)
	outcomes := make([]modelRun, len(loaded))
	cancels := make([]context.CancelFunc, len(loaded))
	contexts := make([]context.Context, len(loaded))
	for i, m := range loaded {
		outcomes[i] = modelRun{
			model: m.Info(),
			runs:  make([]models.ClassProbabilities, len(views)),
			errs:  make([]error, len(views)),
		}
		if c.modelTimeout > 0 {
			contexts[i], cancels[i] = context.WithTimeout(ctx, c.modelTimeout)
		} else {
			contexts[i], cancels[i] = context.WithCancel(ctx)
		}
	}
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

	g := new(errgroup.Group)
	g.SetLimit(c.maxParallel)
	for i, m := range loaded {
		for k, view := range views {
			g.Go(func() error {
				mctx := contexts[i]
				if err := mctx.Err(); err != nil {
					outcomes[i].errs[k] = err
					return nil
				}
				probs, err := inferWithContext(mctx, m, view)
				if err != nil {
					outcomes[i].errs[k] = err
					// one failed view drops the model, stop its other views
					cancels[i]()
					return nil
				}
				outcomes[i].runs[k] = Canonicalize(probs)
				return nil
			})
		}
	}
	_ = g.Wait()

	return c.combine(ctx, outcomes, len(views))
}

func (c *Classifier) combine(ctx context.Context, outcomes []modelRun, views int) Result {
	log := logger.Component("ensemble")

	var (
		perModel      []models.ClassProbabilities
		weights       []float64
		allRuns       []models.ClassProbabilities
		used          []ModelInfo
		contributions []models.ModelContribution
	)
	for _, o := range outcomes {
		if err := firstError(o.errs); err != nil {
			event := observer.ModelRunFailed
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				event = observer.ModelCancelled
			}
			log.WithError(err).WithField("model", o.model.Name).Warn("Dropping model from ensemble")
			observer.Publish(ctx, c.events, observer.AnalysisEvent{
				EventType:    event,
				Model:        o.model.Name,
				ErrorMessage: err.Error(),
			})
			continue
		}

		vector, err := Mean(o.runs)
		if err != nil {
			continue
		}
		perModel = append(perModel, vector)
		weights = append(weights, o.model.Weight)
		allRuns = append(allRuns, o.runs...)
		used = append(used, o.model)
		contributions = append(contributions, models.ModelContribution{
			Name:          o.model.Name,
			Weight:        o.model.Weight,
			Runs:          len(o.runs),
			Probabilities: vector,
		})
	}

	result := Result{Runtime: models.RuntimeInfo{ModelCount: len(used), Providers: []string{}}}
	if len(perModel) == 0 {
		return result
	}

	ensemble, err := WeightedMean(perModel, weights)
	if err != nil {
		return Result{Runtime: models.RuntimeInfo{Providers: []string{}}}
	}
	nw := normalizedWeights(weights, len(weights))
	for i := range contributions {
		contributions[i].Weight = nw[i]
	}

	result.Probabilities = &ensemble
	result.Uncertainty = EstimateUncertainty(ensemble, allRuns, views)
	result.Runtime.Providers = providersOfInfo(used)
	result.PerModel = contributions
	return result
}

// inferWithContext abandons a call that outlives ctx. The model may keep
// running in the background; its result is discarded.
func inferWithContext(ctx context.Context, m Model, view image.Image) (models.ClassProbabilities, error) {
	type outcome struct {
		probs models.ClassProbabilities
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("model panicked: %v", r)}
			}
		}()
		p, err := m.Infer(ctx, view)
		done <- outcome{probs: p, err: err}
	}()

	select {
	case <-ctx.Done():
		return models.ClassProbabilities{}, ctx.Err()
	case o := <-done:
		if o.err == nil && o.probs.IsEmpty() {
			return o.probs, errors.New("model returned no classes")
		}
		return o.probs, o.err
	}
}

// firstError prefers a real failure over the cancellations it triggered.
func firstError(errs []error) error {
	var cancelled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			if cancelled == nil {
				cancelled = err
			}
			continue
		}
		return err
	}
	return cancelled
}

// providersOfInfo returns the sorted union of execution providers.
func providersOfInfo(infos []ModelInfo) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, info := range infos {
		for _, p := range info.Providers {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out
}
