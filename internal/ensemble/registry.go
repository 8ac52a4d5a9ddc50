package ensemble

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "go-eye-inspector/internal/errors"
	"go-eye-inspector/internal/logger"
	"go-eye-inspector/internal/observer"
	"go-eye-inspector/pkg/models"
)

const maxParallelLoads = 4

// Registry loads the configured models once per process and keeps the
// ones that loaded. After Load returns, the model list is read-only.
type Registry struct {
	specs   []ModelSpec
	builder ModelBuilder
	events  observer.Subject

	once   sync.Once
	mu     sync.RWMutex
	loaded []Model
	status []models.ModelStatus
	done   bool
}

// NewRegistry creates a registry for specs. Nothing is loaded until Load.
func NewRegistry(specs []ModelSpec, builder ModelBuilder, events observer.Subject) *Registry {
	return &Registry{
		specs:   append([]ModelSpec(nil), specs...),
		builder: builder,
		events:  events,
	}
}

// Load performs the one-time initialisation and returns the usable models
// in configuration order. Models that fail to load are recorded as
// unavailable and skipped. Cancelling ctx does not abort the shared load.
func (r *Registry) Load(ctx context.Context) []Model {
	r.once.Do(func() {
		r.load(context.WithoutCancel(ctx))
	})
	return r.Models()
}

func (r *Registry) load(ctx context.Context) {
	log := logger.Component("registry")
	slots := make([]Model, len(r.specs))
	status := make([]models.ModelStatus, len(r.specs))

	g := new(errgroup.Group)
	g.SetLimit(maxParallelLoads)
	for i, spec := range r.specs {
		g.Go(func() error {
			start := time.Now()
			model, err := r.loadOne(ctx, spec)
			st := models.ModelStatus{
				Name:     spec.Name,
				Backend:  spec.Backend,
				Location: spec.Location,
				Weight:   spec.Weight,
			}
			if err != nil {
				unavailable := apperrors.NewModelUnavailableError(spec.Name, err)
				st.LoadError = err.Error()
				status[i] = st
				log.WithError(unavailable).WithField("model", spec.Name).Warn("Skipping model")
				observer.Publish(ctx, r.events, observer.AnalysisEvent{
					EventType:      observer.ModelLoadFailed,
					Model:          spec.Name,
					ProcessingTime: time.Since(start),
					ErrorMessage:   err.Error(),
				})
				return nil
			}

			info := model.Info()
			st.Loaded = true
			st.Classes = info.Classes
			st.InputSize = info.InputSize
			st.Providers = info.Providers
			status[i] = st
			slots[i] = model
			observer.Publish(ctx, r.events, observer.AnalysisEvent{
				EventType:      observer.ModelLoaded,
				Model:          spec.Name,
				ProcessingTime: time.Since(start),
				Success:        true,
				Metadata:       map[string]interface{}{"providers": info.Providers},
			})
			return nil
		})
	}
	_ = g.Wait()

	var loaded []Model
	for _, m := range slots {
		if m != nil {
			loaded = append(loaded, m)
		}
	}

	r.mu.Lock()
	r.loaded = loaded
	r.status = status
	r.done = true
	r.mu.Unlock()

	log.WithField("loaded", len(loaded)).WithField("configured", len(r.specs)).Info("Model registry initialised")
}

func (r *Registry) loadOne(ctx context.Context, spec ModelSpec) (Model, error) {
	if r.builder == nil {
		return nil, errors.New("no model builder configured")
	}
	model, err := r.builder.Create(spec)
	if err != nil {
		return nil, err
	}
	if err := model.Load(ctx); err != nil {
		_ = model.Close()
		return nil, err
	}
	return model, nil
}

// Models returns the loaded models. It is empty before Load.
func (r *Registry) Models() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Model(nil), r.loaded...)
}

// Status reports the outcome of the one-time load.
func (r *Registry) Status() models.RuntimeStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := models.RuntimeStatus{
		Initialized: r.done,
		Loaded:      len(r.loaded),
		Configured:  len(r.specs),
		Providers:   providersOf(r.loaded),
		Models:      append([]models.ModelStatus(nil), r.status...),
	}
	if !r.done {
		for _, spec := range r.specs {
			st.Models = append(st.Models, models.ModelStatus{
				Name:     spec.Name,
				Backend:  spec.Backend,
				Location: spec.Location,
				Weight:   spec.Weight,
			})
		}
	}
	return st
}

// Close releases every loaded model.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, m := range r.loaded {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.loaded = nil
	return errors.Join(errs...)
}

func providersOf(ms []Model) []string {
	infos := make([]ModelInfo, len(ms))
	for i, m := range ms {
		infos[i] = m.Info()
	}
	return providersOfInfo(infos)
}
