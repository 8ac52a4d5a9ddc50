package ensemble

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"time"

	"go-eye-inspector/pkg/models"
)

type fakeModel struct {
	info    ModelInfo
	probs   []float64
	delay   time.Duration
	loadErr error
	runErr  error
	calls   atomic.Int32
	closed  atomic.Bool
}

func (f *fakeModel) Load(context.Context) error { return f.loadErr }

func (f *fakeModel) Infer(ctx context.Context, _ image.Image) (models.ClassProbabilities, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return models.ClassProbabilities{}, ctx.Err()
		}
	}
	if f.runErr != nil {
		return models.ClassProbabilities{}, f.runErr
	}
	return models.NewClassProbabilities(f.info.Classes, f.probs)
}

func (f *fakeModel) Info() ModelInfo { return f.info }

func (f *fakeModel) Close() error {
	f.closed.Store(true)
	return nil
}

// stubbornModel ignores cancellation entirely.
type stubbornModel struct {
	*fakeModel
}

func (s *stubbornModel) Infer(context.Context, image.Image) (models.ClassProbabilities, error) {
	time.Sleep(s.delay)
	return models.NewClassProbabilities(s.info.Classes, s.probs)
}

type fakeBuilder struct {
	models map[string]Model
}

func (b fakeBuilder) Create(spec ModelSpec) (Model, error) {
	m, ok := b.models[spec.Name]
	if !ok {
		return nil, errors.New("unknown model")
	}
	return m, nil
}

func newFake(name string, classes []string, probs []float64) *fakeModel {
	return &fakeModel{
		info: ModelInfo{
			Name:      name,
			Backend:   "fake",
			Classes:   classes,
			InputSize: 32,
			Weight:    1,
			Providers: []string{"CPUExecutionProvider"},
		},
		probs: probs,
	}
}

func newRegistry(ms ...Model) *Registry {
	builder := fakeBuilder{models: make(map[string]Model)}
	specs := make([]ModelSpec, 0, len(ms))
	for _, m := range ms {
		info := m.Info()
		builder.models[info.Name] = m
		specs = append(specs, ModelSpec{Name: info.Name, Backend: info.Backend, Weight: info.Weight})
	}
	return NewRegistry(specs, builder, nil)
}

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 120, A: 255})
		}
	}
	return img
}
