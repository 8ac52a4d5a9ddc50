package ensemble

import (
	"context"
	"image"

	engineconfig "go-eye-inspector/pkg/config"
	"go-eye-inspector/pkg/models"
)

// Model backends.
const (
	BackendONNX = "onnx"
	BackendHTTP = "http"
)

// ModelInfo describes a model once its metadata is known.
type ModelInfo struct {
	Name      string
	Backend   string
	Location  string
	Classes   []string
	InputSize int
	Weight    float64
	Providers []string
}

// Model is one ensemble member. Infer must be safe for concurrent use after
// Load has returned.
type Model interface {
	Load(ctx context.Context) error
	Infer(ctx context.Context, view image.Image) (models.ClassProbabilities, error)
	Info() ModelInfo
	Close() error
}

// ModelBuilder creates a model for a spec without loading it.
type ModelBuilder interface {
	Create(spec ModelSpec) (Model, error)
}

// ArtifactResolver turns a model location into a readable local path.
type ArtifactResolver interface {
	Resolve(ctx context.Context, location string) (string, error)
}

// ModelSpec is the runtime form of a configured model.
type ModelSpec struct {
	Name        string
	Location    string
	Backend     string
	Weight      float64
	Classes     []string
	InputSize   int
	Mean        [3]float32
	Std         [3]float32
	InputName   string
	OutputName  string
	Providers   []string
	Temperature float64
	UseCUDA     bool
}

// SpecsFromConfig converts the configured model list. Per-model temperature
// falls back to the ensemble default.
func SpecsFromConfig(cfg *engineconfig.EngineConfig) []ModelSpec {
	specs := make([]ModelSpec, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		temp := m.Temperature
		if temp == 0 {
			temp = cfg.Ensemble.Temperature
		}
		specs = append(specs, ModelSpec{
			Name:        m.Name,
			Location:    m.Location,
			Backend:     m.Backend,
			Weight:      m.Weight,
			Classes:     append([]string(nil), m.Classes...),
			InputSize:   m.InputSize,
			Mean:        toFloat32x3(m.Mean, DefaultMean),
			Std:         toFloat32x3(m.Std, DefaultStd),
			InputName:   m.InputName,
			OutputName:  m.OutputName,
			Providers:   append([]string(nil), m.Providers...),
			Temperature: temp,
			UseCUDA:     cfg.Ensemble.UseCUDA,
		})
	}
	return specs
}

func (s ModelSpec) info() ModelInfo {
	return ModelInfo{
		Name:      s.Name,
		Backend:   s.Backend,
		Location:  s.Location,
		Classes:   append([]string(nil), s.Classes...),
		InputSize: s.InputSize,
		Weight:    s.Weight,
		Providers: append([]string(nil), s.Providers...),
	}
}
