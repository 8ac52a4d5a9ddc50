package ensemble

import (
	"context"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"go-eye-inspector/pkg/models"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// InitRuntime initialises the onnxruntime environment once per process.
// An empty library path uses the platform default lookup.
func InitRuntime(libraryPath string) error {
	ortOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortErr = fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	})
	return ortErr
}

// onnxModel runs a local ONNX classifier through a dynamic session, which
// allows concurrent Run calls with per-call tensors.
type onnxModel struct {
	spec        ModelSpec
	resolver    ArtifactResolver
	libraryPath string

	mu        sync.RWMutex
	session   *ort.DynamicAdvancedSession
	providers []string
}

// NewONNXModel creates an unloaded ONNX model.
func NewONNXModel(spec ModelSpec, resolver ArtifactResolver, libraryPath string) Model {
	return &onnxModel{spec: spec, resolver: resolver, libraryPath: libraryPath}
}

func (m *onnxModel) Load(ctx context.Context) error {
	if err := InitRuntime(m.libraryPath); err != nil {
		return err
	}
	if m.resolver == nil {
		return fmt.Errorf("no artifact resolver for %s", m.spec.Location)
	}

	path, err := m.resolver.Resolve(ctx, m.spec.Location)
	if err != nil {
		return fmt.Errorf("resolve model: %w", err)
	}
	meta, err := LoadMetadata(ctx, m.resolver, m.spec.Location)
	if err != nil {
		return fmt.Errorf("model metadata: %w", err)
	}

	spec := m.spec
	meta.Apply(&spec)

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return fmt.Errorf("inspect model: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("model %s has no inputs or outputs", path)
	}
	if spec.InputName == "" {
		spec.InputName = inputs[0].Name
	}
	if spec.OutputName == "" {
		spec.OutputName = outputs[0].Name
	}
	if len(spec.Classes) == 0 {
		return fmt.Errorf("model %s declares no classes", spec.Name)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()

	providers := []string{"CPUExecutionProvider"}
	if spec.UseCUDA {
		if cuda, err := ort.NewCUDAProviderOptions(); err == nil {
			if err := opts.AppendExecutionProviderCUDA(cuda); err == nil {
				providers = append([]string{"CUDAExecutionProvider"}, providers...)
			}
			cuda.Destroy()
		}
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{spec.InputName}, []string{spec.OutputName}, opts)
	if err != nil {
		return fmt.Errorf("failed to create ONNX session: %w", err)
	}

	m.mu.Lock()
	m.spec = spec
	m.session = session
	m.providers = providers
	m.mu.Unlock()
	return nil
}

func (m *onnxModel) Infer(ctx context.Context, view image.Image) (models.ClassProbabilities, error) {
	m.mu.RLock()
	session, spec := m.session, m.spec
	m.mu.RUnlock()
	if session == nil {
		return models.ClassProbabilities{}, fmt.Errorf("model %s not loaded", spec.Name)
	}
	if err := ctx.Err(); err != nil {
		return models.ClassProbabilities{}, err
	}

	size := int64(spec.InputSize)
	data := Preprocess(view, spec.InputSize, spec.Mean, spec.Std)
	input, err := ort.NewTensor(ort.NewShape(1, 3, size, size), data)
	if err != nil {
		return models.ClassProbabilities{}, fmt.Errorf("input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(spec.Classes))))
	if err != nil {
		return models.ClassProbabilities{}, fmt.Errorf("output tensor: %w", err)
	}
	defer output.Destroy()

	if err := session.Run([]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output}); err != nil {
		return models.ClassProbabilities{}, fmt.Errorf("inference failed: %w", err)
	}

	raw := output.GetData()
	values := make([]float64, len(raw))
	for i, v := range raw {
		values[i] = float64(v)
	}
	return ToProbabilities(spec.Classes, values, spec.Temperature)
}

func (m *onnxModel) Info() ModelInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info := m.spec.info()
	if len(m.providers) > 0 {
		info.Providers = append([]string(nil), m.providers...)
	}
	return info
}

func (m *onnxModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
