package analyzer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"reflect"
	"sync"
	"testing"

	apperrors "go-eye-inspector/internal/errors"
	"go-eye-inspector/internal/ensemble"
	"go-eye-inspector/internal/observer"
	"go-eye-inspector/pkg/models"
)

// createTestImage creates a simple test image for testing purposes
func createTestImage(width, height int, fillColor color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fillColor)
		}
	}
	return img
}

// createEyeImage draws a frontal eye: skin, sclera disc, iris and lens.
// Every fourth sclera row is painted with veinColor when it is non-zero.
func createEyeImage(size int, sclera, lens, veinColor color.RGBA) *image.RGBA {
	skin := color.RGBA{200, 160, 140, 255}
	iris := color.RGBA{90, 60, 40, 255}
	img := createTestImage(size, size, skin)

	c := float64(size) / 2
	scleraR := 0.42 * float64(size)
	irisR := 0.26 * float64(size)
	lensR := 0.14 * float64(size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)+0.5-c, float64(y)+0.5-c
			d2 := dx*dx + dy*dy
			switch {
			case d2 <= lensR*lensR:
				img.Set(x, y, lens)
			case d2 <= irisR*irisR:
				img.Set(x, y, iris)
			case d2 <= scleraR*scleraR:
				if veinColor.A != 0 && y%4 == 0 {
					img.Set(x, y, veinColor)
				} else {
					img.Set(x, y, sclera)
				}
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

var (
	whiteSclera = color.RGBA{235, 235, 235, 255}
	clearLens   = color.RGBA{20, 20, 25, 255}
	noVeins     = color.RGBA{}
)

// fakeClassifier returns a canned ensemble result
type fakeClassifier struct {
	mu       sync.Mutex
	result   ensemble.Result
	calls    int
	lastOpts ensemble.ClassifyOptions
}

func (f *fakeClassifier) Classify(ctx context.Context, img image.Image, opts ensemble.ClassifyOptions) ensemble.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastOpts = opts
	return f.result
}

func (f *fakeClassifier) Status() models.RuntimeStatus {
	return models.RuntimeStatus{Initialized: true, Loaded: 1, Configured: 1, Providers: []string{"CPUExecutionProvider"}}
}

func cataractResult(t *testing.T) ensemble.Result {
	t.Helper()
	probs, err := models.NewClassProbabilities(
		[]string{"normal", "cataracts", "conjunctivitis"},
		[]float64{0.15, 0.80, 0.05},
	)
	if err != nil {
		t.Fatalf("Failed to build probabilities: %v", err)
	}
	return ensemble.Result{
		Probabilities: &probs,
		Uncertainty:   &models.UncertaintyEstimate{MeanTopProb: 0.80, StdTopProb: 0.02, NAugs: 3},
		Runtime:       models.RuntimeInfo{ModelCount: 1, Providers: []string{"CPUExecutionProvider"}},
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []observer.AnalysisEvent
}

func (r *eventRecorder) OnEvent(ctx context.Context, event observer.AnalysisEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) GetObserverName() string { return "recorder" }

func (r *eventRecorder) count(eventType observer.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

func TestNewEngine(t *testing.T) {
	engine := NewEngine(nil, nil, nil)
	if engine == nil {
		t.Fatal("Expected non-nil engine")
	}
	defer engine.Close()

	if engine.DefaultOptions().Augmentations != 3 {
		t.Errorf("Expected 3 augmentations by default, got %d", engine.DefaultOptions().Augmentations)
	}
	status := engine.Runtime()
	if !status.Initialized || status.Loaded != 0 {
		t.Errorf("Expected an initialized, empty runtime without a registry, got %+v", status)
	}
	if status.Providers == nil || status.Models == nil {
		t.Error("Expected non-nil provider and model lists")
	}
}

func TestAnalyze_InvalidImage(t *testing.T) {
	engine := NewEngineWithClassifier(DefaultOptions(), nil, nil)
	defer engine.Close()

	inputs := map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("definitely not an image"),
		"too small": encodePNG(t, createTestImage(4, 4, color.RGBA{128, 128, 128, 255})),
	}

	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := engine.Analyze(context.Background(), data)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !apperrors.IsType(err, apperrors.ErrorTypeInvalidImage) {
				t.Errorf("Expected invalid_image error, got %v", err)
			}
		})
	}
}

func TestAnalyze_HeuristicPath(t *testing.T) {
	engine := NewEngineWithClassifier(DefaultOptions(), nil, nil)
	defer engine.Close()

	data := encodePNG(t, createEyeImage(200, whiteSclera, clearLens, noVeins))
	result, err := engine.Analyze(context.Background(), data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.DecisionSource != models.SourceHeuristic {
		t.Errorf("Expected heuristic decision source, got %s", result.DecisionSource)
	}
	if result.AIConfidence != nil {
		t.Error("Expected nil AI confidence without models")
	}
	if result.Uncertainty != nil {
		t.Error("Expected nil uncertainty without models")
	}
	if result.ClassProbabilities != nil {
		t.Error("Expected no class probabilities without models")
	}
	if result.Runtime.ModelCount != 0 || result.Runtime.Providers == nil {
		t.Errorf("Expected empty runtime info, got %+v", result.Runtime)
	}
	if result.CoFindings == nil {
		t.Error("Expected a non-nil co-findings slice")
	}
	if len(result.Recommendations) == 0 || result.MedicalAdvice == "" || result.AIAnalysisText == "" {
		t.Error("Expected text, recommendations and advice to be filled in")
	}
	if result.ConfidenceScore < 0 || result.ConfidenceScore > 1 {
		t.Errorf("Confidence out of range: %f", result.ConfidenceScore)
	}
}

func TestAnalyze_EnsemblePath(t *testing.T) {
	classifier := &fakeClassifier{result: cataractResult(t)}
	engine := NewEngineWithClassifier(DefaultOptions(), classifier, nil)
	defer engine.Close()

	data := encodePNG(t, createEyeImage(200, whiteSclera, clearLens, noVeins))
	result, err := engine.Analyze(context.Background(), data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.Diagnosis != models.DiagnosisCataracts {
		t.Errorf("Expected cataracts, got %s", result.Diagnosis)
	}
	if result.Severity != models.SeverityModerate {
		t.Errorf("Expected moderate severity, got %s", result.Severity)
	}
	if result.DecisionSource != models.SourceEnsemble {
		t.Errorf("Expected ensemble decision source, got %s", result.DecisionSource)
	}
	if result.AIConfidence == nil || math.Abs(*result.AIConfidence-0.80) > 1e-9 {
		t.Errorf("Expected AI confidence 0.80, got %v", result.AIConfidence)
	}
	if result.Uncertainty == nil || result.Uncertainty.NAugs != 3 {
		t.Errorf("Expected uncertainty to be carried over, got %+v", result.Uncertainty)
	}
	if result.Runtime.ModelCount != 1 {
		t.Errorf("Expected model count 1, got %d", result.Runtime.ModelCount)
	}

	if classifier.lastOpts.Views != 3 {
		t.Errorf("Expected 3 views, got %d", classifier.lastOpts.Views)
	}
	if want := ensemble.DeriveSeed(DefaultOptions().Seed, data); classifier.lastOpts.Seed != want {
		t.Errorf("Expected seed %d, got %d", want, classifier.lastOpts.Seed)
	}
}

func TestAnalyze_SkipEnsemble(t *testing.T) {
	classifier := &fakeClassifier{result: cataractResult(t)}
	engine := NewEngineWithClassifier(DefaultOptions(), classifier, nil)
	defer engine.Close()

	data := encodePNG(t, createEyeImage(200, whiteSclera, clearLens, noVeins))
	result, err := engine.AnalyzeWithOptions(context.Background(), data, HeuristicOptions())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if classifier.calls != 0 {
		t.Errorf("Expected classifier to be skipped, got %d calls", classifier.calls)
	}
	if result.DecisionSource != models.SourceHeuristic {
		t.Errorf("Expected heuristic decision source, got %s", result.DecisionSource)
	}
}

func TestAnalyze_EmptyEnsembleFallsBack(t *testing.T) {
	classifier := &fakeClassifier{}
	engine := NewEngineWithClassifier(DefaultOptions(), classifier, nil)
	defer engine.Close()

	data := encodePNG(t, createEyeImage(200, whiteSclera, clearLens, noVeins))
	result, err := engine.Analyze(context.Background(), data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if classifier.calls != 1 {
		t.Errorf("Expected one classifier call, got %d", classifier.calls)
	}
	if result.DecisionSource != models.SourceHeuristic || result.AIConfidence != nil {
		t.Errorf("Expected heuristic fallback, got source=%s ai=%v", result.DecisionSource, result.AIConfidence)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	engine := NewEngineWithClassifier(DefaultOptions(), &fakeClassifier{result: cataractResult(t)}, nil)
	defer engine.Close()

	data := encodePNG(t, createEyeImage(160, color.RGBA{220, 90, 90, 255}, clearLens, noVeins))
	first, err := engine.Analyze(context.Background(), data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := engine.Analyze(context.Background(), data)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Expected identical results for identical input")
		}
	}
}

func TestAnalyze_LowQualityEvent(t *testing.T) {
	publisher := observer.NewSyncEventPublisher()
	recorder := &eventRecorder{}
	publisher.Subscribe(recorder)

	engine := NewEngineWithClassifier(DefaultOptions(), nil, publisher)
	defer engine.Close()

	// A flat frame has no sharpness at all
	data := encodePNG(t, createTestImage(64, 64, color.RGBA{128, 128, 128, 255}))
	result, err := engine.Analyze(context.Background(), data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.FeatureSet.QualityFlag != models.QualityLow {
		t.Errorf("Expected low quality flag, got %s (score %f)", result.FeatureSet.QualityFlag, result.FeatureSet.QualityScore)
	}
	if !result.LowConfidence {
		t.Error("Expected low confidence on a low quality image")
	}
	if len(result.QualityIssues) == 0 {
		t.Error("Expected quality issues to be reported")
	}
	if got := recorder.count(observer.QualityLow); got != 1 {
		t.Errorf("Expected one QualityLow event, got %d", got)
	}
}

func TestAnalyze_Concurrent(t *testing.T) {
	engine := NewEngineWithClassifier(DefaultOptions(), &fakeClassifier{result: cataractResult(t)}, nil)
	defer engine.Close()

	data := encodePNG(t, createEyeImage(128, whiteSclera, clearLens, noVeins))
	want, err := engine.Analyze(context.Background(), data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := engine.Analyze(context.Background(), data)
			if err != nil {
				errs <- err.Error()
				return
			}
			if !reflect.DeepEqual(want, got) {
				errs <- "result differs under concurrency"
			}
		}()
	}
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}
