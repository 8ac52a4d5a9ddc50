package analyzer

import (
	"context"
	"image"

	"go-eye-inspector/internal/ensemble"
	"go-eye-inspector/pkg/models"
)

// EyeAnalyzer defines the main interface for eye photo analysis
type EyeAnalyzer interface {
	Analyze(ctx context.Context, data []byte) (models.FusionResult, error)
	AnalyzeWithOptions(ctx context.Context, data []byte, opts AnalysisOptions) (models.FusionResult, error)
	DefaultOptions() AnalysisOptions

	// Lifecycle management
	Runtime() models.RuntimeStatus
	Close() error
}

// FeatureExtractor measures the deterministic visual features of a photo
type FeatureExtractor interface {
	Extract(buf *ImageBuffer, opts AnalysisOptions) models.FeatureSet
}

// MetricsCalculator handles per-pixel scans over a region
type MetricsCalculator interface {
	Planes(buf *ImageBuffer, rect image.Rectangle) *planes
	LaplacianVariance(p *planes) float64
	Measure(p *planes, geom ocularGeometry) regionStats
}

// RegionDetector finds the square region holding the eye
type RegionDetector interface {
	Locate(buf *ImageBuffer) image.Rectangle
}

// Classifier runs the model ensemble over an image
type Classifier interface {
	Classify(ctx context.Context, img image.Image, opts ensemble.ClassifyOptions) ensemble.Result
	Status() models.RuntimeStatus
}
