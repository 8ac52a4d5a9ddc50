package analyzer

import (
	"go-eye-inspector/internal/fusion"
	engineconfig "go-eye-inspector/pkg/config"
)

// AnalysisOptions provides flexible configuration for a single analysis
type AnalysisOptions struct {
	// Decision bands
	Thresholds fusion.Thresholds

	// Ensemble
	Augmentations int
	Seed          uint64
	SkipEnsemble  bool

	// Feature extraction
	Enhance             bool
	LowQualityThreshold float64
	LowQualityCap       float64

	// Decoding
	MaxPixels int
}

// DefaultOptions returns the standard profile
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		Thresholds:          fusion.DefaultThresholds(),
		Augmentations:       engineconfig.DefaultAugmentations,
		Seed:                engineconfig.DefaultSeed,
		LowQualityThreshold: engineconfig.DefaultLowQuality,
		MaxPixels:           engineconfig.DefaultMaxPixels,
	}
}

// OptionsFromConfig derives the standard profile from an engine configuration
func OptionsFromConfig(cfg *engineconfig.EngineConfig) AnalysisOptions {
	opts := DefaultOptions()
	if cfg == nil {
		return opts
	}
	opts.Thresholds = fusion.ThresholdsFromConfig(cfg.Thresholds)
	opts.Augmentations = cfg.Augmentation.Count
	opts.Seed = cfg.Augmentation.Seed
	opts.Enhance = cfg.Quality.Enhance
	opts.LowQualityThreshold = cfg.Quality.LowThreshold
	opts.LowQualityCap = cfg.Quality.LowQualityCap
	if cfg.Quality.MaxPixels > 0 {
		opts.MaxPixels = cfg.Quality.MaxPixels
	}
	return opts
}

// FastOptions returns options for a single-view ensemble pass
func FastOptions() AnalysisOptions {
	return DefaultOptions().WithAugmentations(1)
}

// HeuristicOptions returns options that skip the ensemble entirely
func HeuristicOptions() AnalysisOptions {
	return DefaultOptions().WithoutEnsemble()
}

// WithThresholds replaces the decision bands
func (opts AnalysisOptions) WithThresholds(t fusion.Thresholds) AnalysisOptions {
	opts.Thresholds = t
	return opts
}

// WithAugmentations sets the number of views per model; values below 1 become 1
func (opts AnalysisOptions) WithAugmentations(n int) AnalysisOptions {
	if n < 1 {
		n = 1
	}
	opts.Augmentations = n
	return opts
}

// WithSeed fixes the augmentation seed
func (opts AnalysisOptions) WithSeed(seed uint64) AnalysisOptions {
	opts.Seed = seed
	return opts
}

// WithoutEnsemble forces the heuristic path
func (opts AnalysisOptions) WithoutEnsemble() AnalysisOptions {
	opts.SkipEnsemble = true
	return opts
}

// WithEnhancement toggles gray-world white balance before measuring
func (opts AnalysisOptions) WithEnhancement(enabled bool) AnalysisOptions {
	opts.Enhance = enabled
	return opts
}

// WithLowQualityCap caps confidence on low-quality images; 0 disables the cap
func (opts AnalysisOptions) WithLowQualityCap(limit float64) AnalysisOptions {
	opts.LowQualityCap = limit
	return opts
}
