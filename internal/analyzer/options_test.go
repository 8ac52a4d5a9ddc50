package analyzer

import (
	"testing"

	"go-eye-inspector/internal/fusion"
	engineconfig "go-eye-inspector/pkg/config"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	// Verify default values
	if opts.Augmentations != 3 {
		t.Errorf("Expected Augmentations to be 3, got %d", opts.Augmentations)
	}
	if opts.Seed != 42 {
		t.Errorf("Expected Seed to be 42, got %d", opts.Seed)
	}
	if opts.SkipEnsemble {
		t.Error("Expected SkipEnsemble to be false by default")
	}
	if opts.Enhance {
		t.Error("Expected Enhance to be false by default")
	}
	if opts.LowQualityThreshold != 0.4 {
		t.Errorf("Expected LowQualityThreshold to be 0.4, got %f", opts.LowQualityThreshold)
	}
	if opts.LowQualityCap != 0 {
		t.Errorf("Expected the low quality cap to be disabled, got %f", opts.LowQualityCap)
	}
	if opts.Thresholds.PHigh != 0.75 || opts.Thresholds.PMid != 0.55 {
		t.Errorf("Expected default bands 0.75/0.55, got %f/%f", opts.Thresholds.PHigh, opts.Thresholds.PMid)
	}
}

func TestFastOptions(t *testing.T) {
	opts := FastOptions()

	if opts.Augmentations != 1 {
		t.Errorf("Expected a single view for fast options, got %d", opts.Augmentations)
	}
	if opts.SkipEnsemble {
		t.Error("Expected the ensemble to run for fast options")
	}
}

func TestHeuristicOptions(t *testing.T) {
	opts := HeuristicOptions()

	if !opts.SkipEnsemble {
		t.Error("Expected SkipEnsemble to be true for heuristic options")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := engineconfig.Default()
	cfg.Thresholds.PHigh = 0.8
	cfg.Augmentation.Count = 5
	cfg.Augmentation.Seed = 7
	cfg.Quality.Enhance = true
	cfg.Quality.LowThreshold = 0.3
	cfg.Quality.LowQualityCap = 0.6
	cfg.Quality.MaxPixels = 1000

	opts := OptionsFromConfig(cfg)
	if opts.MaxPixels != 1000 {
		t.Errorf("Expected MaxPixels to be 1000, got %d", opts.MaxPixels)
	}
	if opts.Thresholds.PHigh != 0.8 {
		t.Errorf("Expected PHigh to be 0.8, got %f", opts.Thresholds.PHigh)
	}
	if opts.Augmentations != 5 || opts.Seed != 7 {
		t.Errorf("Expected 5 views with seed 7, got %d views with seed %d", opts.Augmentations, opts.Seed)
	}
	if !opts.Enhance || opts.LowQualityThreshold != 0.3 || opts.LowQualityCap != 0.6 {
		t.Errorf("Expected quality settings to be copied, got %+v", opts)
	}

	if got := OptionsFromConfig(nil); got.Augmentations != DefaultOptions().Augmentations {
		t.Error("Expected nil config to give the defaults")
	}
}

func TestWithAugmentations(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{5, 5},
		{1, 1},
		{0, 1},
		{-3, 1},
	}

	for _, tt := range tests {
		if got := DefaultOptions().WithAugmentations(tt.in).Augmentations; got != tt.want {
			t.Errorf("WithAugmentations(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestChainedOptions(t *testing.T) {
	custom := fusion.DefaultThresholds()
	custom.PMid = 0.5

	opts := DefaultOptions().
		WithThresholds(custom).
		WithSeed(99).
		WithEnhancement(true).
		WithLowQualityCap(0.65).
		WithoutEnsemble()

	if opts.Thresholds.PMid != 0.5 {
		t.Errorf("Expected PMid to be 0.5, got %f", opts.Thresholds.PMid)
	}
	if opts.Seed != 99 {
		t.Errorf("Expected Seed to be 99, got %d", opts.Seed)
	}
	if !opts.Enhance {
		t.Error("Expected Enhance to be true")
	}
	if opts.LowQualityCap != 0.65 {
		t.Errorf("Expected LowQualityCap to be 0.65, got %f", opts.LowQualityCap)
	}
	if !opts.SkipEnsemble {
		t.Error("Expected SkipEnsemble to be true")
	}

	// builders work on copies
	if DefaultOptions().SkipEnsemble {
		t.Error("Expected DefaultOptions to be unaffected by chaining")
	}
}
