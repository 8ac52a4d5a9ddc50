package strategy

import (
	"sort"
	"strings"

	"go-eye-inspector/internal/analyzer"
	apperrors "go-eye-inspector/internal/errors"
)

// Profile names
const (
	Standard  = "standard"
	Fast      = "fast"
	Heuristic = "heuristic"
)

// AnalysisStrategy derives per-request options from the engine defaults
type AnalysisStrategy interface {
	Options(defaults analyzer.AnalysisOptions) analyzer.AnalysisOptions
	GetStrategyName() string
}

// StandardStrategy runs the configured pipeline unchanged
type StandardStrategy struct{}

func (StandardStrategy) Options(defaults analyzer.AnalysisOptions) analyzer.AnalysisOptions {
	return defaults
}

func (StandardStrategy) GetStrategyName() string {
	return Standard
}

// FastStrategy runs every model on the original view only
type FastStrategy struct{}

func (FastStrategy) Options(defaults analyzer.AnalysisOptions) analyzer.AnalysisOptions {
	return defaults.WithAugmentations(1)
}

func (FastStrategy) GetStrategyName() string {
	return Fast
}

// HeuristicStrategy skips the ensemble and decides from image features
type HeuristicStrategy struct{}

func (HeuristicStrategy) Options(defaults analyzer.AnalysisOptions) analyzer.AnalysisOptions {
	return defaults.WithoutEnsemble()
}

func (HeuristicStrategy) GetStrategyName() string {
	return Heuristic
}

var registry = map[string]AnalysisStrategy{
	Standard:  StandardStrategy{},
	Fast:      FastStrategy{},
	Heuristic: HeuristicStrategy{},
}

// Resolve looks up a profile by name. An empty name selects the standard profile.
func Resolve(name string) (AnalysisStrategy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = Standard
	}
	s, ok := registry[name]
	if !ok {
		return nil, apperrors.NewValidationError("unknown analysis profile", nil).
			WithDetails("expected one of " + strings.Join(Names(), ", "))
	}
	return s, nil
}

// Names lists the available profiles in sorted order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
