// Package fusion turns features and ensemble probabilities into a single
// diagnosis with severity, confidence and co-findings.
package fusion

import (
	engineconfig "go-eye-inspector/pkg/config"
)

// thresholdEps absorbs floating point noise at band edges.
const thresholdEps = 1e-9

// ClassThresholds are the effective bands for one class.
type ClassThresholds struct {
	PHigh float64
	PMid  float64
}

// Thresholds holds the global decision bands and optional per-class overrides.
type Thresholds struct {
	PHigh          float64
	PMid           float64
	PossibleMargin float64
	PerClass       map[string]ClassThresholds
}

// DefaultThresholds returns 0.75 / 0.55 / 0.15.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PHigh:          engineconfig.DefaultPHigh,
		PMid:           engineconfig.DefaultPMid,
		PossibleMargin: engineconfig.DefaultPossibleMargin,
	}
}

// ThresholdsFromConfig converts the configured bands.
func ThresholdsFromConfig(cfg engineconfig.ThresholdConfig) Thresholds {
	t := Thresholds{
		PHigh:          cfg.PHigh,
		PMid:           cfg.PMid,
		PossibleMargin: cfg.PossibleMargin,
	}
	if len(cfg.PerClass) > 0 {
		t.PerClass = make(map[string]ClassThresholds, len(cfg.PerClass))
		for class, ct := range cfg.PerClass {
			t.PerClass[class] = ClassThresholds{PHigh: ct.PHigh, PMid: ct.PMid}
		}
	}
	return t
}

// For returns the effective bands for class. Zero overrides inherit the
// global value.
func (t Thresholds) For(class string) ClassThresholds {
	ct := ClassThresholds{PHigh: t.PHigh, PMid: t.PMid}
	if o, ok := t.PerClass[class]; ok {
		if o.PHigh > 0 {
			ct.PHigh = o.PHigh
		}
		if o.PMid > 0 {
			ct.PMid = o.PMid
		}
	}
	return ct
}

// Possible is the lower edge of the co-finding band for class.
func (t Thresholds) Possible(class string) float64 {
	return t.For(class).PMid - t.PossibleMargin
}

func atLeast(p, threshold float64) bool {
	return p >= threshold-thresholdEps
}
