package fusion

import (
	"sort"

	"go-eye-inspector/pkg/models"
)

// MaxCoFindings caps the co-finding list.
const MaxCoFindings = 4

// Detector lists secondary conditions next to the primary diagnosis.
type Detector struct {
	thresholds Thresholds
}

// NewDetector creates a co-finding detector.
func NewDetector(t Thresholds) *Detector {
	return &Detector{thresholds: t}
}

// CoFindings scans scores for classes above the possible band, skipping
// the primary class and normal. Scores must exceed the band edge strictly.
func (d *Detector) CoFindings(scores models.ClassProbabilities, primaryClass string) []models.CoFinding {
	out := []models.CoFinding{}
	for i, class := range scores.Classes {
		if class == classNormal || class == primaryClass {
			continue
		}
		p := scores.Probs[i]
		switch {
		case p > d.thresholds.For(class).PMid:
			out = append(out, models.CoFinding{Label: class, Probability: p, Level: models.LikelihoodLikely})
		case p > d.thresholds.Possible(class):
			out = append(out, models.CoFinding{Label: class, Probability: p, Level: models.LikelihoodPossible})
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Probability != out[b].Probability {
			return out[a].Probability > out[b].Probability
		}
		return out[a].Label < out[b].Label
	})
	if len(out) > MaxCoFindings {
		out = out[:MaxCoFindings]
	}
	return out
}
