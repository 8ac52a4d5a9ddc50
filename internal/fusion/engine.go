package fusion

import (
	"math"
	"sort"

	"go-eye-inspector/pkg/models"
)

const (
	classNormal         = "normal"
	classCataracts      = "cataracts"
	classConjunctivitis = "conjunctivitis"

	severityMildBelow     = 0.55
	severityModerateBelow = 0.85

	minIntervalHalfWidth = 0.05
)

// conditionDiagnosis maps a class to its diagnosis above P_HIGH.
var conditionDiagnosis = map[string]models.Diagnosis{
	classCataracts:      models.DiagnosisCataracts,
	classConjunctivitis: models.DiagnosisConjunctivitis,
}

// minorDiagnosis maps a class family to its diagnosis in the mid band.
var minorDiagnosis = map[string]models.Diagnosis{
	classCataracts:      models.DiagnosisMinorOpacities,
	classConjunctivitis: models.DiagnosisMinorRedness,
}

// Decision is the outcome of one fusion pass.
type Decision struct {
	Diagnosis    models.Diagnosis
	Severity     models.Severity
	Confidence   float64
	MatchedClass string
	MatchedScore float64
	Source       models.DecisionSource
	// Decisive is false for mid-band results and for a normal result whose
	// confidence is below P_HIGH.
	Decisive           bool
	HeuristicDiagnosis models.Diagnosis
	Disagreement       bool
	// AIConfidence is set only when the ensemble decided.
	AIConfidence *float64
	// Scores are the per-class signals the decision was taken on.
	Scores models.ClassProbabilities
}

// Engine applies the banded decision rules.
type Engine struct {
	thresholds    Thresholds
	lowQualityCap float64
}

// NewEngine creates an engine. A lowQualityCap of 0 disables the cap.
func NewEngine(t Thresholds, lowQualityCap float64) *Engine {
	return &Engine{thresholds: t, lowQualityCap: lowQualityCap}
}

// Thresholds returns the bands in use.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// HeuristicScores derives pseudo-probabilities from image features.
func HeuristicScores(f models.FeatureSet) models.ClassProbabilities {
	conj := math.Max(f.RednessScore, (f.RednessScore+f.VascularDensityScore)/2)
	return models.ClassProbabilities{
		Classes: []string{classCataracts, classConjunctivitis},
		Probs:   []float64{clamp01(f.OpacityScore), clamp01(conj)},
	}
}

// Decide fuses features with the ensemble vector. A nil or empty vector
// selects the heuristic path.
func (e *Engine) Decide(features models.FeatureSet, vector *models.ClassProbabilities) Decision {
	heuristic := e.decideOn(HeuristicScores(features), models.SourceHeuristic)
	heuristic.HeuristicDiagnosis = heuristic.Diagnosis

	var d Decision
	if vector == nil || vector.IsEmpty() {
		d = heuristic
	} else {
		d = e.decideOn(*vector, models.SourceEnsemble)
		d.HeuristicDiagnosis = heuristic.Diagnosis
		d.Disagreement = d.Diagnosis != heuristic.Diagnosis
		ai := d.Confidence
		d.AIConfidence = &ai
	}

	if e.lowQualityCap > 0 && features.IsLowQuality() && d.Confidence > e.lowQualityCap {
		d.Confidence = e.lowQualityCap
	}
	return d
}

func (e *Engine) decideOn(scores models.ClassProbabilities, source models.DecisionSource) Decision {
	d := Decision{Source: source, Scores: scores.Clone()}

	var high []int
	for i, class := range scores.Classes {
		if class == classNormal {
			continue
		}
		if atLeast(scores.Probs[i], e.thresholds.For(class).PHigh) {
			high = append(high, i)
		}
	}

	switch {
	case len(high) == 1:
		i := high[0]
		d.MatchedClass, d.MatchedScore = scores.Classes[i], scores.Probs[i]
		d.Decisive = true
		if dx, ok := conditionDiagnosis[d.MatchedClass]; ok {
			d.Diagnosis = dx
		} else {
			d.Diagnosis = models.DiagnosisUnknown
		}
	case len(high) > 1:
		best := high[0]
		for _, i := range high[1:] {
			if scores.Probs[i] > scores.Probs[best] {
				best = i
			}
		}
		d.Diagnosis = models.DiagnosisMultipleConditions
		d.MatchedClass, d.MatchedScore = scores.Classes[best], scores.Probs[best]
		d.Decisive = true
	default:
		if i, ok := e.midBand(scores); ok {
			d.Diagnosis = minorDiagnosis[scores.Classes[i]]
			d.MatchedClass, d.MatchedScore = scores.Classes[i], scores.Probs[i]
		} else {
			d.Diagnosis = models.DiagnosisNormal
		}
	}

	d.Severity = severityFor(d.Diagnosis, d.MatchedScore)
	d.Confidence = clamp01(confidenceFor(d, scores))
	if d.Diagnosis == models.DiagnosisNormal {
		d.Decisive = atLeast(d.Confidence, e.thresholds.For(classNormal).PHigh)
	}
	return d
}

// midBand returns the highest mapped class at or above its P_MID; equal
// scores go to the lexically smaller class name.
func (e *Engine) midBand(scores models.ClassProbabilities) (int, bool) {
	var idx []int
	for i, class := range scores.Classes {
		if _, mapped := minorDiagnosis[class]; !mapped {
			continue
		}
		if atLeast(scores.Probs[i], e.thresholds.For(class).PMid) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return 0, false
	}
	sort.SliceStable(idx, func(a, b int) bool {
		pa, pb := scores.Probs[idx[a]], scores.Probs[idx[b]]
		if pa != pb {
			return pa > pb
		}
		return scores.Classes[idx[a]] < scores.Classes[idx[b]]
	})
	return idx[0], true
}

func severityFor(dx models.Diagnosis, score float64) models.Severity {
	if dx == models.DiagnosisNormal {
		return models.SeverityNormal
	}
	switch {
	case score < severityMildBelow:
		return models.SeverityMild
	case score < severityModerateBelow:
		return models.SeverityModerate
	default:
		return models.SeveritySevere
	}
}

func confidenceFor(d Decision, scores models.ClassProbabilities) float64 {
	if d.Diagnosis != models.DiagnosisNormal {
		return d.MatchedScore
	}
	if p, ok := scores.Get(classNormal); ok {
		return p
	}
	maxCandidate := 0.0
	for i, class := range scores.Classes {
		if class != classNormal && scores.Probs[i] > maxCandidate {
			maxCandidate = scores.Probs[i]
		}
	}
	return 1 - maxCandidate
}

// ConfidenceInterval brackets confidence using the spread of the top-class
// probability across runs. A heuristic disagreement doubles the width.
func ConfidenceInterval(confidence, stdTopProb float64, disagreement bool) models.ConfidenceInterval {
	half := stdTopProb
	if disagreement {
		half = math.Max(2*half, minIntervalHalfWidth)
	}
	return models.ConfidenceInterval{
		Low:  clamp01(confidence - half),
		High: clamp01(confidence + half),
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
