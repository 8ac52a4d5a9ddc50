package ensemble

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"go-eye-inspector/pkg/models"
)

// EstimateUncertainty summarises the spread of the augmented runs behind an
// ensemble vector. Runs are aligned to the ensemble's classes first.
func EstimateUncertainty(ensemble models.ClassProbabilities, runs []models.ClassProbabilities, views int) *models.UncertaintyEstimate {
	entropy := Entropy(ensemble.Probs)
	normalized := 0.0
	if n := ensemble.Len(); n > 1 {
		normalized = clamp01(entropy / math.Log(float64(n)))
	}

	tops := make([]float64, len(runs))
	perClass := make([][]float64, ensemble.Len())
	for i, run := range runs {
		aligned := Align(run, ensemble.Classes)
		_, tops[i] = aligned.Top()
		for j, p := range aligned.Probs {
			perClass[j] = append(perClass[j], p)
		}
	}

	est := &models.UncertaintyEstimate{
		Entropy:           entropy,
		EntropyNormalized: normalized,
		NAugs:             views,
		PerClassStd:       make(map[string]float64, ensemble.Len()),
	}
	if len(tops) > 0 {
		est.MeanTopProb, est.StdTopProb = stat.PopMeanStdDev(tops, nil)
	}
	for j, class := range ensemble.Classes {
		if len(perClass[j]) > 0 {
			_, std := stat.PopMeanStdDev(perClass[j], nil)
			est.PerClassStd[class] = std
		}
	}
	return est
}

// Entropy is the Shannon entropy in nats of a probability vector. Zero
// terms contribute nothing, so a one-hot vector has entropy 0.
func Entropy(probs []float64) float64 {
	p := make([]float64, len(probs))
	var total float64
	for i, v := range probs {
		p[i] = math.Max(v, 0)
		total += p[i]
	}
	if total == 0 {
		return 0
	}
	for i := range p {
		p[i] /= total
	}
	return math.Max(0, stat.Entropy(p))
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
