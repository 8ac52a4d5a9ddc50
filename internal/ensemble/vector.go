package ensemble

import (
	"fmt"
	"math"

	"go-eye-inspector/pkg/models"
)

const (
	minTemperature = 0.5
	maxTemperature = 2.0
)

// UnionClasses returns every class of vs in first-seen order.
func UnionClasses(vs []models.ClassProbabilities) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range vs {
		for _, c := range v.Classes {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// Align projects v onto classes; missing classes get probability 0.
func Align(v models.ClassProbabilities, classes []string) models.ClassProbabilities {
	probs := make([]float64, len(classes))
	for i, c := range classes {
		if p, ok := v.Get(c); ok {
			probs[i] = p
		}
	}
	return models.ClassProbabilities{Classes: append([]string(nil), classes...), Probs: probs}
}

// Mean averages vectors over the union of their classes. It is the
// equal-weight case of WeightedMean.
func Mean(vs []models.ClassProbabilities) (models.ClassProbabilities, error) {
	return WeightedMean(vs, nil)
}

// WeightedMean combines vectors with the given weights, renormalised to sum
// to one. Nil or all-zero weights mean equal weighting. The result is
// renormalised so its probabilities sum to one.
func WeightedMean(vs []models.ClassProbabilities, weights []float64) (models.ClassProbabilities, error) {
	if len(vs) == 0 {
		return models.ClassProbabilities{}, fmt.Errorf("no vectors to combine")
	}
	if weights != nil && len(weights) != len(vs) {
		return models.ClassProbabilities{}, fmt.Errorf("weights length %d does not match %d vectors", len(weights), len(vs))
	}

	w := normalizedWeights(weights, len(vs))
	classes := UnionClasses(vs)
	acc := make([]float64, len(classes))
	for i, v := range vs {
		aligned := Align(v, classes)
		for j, p := range aligned.Probs {
			acc[j] += w[i] * p
		}
	}
	return Normalize(models.ClassProbabilities{Classes: classes, Probs: acc}), nil
}

func normalizedWeights(weights []float64, n int) []float64 {
	out := make([]float64, n)
	var total float64
	for i := 0; i < n && i < len(weights); i++ {
		if weights[i] > 0 {
			out[i] = weights[i]
			total += weights[i]
		}
	}
	if total == 0 {
		for i := range out {
			out[i] = 1 / float64(n)
		}
		return out
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

// Normalize clips negatives and NaNs to zero and rescales to sum one.
// An all-zero vector becomes uniform.
func Normalize(v models.ClassProbabilities) models.ClassProbabilities {
	out := v.Clone()
	var total float64
	for i, p := range out.Probs {
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			p = 0
		}
		out.Probs[i] = p
		total += p
	}
	if len(out.Probs) == 0 {
		return out
	}
	if total == 0 {
		for i := range out.Probs {
			out.Probs[i] = 1 / float64(len(out.Probs))
		}
		return out
	}
	for i := range out.Probs {
		out.Probs[i] /= total
	}
	return out
}

// Softmax converts logits into probabilities. The temperature is clamped to [0.5, 2].
func Softmax(logits []float64, temperature float64) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	t := math.Min(maxTemperature, math.Max(minTemperature, temperature))

	maxLogit := math.Inf(-1)
	for _, x := range logits {
		if x > maxLogit {
			maxLogit = x
		}
	}
	var sum float64
	for i, x := range logits {
		out[i] = math.Exp((x - maxLogit) / t)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// LooksLikeDistribution reports whether raw outputs are already probabilities.
func LooksLikeDistribution(values []float64) bool {
	if len(values) == 0 {
		return false
	}
	var sum float64
	for _, v := range values {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return false
		}
		sum += v
	}
	return math.Abs(sum-1) < 1e-3
}

// ToProbabilities turns raw model outputs into a normalised vector.
func ToProbabilities(classes []string, raw []float64, temperature float64) (models.ClassProbabilities, error) {
	if len(raw) != len(classes) {
		return models.ClassProbabilities{}, fmt.Errorf("model produced %d outputs for %d classes", len(raw), len(classes))
	}
	probs := raw
	if !LooksLikeDistribution(raw) {
		probs = Softmax(raw, temperature)
	}
	v, err := models.NewClassProbabilities(classes, probs)
	if err != nil {
		return models.ClassProbabilities{}, err
	}
	return Normalize(v), nil
}
