package ensemble

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-eye-inspector/pkg/models"
)

func vec(t *testing.T, classes []string, probs []float64) models.ClassProbabilities {
	t.Helper()
	v, err := models.NewClassProbabilities(classes, probs)
	require.NoError(t, err)
	return v
}

func TestWeightedMeanUnionAndRenormalisation(t *testing.T) {
	a := vec(t, []string{"normal", "cataracts"}, []float64{0.4, 0.6})
	b := vec(t, []string{"conjunctivitis", "normal"}, []float64{0.5, 0.5})

	got, err := WeightedMean([]models.ClassProbabilities{a, b}, []float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"normal", "cataracts", "conjunctivitis"}, got.Classes)
	assert.InDelta(t, 0.45, got.Probs[0], 1e-12)
	assert.InDelta(t, 0.30, got.Probs[1], 1e-12)
	assert.InDelta(t, 0.25, got.Probs[2], 1e-12)
	assert.InDelta(t, 1, got.Sum(), 1e-12)
}

func TestWeightedMeanErrors(t *testing.T) {
	_, err := WeightedMean(nil, nil)
	assert.Error(t, err)

	a := vec(t, []string{"normal"}, []float64{1})
	_, err = WeightedMean([]models.ClassProbabilities{a}, []float64{1, 2})
	assert.Error(t, err)
}

func TestWeightedMeanZeroWeightsAreEqual(t *testing.T) {
	a := vec(t, []string{"x", "y"}, []float64{1, 0})
	b := vec(t, []string{"x", "y"}, []float64{0, 1})
	got, err := WeightedMean([]models.ClassProbabilities{a, b}, []float64{0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.Probs[0], 1e-12)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		probs []float64
		want  []float64
	}{
		{"rescales", []float64{2, 2}, []float64{0.5, 0.5}},
		{"clips negatives and NaN", []float64{-1, math.NaN(), 3}, []float64{0, 0, 1}},
		{"all zero becomes uniform", []float64{0, 0, 0, 0}, []float64{0.25, 0.25, 0.25, 0.25}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classes := make([]string, len(tt.probs))
			for i := range classes {
				classes[i] = string(rune('a' + i))
			}
			got := Normalize(models.ClassProbabilities{Classes: classes, Probs: tt.probs})
			assert.InDeltaSlice(t, tt.want, got.Probs, 1e-12)
		})
	}
}

func TestSoftmax(t *testing.T) {
	p := Softmax([]float64{1000, 1000}, 1)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, p, 1e-12)

	sharp := Softmax([]float64{2, 0}, 0.1) // clamped to 0.5
	clamped := Softmax([]float64{2, 0}, 0.5)
	assert.InDeltaSlice(t, clamped, sharp, 1e-12)

	flat := Softmax([]float64{2, 0}, 10) // clamped to 2
	assert.Greater(t, clamped[0], flat[0])
	assert.Empty(t, Softmax(nil, 1))
}

func TestToProbabilities(t *testing.T) {
	classes := []string{"normal", "cataracts"}

	asIs, err := ToProbabilities(classes, []float64{0.3, 0.7}, 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.3, 0.7}, asIs.Probs, 1e-12)

	logits, err := ToProbabilities(classes, []float64{0, math.Log(3)}, 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, logits.Probs, 1e-12)

	_, err = ToProbabilities(classes, []float64{1}, 1)
	assert.Error(t, err)
}

func TestCanonicalLabel(t *testing.T) {
	tests := map[string]string{
		"Cataract":       LabelCataracts,
		" pink-eye ":     LabelConjunctivitis,
		"Healthy":        LabelNormal,
		"conjunctivits":  LabelConjunctivitis,
		"catarcts":       LabelCataracts,
		"Glaucoma":       "glaucoma",
		"Diabetic Retin": "diabetic_retin",
	}
	for in, want := range tests {
		assert.Equal(t, want, CanonicalLabel(in), in)
	}
}

func TestCanonicalLabelKeepsWrappingNames(t *testing.T) {
	for _, in := range []string{"abnormal", "Not Normal", "normality", "secondary_cataracts"} {
		assert.NotContains(t, []string{LabelNormal, LabelCataracts}, CanonicalLabel(in), in)
	}
	assert.Equal(t, "abnormal", CanonicalLabel("Abnormal"))

	got := Canonicalize(vec(t, []string{"normal", "abnormal"}, []float64{0.1, 0.9}))
	assert.Equal(t, []string{"normal", "abnormal"}, got.Classes)
	assert.InDeltaSlice(t, []float64{0.1, 0.9}, got.Probs, 1e-12)
}

func TestCanonicalizeMergesAliases(t *testing.T) {
	v := vec(t, []string{"cataract", "Cataracts", "normal"}, []float64{0.2, 0.3, 0.5})
	got := Canonicalize(v)
	assert.Equal(t, []string{"cataracts", "normal"}, got.Classes)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, got.Probs, 1e-12)
}

func TestEntropy(t *testing.T) {
	assert.Equal(t, 0.0, Entropy([]float64{0, 1, 0}))
	assert.Equal(t, 0.0, Entropy([]float64{1}))
	assert.Equal(t, 0.0, Entropy(nil))
	assert.Equal(t, 0.0, Entropy([]float64{0, 0}))
	assert.InDelta(t, math.Log(3), Entropy([]float64{1, 1, 1}), 1e-12)

	oneHot := EstimateUncertainty(vec(t, []string{"a", "b", "c"}, []float64{0, 1, 0}), nil, 1)
	assert.Equal(t, 0.0, oneHot.Entropy)
	assert.Equal(t, 0.0, oneHot.EntropyNormalized)
}

func TestEstimateUncertainty(t *testing.T) {
	ensemble := vec(t, []string{"a", "b"}, []float64{0.5, 0.5})
	runs := []models.ClassProbabilities{
		vec(t, []string{"a", "b"}, []float64{0.8, 0.2}),
		vec(t, []string{"b", "a"}, []float64{0.8, 0.2}),
	}
	est := EstimateUncertainty(ensemble, runs, 2)

	assert.InDelta(t, math.Log(2), est.Entropy, 1e-6)
	assert.InDelta(t, 1, est.EntropyNormalized, 1e-6)
	assert.InDelta(t, 0.8, est.MeanTopProb, 1e-12)
	assert.InDelta(t, 0, est.StdTopProb, 1e-12)
	assert.InDelta(t, 0.3, est.PerClassStd["a"], 1e-12)
	assert.Equal(t, 2, est.NAugs)

	single := EstimateUncertainty(vec(t, []string{"a"}, []float64{1}), nil, 1)
	assert.Equal(t, 0.0, single.EntropyNormalized)
}
