package ensemble

import (
	"strings"

	"github.com/arbovm/levenshtein"

	"go-eye-inspector/pkg/models"
)

// Canonical class labels understood by the decision engine.
const (
	LabelNormal         = "normal"
	LabelCataracts      = "cataracts"
	LabelConjunctivitis = "conjunctivitis"
)

// maxLabelDistance is the largest edit distance accepted as a misspelling.
// maxLengthSkew bounds how much longer or shorter a misspelling may be.
const (
	maxLabelDistance = 2
	maxLengthSkew    = 1
)

var labelAliases = map[string]string{
	"normal":             LabelNormal,
	"healthy":            LabelNormal,
	"no_disease":         LabelNormal,
	"normal_eye":         LabelNormal,
	"cataract":           LabelCataracts,
	"cataracts":          LabelCataracts,
	"catarata":           LabelCataracts,
	"cataract_eye":       LabelCataracts,
	"conjunctivitis":     LabelConjunctivitis,
	"pink_eye":           LabelConjunctivitis,
	"pinkeye":            LabelConjunctivitis,
	"red_eye":            LabelConjunctivitis,
	"conjuntivitis":      LabelConjunctivitis,
	"eye_conjunctivitis": LabelConjunctivitis,
}

var canonicalLabels = []string{LabelNormal, LabelCataracts, LabelConjunctivitis}

// CanonicalLabel maps a model's class name onto a canonical label when it is
// an alias or a close misspelling; other names are returned normalised.
// A name that wraps a label ("abnormal", "not_normal") is a different class.
func CanonicalLabel(name string) string {
	key := normalizeLabel(name)
	if canonical, ok := labelAliases[key]; ok {
		return canonical
	}

	best, bestDist := "", maxLabelDistance+1
	for _, label := range canonicalLabels {
		if !misspellingOf(key, label) {
			continue
		}
		if d := levenshtein.Distance(key, label); d < bestDist {
			best, bestDist = label, d
		}
	}
	if best != "" {
		return best
	}
	return key
}

// Canonicalize renames the classes of v, summing classes that collapse onto
// the same label.
func Canonicalize(v models.ClassProbabilities) models.ClassProbabilities {
	index := make(map[string]int, len(v.Classes))
	var out models.ClassProbabilities
	for i, c := range v.Classes {
		label := CanonicalLabel(c)
		if j, ok := index[label]; ok {
			out.Probs[j] += v.Probs[i]
			continue
		}
		index[label] = len(out.Classes)
		out.Classes = append(out.Classes, label)
		out.Probs = append(out.Probs, v.Probs[i])
	}
	return out
}

func misspellingOf(key, label string) bool {
	if strings.Contains(key, label) || strings.Contains(label, key) {
		return false
	}
	skew := len(key) - len(label)
	return skew >= -maxLengthSkew && skew <= maxLengthSkew
}

func normalizeLabel(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}
