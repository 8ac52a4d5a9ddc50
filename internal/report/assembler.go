package report

import (
	"fmt"
	"strings"

	"go-eye-inspector/internal/fusion"
	"go-eye-inspector/pkg/models"
)

// Inputs is everything the assembler needs for one image.
type Inputs struct {
	Decision      fusion.Decision
	Features      models.FeatureSet
	CoFindings    []models.CoFinding
	Uncertainty   *models.UncertaintyEstimate
	Runtime       models.RuntimeInfo
	Probabilities *models.ClassProbabilities
	QualityIssues []string
}

// Assembler builds FusionResult values from a decision.
type Assembler struct {
	table *Table
}

// NewAssembler creates an assembler over table; nil uses NewTable().
func NewAssembler(table *Table) *Assembler {
	if table == nil {
		table = NewTable()
	}
	return &Assembler{table: table}
}

// Table returns the explanation table in use.
func (a *Assembler) Table() *Table {
	return a.table
}

// Assemble copies every slice and map so the result owns its data.
func (a *Assembler) Assemble(in Inputs) models.FusionResult {
	d := in.Decision
	entry := a.table.Lookup(d.Diagnosis, d.Severity)

	result := models.FusionResult{
		Diagnosis:       d.Diagnosis,
		Severity:        d.Severity,
		ConfidenceScore: d.Confidence,
		CoFindings:      append([]models.CoFinding{}, in.CoFindings...),
		FeatureSet:      in.Features,
		Runtime: models.RuntimeInfo{
			ModelCount: in.Runtime.ModelCount,
			Providers:  append([]string{}, in.Runtime.Providers...),
		},
		AIAnalysisText:  explanation(entry.Text, d, in),
		Recommendations: append([]string{}, entry.Recommendations...),
		MedicalAdvice:   entry.MedicalAdvice,
		DecisionSource:  d.Source,
		LowConfidence:   in.Features.IsLowQuality() || !d.Decisive,
	}
	if d.AIConfidence != nil {
		ai := *d.AIConfidence
		result.AIConfidence = &ai
	}
	if len(in.QualityIssues) > 0 {
		result.QualityIssues = append([]string(nil), in.QualityIssues...)
	}
	if in.Probabilities != nil {
		probs := in.Probabilities.Clone()
		result.ClassProbabilities = &probs
	}
	if in.Uncertainty != nil {
		u := *in.Uncertainty
		u.PerClassStd = make(map[string]float64, len(in.Uncertainty.PerClassStd))
		for k, v := range in.Uncertainty.PerClassStd {
			u.PerClassStd[k] = v
		}
		u.HeuristicDisagreement = d.Disagreement
		u.ConfidenceInterval = fusion.ConfidenceInterval(d.Confidence, u.StdTopProb, d.Disagreement)
		result.Uncertainty = &u
	}
	return result
}

func explanation(base string, d fusion.Decision, in Inputs) string {
	var b strings.Builder
	b.WriteString(base)

	if len(in.CoFindings) > 0 {
		parts := make([]string, len(in.CoFindings))
		for i, cf := range in.CoFindings {
			parts[i] = fmt.Sprintf("%s (%s, %.2f)", cf.Label, cf.Level, cf.Probability)
		}
		b.WriteString(" Additional signals: ")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(".")
	}
	if d.Disagreement {
		fmt.Fprintf(&b, " Image measurements alone would suggest %s.", strings.ReplaceAll(string(d.HeuristicDiagnosis), "_", " "))
	}
	if in.Features.IsLowQuality() {
		fmt.Fprintf(&b, " Image quality is low (%.2f); consider retaking the photo in good light and focus.", in.Features.QualityScore)
	}
	if d.Source == models.SourceHeuristic {
		b.WriteString(" Result based on image measurements only.")
	}
	return b.String()
}
