package models

// Diagnosis is the final categorical label for an eye photograph.
type Diagnosis string

const (
	DiagnosisNormal             Diagnosis = "normal"
	DiagnosisCataracts          Diagnosis = "cataracts"
	DiagnosisConjunctivitis     Diagnosis = "conjunctivitis"
	DiagnosisMinorOpacities     Diagnosis = "minor_opacities"
	DiagnosisMinorRedness       Diagnosis = "minor_redness"
	DiagnosisMultipleConditions Diagnosis = "multiple_conditions"
	DiagnosisUnknown            Diagnosis = "unknown"
)

// AllDiagnoses lists every diagnosis in a stable order.
func AllDiagnoses() []Diagnosis {
	return []Diagnosis{
		DiagnosisNormal,
		DiagnosisCataracts,
		DiagnosisConjunctivitis,
		DiagnosisMinorOpacities,
		DiagnosisMinorRedness,
		DiagnosisMultipleConditions,
		DiagnosisUnknown,
	}
}

// Severity grades a diagnosis.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// AllSeverities lists every severity in a stable order.
func AllSeverities() []Severity {
	return []Severity{SeverityNormal, SeverityMild, SeverityModerate, SeveritySevere}
}

// QualityFlag marks whether the photograph is good enough to trust.
type QualityFlag string

const (
	QualityAcceptable QualityFlag = "acceptable"
	QualityLow        QualityFlag = "low"
)

// Likelihood qualifies a co-finding.
type Likelihood string

const (
	LikelihoodPossible Likelihood = "possible"
	LikelihoodLikely   Likelihood = "likely"
)

// DecisionSource records which signal produced the diagnosis.
type DecisionSource string

const (
	SourceEnsemble  DecisionSource = "ensemble"
	SourceHeuristic DecisionSource = "heuristic"
)

// FeatureSet holds the deterministic visual measurements of one image.
// Every score is in [0,1].
type FeatureSet struct {
	RednessScore         float64     `json:"redness_score"`
	OpacityScore         float64     `json:"opacity_score"`
	VascularDensityScore float64     `json:"vascular_density_score"`
	QualityScore         float64     `json:"quality_score"`
	QualityFlag          QualityFlag `json:"quality_flag"`
	MeanBrightness       float64     `json:"mean_brightness"`
	DarkRatio            float64     `json:"dark_ratio"`
	BrightRatio          float64     `json:"bright_ratio"`

	HighlightRatio   float64 `json:"highlight_ratio"`
	CentralWhiteness float64 `json:"central_whiteness"`
	SharpnessScore   float64 `json:"sharpness_score"`
}

// IsLowQuality reports whether the quality gate flagged the image.
func (f FeatureSet) IsLowQuality() bool {
	return f.QualityFlag == QualityLow
}

// ConfidenceInterval brackets the reported confidence.
type ConfidenceInterval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// UncertaintyEstimate summarises how much the ensemble runs disagreed.
type UncertaintyEstimate struct {
	Entropy               float64            `json:"entropy"`
	EntropyNormalized     float64            `json:"entropy_normalized"`
	MeanTopProb           float64            `json:"mean_top_prob"`
	StdTopProb            float64            `json:"std_top_prob"`
	PerClassStd           map[string]float64 `json:"per_class_std,omitempty"`
	NAugs                 int                `json:"n_augs"`
	HeuristicDisagreement bool               `json:"heuristic_disagreement"`
	ConfidenceInterval    ConfidenceInterval `json:"confidence_interval"`
}

// RuntimeInfo describes which models served a request.
type RuntimeInfo struct {
	ModelCount int      `json:"model_count"`
	Providers  []string `json:"providers"`
}

// CoFinding is a secondary condition worth mentioning.
type CoFinding struct {
	Label       string     `json:"label"`
	Probability float64    `json:"prob"`
	Level       Likelihood `json:"level"`
}

// FusionResult is the single output handed to callers. It is built once
// and never modified afterwards; slices and maps are owned by the result.
type FusionResult struct {
	Diagnosis          Diagnosis            `json:"diagnosis"`
	Severity           Severity             `json:"severity"`
	ConfidenceScore    float64              `json:"confidence_score"`
	AIConfidence       *float64             `json:"ai_confidence"`
	CoFindings         []CoFinding          `json:"co_findings"`
	FeatureSet         FeatureSet           `json:"feature_set"`
	Uncertainty        *UncertaintyEstimate `json:"uncertainty"`
	Runtime            RuntimeInfo          `json:"runtime"`
	AIAnalysisText     string               `json:"ai_analysis_text"`
	Recommendations    []string             `json:"recommendations"`
	MedicalAdvice      string               `json:"medical_advice"`
	DecisionSource     DecisionSource       `json:"decision_source"`
	LowConfidence      bool                 `json:"low_confidence"`
	QualityIssues      []string             `json:"quality_issues,omitempty"`
	ClassProbabilities *ClassProbabilities  `json:"class_probabilities,omitempty"`
}
