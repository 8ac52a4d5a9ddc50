package validation

import (
	"go-eye-inspector/pkg/models"
)

// Issue severities
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// QualityThresholds defines configurable thresholds for quality validation
type QualityThresholds struct {
	// Overall quality score below which the photo is flagged
	MinQualityScore float64

	// Sharpness score below which the photo is considered blurry
	MinSharpness float64

	// Mean brightness bounds, 0..1
	MinBrightness float64
	MaxBrightness float64

	// Pixel fraction limits
	MaxDarkRatio      float64
	MaxBrightRatio    float64
	MaxHighlightRatio float64
}

// DefaultQualityThresholds returns the default quality thresholds
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinQualityScore:   0.4,
		MinSharpness:      0.25,
		MinBrightness:     0.20,
		MaxBrightness:     0.85,
		MaxDarkRatio:      0.40,
		MaxBrightRatio:    0.35,
		MaxHighlightRatio: 0.08,
	}
}

// QualityValidator turns image features into advisory quality issues.
// It never blocks an analysis.
type QualityValidator struct {
	thresholds QualityThresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		thresholds: DefaultQualityThresholds(),
	}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds QualityThresholds) *QualityValidator {
	return &QualityValidator{
		thresholds: thresholds,
	}
}

// QualityIssue represents a quality validation issue
type QualityIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"` // "error", "warning"
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// Validate checks a feature set. Issues come out in a fixed order.
func (qv *QualityValidator) Validate(f models.FeatureSet) []QualityIssue {
	var issues []QualityIssue

	// 1. Overall quality gate
	if f.IsLowQuality() || f.QualityScore < qv.thresholds.MinQualityScore {
		issues = append(issues, QualityIssue{
			Type:        "low_quality",
			Message:     "Image quality is low. Retake the photo with the eye centred, in focus and well lit.",
			Severity:    SeverityError,
			ActualValue: f.QualityScore,
			Threshold:   qv.thresholds.MinQualityScore,
		})
	}

	// 2. Sharpness
	if f.SharpnessScore < qv.thresholds.MinSharpness {
		issues = append(issues, QualityIssue{
			Type:        "blurry",
			Message:     "Image is blurry. Please hold the camera steady and try again.",
			Severity:    SeverityWarning,
			ActualValue: f.SharpnessScore,
			Threshold:   qv.thresholds.MinSharpness,
		})
	}

	// 3. Exposure
	if f.MeanBrightness < qv.thresholds.MinBrightness || f.DarkRatio > qv.thresholds.MaxDarkRatio {
		issues = append(issues, QualityIssue{
			Type:        "too_dark",
			Message:     "Image is too dark. Take the photo in more light.",
			Severity:    SeverityWarning,
			ActualValue: f.MeanBrightness,
			Threshold:   qv.thresholds.MinBrightness,
		})
	} else if f.MeanBrightness > qv.thresholds.MaxBrightness || f.BrightRatio > qv.thresholds.MaxBrightRatio {
		issues = append(issues, QualityIssue{
			Type:        "too_bright",
			Message:     "Image is too bright. Avoid strong sunlight or flash.",
			Severity:    SeverityWarning,
			ActualValue: f.MeanBrightness,
			Threshold:   qv.thresholds.MaxBrightness,
		})
	}

	// 4. Specular reflections
	if f.HighlightRatio > qv.thresholds.MaxHighlightRatio {
		issues = append(issues, QualityIssue{
			Type:        "glare",
			Message:     "Strong reflections cover the eye. Avoid direct flash and face away from lamps.",
			Severity:    SeverityWarning,
			ActualValue: f.HighlightRatio,
			Threshold:   qv.thresholds.MaxHighlightRatio,
		})
	}

	return issues
}

// ConvertIssuesToMessages converts quality issues to plain messages
func (qv *QualityValidator) ConvertIssuesToMessages(issues []QualityIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasCriticalIssues checks if there are any critical (error severity) issues
func (qv *QualityValidator) HasCriticalIssues(issues []QualityIssue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}
