package validation

import (
	"testing"

	"go-eye-inspector/pkg/models"
)

func goodFeatures() models.FeatureSet {
	return models.FeatureSet{
		QualityScore:   0.8,
		QualityFlag:    models.QualityAcceptable,
		SharpnessScore: 0.7,
		MeanBrightness: 0.5,
		DarkRatio:      0.05,
		BrightRatio:    0.05,
		HighlightRatio: 0.01,
	}
}

func TestNewQualityValidator(t *testing.T) {
	validator := NewQualityValidator()
	if validator == nil {
		t.Fatal("Expected non-nil quality validator")
	}

	expected := DefaultQualityThresholds().MinQualityScore
	if validator.thresholds.MinQualityScore != expected {
		t.Errorf("Expected MinQualityScore to be %f, got %f", expected, validator.thresholds.MinQualityScore)
	}
}

func TestNewQualityValidatorWithThresholds(t *testing.T) {
	custom := DefaultQualityThresholds()
	custom.MinSharpness = 0.9

	validator := NewQualityValidatorWithThresholds(custom)
	issues := validator.Validate(goodFeatures())
	if len(issues) != 1 || issues[0].Type != "blurry" {
		t.Errorf("Expected a single blurry issue with a strict sharpness threshold, got %v", issues)
	}
}

func TestValidate_HighQuality(t *testing.T) {
	validator := NewQualityValidator()
	issues := validator.Validate(goodFeatures())
	if len(issues) > 0 {
		t.Errorf("Expected no quality issues for a good photo, got: %v", issues)
	}
	if validator.HasCriticalIssues(issues) {
		t.Error("Expected no critical issues")
	}
}

func TestValidate_Issues(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*models.FeatureSet)
		wantType string
		critical bool
	}{
		{"low quality flag", func(f *models.FeatureSet) { f.QualityFlag = models.QualityLow }, "low_quality", true},
		{"low quality score", func(f *models.FeatureSet) { f.QualityScore = 0.1 }, "low_quality", true},
		{"blurry", func(f *models.FeatureSet) { f.SharpnessScore = 0.1 }, "blurry", false},
		{"dark mean", func(f *models.FeatureSet) { f.MeanBrightness = 0.1 }, "too_dark", false},
		{"dark pixels", func(f *models.FeatureSet) { f.DarkRatio = 0.6 }, "too_dark", false},
		{"bright mean", func(f *models.FeatureSet) { f.MeanBrightness = 0.95 }, "too_bright", false},
		{"glare", func(f *models.FeatureSet) { f.HighlightRatio = 0.2 }, "glare", false},
	}

	validator := NewQualityValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := goodFeatures()
			tt.mutate(&f)
			issues := validator.Validate(f)
			if len(issues) != 1 {
				t.Fatalf("Expected exactly one issue, got %v", issues)
			}
			if issues[0].Type != tt.wantType {
				t.Errorf("Expected issue %q, got %q", tt.wantType, issues[0].Type)
			}
			if got := validator.HasCriticalIssues(issues); got != tt.critical {
				t.Errorf("HasCriticalIssues = %v, want %v", got, tt.critical)
			}
		})
	}
}

func TestConvertIssuesToMessages(t *testing.T) {
	validator := NewQualityValidator()
	f := goodFeatures()
	f.SharpnessScore = 0
	f.HighlightRatio = 0.5

	messages := validator.ConvertIssuesToMessages(validator.Validate(f))
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	for _, m := range messages {
		if m == "" {
			t.Error("Expected non-empty message")
		}
	}
}
