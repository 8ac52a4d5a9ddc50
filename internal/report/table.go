// Package report turns a fusion decision into the final FusionResult with
// deterministic explanatory text.
package report

import (
	"fmt"

	"go-eye-inspector/pkg/models"
)

const disclaimer = "This is an automated screening aid and does not replace a professional medical diagnosis. "

// Entry is the explanation attached to one (diagnosis, severity) cell.
type Entry struct {
	Text            string
	Recommendations []string
	MedicalAdvice   string
}

type key struct {
	diagnosis models.Diagnosis
	severity  models.Severity
}

// Table maps every (diagnosis, severity) pair to an explanation.
type Table struct {
	entries map[key]Entry
}

var findings = map[models.Diagnosis]string{
	models.DiagnosisNormal:             "No relevant findings were detected in the photographed eye.",
	models.DiagnosisCataracts:          "The lens region shows a whitish opacity compatible with cataracts.",
	models.DiagnosisConjunctivitis:     "The conjunctiva shows redness and vascular engorgement compatible with conjunctivitis.",
	models.DiagnosisMinorOpacities:     "Slight lens opacities were detected that do not reach the threshold for cataracts.",
	models.DiagnosisMinorRedness:       "Mild conjunctival redness was detected that does not reach the threshold for conjunctivitis.",
	models.DiagnosisMultipleConditions: "Several conditions show strong signals at the same time.",
	models.DiagnosisUnknown:            "The image shows a strong signal for a condition this screening cannot name.",
}

var grading = map[models.Severity]string{
	models.SeverityNormal:   "",
	models.SeverityMild:     " The signal is weak and graded as mild.",
	models.SeverityModerate: " The signal is clear and graded as moderate.",
	models.SeveritySevere:   " The signal is strong and graded as severe.",
}

var recommendations = map[models.Diagnosis][]string{
	models.DiagnosisNormal: {
		"Keep healthy habits and attend routine eye check-ups if you notice any discomfort.",
	},
	models.DiagnosisCataracts: {
		"Book an ophthalmology assessment to evaluate treatment options.",
		"Avoid driving at night if glare or blurred vision bothers you.",
	},
	models.DiagnosisConjunctivitis: {
		"Keep good eye hygiene and avoid rubbing your eyes.",
		"Artificial tears can relieve irritation.",
		"Do not share towels or pillows while symptoms last.",
	},
	models.DiagnosisMinorOpacities: {
		"Monitor your vision; seek a consultation if it blurs or worsens.",
	},
	models.DiagnosisMinorRedness: {
		"Monitor symptoms; seek a consultation if redness persists or worsens.",
		"Keep good eye hygiene and avoid rubbing your eyes.",
	},
	models.DiagnosisMultipleConditions: {
		"Book an ophthalmology assessment to evaluate each finding.",
		"Keep good eye hygiene and avoid rubbing your eyes.",
	},
	models.DiagnosisUnknown: {
		"Book an ophthalmology assessment to clarify the finding.",
	},
}

var urgentRecommendation = "Seek prompt care if you have pain, light sensitivity or sudden vision loss."

var advice = map[models.Diagnosis]string{
	models.DiagnosisNormal:             disclaimer + "If you have discomfort or doubts about your eye health, consult a medical professional.",
	models.DiagnosisCataracts:          disclaimer + "Please visit an ophthalmologist or health professional for a proper evaluation and treatment.",
	models.DiagnosisConjunctivitis:     disclaimer + "Please visit an ophthalmologist or health professional for a proper evaluation and treatment.",
	models.DiagnosisMinorOpacities:     disclaimer + "Monitor your condition and consult a professional if symptoms persist or worsen.",
	models.DiagnosisMinorRedness:       disclaimer + "Monitor your condition and consult a professional if symptoms persist or worsen.",
	models.DiagnosisMultipleConditions: disclaimer + "Please visit an ophthalmologist soon so each finding can be evaluated.",
	models.DiagnosisUnknown:            disclaimer + "Please visit an ophthalmologist to clarify the finding.",
}

// NewTable builds the full explanation table.
func NewTable() *Table {
	t := &Table{entries: make(map[key]Entry)}
	for _, dx := range models.AllDiagnoses() {
		for _, sev := range models.AllSeverities() {
			recs := append([]string(nil), recommendations[dx]...)
			if sev == models.SeveritySevere && dx != models.DiagnosisNormal {
				recs = append(recs, urgentRecommendation)
			}
			t.entries[key{dx, sev}] = Entry{
				Text:            findings[dx] + grading[sev],
				Recommendations: recs,
				MedicalAdvice:   advice[dx],
			}
		}
	}
	return t
}

// Lookup returns the entry for a pair; unknown pairs fall back to the
// generic unknown entry.
func (t *Table) Lookup(dx models.Diagnosis, sev models.Severity) Entry {
	if e, ok := t.entries[key{dx, sev}]; ok {
		return e
	}
	return t.entries[key{models.DiagnosisUnknown, models.SeverityNormal}]
}

// Validate checks that every pair has a complete entry.
func (t *Table) Validate() error {
	for _, dx := range models.AllDiagnoses() {
		for _, sev := range models.AllSeverities() {
			e, ok := t.entries[key{dx, sev}]
			switch {
			case !ok:
				return fmt.Errorf("no explanation for %s/%s", dx, sev)
			case e.Text == "" || e.MedicalAdvice == "" || len(e.Recommendations) == 0:
				return fmt.Errorf("incomplete explanation for %s/%s", dx, sev)
			}
		}
	}
	return nil
}

// Size returns the number of entries.
func (t *Table) Size() int {
	return len(t.entries)
}
