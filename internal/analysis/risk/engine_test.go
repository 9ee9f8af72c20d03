package risk

import (
	"strings"
	"testing"

	"github.com/medtriage/claimcheck/internal/domain/claim"
)

func contraindicatedMatch(text string, confidence float64) claim.ContraindicationMatch {
	return claim.ContraindicationMatch{
		Statement: claim.ContraindicationStatement{
			ConditionText: text,
			Severity:      claim.SeverityContraindicated,
			Description:   text,
		},
		Confidence: confidence,
		Reasoning:  "test match",
	}
}

func warningMatch(text string, confidence float64) claim.ContraindicationMatch {
	return claim.ContraindicationMatch{
		Statement: claim.ContraindicationStatement{
			ConditionText: text,
			Severity:      claim.SeverityWarning,
			Description:   text,
		},
		Confidence: confidence,
		Reasoning:  "test match",
	}
}

func TestEvaluateOverrideForcesHighRiskIncompatible(t *testing.T) {
	e := NewEngine(nil)

	result := e.Evaluate(Input{
		MedicationName:     "ASPIRIN",
		MedicationResolved: true,
		DiagnosisText:      "Asthma, unspecified",
		ICD10Code:          "J45.9",
		Category:           "respiratory",
		Specialty:          "Pulmonology",
		Matches: []claim.ContraindicationMatch{
			contraindicatedMatch("Aspirin-induced asthma", 0.85),
		},
	})

	if !result.OverrideFired {
		t.Fatal("contraindicated match above 0.8 confidence must fire the override")
	}
	if result.RiskLevel != claim.RiskHigh {
		t.Fatalf("risk level = %s, want high", result.RiskLevel)
	}
	if result.IsCompatible {
		t.Fatal("override must mark the pair incompatible")
	}
	if !strings.Contains(result.Notes, "HIGH RISK:") {
		t.Fatalf("notes missing banner: %q", result.Notes)
	}
	if !strings.Contains(result.Notes, "Aspirin-induced asthma") {
		t.Fatalf("notes missing critical finding: %q", result.Notes)
	}
	if !strings.Contains(result.Notes, "do not dispense") {
		t.Fatalf("notes missing recommendation: %q", result.Notes)
	}
}

func TestEvaluateOverrideRequiresStrictThreshold(t *testing.T) {
	e := NewEngine(nil)

	// Exactly 0.8 does not fire; the threshold is strict.
	atThreshold := e.Evaluate(Input{
		MedicationName:     "ASPIRIN",
		MedicationResolved: true,
		DiagnosisText:      "Asthma, unspecified",
		Category:           "respiratory",
		Matches: []claim.ContraindicationMatch{
			contraindicatedMatch("Aspirin-induced asthma", 0.8),
		},
	})
	if atThreshold.OverrideFired {
		t.Fatal("confidence of exactly 0.8 must not fire the override")
	}

	// High-confidence warnings never fire it either.
	warningOnly := e.Evaluate(Input{
		MedicationName:     "ASPIRIN",
		MedicationResolved: true,
		DiagnosisText:      "Asthma, unspecified",
		Category:           "respiratory",
		Matches: []claim.ContraindicationMatch{
			warningMatch("Risk of bronchospasm", 0.99),
		},
	})
	if warningOnly.OverrideFired {
		t.Fatal("warning severity must not fire the override")
	}
}

func TestEvaluateBenignPairIsLowRiskCompatible(t *testing.T) {
	e := NewEngine(nil)

	result := e.Evaluate(Input{
		MedicationName:     "acetaminophen",
		MedicationResolved: true,
		DiagnosisText:      "Seasonal allergic rhinitis",
		Category:           "unknown",
		Specialty:          "Internal Medicine",
	})

	if result.RiskLevel != claim.RiskLow {
		t.Fatalf("risk level = %s, want low", result.RiskLevel)
	}
	if !result.IsCompatible {
		t.Fatal("benign pair should be compatible")
	}
	if result.OverrideFired {
		t.Fatal("no override without matches")
	}
	if !strings.Contains(result.Notes, "LOW RISK:") {
		t.Fatalf("notes = %q", result.Notes)
	}
	if !strings.Contains(result.Notes, "no significant contraindication signals") {
		t.Fatalf("notes missing recommendation: %q", result.Notes)
	}
}

func TestEvaluateUnresolvedMedicationNeverLowRisk(t *testing.T) {
	e := NewEngine(nil)

	result := e.Evaluate(Input{
		MedicationName:     "Xylozapine",
		MedicationResolved: false,
		DiagnosisText:      "Seasonal allergic rhinitis",
		Category:           "unknown",
	})

	if result.RiskLevel != claim.RiskMedium {
		t.Fatalf("risk level = %s, want medium for unresolved medication", result.RiskLevel)
	}
	if !result.IsCompatible {
		t.Fatal("unresolved medication alone does not mark incompatible")
	}
	if !strings.Contains(result.Notes, "could not be matched") {
		t.Fatalf("notes missing manual-review paragraph: %q", result.Notes)
	}
}

func TestLevelForScoreThresholds(t *testing.T) {
	e := NewEngine(nil)

	cases := []struct {
		score    float64
		anyMatch bool
		want     claim.RiskLevel
	}{
		{9.0, false, claim.RiskHigh},
		{7.5, false, claim.RiskHigh},
		{7.4, false, claim.RiskMedium},
		{4.5, false, claim.RiskMedium},
		{4.4, false, claim.RiskLow},
		{3.0, true, claim.RiskMedium},
		{3.0, false, claim.RiskLow},
		{2.5, true, claim.RiskMedium},
		{2.4, true, claim.RiskLow},
		{0.0, false, claim.RiskLow},
	}
	for _, tc := range cases {
		if got := e.levelForScore(tc.score, tc.anyMatch); got != tc.want {
			t.Fatalf("levelForScore(%.1f, %v) = %s, want %s", tc.score, tc.anyMatch, got, tc.want)
		}
	}
}

func TestEvaluateComponentScores(t *testing.T) {
	e := NewEngine(nil)

	result := e.Evaluate(Input{
		MedicationName:     "warfarin",
		MedicationResolved: true,
		DiagnosisText:      "Chronic kidney disease on dialysis with bleeding",
		Category:           "renal",
		Specialty:          "Nephrology",
		Matches: []claim.ContraindicationMatch{
			contraindicatedMatch("Active bleeding", 0.9),
			warningMatch("Renal impairment", 0.7),
		},
	})

	// Contraindication: 3.0*0.9 + 2.0*0.7.
	if got := result.Components.ContraindicationSeverity; got != 3.0*0.9+2.0*0.7 {
		t.Fatalf("contraindication component = %f", got)
	}
	if got := result.Components.ClinicalContext; got != 2.5 {
		t.Fatalf("clinical context component = %f, want 2.5", got)
	}
	// Safety keywords: chronic (0.8) + dialysis (2.0) + bleeding matches none.
	if got := result.Components.PatientSafety; got != 0.8+2.0 {
		t.Fatalf("patient safety component = %f", got)
	}
	if got := result.Components.DrugClass; got != 3.0 {
		t.Fatalf("drug class component = %f, want 3.0", got)
	}
	// warfarin+bleeding interaction combo.
	if got := result.Components.InteractionPotential; got != 3.0 {
		t.Fatalf("interaction component = %f, want 3.0", got)
	}
	if result.Composite <= 0 || result.Composite > 10 {
		t.Fatalf("composite out of range: %f", result.Composite)
	}
	if !result.OverrideFired {
		t.Fatal("0.9-confidence contraindicated match must fire the override")
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	e := NewEngine(nil)

	in := Input{
		MedicationName:     "warfarin",
		MedicationResolved: true,
		DiagnosisText:      "Peptic ulcer with bleeding",
		ICD10Code:          "K27.4",
		Category:           "gastrointestinal",
		Specialty:          "Gastroenterology",
		Matches: []claim.ContraindicationMatch{
			warningMatch("Risk of gastrointestinal bleeding", 0.7),
			warningMatch("Active peptic ulcer disease", 0.7),
			contraindicatedMatch("Hemorrhagic tendencies", 0.9),
		},
	}

	first := e.Evaluate(in)
	second := e.Evaluate(in)

	if first.Composite != second.Composite {
		t.Fatalf("composite differs: %f vs %f", first.Composite, second.Composite)
	}
	if first.Notes != second.Notes {
		t.Fatalf("notes differ:\n%q\n%q", first.Notes, second.Notes)
	}
	if first.RiskLevel != second.RiskLevel || first.IsCompatible != second.IsCompatible {
		t.Fatal("verdict differs between identical evaluations")
	}
}

func TestWeightsFor(t *testing.T) {
	if w := WeightsFor("Nephrology"); w.PatientSafety != 0.25 {
		t.Fatalf("Nephrology safety weight = %f", w.PatientSafety)
	}
	if w := WeightsFor("Dermatology"); w != defaultWeights {
		t.Fatalf("unlisted specialty should use defaults, got %+v", w)
	}

	for name, w := range specialtyWeights {
		sum := w.ContraindicationSeverity + w.ClinicalContext + w.PatientSafety + w.DrugClass + w.InteractionPotential
		if sum < 0.999 || sum > 1.001 {
			t.Fatalf("%s weights sum to %f, want 1.0", name, sum)
		}
	}
	sum := defaultWeights.ContraindicationSeverity + defaultWeights.ClinicalContext +
		defaultWeights.PatientSafety + defaultWeights.DrugClass + defaultWeights.InteractionPotential
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("default weights sum to %f, want 1.0", sum)
	}
}

func TestNotesListCriticalFindingsByConfidence(t *testing.T) {
	e := NewEngine(nil)

	result := e.Evaluate(Input{
		MedicationName:     "warfarin",
		MedicationResolved: true,
		DiagnosisText:      "Bleeding disorder",
		Category:           "hematologic",
		Matches: []claim.ContraindicationMatch{
			contraindicatedMatch("Lower confidence finding", 0.82),
			contraindicatedMatch("Higher confidence finding", 0.95),
		},
	})

	high := strings.Index(result.Notes, "Higher confidence finding")
	low := strings.Index(result.Notes, "Lower confidence finding")
	if high < 0 || low < 0 {
		t.Fatalf("notes missing findings: %q", result.Notes)
	}
	if high > low {
		t.Fatal("critical findings must be ordered by confidence descending")
	}
}

func TestSummarizeTruncatesLongText(t *testing.T) {
	long := strings.Repeat("x", 200)
	got := summarize(long)
	if len(got) != 140 {
		t.Fatalf("len = %d, want 140", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated text should end with ellipsis: %q", got[130:])
	}

	if got := summarize("short"); got != "short" {
		t.Fatalf("short text should pass through, got %q", got)
	}
}
