// Package risk converts contraindication matches and clinical context into a
// weighted composite score, a three-level verdict, and deterministic
// clinical notes.
package risk

import (
	"strings"

	"go.uber.org/zap"

	"github.com/medtriage/claimcheck/internal/domain/claim"
)

// overrideConfidence is the confidence above which a contraindicated match
// forces a high-risk, incompatible verdict regardless of composite score.
const overrideConfidence = 0.8

// componentCap bounds each sub-score before weighting.
const componentCap = 10.0

// compositeCap bounds the final weighted score.
const compositeCap = 10.0

// Verdict thresholds over the composite score.
const (
	highThreshold        = 7.5
	mediumThreshold      = 4.5
	conditionalThreshold = 2.5
)

// Input carries everything the engine needs for one medication-diagnosis pair.
type Input struct {
	MedicationName     string
	MedicationResolved bool
	DiagnosisText      string
	ICD10Code          string
	Category           string
	Specialty          string
	Dosage             string
	Matches            []claim.ContraindicationMatch
}

// Result is the scored outcome for one pair.
type Result struct {
	Components    claim.RiskComponents
	Composite     float64
	RiskLevel     claim.RiskLevel
	IsCompatible  bool
	OverrideFired bool
	Notes         string
}

// Engine computes risk verdicts. Stateless; tables are package data.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a risk engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Evaluate scores one medication-diagnosis pair. The confidence>0.8
// contraindicated override is authoritative over the composite thresholds.
func (e *Engine) Evaluate(in Input) Result {
	components := claim.RiskComponents{
		ContraindicationSeverity: e.contraindicationScore(in.Matches),
		ClinicalContext:          e.clinicalContextScore(in),
		PatientSafety:            e.patientSafetyScore(in),
		DrugClass:                e.drugClassScore(in.MedicationName),
		InteractionPotential:     e.interactionScore(in),
	}

	weights := WeightsFor(in.Specialty)
	composite := components.ContraindicationSeverity*weights.ContraindicationSeverity +
		components.ClinicalContext*weights.ClinicalContext +
		components.PatientSafety*weights.PatientSafety +
		components.DrugClass*weights.DrugClass +
		components.InteractionPotential*weights.InteractionPotential
	if composite > compositeCap {
		composite = compositeCap
	}

	level := e.levelForScore(composite, len(in.Matches) > 0)
	override := hasForcedOverride(in.Matches)
	if override {
		level = claim.RiskHigh
	}

	// An unresolved medication cannot be cleared as low risk; it needs a
	// human look even when nothing else fired.
	if !in.MedicationResolved && level == claim.RiskLow {
		level = claim.RiskMedium
	}

	compatible := true
	if override {
		compatible = false
	} else if level == claim.RiskHigh && criticalSpecialties[in.Specialty] && composite > 8 {
		compatible = false
	}

	result := Result{
		Components:    components,
		Composite:     composite,
		RiskLevel:     level,
		IsCompatible:  compatible,
		OverrideFired: override,
	}
	result.Notes = e.buildNotes(in, result)

	e.logger.Debug("risk evaluated",
		zap.String("medication", in.MedicationName),
		zap.String("diagnosis", in.DiagnosisText),
		zap.Float64("composite", composite),
		zap.String("risk_level", string(level)),
		zap.Bool("override", override))

	return result
}

// levelForScore maps the composite score to a verdict level. Scores in the
// conditional band are medium only when at least one match was retained.
func (e *Engine) levelForScore(score float64, anyMatch bool) claim.RiskLevel {
	switch {
	case score >= highThreshold:
		return claim.RiskHigh
	case score >= mediumThreshold:
		return claim.RiskMedium
	case score >= conditionalThreshold && anyMatch:
		return claim.RiskMedium
	default:
		return claim.RiskLow
	}
}

// hasForcedOverride reports whether any contraindicated match exceeds the
// override confidence.
func hasForcedOverride(matches []claim.ContraindicationMatch) bool {
	for _, m := range matches {
		if m.Statement.Severity == claim.SeverityContraindicated && m.Confidence > overrideConfidence {
			return true
		}
	}
	return false
}

// contraindicationScore sums severity x confidence over matches, capped.
func (e *Engine) contraindicationScore(matches []claim.ContraindicationMatch) float64 {
	score := 0.0
	for _, m := range matches {
		score += severityWeights[m.Statement.Severity] * m.Confidence
	}
	return capComponent(score)
}

// clinicalContextScore derives from the diagnosis category risk table, with
// an unresolved medication adding uncertainty.
func (e *Engine) clinicalContextScore(in Input) float64 {
	score, ok := categoryRisk[in.Category]
	if !ok {
		score = categoryRisk["unknown"]
	}
	if !in.MedicationResolved {
		score += 1.5
	}
	return capComponent(score)
}

// patientSafetyScore scans free text for age and organ-system safety signals.
func (e *Engine) patientSafetyScore(in Input) float64 {
	text := strings.ToLower(in.DiagnosisText + " " + in.Dosage)
	score := 0.0
	for keyword, weight := range safetyKeywords {
		if strings.Contains(text, keyword) {
			score += weight
		}
	}
	return capComponent(score)
}

// drugClassScore checks membership in known high-risk drug classes.
func (e *Engine) drugClassScore(medication string) float64 {
	name := strings.ToLower(medication)
	score := 0.0
	for keyword, weight := range highRiskDrugClasses {
		if strings.Contains(name, keyword) && weight > score {
			score = weight
		}
	}
	return capComponent(score)
}

// interactionScore checks interaction-prone drug/comorbidity combinations.
func (e *Engine) interactionScore(in Input) float64 {
	med := strings.ToLower(in.MedicationName)
	diag := strings.ToLower(in.DiagnosisText + " " + in.Category)

	score := 0.0
	for _, combo := range interactionCombos {
		if strings.Contains(med, combo.drugKeyword) && strings.Contains(diag, combo.diagnosisKeyword) {
			score += combo.score
		}
	}
	return capComponent(score)
}

func capComponent(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > componentCap {
		return componentCap
	}
	return f
}
