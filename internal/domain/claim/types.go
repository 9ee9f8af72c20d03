// Package claim defines the core data model for claim compatibility analysis.
package claim

import (
	"time"
)

// Severity classifies a contraindication statement extracted from drug labeling.
type Severity string

const (
	SeverityContraindicated Severity = "contraindicated"
	SeverityWarning         Severity = "warning"
	SeverityPrecaution      Severity = "precaution"
)

// RiskLevel is the three-level verdict scale.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// UploadedRow is one medication-diagnosis pair extracted from a claim spreadsheet.
// Multi-diagnosis source lines produce one row per diagnosis column.
type UploadedRow struct {
	PatientID      string `json:"patient_id"`
	MedicationText string `json:"medication_text"`
	Dosage         string `json:"dosage,omitempty"`
	DiagnosisText  string `json:"diagnosis_text"`
	ICD10Code      string `json:"icd10_code,omitempty"`
	// SourceLine and DiagnosisIndex preserve per-row field order for multi-diagnosis lines.
	SourceLine     int `json:"source_line"`
	DiagnosisIndex int `json:"diagnosis_index"`
}

// ContraindicationStatement is one condition block extracted from medication labeling.
type ContraindicationStatement struct {
	ConditionText string   `json:"condition_text"`
	Severity      Severity `json:"severity"`
	Description   string   `json:"description,omitempty"`
}

// CanonicalMedication is the resolved identity of a free-text medication name.
// Immutable once created; cached by name and by active ingredient.
type CanonicalMedication struct {
	Name              string                      `json:"name"`
	ActiveIngredient  string                      `json:"active_ingredient,omitempty"`
	Contraindications []ContraindicationStatement `json:"contraindications,omitempty"`
	CompatibleCodes   map[string]bool             `json:"compatible_codes,omitempty"`
	IncompatibleCodes map[string]bool             `json:"incompatible_codes,omitempty"`
}

// DiagnosisCode is the canonical identity of a diagnosis.
type DiagnosisCode struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	Specialty   string `json:"specialty,omitempty"`
}

// ContraindicationMatch is a scored (diagnosis, statement) pair evaluation.
type ContraindicationMatch struct {
	Statement  ContraindicationStatement `json:"statement"`
	Confidence float64                   `json:"confidence"`
	Reasoning  string                    `json:"reasoning"`
}

// RiskComponents holds the five independently computed sub-scores.
type RiskComponents struct {
	ContraindicationSeverity float64 `json:"contraindication_severity"`
	ClinicalContext          float64 `json:"clinical_context"`
	PatientSafety            float64 `json:"patient_safety"`
	DrugClass                float64 `json:"drug_class"`
	InteractionPotential     float64 `json:"interaction_potential"`
}

// AnalysisVerdict is the final output per analyzed row.
type AnalysisVerdict struct {
	ID             string                  `json:"id"`
	PatientID      string                  `json:"patient_id"`
	MedicationName string                  `json:"medication_name"`
	DiagnosisText  string                  `json:"diagnosis_text"`
	ICD10Code      string                  `json:"icd10_code,omitempty"`
	IsCompatible   bool                    `json:"is_compatible"`
	RiskLevel      RiskLevel               `json:"risk_level"`
	RiskScore      float64                 `json:"risk_score"`
	Components     RiskComponents          `json:"components"`
	Specialty      string                  `json:"specialty"`
	Matches        []ContraindicationMatch `json:"matches,omitempty"`
	ClinicalNotes  string                  `json:"clinical_notes"`
	// MedicationResolved is false when the medication fell through to raw-text passthrough.
	MedicationResolved bool      `json:"medication_resolved"`
	SourceLine         int       `json:"source_line"`
	DiagnosisIndex     int       `json:"diagnosis_index"`
	AnalyzedAt         time.Time `json:"analyzed_at"`
}

// RunStatus tracks the lifecycle of an analysis run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// AnalysisRun groups the verdicts produced from one upload.
type AnalysisRun struct {
	ID          string            `json:"id"`
	ContentHash string            `json:"content_hash"`
	Status      RunStatus         `json:"status"`
	RowCount    int               `json:"row_count"`
	Verdicts    []AnalysisVerdict `json:"verdicts,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}
