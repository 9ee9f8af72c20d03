package risk

import "github.com/medtriage/claimcheck/internal/domain/claim"

// Declarative scoring tables. Pure data, loaded once.

// severityWeights convert statement severity into a base factor for the
// contraindication component. Contraindicated > warning > precaution.
var severityWeights = map[claim.Severity]float64{
	claim.SeverityContraindicated: 3.0,
	claim.SeverityWarning:         2.0,
	claim.SeverityPrecaution:      1.0,
}

// categoryRisk maps an ICD-10 clinical category to its baseline clinical
// context risk contribution.
var categoryRisk = map[string]float64{
	"cardiovascular":   2.5,
	"renal":            2.5,
	"hepatic":          2.5,
	"respiratory":      1.8,
	"endocrine":        1.5,
	"neoplastic":       2.2,
	"hematologic":      2.0,
	"neurological":     1.5,
	"psychiatric":      1.2,
	"gastrointestinal": 1.2,
	"infectious":       1.0,
	"obstetric":        2.2,
	"unknown":          0.8,
}

// Weights is one specialty's weight vector over the five risk components.
type Weights struct {
	ContraindicationSeverity float64
	ClinicalContext          float64
	PatientSafety            float64
	DrugClass                float64
	InteractionPotential     float64
}

// defaultWeights is the general-medicine weight vector.
var defaultWeights = Weights{
	ContraindicationSeverity: 0.35,
	ClinicalContext:          0.20,
	PatientSafety:            0.20,
	DrugClass:                0.15,
	InteractionPotential:     0.10,
}

// specialtyWeights overrides the default vector for safety-critical
// specialties, weighting patient safety and drug-class factors higher.
var specialtyWeights = map[string]Weights{
	"Critical Care": {
		ContraindicationSeverity: 0.35,
		ClinicalContext:          0.10,
		PatientSafety:            0.30,
		DrugClass:                0.15,
		InteractionPotential:     0.10,
	},
	"Cardiology": {
		ContraindicationSeverity: 0.35,
		ClinicalContext:          0.15,
		PatientSafety:            0.25,
		DrugClass:                0.15,
		InteractionPotential:     0.10,
	},
	"Nephrology": {
		ContraindicationSeverity: 0.35,
		ClinicalContext:          0.15,
		PatientSafety:            0.25,
		DrugClass:                0.15,
		InteractionPotential:     0.10,
	},
	"Hepatology": {
		ContraindicationSeverity: 0.35,
		ClinicalContext:          0.15,
		PatientSafety:            0.25,
		DrugClass:                0.15,
		InteractionPotential:     0.10,
	},
}

// criticalSpecialties gates the incompatibility rule for high-risk verdicts
// with composite score above 8.
var criticalSpecialties = map[string]bool{
	"Critical Care": true,
	"Cardiology":    true,
	"Nephrology":    true,
	"Hepatology":    true,
}

// WeightsFor returns the weight vector for a specialty.
func WeightsFor(specialty string) Weights {
	if w, ok := specialtyWeights[specialty]; ok {
		return w
	}
	return defaultWeights
}

// highRiskDrugClasses scores known narrow-therapeutic-index or otherwise
// high-risk medications by name keyword.
var highRiskDrugClasses = map[string]float64{
	"warfarin":     3.0,
	"digoxin":      3.0,
	"lithium":      3.0,
	"methotrexate": 3.0,
	"amiodarone":   2.5,
	"insulin":      2.5,
	"heparin":      2.5,
	"oxycodone":    2.5,
	"morphine":     2.5,
	"fentanyl":     3.0,
	"clozapine":    2.5,
	"theophylline": 2.5,
	"phenytoin":    2.5,
	"carbamazepine": 2.0,
	"gentamicin":   2.0,
	"vancomycin":   2.0,
	"aspirin":      1.5,
	"ibuprofen":    1.2,
	"naproxen":     1.2,
	"metformin":    1.0,
	"lisinopril":   1.0,
}

// interactionCombos scores interaction-prone drug/comorbidity combinations.
type interactionCombo struct {
	drugKeyword      string
	diagnosisKeyword string
	score            float64
}

var interactionCombos = []interactionCombo{
	{"warfarin", "bleeding", 3.0},
	{"warfarin", "ulcer", 2.5},
	{"warfarin", "liver", 2.0},
	{"aspirin", "asthma", 2.5},
	{"aspirin", "ulcer", 2.5},
	{"aspirin", "bleeding", 2.5},
	{"ibuprofen", "renal", 2.5},
	{"ibuprofen", "kidney", 2.5},
	{"ibuprofen", "heart failure", 2.0},
	{"naproxen", "renal", 2.5},
	{"naproxen", "ulcer", 2.5},
	{"metformin", "renal", 2.5},
	{"metformin", "kidney", 2.5},
	{"lisinopril", "renal", 2.0},
	{"lisinopril", "hyperkalemia", 2.5},
	{"metoprolol", "asthma", 2.5},
	{"propranolol", "asthma", 2.8},
	{"insulin", "renal", 1.5},
	{"digoxin", "renal", 2.5},
	{"atorvastatin", "liver", 2.2},
	{"simvastatin", "liver", 2.2},
	{"morphine", "copd", 2.5},
	{"oxycodone", "respiratory", 2.5},
}

// safetyKeywords drive the patient-safety component from free text: advanced
// age and fragile organ-system mentions.
var safetyKeywords = map[string]float64{
	"elderly":    1.5,
	"geriatric":  1.5,
	"pediatric":  1.5,
	"neonatal":   2.0,
	"pregnan":    2.0,
	"acute":      1.2,
	"severe":     1.5,
	"chronic":    0.8,
	"end stage":  2.0,
	"failure":    1.5,
	"transplant": 1.8,
	"dialysis":   2.0,
}
