package reference

import (
	"strings"

	"github.com/medtriage/claimcheck/internal/domain/claim"
)

// fallbackDiagnoses is a small embedded table of common ICD-10 codes used
// when the terminology service is unreachable. Best-effort coverage only.
var fallbackDiagnoses = []claim.DiagnosisCode{
	{Code: "I10", Description: "Essential (primary) hypertension", Category: "cardiovascular", Specialty: "Cardiology"},
	{Code: "I25.10", Description: "Atherosclerotic heart disease of native coronary artery", Category: "cardiovascular", Specialty: "Cardiology"},
	{Code: "I50.9", Description: "Heart failure, unspecified", Category: "cardiovascular", Specialty: "Cardiology"},
	{Code: "E11.9", Description: "Type 2 diabetes mellitus without complications", Category: "endocrine", Specialty: "Endocrinology"},
	{Code: "E78.5", Description: "Hyperlipidemia, unspecified", Category: "endocrine", Specialty: "Endocrinology"},
	{Code: "J45.9", Description: "Asthma, unspecified", Category: "respiratory", Specialty: "Pulmonology"},
	{Code: "J44.9", Description: "Chronic obstructive pulmonary disease, unspecified", Category: "respiratory", Specialty: "Pulmonology"},
	{Code: "N18.3", Description: "Chronic kidney disease, stage 3", Category: "renal", Specialty: "Nephrology"},
	{Code: "N18.9", Description: "Chronic kidney disease, unspecified", Category: "renal", Specialty: "Nephrology"},
	{Code: "K70.30", Description: "Alcoholic cirrhosis of liver without ascites", Category: "hepatic", Specialty: "Hepatology"},
	{Code: "K21.9", Description: "Gastro-esophageal reflux disease without esophagitis", Category: "gastrointestinal", Specialty: "Gastroenterology"},
	{Code: "F32.9", Description: "Major depressive disorder, single episode, unspecified", Category: "psychiatric", Specialty: "Psychiatry"},
	{Code: "F41.9", Description: "Anxiety disorder, unspecified", Category: "psychiatric", Specialty: "Psychiatry"},
	{Code: "M17.9", Description: "Osteoarthritis of knee, unspecified", Category: "musculoskeletal", Specialty: "Rheumatology"},
	{Code: "G43.909", Description: "Migraine, unspecified, not intractable", Category: "neurological", Specialty: "Neurology"},
}

// staticDiagnosisSearch matches term against the embedded table by code or
// description substring.
func staticDiagnosisSearch(term string) []claim.DiagnosisCode {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return nil
	}

	var out []claim.DiagnosisCode
	for _, d := range fallbackDiagnoses {
		if strings.EqualFold(d.Code, needle) ||
			strings.Contains(strings.ToLower(d.Description), needle) {
			out = append(out, d)
		}
	}
	return out
}
