package reference

import (
	"github.com/medtriage/claimcheck/internal/domain/claim"
)

// ValidationResult is the outcome of an ICD-10 code validation.
type ValidationResult struct {
	Code        string `json:"code"`
	IsValid     bool   `json:"is_valid"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Specialty   string `json:"specialty,omitempty"`
	// Degraded is true when the code is format-valid but the remote service
	// could not confirm it, so metadata is best-effort.
	Degraded bool `json:"degraded,omitempty"`
}

// MedicationLabel is one parsed drug-label search result.
type MedicationLabel struct {
	BrandName         string                            `json:"brand_name"`
	GenericName       string                            `json:"generic_name"`
	ActiveIngredients []string                          `json:"active_ingredients,omitempty"`
	Contraindications []claim.ContraindicationStatement `json:"contraindications,omitempty"`
}

// maxSearchResults is the upper clamp for caller-provided result limits.
const maxSearchResults = 100

// clampResults normalizes a caller-provided result limit.
func clampResults(n int) int {
	if n <= 0 {
		return 10
	}
	if n > maxSearchResults {
		return maxSearchResults
	}
	return n
}
