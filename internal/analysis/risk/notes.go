package risk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/medtriage/claimcheck/internal/domain/claim"
)

// maxListedItems bounds the considerations and monitoring sections.
const maxListedItems = 3

// buildNotes renders the structured clinical notes for a result. Output is
// fully deterministic for a given input so verdicts are reproducible.
func (e *Engine) buildNotes(in Input, r Result) string {
	var b strings.Builder

	b.WriteString(banner(r.RiskLevel))
	fmt.Fprintf(&b, " %s with %s", displayName(in), in.DiagnosisText)
	if in.ICD10Code != "" {
		fmt.Fprintf(&b, " (%s)", strings.ToUpper(in.ICD10Code))
	}
	fmt.Fprintf(&b, ": composite risk score %.1f/10, specialty %s.\n", r.Composite, orUnknown(in.Specialty))

	if !in.MedicationResolved {
		fmt.Fprintf(&b, "\nMedication %q could not be matched to a reference entry; this assessment is based on partial data and requires manual review.\n", in.MedicationName)
	}

	if findings := criticalFindings(in.Matches); len(findings) > 0 {
		b.WriteString("\nCritical findings:\n")
		for _, f := range findings {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
	}

	if considerations := clinicalConsiderations(in, r); len(considerations) > 0 {
		b.WriteString("\nClinical considerations:\n")
		for _, c := range considerations {
			fmt.Fprintf(&b, "  - %s\n", c)
		}
	}

	if monitoring := monitoringRequirements(in, r); len(monitoring) > 0 {
		b.WriteString("\nMonitoring:\n")
		for _, m := range monitoring {
			fmt.Fprintf(&b, "  - %s\n", m)
		}
	}

	b.WriteString("\n")
	b.WriteString(recommendation(in, r))
	return b.String()
}

func banner(level claim.RiskLevel) string {
	switch level {
	case claim.RiskHigh:
		return "HIGH RISK:"
	case claim.RiskMedium:
		return "MEDIUM RISK:"
	default:
		return "LOW RISK:"
	}
}

func displayName(in Input) string {
	if in.MedicationName != "" {
		return in.MedicationName
	}
	return "unidentified medication"
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// criticalFindings lists contraindicated matches, highest confidence first.
func criticalFindings(matches []claim.ContraindicationMatch) []string {
	var contraindicated []claim.ContraindicationMatch
	for _, m := range matches {
		if m.Statement.Severity == claim.SeverityContraindicated {
			contraindicated = append(contraindicated, m)
		}
	}
	sortMatches(contraindicated)

	var out []string
	for _, m := range contraindicated {
		out = append(out, fmt.Sprintf("Contraindicated: %s (confidence %.2f; %s)",
			summarize(m.Statement.ConditionText), m.Confidence, m.Reasoning))
	}
	return out
}

// clinicalConsiderations lists the top warning/precaution matches and
// component-driven observations.
func clinicalConsiderations(in Input, r Result) []string {
	var considerations []string

	var nonCritical []claim.ContraindicationMatch
	for _, m := range in.Matches {
		if m.Statement.Severity != claim.SeverityContraindicated {
			nonCritical = append(nonCritical, m)
		}
	}
	sortMatches(nonCritical)
	for _, m := range nonCritical {
		considerations = append(considerations, fmt.Sprintf("%s: %s (confidence %.2f)",
			capitalize(string(m.Statement.Severity)), summarize(m.Statement.ConditionText), m.Confidence))
	}

	if r.Components.DrugClass >= 2.5 {
		considerations = append(considerations, fmt.Sprintf("%s belongs to a high-risk drug class; verify dosing against current guidelines.", displayName(in)))
	}
	if r.Components.InteractionPotential >= 2.0 {
		considerations = append(considerations, "Known interaction-prone combination with this comorbidity profile.")
	}

	if len(considerations) > maxListedItems {
		considerations = considerations[:maxListedItems]
	}
	return considerations
}

// monitoringRequirements derives monitoring advice from the diagnosis
// category and risk level.
func monitoringRequirements(in Input, r Result) []string {
	var monitoring []string

	switch in.Category {
	case "renal":
		monitoring = append(monitoring, "Monitor serum creatinine and eGFR before and during therapy.")
	case "hepatic":
		monitoring = append(monitoring, "Monitor liver function tests at baseline and periodically.")
	case "cardiovascular":
		monitoring = append(monitoring, "Monitor blood pressure and heart rate during initiation.")
	case "respiratory":
		monitoring = append(monitoring, "Monitor respiratory status; counsel on bronchospasm warning signs.")
	case "endocrine":
		monitoring = append(monitoring, "Monitor blood glucose during therapy changes.")
	case "hematologic":
		monitoring = append(monitoring, "Monitor complete blood count and coagulation parameters.")
	}

	if r.RiskLevel == claim.RiskHigh {
		monitoring = append(monitoring, "Escalate to the prescribing clinician before dispensing.")
	} else if r.RiskLevel == claim.RiskMedium {
		monitoring = append(monitoring, "Schedule follow-up review within the current claim cycle.")
	}

	if len(monitoring) > maxListedItems {
		monitoring = monitoring[:maxListedItems]
	}
	return monitoring
}

// recommendation produces the final one-sentence disposition.
func recommendation(in Input, r Result) string {
	switch {
	case r.OverrideFired:
		return fmt.Sprintf("Recommendation: do not dispense; a documented contraindication applies to %s for this diagnosis.", displayName(in))
	case !r.IsCompatible:
		return "Recommendation: incompatible in this specialty context; clinician review required before proceeding."
	case r.RiskLevel == claim.RiskMedium:
		return "Recommendation: compatible with monitoring; review flagged considerations before approval."
	default:
		return "Recommendation: compatible; no significant contraindication signals detected."
	}
}

// sortMatches orders by confidence descending, then condition text for
// deterministic output.
func sortMatches(matches []claim.ContraindicationMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Statement.ConditionText < matches[j].Statement.ConditionText
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// summarize truncates long label text blocks for note readability.
func summarize(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 140 {
		return s
	}
	return s[:137] + "..."
}
