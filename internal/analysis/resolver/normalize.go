package resolver

import (
	"regexp"
	"strings"
)

// saltSuffixes are chemical salt forms stripped during normalization.
var saltSuffixes = []string{
	"hydrochloride", "hcl", "sulfate", "sulphate", "sodium", "potassium",
	"calcium", "citrate", "tartrate", "maleate", "mesylate", "besylate",
	"succinate", "fumarate", "acetate", "phosphate", "nitrate", "bromide",
}

// dosageFormWords are formulation words stripped during normalization.
var dosageFormWords = []string{
	"tablet", "tablets", "tab", "tabs", "capsule", "capsules", "cap", "caps",
	"injection", "injectable", "oral", "solution", "suspension", "syrup",
	"cream", "ointment", "gel", "patch", "spray", "inhaler", "drops",
	"er", "xr", "sr", "cr", "la", "extended", "release", "delayed",
}

var (
	dosagePattern        = regexp.MustCompile(`(?i)\b\d+(\.\d+)?\s*(mg|mcg|µg|g|ml|l|%|units?|iu)\b`)
	parentheticalPattern = regexp.MustCompile(`\([^)]*\)`)
	numberPattern        = regexp.MustCompile(`\b\d+(\.\d+)?\b`)
	spacePattern         = regexp.MustCompile(`\s+`)
)

// NormalizeMedicationText strips salt forms, dosage-form words, numeric
// dosages, and parenthetical notes from a free-text medication name.
func NormalizeMedicationText(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = parentheticalPattern.ReplaceAllString(s, " ")
	s = dosagePattern.ReplaceAllString(s, " ")
	s = numberPattern.ReplaceAllString(s, " ")

	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		w = strings.Trim(w, ".,;:-/")
		if w == "" || isSaltOrForm(w) {
			continue
		}
		kept = append(kept, w)
	}

	return spacePattern.ReplaceAllString(strings.TrimSpace(strings.Join(kept, " ")), " ")
}

func isSaltOrForm(word string) bool {
	for _, s := range saltSuffixes {
		if word == s {
			return true
		}
	}
	for _, f := range dosageFormWords {
		if word == f {
			return true
		}
	}
	return false
}

// candidateTerms builds the search candidates for a medication name:
// the original text, the normalized form, and the first component of a
// comma-separated compound.
func candidateTerms(text string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, s)
	}

	add(text)
	add(NormalizeMedicationText(text))
	if i := strings.Index(text, ","); i > 0 {
		add(text[:i])
		add(NormalizeMedicationText(text[:i]))
	}
	return out
}
