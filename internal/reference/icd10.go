package reference

import (
	"regexp"
	"strings"
)

// icd10Pattern matches the ICD-10 lexical shape: one letter, two digits, and
// an optional decimal subcode.
var icd10Pattern = regexp.MustCompile(`^[A-Za-z][0-9]{2}(\.[0-9A-Za-z]{1,4})?$`)

// IsICD10Format reports whether s is lexically a plausible ICD-10 code.
func IsICD10Format(s string) bool {
	return icd10Pattern.MatchString(strings.TrimSpace(s))
}

// chapterInfo maps an ICD-10 chapter to its clinical category and the
// specialty most likely to own it.
type chapterInfo struct {
	category  string
	specialty string
}

// icd10Chapters is keyed by the code's leading letter. Pure data, loaded once.
var icd10Chapters = map[byte]chapterInfo{
	'A': {"infectious", "Infectious Disease"},
	'B': {"infectious", "Infectious Disease"},
	'C': {"neoplastic", "Oncology"},
	'D': {"hematologic", "Hematology"},
	'E': {"endocrine", "Endocrinology"},
	'F': {"psychiatric", "Psychiatry"},
	'G': {"neurological", "Neurology"},
	'H': {"sensory", "Ophthalmology"},
	'I': {"cardiovascular", "Cardiology"},
	'J': {"respiratory", "Pulmonology"},
	'K': {"gastrointestinal", "Gastroenterology"},
	'L': {"dermatologic", "Dermatology"},
	'M': {"musculoskeletal", "Rheumatology"},
	'N': {"renal", "Nephrology"},
	'O': {"obstetric", "Obstetrics"},
	'P': {"perinatal", "Pediatrics"},
	'Q': {"congenital", "Pediatrics"},
	'R': {"symptomatic", "Internal Medicine"},
	'S': {"injury", "Emergency Medicine"},
	'T': {"injury", "Emergency Medicine"},
	'Z': {"administrative", "Internal Medicine"},
}

// CategorizeICD10 returns the clinical category and specialty for a code,
// derived from its chapter letter. Unknown shapes return Unknown/Unknown.
func CategorizeICD10(code string) (category, specialty string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "unknown", "Unknown"
	}
	info, ok := icd10Chapters[code[0]]
	if !ok {
		return "unknown", "Unknown"
	}

	// Hepatic codes live inside the digestive chapter.
	if strings.HasPrefix(code, "K7") {
		return "hepatic", "Hepatology"
	}
	return info.category, info.specialty
}
