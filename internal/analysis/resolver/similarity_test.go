package resolver

import (
	"math"
	"testing"
)

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"aspirin", "aspirin", 1},
		{"Aspirin", " aspirin ", 1},
		{"", "aspirin", 0},
		{"aspirin", "", 0},
		{"aspirin", "asprin", 1 - 1.0/7},  // one deletion
		{"warfarin", "warfarim", 1 - 1.0/8}, // one substitution
	}
	for _, tc := range cases {
		got := Similarity(tc.a, tc.b)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("Similarity(%q, %q) = %f, want %f", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSimilarityDisjointStringsScoreLow(t *testing.T) {
	if s := Similarity("aspirin", "metformin"); s > 0.5 {
		t.Fatalf("unrelated names should score low, got %f", s)
	}
}

func TestEditDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"aspirin", "aspirin", 0},
		{"lisinopril", "lisinoprill", 1},
	}
	for _, tc := range cases {
		if got := editDistance(tc.a, tc.b); got != tc.want {
			t.Fatalf("editDistance(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestNormalizeMedicationText(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Aspirin 81mg Tablets", "aspirin"},
		{"Metoprolol Tartrate 50 mg", "metoprolol"},
		{"Lisinopril (generic for Prinivil)", "lisinopril"},
		{"Metformin HCl 500mg ER", "metformin"},
		{"  Warfarin Sodium  ", "warfarin"},
		{"Albuterol Inhaler 90 mcg", "albuterol"},
		{"insulin glargine 100 units", "insulin glargine"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeMedicationText(tc.in); got != tc.want {
			t.Fatalf("NormalizeMedicationText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCandidateTerms(t *testing.T) {
	terms := candidateTerms("Warfarin Sodium, 5mg")
	if len(terms) == 0 || terms[0] != "Warfarin Sodium, 5mg" {
		t.Fatalf("first candidate should be the raw text, got %v", terms)
	}

	seen := map[string]bool{}
	for _, term := range terms {
		if seen[term] {
			t.Fatalf("duplicate candidate %q in %v", term, terms)
		}
		seen[term] = true
	}
	if !seen["warfarin"] {
		t.Fatalf("normalized form missing from %v", terms)
	}
	if !seen["Warfarin Sodium"] {
		t.Fatalf("pre-comma component missing from %v", terms)
	}
}

func TestLookupSynonym(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"tylenol", "acetaminophen"},
		{"ASA", "aspirin"},
		{"coumadin", "warfarin"},
		{"warfarin", "warfarin"},
		{"lantus", "insulin glargine"},
		{"tyleno", "acetaminophen"}, // fuzzy hit
		{"completely unknown drug", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := lookupSynonym(tc.in); got != tc.want {
			t.Fatalf("lookupSynonym(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
