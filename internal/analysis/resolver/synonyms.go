package resolver

import "strings"

// medicationSynonyms maps canonical generic names to their common brand names
// and alternate spellings. Curated, pure data; consulted only after the
// remote labeling service misses.
var medicationSynonyms = map[string][]string{
	"aspirin":        {"asa", "acetylsalicylic acid", "bayer aspirin"},
	"acetaminophen":  {"tylenol", "paracetamol", "apap"},
	"ibuprofen":      {"advil", "motrin"},
	"naproxen":       {"aleve", "naprosyn"},
	"lisinopril":     {"prinivil", "zestril"},
	"metformin":      {"glucophage", "fortamet"},
	"atorvastatin":   {"lipitor"},
	"simvastatin":    {"zocor"},
	"warfarin":       {"coumadin", "jantoven"},
	"levothyroxine":  {"synthroid", "levoxyl"},
	"omeprazole":     {"prilosec"},
	"metoprolol":     {"lopressor", "toprol"},
	"amlodipine":     {"norvasc"},
	"losartan":       {"cozaar"},
	"albuterol":      {"proventil", "ventolin", "salbutamol"},
	"furosemide":     {"lasix"},
	"gabapentin":     {"neurontin"},
	"sertraline":     {"zoloft"},
	"fluoxetine":     {"prozac"},
	"hydrochlorothiazide": {"hctz", "microzide"},
	"clopidogrel":    {"plavix"},
	"insulin glargine": {"lantus", "basaglar"},
	"prednisone":     {"deltasone"},
}

// synonymFuzzyThreshold is the minimum similarity for a fuzzy synonym hit.
const synonymFuzzyThreshold = 0.8

// lookupSynonym maps text to a canonical generic name: exact match first,
// then fuzzy at 0.8 similarity. Returns "" on miss.
func lookupSynonym(text string) string {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return ""
	}

	for canonical, aliases := range medicationSynonyms {
		if needle == canonical {
			return canonical
		}
		for _, a := range aliases {
			if needle == a {
				return canonical
			}
		}
	}

	bestScore := 0.0
	best := ""
	for canonical, aliases := range medicationSynonyms {
		if s := Similarity(needle, canonical); s > bestScore {
			bestScore, best = s, canonical
		}
		for _, a := range aliases {
			if s := Similarity(needle, a); s > bestScore {
				bestScore, best = s, canonical
			}
		}
	}
	if bestScore >= synonymFuzzyThreshold {
		return best
	}
	return ""
}
