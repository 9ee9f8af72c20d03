// Package matcher decides whether a diagnosis matches a contraindication
// statement, scoring each pair with a confidence in [0,1]. The result is a
// heuristic triage signal, not ground truth.
package matcher

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/medtriage/claimcheck/internal/domain/claim"
)

// retentionThreshold is the minimum confidence for a match to be kept.
const retentionThreshold = 0.5

// Matcher evaluates contraindication statements against a diagnosis using
// five independent strategies and keeps the maximum confidence per statement.
type Matcher struct {
	logger *zap.Logger
}

// New creates a matcher.
func New(logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{logger: logger}
}

// Match scores every statement against the diagnosis and returns the matches
// whose best confidence exceeds 0.5.
func (m *Matcher) Match(diagnosisText, icd10Code string, statements []claim.ContraindicationStatement, specialty string) []claim.ContraindicationMatch {
	diagnosis := strings.ToLower(strings.TrimSpace(diagnosisText))
	code := strings.ToLower(strings.TrimSpace(icd10Code))

	var matches []claim.ContraindicationMatch
	for _, stmt := range statements {
		confidence, reasoning := m.scoreStatement(diagnosis, code, stmt)
		if confidence <= retentionThreshold {
			continue
		}
		matches = append(matches, claim.ContraindicationMatch{
			Statement:  stmt,
			Confidence: clamp01(confidence),
			Reasoning:  reasoning,
		})
	}

	if len(matches) > 0 {
		m.logger.Debug("contraindication matches retained",
			zap.String("diagnosis", diagnosisText),
			zap.Int("count", len(matches)))
	}
	return matches
}

// scoreStatement runs all five strategies and returns the best confidence
// with the reasoning of the winning strategy.
func (m *Matcher) scoreStatement(diagnosis, code string, stmt claim.ContraindicationStatement) (float64, string) {
	condition := strings.ToLower(stmt.ConditionText)
	description := strings.ToLower(stmt.Description)

	best := 0.0
	reasoning := ""
	consider := func(conf float64, why string) {
		if conf > best {
			best = conf
			reasoning = why
		}
	}

	// 1. Direct substring containment.
	if conf, ok := directMatch(diagnosis, condition); ok {
		consider(conf, "diagnosis text directly matches contraindication condition")
	}

	// 2. ICD-10 code literal in the statement.
	if code != "" && len(code) >= 3 && (strings.Contains(condition, code) || strings.Contains(description, code)) {
		consider(0.90, fmt.Sprintf("ICD-10 code %s cited in contraindication text", strings.ToUpper(code)))
	}

	// 3. Curated terminology category match.
	if conf, why, ok := categoryMatch(diagnosis, condition, description); ok {
		consider(conf, why)
	}

	// 4. Synonym-group semantic match.
	if conf, why, ok := synonymMatch(diagnosis, condition+" "+description); ok {
		consider(conf, why)
	}

	// 5. Drug-mechanism-class match.
	if conf, why, ok := mechanismMatch(diagnosis, condition+" "+description); ok {
		consider(conf, why)
	}

	return best, reasoning
}

// directMatch checks containment either way; trivially short strings are
// excluded to avoid accidental hits.
func directMatch(diagnosis, condition string) (float64, bool) {
	if len(diagnosis) < 4 || len(condition) < 4 {
		return 0, false
	}
	if strings.Contains(condition, diagnosis) || strings.Contains(diagnosis, condition) {
		return 0.95, true
	}
	return 0, false
}

// categoryMatch requires a category keyword in the diagnosis text and a
// condition term (or synonym) in the statement. Confidence is the condition's
// base severity weight, boosted for exact term hits and critical categories.
func categoryMatch(diagnosis, condition, description string) (float64, string, bool) {
	statement := condition + " " + description

	best := 0.0
	why := ""
	for name, cat := range terminologyCategories {
		if !containsAny(diagnosis, cat.keywords) {
			continue
		}
		for _, ct := range cat.conditions {
			if !strings.Contains(statement, ct.term) && !containsAny(statement, ct.synonyms) {
				continue
			}
			conf := ct.weight
			if strings.Contains(diagnosis, ct.term) {
				conf += exactTermBoost
			}
			if cat.critical {
				conf += criticalCategoryBoost
			}
			if conf > best {
				best = conf
				why = fmt.Sprintf("%s category match on %q", name, ct.term)
			}
		}
	}
	return best, why, best > 0
}

// synonymMatch fires when diagnosis and statement map into the same synonym
// group; confidence is the group confidence scaled by 0.85.
func synonymMatch(diagnosis, statement string) (float64, string, bool) {
	best := 0.0
	why := ""
	for _, g := range synonymGroups {
		if containsAny(diagnosis, g.terms) && containsAny(statement, g.terms) {
			conf := g.confidence * synonymGroupFactor
			if conf > best {
				best = conf
				why = fmt.Sprintf("synonym group match (%s)", g.terms[0])
			}
		}
	}
	return best, why, best > 0
}

// mechanismMatch fires when the statement names a drug mechanism class and
// the diagnosis falls into a known contraindication category for that class.
func mechanismMatch(diagnosis, statement string) (float64, string, bool) {
	best := 0.0
	why := ""
	for _, mc := range mechanismClasses {
		if !containsAny(statement, mc.indicators) {
			continue
		}
		for keyword, severity := range mc.conditions {
			if !strings.Contains(diagnosis, keyword) {
				continue
			}
			conf := severity * mechanismConfidenceFactor
			if conf > best {
				best = conf
				why = fmt.Sprintf("%s mechanism class contraindicated for %q", mc.name, keyword)
			}
		}
	}
	return best, why, best > 0
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
