// Package resolver normalizes free-text medication and diagnosis names into
// canonical reference identities using fuzzy matching against remote
// terminology and labeling services.
package resolver

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/medtriage/claimcheck/internal/domain/claim"
	"github.com/medtriage/claimcheck/internal/reference"
)

// MedicationResolution is the tagged result of medication identity
// resolution. When Resolved is false, Raw carries the cleaned input text and
// downstream scoring treats the identity as lower-confidence context.
type MedicationResolution struct {
	Medication *claim.CanonicalMedication
	Resolved   bool
	Raw        string
}

// DiagnosisResolution is the tagged result of diagnosis resolution. An
// unresolved diagnosis keeps the original text as its code.
type DiagnosisResolution struct {
	Diagnosis claim.DiagnosisCode
	Resolved  bool
}

// Resolver resolves identities against the reference clients, caching
// canonical medications by name and by active ingredient for the process
// lifetime.
type Resolver struct {
	medications *reference.MedicationClient
	diagnoses   *reference.DiagnosisClient
	logger      *zap.Logger
	tracer      trace.Tracer

	mu           sync.RWMutex
	byName       map[string]*claim.CanonicalMedication
	byIngredient map[string]*claim.CanonicalMedication
	diagCache    map[string]claim.DiagnosisCode
}

// New creates a resolver backed by the two reference clients.
func New(medications *reference.MedicationClient, diagnoses *reference.DiagnosisClient, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		medications:  medications,
		diagnoses:    diagnoses,
		logger:       logger,
		tracer:       otel.Tracer("identity-resolver"),
		byName:       make(map[string]*claim.CanonicalMedication),
		byIngredient: make(map[string]*claim.CanonicalMedication),
		diagCache:    make(map[string]claim.DiagnosisCode),
	}
}

// ResolveMedication resolves free text into a canonical medication. It never
// fails outright: when every strategy misses it returns an unresolved result
// carrying the cleaned input so the pipeline keeps moving.
func (r *Resolver) ResolveMedication(ctx context.Context, freeText string) MedicationResolution {
	ctx, span := r.tracer.Start(ctx, "resolve_medication",
		trace.WithAttributes(attribute.String("input", freeText)))
	defer span.End()

	cleaned := NormalizeMedicationText(freeText)
	if strings.TrimSpace(freeText) == "" {
		return MedicationResolution{Raw: cleaned}
	}

	if med := r.cachedMedication(freeText, cleaned); med != nil {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return MedicationResolution{Medication: med, Resolved: true, Raw: cleaned}
	}

	// Query the labeling service with each candidate string until one yields
	// a usable match.
	for _, term := range candidateTerms(freeText) {
		labels, err := r.medications.Search(ctx, term, 10)
		if err != nil {
			r.logger.Debug("medication search failed",
				zap.String("term", term), zap.Error(err))
			continue
		}
		if med := r.bestLabelMatch(term, labels); med != nil {
			r.cacheMedication(freeText, med)
			span.SetAttributes(attribute.String("matched", med.Name))
			return MedicationResolution{Medication: med, Resolved: true, Raw: cleaned}
		}
	}

	// Remote miss: consult the curated synonym table, then retry the service
	// once with the canonical name.
	if canonical := lookupSynonym(cleaned); canonical != "" {
		if labels, err := r.medications.Search(ctx, canonical, 5); err == nil {
			if med := r.bestLabelMatch(canonical, labels); med != nil {
				r.cacheMedication(freeText, med)
				return MedicationResolution{Medication: med, Resolved: true, Raw: cleaned}
			}
		}
		med := &claim.CanonicalMedication{Name: canonical, ActiveIngredient: canonical}
		r.cacheMedication(freeText, med)
		return MedicationResolution{Medication: med, Resolved: true, Raw: cleaned}
	}

	span.SetAttributes(attribute.Bool("unresolved", true))
	return MedicationResolution{Raw: cleaned}
}

// cachedMedication checks the name and active-ingredient caches.
func (r *Resolver) cachedMedication(freeText, cleaned string) *claim.CanonicalMedication {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, key := range []string{strings.ToLower(strings.TrimSpace(freeText)), cleaned} {
		if med, ok := r.byName[key]; ok {
			return med
		}
		if med, ok := r.byIngredient[key]; ok {
			return med
		}
	}
	return nil
}

func (r *Resolver) cacheMedication(freeText string, med *claim.CanonicalMedication) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName[strings.ToLower(strings.TrimSpace(freeText))] = med
	r.byName[strings.ToLower(med.Name)] = med
	if med.ActiveIngredient != "" {
		r.byIngredient[strings.ToLower(med.ActiveIngredient)] = med
	}
}

// bestLabelMatch scores each returned label against the query term as the
// maximum similarity over brand name, generic name, and active ingredients.
func (r *Resolver) bestLabelMatch(term string, labels []reference.MedicationLabel) *claim.CanonicalMedication {
	var best *reference.MedicationLabel
	bestScore := 0.0

	for i := range labels {
		l := &labels[i]
		score := Similarity(term, l.BrandName)
		if s := Similarity(term, l.GenericName); s > score {
			score = s
		}
		for _, ing := range l.ActiveIngredients {
			if s := Similarity(term, ing); s > score {
				score = s
			}
		}
		if score > bestScore {
			bestScore, best = score, l
		}
	}

	if best == nil || bestScore < 0.3 {
		return nil
	}

	name := best.GenericName
	if name == "" {
		name = best.BrandName
	}
	med := &claim.CanonicalMedication{
		Name:              name,
		Contraindications: best.Contraindications,
	}
	if len(best.ActiveIngredients) > 0 {
		med.ActiveIngredient = best.ActiveIngredients[0]
	}
	return med
}

// ResolveDiagnosis resolves a diagnosis string: ICD-10-shaped inputs are
// validated directly; free text goes through reference search, then local
// cache substring matching, then raw passthrough.
func (r *Resolver) ResolveDiagnosis(ctx context.Context, freeText string) DiagnosisResolution {
	ctx, span := r.tracer.Start(ctx, "resolve_diagnosis",
		trace.WithAttributes(attribute.String("input", freeText)))
	defer span.End()

	text := strings.TrimSpace(freeText)
	if text == "" {
		return DiagnosisResolution{Diagnosis: claim.DiagnosisCode{Code: "", Category: "unknown", Specialty: "Unknown"}}
	}

	if cached, ok := r.cachedDiagnosis(text); ok {
		return DiagnosisResolution{Diagnosis: cached, Resolved: true}
	}

	if reference.IsICD10Format(text) {
		res, err := r.diagnoses.Validate(ctx, text)
		if err == nil && res.IsValid {
			dc := claim.DiagnosisCode{
				Code:        res.Code,
				Description: res.Description,
				Category:    res.Category,
				Specialty:   res.Specialty,
			}
			r.cacheDiagnosis(text, dc)
			return DiagnosisResolution{Diagnosis: dc, Resolved: true}
		}
	}

	if codes, err := r.diagnoses.Search(ctx, text, 1); err == nil && len(codes) > 0 {
		r.cacheDiagnosis(text, codes[0])
		return DiagnosisResolution{Diagnosis: codes[0], Resolved: true}
	}

	if dc, ok := r.substringDiagnosisMatch(text); ok {
		return DiagnosisResolution{Diagnosis: dc, Resolved: true}
	}

	// Raw passthrough; downstream treats the text as an unresolved code.
	category, specialty := reference.CategorizeICD10(text)
	span.SetAttributes(attribute.Bool("unresolved", true))
	return DiagnosisResolution{Diagnosis: claim.DiagnosisCode{
		Code:        text,
		Description: text,
		Category:    category,
		Specialty:   specialty,
	}}
}

func (r *Resolver) cachedDiagnosis(text string) (claim.DiagnosisCode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dc, ok := r.diagCache[strings.ToLower(text)]
	return dc, ok
}

func (r *Resolver) cacheDiagnosis(text string, dc claim.DiagnosisCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diagCache[strings.ToLower(text)] = dc
	r.diagCache[strings.ToLower(dc.Code)] = dc
}

// substringDiagnosisMatch scans previously resolved diagnoses for a
// description containing the text (or vice versa).
func (r *Resolver) substringDiagnosisMatch(text string) (claim.DiagnosisCode, bool) {
	needle := strings.ToLower(text)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, dc := range r.diagCache {
		desc := strings.ToLower(dc.Description)
		if desc == "" {
			continue
		}
		if strings.Contains(desc, needle) || strings.Contains(needle, desc) {
			return dc, true
		}
	}
	return claim.DiagnosisCode{}, false
}
