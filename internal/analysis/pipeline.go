// Package analysis orchestrates the per-row compatibility pipeline: identity
// resolution, contraindication matching, and risk scoring.
package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/medtriage/claimcheck/internal/analysis/matcher"
	"github.com/medtriage/claimcheck/internal/analysis/resolver"
	"github.com/medtriage/claimcheck/internal/analysis/risk"
	"github.com/medtriage/claimcheck/internal/domain/claim"
	"github.com/medtriage/claimcheck/internal/observability/metrics"
)

// ErrNoRows is returned when an upload yields zero analyzable rows. This is
// the only per-run failure surfaced to the caller; individual row problems
// degrade to manual-review verdicts instead.
var ErrNoRows = errors.New("no analyzable rows in upload")

// Analyzer runs the full compatibility pipeline over uploaded claim rows.
// Safe for concurrent use; the resolver serializes its own cache access.
type Analyzer struct {
	resolver *resolver.Resolver
	matcher  *matcher.Matcher
	engine   *risk.Engine
	metrics  *metrics.Metrics
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewAnalyzer wires the pipeline stages together. Metrics may be nil in tests.
func NewAnalyzer(res *resolver.Resolver, m *matcher.Matcher, engine *risk.Engine, mx *metrics.Metrics, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		resolver: res,
		matcher:  m,
		engine:   engine,
		metrics:  mx,
		logger:   logger,
		tracer:   otel.Tracer("claim-analyzer"),
	}
}

// AnalyzeRows produces one verdict per row. Rows are processed in order so
// verdict output is stable for a given upload. A row that cannot be analyzed
// still yields a verdict flagged for manual review.
func (a *Analyzer) AnalyzeRows(ctx context.Context, rows []claim.UploadedRow) ([]claim.AnalysisVerdict, error) {
	ctx, span := a.tracer.Start(ctx, "analyze_rows",
		trace.WithAttributes(attribute.Int("row_count", len(rows))))
	defer span.End()

	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	verdicts := make([]claim.AnalysisVerdict, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return verdicts, err
		}
		verdicts = append(verdicts, a.AnalyzeRow(ctx, row))
	}
	return verdicts, nil
}

// AnalyzeRow runs one row through the pipeline. It never fails: panics and
// unusable inputs degrade to a manual-review verdict.
func (a *Analyzer) AnalyzeRow(ctx context.Context, row claim.UploadedRow) (verdict claim.AnalysisVerdict) {
	ctx, span := a.tracer.Start(ctx, "analyze_row",
		trace.WithAttributes(
			attribute.String("medication", row.MedicationText),
			attribute.String("diagnosis", row.DiagnosisText)))
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("row analysis panicked",
				zap.Int("source_line", row.SourceLine),
				zap.Any("panic", r))
			verdict = a.manualReviewVerdict(row, "analysis aborted unexpectedly")
		}
		a.observeRow(verdict, time.Since(start))
	}()

	if strings.TrimSpace(row.MedicationText) == "" && strings.TrimSpace(row.DiagnosisText) == "" {
		return a.manualReviewVerdict(row, "row has neither medication nor diagnosis text")
	}

	medRes := a.resolver.ResolveMedication(ctx, row.MedicationText)
	diagRes := a.resolver.ResolveDiagnosis(ctx, a.diagnosisQuery(row))

	medicationName := medRes.Raw
	var statements []claim.ContraindicationStatement
	if medRes.Resolved {
		medicationName = medRes.Medication.Name
		statements = medRes.Medication.Contraindications
	}

	diagnosis := diagRes.Diagnosis
	diagnosisText := row.DiagnosisText
	if diagnosisText == "" {
		diagnosisText = diagnosis.Description
	}

	matches := a.matcher.Match(diagnosisText, diagnosis.Code, statements, diagnosis.Specialty)

	result := a.engine.Evaluate(risk.Input{
		MedicationName:     medicationName,
		MedicationResolved: medRes.Resolved,
		DiagnosisText:      diagnosisText,
		ICD10Code:          diagnosis.Code,
		Category:           diagnosis.Category,
		Specialty:          diagnosis.Specialty,
		Dosage:             row.Dosage,
		Matches:            matches,
	})

	if result.OverrideFired && a.metrics != nil {
		a.metrics.OverridesFired.Inc()
	}

	span.SetAttributes(
		attribute.Float64("risk_score", result.Composite),
		attribute.String("risk_level", string(result.RiskLevel)),
		attribute.Bool("override", result.OverrideFired))

	return claim.AnalysisVerdict{
		ID:                 uuid.New().String(),
		PatientID:          row.PatientID,
		MedicationName:     medicationName,
		DiagnosisText:      diagnosisText,
		ICD10Code:          diagnosis.Code,
		IsCompatible:       result.IsCompatible,
		RiskLevel:          result.RiskLevel,
		RiskScore:          result.Composite,
		Components:         result.Components,
		Specialty:          diagnosis.Specialty,
		Matches:            matches,
		ClinicalNotes:      result.Notes,
		MedicationResolved: medRes.Resolved,
		SourceLine:         row.SourceLine,
		DiagnosisIndex:     row.DiagnosisIndex,
		AnalyzedAt:         time.Now().UTC(),
	}
}

// diagnosisQuery prefers the explicit ICD-10 column over free text.
func (a *Analyzer) diagnosisQuery(row claim.UploadedRow) string {
	if code := strings.TrimSpace(row.ICD10Code); code != "" {
		return code
	}
	return row.DiagnosisText
}

// manualReviewVerdict is the degraded output for rows the pipeline could not
// score. Medium risk, compatible=false would overstate certainty either way,
// so the verdict is conservative but non-blocking.
func (a *Analyzer) manualReviewVerdict(row claim.UploadedRow, reason string) claim.AnalysisVerdict {
	if a.metrics != nil {
		a.metrics.RowsDegraded.Inc()
	}
	return claim.AnalysisVerdict{
		ID:             uuid.New().String(),
		PatientID:      row.PatientID,
		MedicationName: row.MedicationText,
		DiagnosisText:  row.DiagnosisText,
		ICD10Code:      row.ICD10Code,
		IsCompatible:   true,
		RiskLevel:      claim.RiskMedium,
		RiskScore:      5.0,
		Specialty:      "Unknown",
		ClinicalNotes:  "MEDIUM RISK: automated analysis unavailable (" + reason + "); manual review required before approval.",
		SourceLine:     row.SourceLine,
		DiagnosisIndex: row.DiagnosisIndex,
		AnalyzedAt:     time.Now().UTC(),
	}
}

func (a *Analyzer) observeRow(v claim.AnalysisVerdict, elapsed time.Duration) {
	if a.metrics == nil {
		return
	}
	a.metrics.RowsAnalyzed.Inc()
	a.metrics.AnalysisDuration.Observe(elapsed.Seconds())
	if v.RiskLevel != "" {
		a.metrics.VerdictsByRiskLevel.WithLabelValues(string(v.RiskLevel)).Inc()
	}
}
