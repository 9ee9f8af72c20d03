// Package postgres persists analysis runs and verdicts, and provides the
// transactional outbox used to publish run events reliably.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/medtriage/claimcheck/internal/domain/claim"
)

// ErrRunNotFound is returned when a run ID or content hash has no record.
var ErrRunNotFound = errors.New("analysis run not found")

// RunStore persists analysis runs and their verdicts.
type RunStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

// NewRunStore creates a run store.
func NewRunStore(pool *pgxpool.Pool, logger *zap.Logger) *RunStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunStore{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("run-store"),
	}
}

// CreateRun inserts a pending run and an outbox entry announcing the upload,
// in one transaction. A run with the same content hash already present is
// returned instead, so re-uploads of the same file do not re-run analysis.
func (s *RunStore) CreateRun(ctx context.Context, run *claim.AnalysisRun, topic string, payload []byte) (*claim.AnalysisRun, bool, error) {
	ctx, span := s.tracer.Start(ctx, "run_create",
		trace.WithAttributes(attribute.String("run_id", run.ID)))
	defer span.End()

	if existing, err := s.FindByContentHash(ctx, run.ContentHash); err == nil {
		span.SetAttributes(attribute.Bool("duplicate", true))
		return existing, true, nil
	} else if !errors.Is(err, ErrRunNotFound) {
		return nil, false, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO analysis_runs (id, content_hash, status, row_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (content_hash) DO NOTHING
		RETURNING created_at
	`, run.ID, run.ContentHash, run.Status, run.RowCount).Scan(&run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost a race with a concurrent identical upload.
		existing, lookupErr := s.FindByContentHash(ctx, run.ContentHash)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		return existing, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert run: %w", err)
	}

	entry := &OutboxEntry{
		AggregateID:   run.ID,
		AggregateType: "analysis_run",
		EventType:     "claims.run.created",
		Payload:       payload,
		Topic:         topic,
		Key:           run.ID,
	}
	if err := WriteEntry(ctx, tx, entry); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return run, false, nil
}

// SaveVerdicts stores a run's verdicts, marks the run completed, and writes
// the completion event to the outbox, all in one transaction.
func (s *RunStore) SaveVerdicts(ctx context.Context, runID string, verdicts []claim.AnalysisVerdict, topic string) error {
	ctx, span := s.tracer.Start(ctx, "run_save_verdicts",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.Int("verdict_count", len(verdicts))))
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range verdicts {
		v := &verdicts[i]
		matches, err := json.Marshal(v.Matches)
		if err != nil {
			return fmt.Errorf("marshal matches: %w", err)
		}
		components, err := json.Marshal(v.Components)
		if err != nil {
			return fmt.Errorf("marshal components: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO analysis_verdicts (
				id, run_id, patient_id, medication_name, diagnosis_text, icd10_code,
				is_compatible, risk_level, risk_score, components, specialty,
				matches, clinical_notes, medication_resolved,
				source_line, diagnosis_index, analyzed_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		`, v.ID, runID, v.PatientID, v.MedicationName, v.DiagnosisText, v.ICD10Code,
			v.IsCompatible, v.RiskLevel, v.RiskScore, components, v.Specialty,
			matches, v.ClinicalNotes, v.MedicationResolved,
			v.SourceLine, v.DiagnosisIndex, v.AnalyzedAt)
		if err != nil {
			return fmt.Errorf("insert verdict: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE analysis_runs
		SET status = $1, row_count = $2, completed_at = NOW()
		WHERE id = $3
	`, claim.RunStatusCompleted, len(verdicts), runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}

	payload, err := json.Marshal(completionEvent(runID, verdicts))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	entry := &OutboxEntry{
		AggregateID:   runID,
		AggregateType: "analysis_run",
		EventType:     "claims.run.completed",
		Payload:       payload,
		Topic:         topic,
		Key:           runID,
	}
	if err := WriteEntry(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// completionEvent summarizes a finished run for the completion topic.
func completionEvent(runID string, verdicts []claim.AnalysisVerdict) claim.RunCompletedEvent {
	event := claim.RunCompletedEvent{
		RunID:        runID,
		VerdictCount: len(verdicts),
		CompletedAt:  time.Now().UTC(),
	}
	for i := range verdicts {
		if verdicts[i].RiskLevel == claim.RiskHigh {
			event.HighRisk++
		}
		if !verdicts[i].IsCompatible {
			event.Incompatible++
		}
	}
	return event
}

// MarkFailed records a terminal run failure.
func (s *RunStore) MarkFailed(ctx context.Context, runID string, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE analysis_runs
		SET status = $1, failure_reason = $2, completed_at = NOW()
		WHERE id = $3
	`, claim.RunStatusFailed, reason, runID)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun loads a run with its verdicts.
func (s *RunStore) GetRun(ctx context.Context, runID string) (*claim.AnalysisRun, error) {
	ctx, span := s.tracer.Start(ctx, "run_get",
		trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	run := &claim.AnalysisRun{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, content_hash, status, row_count, created_at, completed_at
		FROM analysis_runs
		WHERE id = $1
	`, runID).Scan(&run.ID, &run.ContentHash, &run.Status, &run.RowCount, &run.CreatedAt, &run.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	verdicts, err := s.verdictsForRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	run.Verdicts = verdicts
	return run, nil
}

// FindByContentHash looks a run up by upload fingerprint.
func (s *RunStore) FindByContentHash(ctx context.Context, hash string) (*claim.AnalysisRun, error) {
	run := &claim.AnalysisRun{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, content_hash, status, row_count, created_at, completed_at
		FROM analysis_runs
		WHERE content_hash = $1
	`, hash).Scan(&run.ID, &run.ContentHash, &run.Status, &run.RowCount, &run.CreatedAt, &run.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query run by hash: %w", err)
	}
	return run, nil
}

func (s *RunStore) verdictsForRun(ctx context.Context, runID string) ([]claim.AnalysisVerdict, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, patient_id, medication_name, diagnosis_text, icd10_code,
		       is_compatible, risk_level, risk_score, components, specialty,
		       matches, clinical_notes, medication_resolved,
		       source_line, diagnosis_index, analyzed_at
		FROM analysis_verdicts
		WHERE run_id = $1
		ORDER BY source_line, diagnosis_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	var verdicts []claim.AnalysisVerdict
	for rows.Next() {
		var v claim.AnalysisVerdict
		var components, matches []byte
		err := rows.Scan(&v.ID, &v.PatientID, &v.MedicationName, &v.DiagnosisText, &v.ICD10Code,
			&v.IsCompatible, &v.RiskLevel, &v.RiskScore, &components, &v.Specialty,
			&matches, &v.ClinicalNotes, &v.MedicationResolved,
			&v.SourceLine, &v.DiagnosisIndex, &v.AnalyzedAt)
		if err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		if len(components) > 0 {
			if err := json.Unmarshal(components, &v.Components); err != nil {
				return nil, fmt.Errorf("decode components: %w", err)
			}
		}
		if len(matches) > 0 {
			if err := json.Unmarshal(matches, &v.Matches); err != nil {
				return nil, fmt.Errorf("decode matches: %w", err)
			}
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}
