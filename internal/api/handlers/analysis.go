// Package handlers provides HTTP handlers for the analysis API.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/medtriage/claimcheck/internal/api/middleware"
	"github.com/medtriage/claimcheck/internal/domain/claim"
	"github.com/medtriage/claimcheck/internal/infrastructure/postgres"
	"github.com/medtriage/claimcheck/internal/infrastructure/redpanda"
	"github.com/medtriage/claimcheck/internal/upload"
)

// maxUploadBytes bounds the accepted CSV body.
const maxUploadBytes = 8 << 20

// RunStore is the persistence surface the handler needs. Satisfied by
// *postgres.RunStore.
type RunStore interface {
	CreateRun(ctx context.Context, run *claim.AnalysisRun, topic string, payload []byte) (*claim.AnalysisRun, bool, error)
	GetRun(ctx context.Context, runID string) (*claim.AnalysisRun, error)
}

// AnalysisHandler handles claim upload and run lookup endpoints.
type AnalysisHandler struct {
	store  RunStore
	parser *upload.Parser
	logger *zap.Logger
}

// NewAnalysisHandler creates an analysis handler.
func NewAnalysisHandler(store RunStore, parser *upload.Parser, logger *zap.Logger) *AnalysisHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisHandler{
		store:  store,
		parser: parser,
		logger: logger,
	}
}

// Routes returns the handler routes.
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	return r
}

// CreateResponse is the response for an accepted upload.
type CreateResponse struct {
	ID          string          `json:"id"`
	Status      claim.RunStatus `json:"status"`
	ContentHash string          `json:"content_hash"`
	RowCount    int             `json:"row_count"`
	Duplicate   bool            `json:"duplicate,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Create handles POST /analyses. The body is a CSV claim export, either raw
// or as a multipart "file" part. Re-uploading an identical file returns the
// existing run instead of queuing a new one.
func (h *AnalysisHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("analysis-handler")
	ctx, span := tracer.Start(ctx, "create_analysis")
	defer span.End()

	body, err := h.readUpload(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := h.parser.Parse(bytes.NewReader(body))
	if err != nil {
		if errors.Is(err, upload.ErrEmptyUpload) {
			h.jsonError(w, "upload contains no analyzable rows", http.StatusBadRequest)
			return
		}
		h.jsonError(w, "failed to parse upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	runID := uuid.New().String()
	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.Int("row_count", len(rows)))

	event := claim.UploadQueuedEvent{
		RunID:       runID,
		ContentHash: upload.ContentHash(body),
		RowCount:    len(rows),
		Rows:        rows,
		QueuedAt:    time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal upload event failed", zap.Error(err))
		h.jsonError(w, "failed to queue analysis", http.StatusInternalServerError)
		return
	}

	run := &claim.AnalysisRun{
		ID:          runID,
		ContentHash: event.ContentHash,
		Status:      claim.RunStatusPending,
		RowCount:    len(rows),
	}

	stored, duplicate, err := h.store.CreateRun(ctx, run, redpanda.TopicClaimsUploaded, payload)
	if err != nil {
		h.logger.Error("create run failed", zap.Error(err))
		h.jsonError(w, "failed to queue analysis", http.StatusInternalServerError)
		return
	}

	h.logger.Info("analysis run queued",
		zap.String("run_id", stored.ID),
		zap.Int("rows", stored.RowCount),
		zap.Bool("duplicate", duplicate),
		zap.String("request_id", middleware.GetRequestID(ctx)))

	status := http.StatusAccepted
	if duplicate {
		status = http.StatusOK
	}
	h.writeJSON(w, status, CreateResponse{
		ID:          stored.ID,
		Status:      stored.Status,
		ContentHash: stored.ContentHash,
		RowCount:    stored.RowCount,
		Duplicate:   duplicate,
		CreatedAt:   stored.CreatedAt,
	})
}

// Get handles GET /analyses/{id}, returning the run and its verdicts.
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	run, err := h.store.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrRunNotFound) {
			h.jsonError(w, "analysis run not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get run failed", zap.String("run_id", id), zap.Error(err))
		h.jsonError(w, "failed to load analysis run", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, run)
}

// readUpload extracts the CSV body from a multipart "file" part or the raw
// request body.
func (h *AnalysisHandler) readUpload(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")
	if contentType != "" && len(contentType) >= 19 && contentType[:19] == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, errors.New("invalid multipart body")
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("multipart body missing \"file\" part")
		}
		defer file.Close()
		body, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			return nil, errors.New("failed to read uploaded file")
		}
		return body, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		return nil, errors.New("failed to read request body")
	}
	if len(body) == 0 {
		return nil, errors.New("empty request body")
	}
	return body, nil
}

func (h *AnalysisHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *AnalysisHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
