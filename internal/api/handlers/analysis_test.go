package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/medtriage/claimcheck/internal/domain/claim"
	"github.com/medtriage/claimcheck/internal/infrastructure/postgres"
	"github.com/medtriage/claimcheck/internal/upload"
)

// fakeRunStore records CreateRun calls and serves canned runs.
type fakeRunStore struct {
	createdRun  *claim.AnalysisRun
	createdHash string
	topic       string
	payload     []byte
	duplicate   bool
	createErr   error

	runs map[string]*claim.AnalysisRun
}

func (f *fakeRunStore) CreateRun(ctx context.Context, run *claim.AnalysisRun, topic string, payload []byte) (*claim.AnalysisRun, bool, error) {
	if f.createErr != nil {
		return nil, false, f.createErr
	}
	f.createdRun = run
	f.createdHash = run.ContentHash
	f.topic = topic
	f.payload = payload

	stored := *run
	stored.CreatedAt = time.Now().UTC()
	return &stored, f.duplicate, nil
}

func (f *fakeRunStore) GetRun(ctx context.Context, runID string) (*claim.AnalysisRun, error) {
	if run, ok := f.runs[runID]; ok {
		return run, nil
	}
	return nil, postgres.ErrRunNotFound
}

func newTestHandler(store *fakeRunStore) *AnalysisHandler {
	return NewAnalysisHandler(store, upload.NewParser(nil), nil)
}

const sampleCSV = "Patient,Medication,Diagnosis,DX Code\nP001,Aspirin,Asthma,J45.9\nP002,Metformin,Type 2 diabetes,E11.9\n"

func TestCreateQueuesUpload(t *testing.T) {
	store := &fakeRunStore{}
	h := newTestHandler(store)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(sampleCSV))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body %s", rec.Code, rec.Body.String())
	}

	var resp CreateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("response missing run id")
	}
	if resp.Status != claim.RunStatusPending {
		t.Fatalf("status = %s, want pending", resp.Status)
	}
	if resp.RowCount != 2 {
		t.Fatalf("row count = %d, want 2", resp.RowCount)
	}
	if resp.ContentHash != upload.ContentHash([]byte(sampleCSV)) {
		t.Fatalf("content hash = %q", resp.ContentHash)
	}
	if resp.Duplicate {
		t.Fatal("fresh upload must not be flagged duplicate")
	}

	// The queued event carries the parsed rows so the worker never re-reads
	// the file.
	var event claim.UploadQueuedEvent
	if err := json.Unmarshal(store.payload, &event); err != nil {
		t.Fatalf("decode queued event: %v", err)
	}
	if event.RunID != resp.ID || event.RowCount != 2 || len(event.Rows) != 2 {
		t.Fatalf("event = %+v", event)
	}
	if event.Rows[0].MedicationText != "Aspirin" || event.Rows[0].ICD10Code != "J45.9" {
		t.Fatalf("first event row = %+v", event.Rows[0])
	}
}

func TestCreateMultipartUpload(t *testing.T) {
	store := &fakeRunStore{}
	h := newTestHandler(store)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "claims.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte(sampleCSV))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body %s", rec.Code, rec.Body.String())
	}
	if store.createdHash != upload.ContentHash([]byte(sampleCSV)) {
		t.Fatal("multipart body should hash identically to the raw upload")
	}
}

func TestCreateDuplicateUploadReturnsExistingRun(t *testing.T) {
	store := &fakeRunStore{duplicate: true}
	h := newTestHandler(store)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(sampleCSV))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for duplicate", rec.Code)
	}
	var resp CreateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Duplicate {
		t.Fatal("response should be flagged duplicate")
	}
}

func TestCreateRejectsEmptyBody(t *testing.T) {
	h := newTestHandler(&fakeRunStore{})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateRejectsUnparseableUpload(t *testing.T) {
	h := newTestHandler(&fakeRunStore{})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("Patient,Medication,Diagnosis\n"))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no analyzable rows") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestCreateStoreFailure(t *testing.T) {
	h := newTestHandler(&fakeRunStore{createErr: errors.New("db down")})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(sampleCSV))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestGetReturnsRunWithVerdicts(t *testing.T) {
	completed := time.Now().UTC()
	store := &fakeRunStore{runs: map[string]*claim.AnalysisRun{
		"run-1": {
			ID:          "run-1",
			ContentHash: "abc",
			Status:      claim.RunStatusCompleted,
			RowCount:    1,
			CompletedAt: &completed,
			Verdicts: []claim.AnalysisVerdict{
				{ID: "v-1", PatientID: "P001", RiskLevel: claim.RiskHigh, IsCompatible: false},
			},
		},
	}}
	h := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/run-1", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var run claim.AnalysisRun
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.ID != "run-1" || run.Status != claim.RunStatusCompleted {
		t.Fatalf("run = %+v", run)
	}
	if len(run.Verdicts) != 1 || run.Verdicts[0].RiskLevel != claim.RiskHigh {
		t.Fatalf("verdicts = %+v", run.Verdicts)
	}
}

func TestGetUnknownRun(t *testing.T) {
	h := newTestHandler(&fakeRunStore{})

	req := httptest.NewRequest(http.MethodGet, "/no-such-run", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
