package analysis

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/medtriage/claimcheck/internal/analysis/matcher"
	"github.com/medtriage/claimcheck/internal/analysis/resolver"
	"github.com/medtriage/claimcheck/internal/analysis/risk"
	"github.com/medtriage/claimcheck/internal/domain/claim"
	"github.com/medtriage/claimcheck/internal/reference"
	"github.com/medtriage/claimcheck/pkg/resilience"
)

func newTestAnalyzer(t *testing.T, medHandler, diagHandler http.HandlerFunc) *Analyzer {
	t.Helper()

	medSrv := httptest.NewServer(medHandler)
	t.Cleanup(medSrv.Close)
	diagSrv := httptest.NewServer(diagHandler)
	t.Cleanup(diagSrv.Close)

	exec := resilience.NewExecutor(zap.NewNop())
	med := reference.NewMedicationClient(reference.MedicationClientConfig{
		BaseURL:    medSrv.URL,
		Limits:     reference.EnhancedLimits(),
		Timeout:    2 * time.Second,
		MaxRetries: 0,
		BaseDelay:  time.Millisecond,
	}, exec, zap.NewNop())
	diag := reference.NewDiagnosisClient(reference.DiagnosisClientConfig{
		BaseURL:    diagSrv.URL,
		Limits:     reference.StandardLimits(),
		Timeout:    2 * time.Second,
		MaxRetries: 0,
		BaseDelay:  time.Millisecond,
	}, exec, zap.NewNop())

	res := resolver.New(med, diag, zap.NewNop())
	return NewAnalyzer(res, matcher.New(nil), risk.NewEngine(nil), nil, zap.NewNop())
}

func aspirinLabelHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(`{
	  "results": [
	    {
	      "openfda": {
	        "brand_name": ["Aspirin"],
	        "generic_name": ["ASPIRIN"],
	        "substance_name": ["ASPIRIN"]
	      },
	      "contraindications": ["Do not administer to patients with aspirin-induced asthma."]
	    }
	  ]
	}`))
}

func asthmaCodeHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(`[1,["J45.9"],null,[["J45.9","Asthma, unspecified"]]]`))
}

func TestAnalyzeRowContraindicatedPair(t *testing.T) {
	a := newTestAnalyzer(t, aspirinLabelHandler, asthmaCodeHandler)

	verdict := a.AnalyzeRow(context.Background(), claim.UploadedRow{
		PatientID:      "P001",
		MedicationText: "Aspirin 81mg",
		DiagnosisText:  "Asthma, unspecified",
		ICD10Code:      "J45.9",
		SourceLine:     2,
	})

	if verdict.IsCompatible {
		t.Fatal("aspirin with asthma should be incompatible")
	}
	if verdict.RiskLevel != claim.RiskHigh {
		t.Fatalf("risk level = %s, want high", verdict.RiskLevel)
	}
	if !verdict.MedicationResolved {
		t.Fatal("aspirin should resolve against the label service")
	}
	if verdict.MedicationName != "ASPIRIN" {
		t.Fatalf("medication name = %q", verdict.MedicationName)
	}
	if verdict.ICD10Code != "J45.9" {
		t.Fatalf("icd10 code = %q", verdict.ICD10Code)
	}
	if verdict.Specialty != "Pulmonology" {
		t.Fatalf("specialty = %q", verdict.Specialty)
	}
	if len(verdict.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(verdict.Matches))
	}
	notes := verdict.ClinicalNotes
	if !strings.Contains(notes, "HIGH RISK:") {
		t.Fatalf("notes missing banner: %q", notes)
	}
	if !strings.Contains(notes, "asthma") {
		t.Fatalf("notes should cite the asthma finding: %q", notes)
	}
	if !strings.Contains(notes, "do not dispense") {
		t.Fatalf("notes missing recommendation: %q", notes)
	}
	if verdict.ID == "" || verdict.AnalyzedAt.IsZero() {
		t.Fatal("verdict identity fields must be populated")
	}
	if verdict.SourceLine != 2 {
		t.Fatalf("source line = %d", verdict.SourceLine)
	}
}

func TestAnalyzeRowUnresolvedMedication(t *testing.T) {
	a := newTestAnalyzer(t,
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[1,["E11.9"],null,[["E11.9","Type 2 diabetes mellitus without complications"]]]`))
		})

	verdict := a.AnalyzeRow(context.Background(), claim.UploadedRow{
		PatientID:      "P002",
		MedicationText: "Zorblaxin 20mg",
		DiagnosisText:  "Type 2 diabetes",
		ICD10Code:      "E11.9",
	})

	if verdict.MedicationResolved {
		t.Fatal("unknown medication must stay unresolved")
	}
	if verdict.RiskLevel != claim.RiskMedium {
		t.Fatalf("risk level = %s, want medium for unresolved medication", verdict.RiskLevel)
	}
	if !verdict.IsCompatible {
		t.Fatal("unresolved medication alone should not block the claim")
	}
	if !strings.Contains(verdict.ClinicalNotes, "could not be matched") {
		t.Fatalf("notes missing manual-review paragraph: %q", verdict.ClinicalNotes)
	}
}

func TestAnalyzeRowBlankRowDegradesToManualReview(t *testing.T) {
	a := newTestAnalyzer(t, aspirinLabelHandler, asthmaCodeHandler)

	verdict := a.AnalyzeRow(context.Background(), claim.UploadedRow{
		PatientID:  "P003",
		SourceLine: 7,
	})

	if verdict.RiskLevel != claim.RiskMedium {
		t.Fatalf("risk level = %s, want medium", verdict.RiskLevel)
	}
	if verdict.RiskScore != 5.0 {
		t.Fatalf("risk score = %f, want 5.0", verdict.RiskScore)
	}
	if !strings.Contains(verdict.ClinicalNotes, "manual review required") {
		t.Fatalf("notes = %q", verdict.ClinicalNotes)
	}
	if verdict.SourceLine != 7 {
		t.Fatalf("source line = %d", verdict.SourceLine)
	}
}

func TestAnalyzeRowsEmptyUpload(t *testing.T) {
	a := newTestAnalyzer(t, aspirinLabelHandler, asthmaCodeHandler)

	_, err := a.AnalyzeRows(context.Background(), nil)
	if !errors.Is(err, ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestAnalyzeRowsPreservesOrder(t *testing.T) {
	a := newTestAnalyzer(t, aspirinLabelHandler, asthmaCodeHandler)

	rows := []claim.UploadedRow{
		{PatientID: "P001", MedicationText: "Aspirin", DiagnosisText: "Asthma, unspecified", ICD10Code: "J45.9", SourceLine: 2, DiagnosisIndex: 0},
		{PatientID: "P001", MedicationText: "Aspirin", DiagnosisText: "Asthma, unspecified", ICD10Code: "J45.9", SourceLine: 2, DiagnosisIndex: 1},
		{PatientID: "P002", MedicationText: "Aspirin", DiagnosisText: "Asthma, unspecified", ICD10Code: "J45.9", SourceLine: 3, DiagnosisIndex: 0},
	}

	verdicts, err := a.AnalyzeRows(context.Background(), rows)
	if err != nil {
		t.Fatalf("AnalyzeRows: %v", err)
	}
	if len(verdicts) != 3 {
		t.Fatalf("got %d verdicts, want 3", len(verdicts))
	}
	for i, v := range verdicts {
		if v.SourceLine != rows[i].SourceLine || v.DiagnosisIndex != rows[i].DiagnosisIndex {
			t.Fatalf("verdict %d out of order: line %d index %d", i, v.SourceLine, v.DiagnosisIndex)
		}
	}
}

func TestAnalyzeRowsStopsOnCancelledContext(t *testing.T) {
	a := newTestAnalyzer(t, aspirinLabelHandler, asthmaCodeHandler)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	verdicts, err := a.AnalyzeRows(ctx, []claim.UploadedRow{
		{PatientID: "P001", MedicationText: "Aspirin", DiagnosisText: "Asthma, unspecified"},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(verdicts) != 0 {
		t.Fatalf("no verdicts expected after cancellation, got %d", len(verdicts))
	}
}
