package upload

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestParseMultiDiagnosisFanOut(t *testing.T) {
	p := NewParser(nil)

	csvBody := strings.Join([]string{
		"Patient ID,Medication,Dosage,Diagnosis 1,ICD-10 Code 1,Diagnosis 2,ICD-10 Code 2",
		"P001,Aspirin 81mg,81mg daily,Asthma,J45.9,Peptic ulcer,K27.9",
		"P002,Metformin 500mg,500mg BID,Type 2 diabetes,E11.9,,",
	}, "\n")

	rows, err := p.Parse(strings.NewReader(csvBody))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	first := rows[0]
	if first.PatientID != "P001" || first.MedicationText != "Aspirin 81mg" || first.Dosage != "81mg daily" {
		t.Fatalf("first row = %+v", first)
	}
	if first.DiagnosisText != "Asthma" || first.ICD10Code != "J45.9" {
		t.Fatalf("first diagnosis = %q/%q", first.DiagnosisText, first.ICD10Code)
	}
	if first.SourceLine != 2 || first.DiagnosisIndex != 0 {
		t.Fatalf("first position = line %d index %d", first.SourceLine, first.DiagnosisIndex)
	}

	second := rows[1]
	if second.DiagnosisText != "Peptic ulcer" || second.ICD10Code != "K27.9" {
		t.Fatalf("second diagnosis = %q/%q", second.DiagnosisText, second.ICD10Code)
	}
	if second.SourceLine != 2 || second.DiagnosisIndex != 1 {
		t.Fatalf("second position = line %d index %d", second.SourceLine, second.DiagnosisIndex)
	}

	third := rows[2]
	if third.PatientID != "P002" || third.DiagnosisText != "Type 2 diabetes" || third.ICD10Code != "E11.9" {
		t.Fatalf("third row = %+v", third)
	}
	if third.SourceLine != 3 || third.DiagnosisIndex != 0 {
		t.Fatalf("third position = line %d index %d", third.SourceLine, third.DiagnosisIndex)
	}
}

func TestParseHeaderlessPositionalLayout(t *testing.T) {
	p := NewParser(nil)

	csvBody := "P001,Aspirin,81mg,Asthma\nP002,Ibuprofen,200mg,Headache\n"

	rows, err := p.Parse(strings.NewReader(csvBody))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	// The first line is data, not a header.
	if rows[0].PatientID != "P001" || rows[0].MedicationText != "Aspirin" ||
		rows[0].Dosage != "81mg" || rows[0].DiagnosisText != "Asthma" {
		t.Fatalf("first row = %+v", rows[0])
	}
	if rows[0].SourceLine != 1 || rows[1].SourceLine != 2 {
		t.Fatalf("source lines = %d/%d", rows[0].SourceLine, rows[1].SourceLine)
	}
}

func TestParseEmptyUpload(t *testing.T) {
	p := NewParser(nil)

	if _, err := p.Parse(strings.NewReader("")); !errors.Is(err, ErrEmptyUpload) {
		t.Fatalf("empty body: expected ErrEmptyUpload, got %v", err)
	}

	headerOnly := "Patient,Medication,Diagnosis\n"
	if _, err := p.Parse(strings.NewReader(headerOnly)); !errors.Is(err, ErrEmptyUpload) {
		t.Fatalf("header only: expected ErrEmptyUpload, got %v", err)
	}
}

func TestParseSkipsMalformedLines(t *testing.T) {
	p := NewParser(nil)

	csvBody := "Patient,Medication,Diagnosis\n" +
		"P001,Aspirin,Asthma\n" +
		"P002,\"Metformin,Diabetes\n" // unterminated quote

	rows, err := p.Parse(strings.NewReader(csvBody))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (malformed line skipped)", len(rows))
	}
	if rows[0].PatientID != "P001" {
		t.Fatalf("row = %+v", rows[0])
	}
}

func TestParseMedicationOnlyRow(t *testing.T) {
	p := NewParser(nil)

	rows, err := p.Parse(strings.NewReader("Patient,Medication\nP001,Aspirin\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].MedicationText != "Aspirin" || rows[0].DiagnosisText != "" {
		t.Fatalf("row = %+v", rows[0])
	}
}

func TestParseICD10OnlyColumn(t *testing.T) {
	p := NewParser(nil)

	rows, err := p.Parse(strings.NewReader("Patient,Medication,DX Code\nP001,Aspirin,J45.9\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].ICD10Code != "J45.9" || rows[0].DiagnosisText != "J45.9" {
		t.Fatalf("row = %+v", rows[0])
	}
}

func TestParseRejectsOversizedUpload(t *testing.T) {
	p := NewParser(nil)

	var b strings.Builder
	b.WriteString("Patient,Medication,Diagnosis\n")
	for i := 0; i < maxRows+1; i++ {
		fmt.Fprintf(&b, "P%05d,Aspirin,Asthma\n", i)
	}

	if _, err := p.Parse(strings.NewReader(b.String())); err == nil {
		t.Fatal("expected oversize error")
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("body one"))
	b := ContentHash([]byte("body one"))
	c := ContentHash([]byte("body two"))

	if a != b {
		t.Fatal("identical bodies must hash identically")
	}
	if a == c {
		t.Fatal("different bodies must hash differently")
	}
	if len(a) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(a))
	}
}
