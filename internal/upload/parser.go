// Package upload parses claim spreadsheets into analyzable rows.
package upload

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/medtriage/claimcheck/internal/domain/claim"
)

// ErrEmptyUpload is returned when the file contains no data rows.
var ErrEmptyUpload = errors.New("upload contains no data rows")

// maxRows bounds a single upload to keep a run's memory and remote-call
// footprint predictable.
const maxRows = 10000

// columnRoles are the logical fields the parser looks for in the header.
type columnRoles struct {
	patientID  int
	medication int
	dosage     int
	// diagnoses lists every column holding a diagnosis; each non-empty cell
	// becomes its own analyzable row.
	diagnoses []int
	icd10     []int
}

// headerAliases maps normalized header names to roles. Matching is by
// substring so "Primary Diagnosis" and "diagnosis_2" both land on diagnosis.
var headerAliases = map[string][]string{
	"patient":    {"patient", "member", "subscriber", "mrn"},
	"medication": {"medication", "drug", "rx", "prescription", "med name"},
	"dosage":     {"dosage", "dose", "strength", "sig"},
	"icd10":      {"icd", "diagnosis code", "dx code"},
	"diagnosis":  {"diagnosis", "condition", "dx", "indication"},
}

// Parser turns CSV uploads into claim rows.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a parser.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse reads a CSV stream and returns one row per medication-diagnosis pair.
// A source line with multiple diagnosis columns fans out into multiple rows
// sharing the same SourceLine with increasing DiagnosisIndex.
func (p *Parser) Parse(r io.Reader) ([]claim.UploadedRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyUpload
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	roles, ok := detectColumns(header)
	if !ok {
		// Headerless file: fall back to positional layout
		// patient, medication, dosage, diagnosis.
		roles = positionalRoles(len(header))
		p.logger.Debug("no recognizable header, using positional columns")
		if rows := rowsFromRecord(header, roles, 1); len(rows) > 0 {
			return p.readRest(cr, roles, rows, 2)
		}
	}

	return p.readRest(cr, roles, nil, 2)
}

func (p *Parser) readRest(cr *csv.Reader, roles columnRoles, rows []claim.UploadedRow, line int) ([]claim.UploadedRow, error) {
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed line degrades to a skip, not a failed upload.
			p.logger.Warn("skipping malformed line", zap.Int("line", line), zap.Error(err))
			line++
			continue
		}
		rows = append(rows, rowsFromRecord(record, roles, line)...)
		if len(rows) > maxRows {
			return nil, fmt.Errorf("upload exceeds %d rows", maxRows)
		}
		line++
	}

	if len(rows) == 0 {
		return nil, ErrEmptyUpload
	}
	return rows, nil
}

// detectColumns maps header cells to roles. It reports false when neither a
// medication nor a diagnosis column was found, which means the header row is
// probably data.
func detectColumns(header []string) (columnRoles, bool) {
	roles := columnRoles{patientID: -1, medication: -1, dosage: -1}

	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case roles.patientID < 0 && matchesAlias(name, "patient"):
			roles.patientID = i
		case roles.medication < 0 && matchesAlias(name, "medication"):
			roles.medication = i
		case roles.dosage < 0 && matchesAlias(name, "dosage"):
			roles.dosage = i
		case matchesAlias(name, "icd10"):
			roles.icd10 = append(roles.icd10, i)
		case matchesAlias(name, "diagnosis"):
			roles.diagnoses = append(roles.diagnoses, i)
		}
	}

	found := roles.medication >= 0 || len(roles.diagnoses) > 0 || len(roles.icd10) > 0
	return roles, found
}

func matchesAlias(name, role string) bool {
	for _, alias := range headerAliases[role] {
		if strings.Contains(name, alias) {
			return true
		}
	}
	return false
}

// positionalRoles assumes patient, medication, dosage, then diagnoses.
func positionalRoles(width int) columnRoles {
	roles := columnRoles{patientID: 0, medication: 1, dosage: 2}
	if width < 3 {
		roles = columnRoles{patientID: -1, medication: 0, dosage: -1}
	}
	for i := 3; i < width; i++ {
		roles.diagnoses = append(roles.diagnoses, i)
	}
	if width == 3 {
		roles.dosage = -1
		roles.diagnoses = []int{2}
	}
	return roles
}

// rowsFromRecord fans one source line out into one row per diagnosis value.
// ICD-10 columns pair with diagnosis columns by order; leftovers become rows
// with only a code.
func rowsFromRecord(record []string, roles columnRoles, line int) []claim.UploadedRow {
	base := claim.UploadedRow{
		PatientID:      cell(record, roles.patientID),
		MedicationText: cell(record, roles.medication),
		Dosage:         cell(record, roles.dosage),
		SourceLine:     line,
	}

	var rows []claim.UploadedRow
	index := 0
	for i, col := range roles.diagnoses {
		text := cell(record, col)
		if text == "" {
			continue
		}
		row := base
		row.DiagnosisText = text
		if i < len(roles.icd10) {
			row.ICD10Code = cell(record, roles.icd10[i])
		}
		row.DiagnosisIndex = index
		index++
		rows = append(rows, row)
	}

	for i := len(roles.diagnoses); i < len(roles.icd10); i++ {
		code := cell(record, roles.icd10[i])
		if code == "" {
			continue
		}
		row := base
		row.ICD10Code = code
		row.DiagnosisText = code
		row.DiagnosisIndex = index
		index++
		rows = append(rows, row)
	}

	if len(rows) == 0 && base.MedicationText != "" {
		rows = append(rows, base)
	}
	return rows
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// ContentHash fingerprints an upload body for duplicate-run detection.
func ContentHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
