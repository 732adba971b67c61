// Package dataset reads and writes the legal case and QA spreadsheets.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/mizan/internal/models"
	"github.com/hyperjump/mizan/internal/normalize"
	"github.com/xuri/excelize/v2"
)

// Column names of the case and QA sheets.
const (
	ColCaseID      = "Case ID"
	ColTitle       = "Title"
	ColKeywords    = "Keywords"
	ColDescription = "Description"

	ColQuestion = "question"
	ColAnswer   = "answer"
	ColContext  = "context"
	ColQACaseID = "case_id"
)

// ErrMissingColumn is returned when a required column is absent from the header row.
var ErrMissingColumn = errors.New("missing required column")

// CaseColumns and QAColumns are the header rows written by WriteCases and WriteQA.
var (
	CaseColumns = []string{ColCaseID, ColTitle, ColKeywords, ColDescription}
	QAColumns   = []string{ColQuestion, ColAnswer, ColContext, ColQACaseID}
)

// Table is the first sheet of a workbook: a header row and data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable reads the first sheet of the workbook at path.
func ReadTable(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return &Table{}, nil
	}
	t := &Table{Header: make([]string, len(rows[0]))}
	for i, h := range rows[0] {
		t.Header[i] = strings.TrimSpace(h)
	}
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Column returns the index of the named column, or -1. Names match exactly first,
// then case-insensitively.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	for i, h := range t.Header {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

func (t *Table) require(name string) (int, error) {
	i := t.Column(name)
	if i < 0 {
		return -1, fmt.Errorf("%w: %q", ErrMissingColumn, name)
	}
	return i, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// WriteTable writes header and rows to the first sheet of a new workbook at path.
func WriteTable(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	write := func(rowNum int, values []string) error {
		cellName, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cellName, &values)
	}
	if err := write(1, t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.Rows {
		if err := write(i+2, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// ReadCases reads case records. The "Case ID" column is required; the text columns
// are optional and read as empty when absent.
func ReadCases(path string) ([]models.CaseRecord, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	idCol, err := t.require(ColCaseID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	titleCol, kwCol, descCol := t.Column(ColTitle), t.Column(ColKeywords), t.Column(ColDescription)

	cases := make([]models.CaseRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		cases = append(cases, models.CaseRecord{
			CaseID:      strings.TrimSpace(cell(row, idCol)),
			Title:       cell(row, titleCol),
			Keywords:    cell(row, kwCol),
			Description: cell(row, descCol),
		})
	}
	return cases, nil
}

// ReadQA reads question/answer pairs. The "question" column is required.
func ReadQA(path string) ([]models.QAPair, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	qCol, err := t.require(ColQuestion)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	aCol, ctxCol, idCol := t.Column(ColAnswer), t.Column(ColContext), t.Column(ColQACaseID)

	pairs := make([]models.QAPair, 0, len(t.Rows))
	for _, row := range t.Rows {
		pairs = append(pairs, models.QAPair{
			Question: cell(row, qCol),
			Answer:   cell(row, aCol),
			Context:  cell(row, ctxCol),
			CaseID:   strings.TrimSpace(cell(row, idCol)),
		})
	}
	return pairs, nil
}

// WriteCases writes case records with the CaseColumns header.
func WriteCases(path string, cases []models.CaseRecord) error {
	t := &Table{Header: CaseColumns, Rows: make([][]string, len(cases))}
	for i, c := range cases {
		t.Rows[i] = []string{c.CaseID, c.Title, c.Keywords, c.Description}
	}
	return WriteTable(path, t)
}

// WriteQA writes QA pairs with the QAColumns header.
func WriteQA(path string, pairs []models.QAPair) error {
	t := &Table{Header: QAColumns, Rows: make([][]string, len(pairs))}
	for i, p := range pairs {
		t.Rows[i] = []string{p.Question, p.Answer, p.Context, p.CaseID}
	}
	return WriteTable(path, t)
}

// CleanCases normalizes every cell of the case workbook at in and writes it to out.
// Columns other than the known ones are kept. Returns the number of rows written.
func CleanCases(in, out string) (int, error) {
	return clean(in, out, ColCaseID)
}

// CleanQA normalizes every cell of the QA workbook at in and writes it to out.
func CleanQA(in, out string) (int, error) {
	return clean(in, out, ColQuestion)
}

func clean(in, out, required string) (int, error) {
	t, err := ReadTable(in)
	if err != nil {
		return 0, err
	}
	if _, err := t.require(required); err != nil {
		return 0, fmt.Errorf("%s: %w", in, err)
	}
	for i, row := range t.Rows {
		t.Rows[i] = normalize.Fields(row)
	}
	if err := WriteTable(out, t); err != nil {
		return 0, err
	}
	return len(t.Rows), nil
}
