package indexer

import (
	"strings"

	"github.com/hyperjump/mizan/internal/models"
	"github.com/hyperjump/mizan/internal/normalize"
)

// FieldSeparator joins the text fields of a case before chunking.
const FieldSeparator = " - "

// PreprocessCase returns rec with every field normalized.
func PreprocessCase(rec models.CaseRecord) models.CaseRecord {
	return models.CaseRecord{
		CaseID:      normalize.Text(rec.CaseID),
		Title:       normalize.Text(rec.Title),
		Keywords:    normalize.Text(rec.Keywords),
		Description: normalize.Text(rec.Description),
	}
}

// CombineRecord normalizes the title, keywords, and description of rec and joins the
// non-empty ones with FieldSeparator.
func CombineRecord(rec models.CaseRecord) string {
	rec = PreprocessCase(rec)
	parts := make([]string, 0, 3)
	for _, field := range []string{rec.Title, rec.Keywords, rec.Description} {
		if field != "" {
			parts = append(parts, field)
		}
	}
	return strings.Join(parts, FieldSeparator)
}
