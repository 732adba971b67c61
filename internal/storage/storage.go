// Package storage persists legal cases and the composite passage index in SQLite.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/mizan/internal/models"
)

var (
	// ErrNotFound is returned when a case does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoIndex is returned when no passage index has been written.
	ErrNoIndex = errors.New("no passage index stored")
)

// PassageRow is one row of the composite passage index: the vector, the source
// case, and the passage text travel together.
type PassageRow struct {
	Row    int
	CaseID string
	Text   string
	Vector []float32
}

// Storage defines case and passage-index persistence operations.
type Storage interface {
	// Case operations
	ReplaceCases(ctx context.Context, cases []models.CaseRecord) error
	GetCase(ctx context.Context, caseID string) (*models.CaseRecord, error)
	ListCases(ctx context.Context, offset, limit int) ([]*models.CaseRecord, error)

	// Passage index operations. ReplacePassages swaps the whole index in one transaction.
	ReplacePassages(ctx context.Context, info models.IndexInfo, rows []PassageRow) error
	LoadPassages(ctx context.Context) (models.IndexInfo, []PassageRow, error)
	GetIndexInfo(ctx context.Context) (*models.IndexInfo, error)

	// Stats
	CountCases(ctx context.Context) (int64, error)
	CountPassages(ctx context.Context) (int64, error)

	Close() error
}
