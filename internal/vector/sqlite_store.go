package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/mizan/internal/models"
	"github.com/hyperjump/mizan/internal/storage"
)

// SQLiteStore keeps the index in the passages table of a SQLite database.
type SQLiteStore struct {
	db       *storage.SQLiteStorage
	ownsConn bool
}

// NewSQLiteStore wraps an open database. The caller keeps ownership of db.
func NewSQLiteStore(db *storage.SQLiteStorage) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenSQLiteStore opens (or creates) the database at path and owns the connection.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, ownsConn: true}, nil
}

// Location returns the database path.
func (s *SQLiteStore) Location() string {
	return s.db.Path()
}

// Save replaces the stored passages.
func (s *SQLiteStore) Save(ctx context.Context, info models.IndexInfo, records []Record) error {
	rows := make([]storage.PassageRow, len(records))
	for i, r := range records {
		rows[i] = storage.PassageRow{Row: r.Row, CaseID: r.CaseID, Text: r.Text, Vector: r.Vector}
	}
	return s.db.ReplacePassages(ctx, info, rows)
}

// Load reads all passages.
func (s *SQLiteStore) Load(ctx context.Context) (models.IndexInfo, []Record, error) {
	info, rows, err := s.db.LoadPassages(ctx)
	if errors.Is(err, storage.ErrNoIndex) {
		return models.IndexInfo{}, nil, fmt.Errorf("%w: %s has no passages", ErrArtifactMissing, s.db.Path())
	}
	if err != nil {
		return models.IndexInfo{}, nil, err
	}
	records := make([]Record, len(rows))
	for i, r := range rows {
		records[i] = Record{Row: r.Row, CaseID: r.CaseID, Text: r.Text, Vector: r.Vector}
	}
	return info, records, nil
}

// Close closes the database when the store opened it.
func (s *SQLiteStore) Close() error {
	if s.ownsConn {
		return s.db.Close()
	}
	return nil
}
