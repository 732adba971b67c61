package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/mizan/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

// OpenSQLiteStorage opens an existing database without creating it.
func OpenSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}
	return NewSQLiteStorage(dbPath)
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cases (
		case_id TEXT PRIMARY KEY,
		title TEXT,
		keywords TEXT,
		description TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS passages (
		row_idx INTEGER PRIMARY KEY,
		case_id TEXT NOT NULL,
		text TEXT NOT NULL,
		vector BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_passages_case_id ON passages(case_id);

	CREATE TABLE IF NOT EXISTS index_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		build_id TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		dimensions INTEGER NOT NULL,
		embedding_method TEXT,
		fingerprint TEXT,
		built_at TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// ReplaceCases replaces the stored case table.
func (s *SQLiteStorage) ReplaceCases(ctx context.Context, cases []models.CaseRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cases`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO cases (case_id, title, keywords, description, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, c := range cases {
		if _, err := stmt.ExecContext(ctx, c.CaseID, c.Title, c.Keywords, c.Description, now); err != nil {
			return fmt.Errorf("insert case %s: %w", c.CaseID, err)
		}
	}
	return tx.Commit()
}

// GetCase returns a case by id.
func (s *SQLiteStorage) GetCase(ctx context.Context, caseID string) (*models.CaseRecord, error) {
	var c models.CaseRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT case_id, title, keywords, description FROM cases WHERE case_id = ?`, caseID,
	).Scan(&c.CaseID, &c.Title, &c.Keywords, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("case %s: %w", caseID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCases returns cases ordered by id with offset and limit.
func (s *SQLiteStorage) ListCases(ctx context.Context, offset, limit int) ([]*models.CaseRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT case_id, title, keywords, description FROM cases ORDER BY case_id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*models.CaseRecord
	for rows.Next() {
		var c models.CaseRecord
		if err := rows.Scan(&c.CaseID, &c.Title, &c.Keywords, &c.Description); err != nil {
			return nil, err
		}
		cases = append(cases, &c)
	}
	return cases, rows.Err()
}

// ReplacePassages writes the full passage index and its metadata in one transaction.
func (s *SQLiteStorage) ReplacePassages(ctx context.Context, info models.IndexInfo, rows []PassageRow) error {
	if info.Rows != len(rows) {
		return fmt.Errorf("index info declares %d rows, got %d", info.Rows, len(rows))
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM passages`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_meta`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO passages (row_idx, case_id, text, vector) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Row, r.CaseID, r.Text, EncodeVector(r.Vector)); err != nil {
			return fmt.Errorf("insert passage %d: %w", r.Row, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO index_meta (id, build_id, row_count, dimensions, embedding_method, fingerprint, built_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?)`,
		info.BuildID, info.Rows, info.Dimensions, info.EmbeddingMethod, info.Fingerprint, info.BuiltAt,
	); err != nil {
		return fmt.Errorf("write index meta: %w", err)
	}
	return tx.Commit()
}

// GetIndexInfo returns the stored index metadata, or ErrNoIndex.
func (s *SQLiteStorage) GetIndexInfo(ctx context.Context) (*models.IndexInfo, error) {
	var info models.IndexInfo
	var method, fingerprint sql.NullString
	var builtAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT build_id, row_count, dimensions, embedding_method, fingerprint, built_at FROM index_meta WHERE id = 1`,
	).Scan(&info.BuildID, &info.Rows, &info.Dimensions, &method, &fingerprint, &builtAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoIndex
	}
	if err != nil {
		return nil, err
	}
	info.EmbeddingMethod = method.String
	info.Fingerprint = fingerprint.String
	info.BuiltAt = builtAt.Time
	return &info, nil
}

// LoadPassages returns the index metadata and all passage rows ordered by row.
func (s *SQLiteStorage) LoadPassages(ctx context.Context) (models.IndexInfo, []PassageRow, error) {
	info, err := s.GetIndexInfo(ctx)
	if err != nil {
		return models.IndexInfo{}, nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT row_idx, case_id, text, vector FROM passages ORDER BY row_idx`)
	if err != nil {
		return models.IndexInfo{}, nil, err
	}
	defer rows.Close()

	out := make([]PassageRow, 0, info.Rows)
	for rows.Next() {
		var r PassageRow
		var blob []byte
		if err := rows.Scan(&r.Row, &r.CaseID, &r.Text, &blob); err != nil {
			return models.IndexInfo{}, nil, err
		}
		vec, err := DecodeVector(blob)
		if err != nil {
			return models.IndexInfo{}, nil, fmt.Errorf("passage %d: %w", r.Row, err)
		}
		r.Vector = vec
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return models.IndexInfo{}, nil, err
	}
	return *info, out, nil
}

// CountCases returns the total number of cases.
func (s *SQLiteStorage) CountCases(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cases`).Scan(&count)
	return count, err
}

// CountPassages returns the total number of passage rows.
func (s *SQLiteStorage) CountPassages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`).Scan(&count)
	return count, err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Checkpoint folds the write-ahead log into the main database file so the file can be
// copied on its own.
func (s *SQLiteStorage) Checkpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// EncodeVector serializes a vector as little-endian float32s.
func EncodeVector(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(x))
	}
	return out
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}
