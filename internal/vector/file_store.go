package vector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/hyperjump/mizan/internal/models"
)

var fileMagic = [8]byte{'M', 'Z', 'N', 'I', 'D', 'X', 0, 1}

// FileStore persists the index as a single binary file. Layout (little-endian):
// magic (8), header length (4), JSON header, then per row: row (4), case id length (4),
// case id, text length (4), text, vector (dimensions*4).
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Location returns the file path.
func (s *FileStore) Location() string {
	return s.path
}

// Save writes all records to a temporary file and renames it into place.
func (s *FileStore) Save(ctx context.Context, info models.IndexInfo, records []Record) error {
	if s.path == "" {
		return fmt.Errorf("index path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := writeRecords(ctx, tmp, info, records); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("install index file: %w", err)
	}
	return nil
}

func writeRecords(ctx context.Context, f io.Writer, info models.IndexInfo, records []Record) error {
	w := bufio.NewWriter(f)
	header, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	if _, err := w.Write(fileMagic[:]); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := writeBytes(w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	buf := make([]byte, 4)
	for i, r := range records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		binary.LittleEndian.PutUint32(buf, uint32(r.Row))
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write row %d: %w", r.Row, err)
		}
		if err := writeBytes(w, []byte(r.CaseID)); err != nil {
			return fmt.Errorf("write case id of row %d: %w", r.Row, err)
		}
		if err := writeBytes(w, []byte(r.Text)); err != nil {
			return fmt.Errorf("write text of row %d: %w", r.Row, err)
		}
		for _, v := range r.Vector {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := w.Write(buf); err != nil {
				return fmt.Errorf("write vector of row %d: %w", r.Row, err)
			}
		}
	}
	return w.Flush()
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// Load reads the file. A missing file yields ErrArtifactMissing; a short or
// malformed file yields ErrCorrupt.
func (s *FileStore) Load(ctx context.Context) (models.IndexInfo, []Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.IndexInfo{}, nil, fmt.Errorf("%w: %s", ErrArtifactMissing, s.path)
		}
		return models.IndexInfo{}, nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	info, records, err := readRecords(ctx, bufio.NewReader(f))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return models.IndexInfo{}, nil, fmt.Errorf("%w: %s is truncated", ErrCorrupt, s.path)
		}
		return models.IndexInfo{}, nil, err
	}
	return info, records, nil
}

func readRecords(ctx context.Context, r io.Reader) (models.IndexInfo, []Record, error) {
	var info models.IndexInfo
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return info, nil, err
	}
	if !bytes.Equal(magic[:], fileMagic[:]) {
		return info, nil, fmt.Errorf("%w: not an index file", ErrCorrupt)
	}
	header, err := readBytes(r)
	if err != nil {
		return info, nil, err
	}
	if err := json.Unmarshal(header, &info); err != nil {
		return info, nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if info.Rows < 0 || info.Dimensions <= 0 || info.Dimensions > maxDimensions {
		return info, nil, fmt.Errorf("%w: header declares %d rows of dimension %d", ErrCorrupt, info.Rows, info.Dimensions)
	}

	// Rows is untrusted until the body has been read.
	records := make([]Record, 0, min(info.Rows, 1024))
	buf := make([]byte, 4)
	vecBuf := make([]byte, info.Dimensions*4)
	for i := 0; i < info.Rows; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return info, nil, err
			}
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return info, nil, err
		}
		rec := Record{Row: int(binary.LittleEndian.Uint32(buf))}
		caseID, err := readBytes(r)
		if err != nil {
			return info, nil, err
		}
		text, err := readBytes(r)
		if err != nil {
			return info, nil, err
		}
		if _, err := io.ReadFull(r, vecBuf); err != nil {
			return info, nil, err
		}
		rec.CaseID = string(caseID)
		rec.Text = string(text)
		rec.Vector = make([]float32, info.Dimensions)
		for j := range rec.Vector {
			rec.Vector[j] = math.Float32frombits(binary.LittleEndian.Uint32(vecBuf[j*4:]))
		}
		records = append(records, rec)
	}
	if n, _ := io.ReadFull(r, buf[:1]); n != 0 {
		return info, nil, fmt.Errorf("%w: trailing data after %d rows", ErrCorrupt, info.Rows)
	}
	return info, records, nil
}

const (
	maxFieldLen   = 64 << 20
	maxDimensions = 1 << 16
)

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n > maxFieldLen {
		return nil, fmt.Errorf("%w: field length %d", ErrCorrupt, n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Close is a no-op for FileStore.
func (s *FileStore) Close() error {
	return nil
}
