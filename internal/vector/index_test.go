package vector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func sampleCorpus() ([][]float32, []string, []string) {
	vectors := [][]float32{
		{1, 0, 0},
		{0.8, 0.6, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	caseIDs := []string{"C-1", "C-1", "C-2", "C-3"}
	texts := []string{"عقد بيع", "فسخ عقد البيع", "دعوى ايجار", "عقوبة جنائية"}
	return vectors, caseIDs, texts
}

func TestIndex_SearchBeforeLoad(t *testing.T) {
	ix := New(NewFileStore(filepath.Join(t.TempDir(), "idx.bin")))
	_, err := ix.Search(context.Background(), []float32{1, 0, 0}, 3)
	if !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
}

func TestIndex_BuildSearch(t *testing.T) {
	ctx := context.Background()
	ix := New(NewFileStore(filepath.Join(t.TempDir(), "idx.bin")))
	vectors, caseIDs, texts := sampleCorpus()
	if err := ix.Build(ctx, vectors, caseIDs, texts, BuildMeta{EmbeddingMethod: "mean"}); err != nil {
		t.Fatal(err)
	}
	if ix.Size() != 4 {
		t.Errorf("Size = %d", ix.Size())
	}

	results, err := ix.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Text != "عقد بيع" || results[0].CaseID != "C-1" || results[0].Score != 1 {
		t.Errorf("top result = %+v", results[0])
	}
	if results[1].Row != 1 {
		t.Errorf("second result row = %d", results[1].Row)
	}
}

func TestIndex_SearchOrderingAndCap(t *testing.T) {
	ctx := context.Background()
	ix := New(nil)
	vectors, caseIDs, texts := sampleCorpus()
	if err := ix.Build(ctx, vectors, caseIDs, texts, BuildMeta{}); err != nil {
		t.Fatal(err)
	}
	results, err := ix.Search(ctx, []float32{0.6, 0.8, 0}, 100)
	if err != nil {
		t.Fatalf("top_k above corpus size should not error: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected corpus-size results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("scores increase at %d: %f > %f", i, results[i].Score, results[i-1].Score)
		}
	}
}

func TestIndex_SearchTiesKeepRowOrder(t *testing.T) {
	ix := New(nil)
	vectors := [][]float32{{0, 1}, {1, 0}, {1, 0}}
	if err := ix.Build(context.Background(), vectors, []string{"a", "b", "c"}, []string{"x", "y", "z"}, BuildMeta{}); err != nil {
		t.Fatal(err)
	}
	results, err := ix.Search(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Row != 1 || results[1].Row != 2 {
		t.Errorf("tie order = %d, %d", results[0].Row, results[1].Row)
	}
}

func TestIndex_SearchErrors(t *testing.T) {
	ix := New(nil)
	vectors, caseIDs, texts := sampleCorpus()
	if err := ix.Build(context.Background(), vectors, caseIDs, texts, BuildMeta{}); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Search(context.Background(), []float32{1, 0}, 1); err == nil {
		t.Error("expected dimension mismatch error")
	}
	if _, err := ix.Search(context.Background(), []float32{1, 0, 0}, 0); err == nil {
		t.Error("expected error for top_k 0")
	}
}

func TestIndex_BuildLengthMismatchWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx.bin")
	ix := New(NewFileStore(path))
	vectors, caseIDs, texts := sampleCorpus()

	tests := []struct {
		name    string
		caseIDs []string
		texts   []string
	}{
		{"short ids", caseIDs[:3], texts},
		{"short texts", caseIDs, texts[:2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ix.Build(context.Background(), vectors, tt.caseIDs, tt.texts, BuildMeta{})
			if !errors.Is(err, ErrLengthMismatch) {
				t.Fatalf("expected ErrLengthMismatch, got %v", err)
			}
			if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
				t.Error("index file must not be written on mismatch")
			}
			if ix.Loaded() {
				t.Error("index must not become searchable on mismatch")
			}
		})
	}
}

func TestIndex_BuildRejectsRaggedVectors(t *testing.T) {
	ix := New(nil)
	err := ix.Build(context.Background(), [][]float32{{1, 0}, {1}}, []string{"a", "b"}, []string{"x", "y"}, BuildMeta{})
	if err == nil {
		t.Error("expected error for ragged vectors")
	}
	if err := ix.Build(context.Background(), nil, nil, nil, BuildMeta{}); err == nil {
		t.Error("expected error for empty corpus")
	}
}

func TestIndex_BuildDoesNotAliasInput(t *testing.T) {
	ix := New(nil)
	vectors, caseIDs, texts := sampleCorpus()
	if err := ix.Build(context.Background(), vectors, caseIDs, texts, BuildMeta{}); err != nil {
		t.Fatal(err)
	}
	vectors[0][0] = -1
	results, _ := ix.Search(context.Background(), []float32{1, 0, 0}, 1)
	if results[0].Row != 0 {
		t.Error("index must copy vectors on build")
	}
}
