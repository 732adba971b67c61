package keyword

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

var testDocs = []Document{
	{Row: 0, CaseID: "C1", Text: "قررت المحكمة فسخ عقد البيع لعدم دفع الثمن"},
	{Row: 1, CaseID: "C1", Text: "استندت المحكمة إلى المادة 147 من القانون المدني"},
	{Row: 2, CaseID: "C2", Text: "دعوى تعويض عن حادث سير أمام محكمة الاستئناف"},
}

func newTestIndex(t *testing.T, path string) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	if err := idx.Rebuild(context.Background(), testDocs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return idx
}

func TestBleveIndex_SearchFindsPassage(t *testing.T) {
	idx := newTestIndex(t, filepath.Join(t.TempDir(), "bleve"))

	hits, err := idx.Search(context.Background(), "الثمن", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected a hit for الثمن")
	}
	if hits[0].Row != 0 || hits[0].CaseID != "C1" {
		t.Errorf("first hit = %+v, want row 0 of C1", hits[0])
	}
	if hits[0].Text == "" {
		t.Error("hit text should be stored")
	}
}

func TestBleveIndex_ArabicStemming(t *testing.T) {
	idx := newTestIndex(t, "")

	// "محكمة" and "المحكمة" reduce to the same stem.
	hits, err := idx.Search(context.Background(), "محكمة", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("got %d hits, want 3", len(hits))
	}
}

func TestBleveIndex_CaseFilter(t *testing.T) {
	idx := newTestIndex(t, "")

	hits, err := idx.Search(context.Background(), "محكمة", 10, &SearchOptions{CaseID: "C2"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].CaseID != "C2" {
		t.Errorf("hits = %+v, want the single C2 passage", hits)
	}
}

func TestBleveIndex_NormalizesQuery(t *testing.T) {
	idx := newTestIndex(t, "")

	// Diacritics in the query are removed before matching.
	hits, err := idx.Search(context.Background(), "الثَّمَن", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 || hits[0].Row != 0 {
		t.Errorf("hits = %+v, want row 0", hits)
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	idx := newTestIndex(t, "")
	ctx := context.Background()

	exact, err := idx.Search(ctx, "تعويظ", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(exact) != 0 {
		t.Fatalf("misspelled term should not match exactly, got %d hits", len(exact))
	}
	fuzzy, err := idx.Search(ctx, "تعويظ", 10, &SearchOptions{Fuzziness: 1})
	if err != nil {
		t.Fatalf("Search fuzzy: %v", err)
	}
	if len(fuzzy) == 0 || fuzzy[0].Row != 2 {
		t.Errorf("fuzzy hits = %+v, want row 2", fuzzy)
	}
}

func TestBleveIndex_RebuildReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bleve")
	idx := newTestIndex(t, path)
	ctx := context.Background()

	if err := idx.Rebuild(ctx, testDocs[2:]); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	n, err := idx.DocCount()
	if err != nil {
		t.Fatalf("DocCount: %v", err)
	}
	if n != 1 {
		t.Errorf("DocCount = %d, want 1", n)
	}
	hits, err := idx.Search(ctx, "الثمن", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("old passages should be gone, got %+v", hits)
	}
}

func TestBleveIndex_FailedRebuildKeepsIndex(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"on disk", filepath.Join(t.TempDir(), "bleve")},
		{"in memory", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := newTestIndex(t, tt.path)
			cancelled, cancel := context.WithCancel(context.Background())
			cancel()
			if err := idx.Rebuild(cancelled, testDocs[2:]); err == nil {
				t.Fatal("expected error from cancelled rebuild")
			}

			n, err := idx.DocCount()
			if err != nil {
				t.Fatalf("DocCount: %v", err)
			}
			if n != uint64(len(testDocs)) {
				t.Errorf("DocCount = %d, want %d", n, len(testDocs))
			}
			hits, err := idx.Search(context.Background(), "الثمن", 10, nil)
			if err != nil || len(hits) == 0 {
				t.Errorf("previous passages should still be searchable: hits=%v err=%v", hits, err)
			}
			if tt.path != "" {
				if _, err := os.Stat(tt.path + ".rebuild"); !os.IsNotExist(err) {
					t.Errorf("staging index left behind: %v", err)
				}
			}
		})
	}
}

func TestBleveIndex_ReopenExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bleve")
	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	if err := idx.Rebuild(context.Background(), testDocs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := newTestIndexNoRebuild(t, path)
	n, err := reopened.DocCount()
	if err != nil {
		t.Fatalf("DocCount: %v", err)
	}
	if n != uint64(len(testDocs)) {
		t.Errorf("DocCount = %d, want %d", n, len(testDocs))
	}
}

func newTestIndexNoRebuild(t *testing.T, path string) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleveIndex_EmptyQueryAndClosed(t *testing.T) {
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	hits, err := idx.Search(context.Background(), "   ", 10, nil)
	if err != nil || len(hits) != 0 {
		t.Errorf("empty query: hits=%v err=%v", hits, err)
	}
	_ = idx.Close()
	if _, err := idx.Search(context.Background(), "عقد", 10, nil); err != ErrClosed {
		t.Errorf("Search after Close: err = %v, want ErrClosed", err)
	}
}
