package indexer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/mizan/internal/embedding"
	"github.com/hyperjump/mizan/internal/models"
)

var tok = &embedding.SimpleTokenizer{}

func TestChunker_Empty(t *testing.T) {
	c := NewChunker(10, 2, tok)
	if got := c.Split("   \n "); got != nil {
		t.Errorf("Split(blank) = %v, want nil", got)
	}
}

func TestChunker_ShortTextSinglePassage(t *testing.T) {
	c := NewChunker(50, 10, tok)
	got := c.Split("قررت المحكمة فسخ العقد.")
	if len(got) != 1 || got[0] != "قررت المحكمة فسخ العقد." {
		t.Errorf("Split = %q", got)
	}
}

func TestChunker_PassagesWithinBudget(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "نصت المادة %d من القانون على الالتزام، وقررت المحكمة الحكم؛ ", i)
		if i%7 == 0 {
			b.WriteString("\n\n")
		} else if i%3 == 0 {
			b.WriteString(". ")
		}
	}
	text := b.String()

	for _, tc := range []struct{ size, overlap int }{{300, 50}, {20, 5}, {8, 2}, {3, 0}} {
		c := NewChunker(tc.size, tc.overlap, tok)
		passages := c.Split(text)
		if len(passages) == 0 {
			t.Fatalf("size %d: no passages", tc.size)
		}
		seen := map[string]bool{}
		for _, p := range passages {
			n := len(tok.Tokens(p))
			if n > tc.size {
				t.Errorf("size %d: passage has %d tokens: %q", tc.size, n, p)
			}
			for _, w := range tok.Tokens(p) {
				seen[w] = true
			}
		}
		for _, w := range tok.Tokens(text) {
			if !seen[w] {
				t.Errorf("size %d: token %q lost", tc.size, w)
				break
			}
		}
	}
}

func TestChunker_SentenceOverlap(t *testing.T) {
	var sentences []string
	for i := 1; i <= 6; i++ {
		sentences = append(sentences, fmt.Sprintf("بند%d نص%d.", i, i))
	}
	// Each sentence is three tokens; two fit in a passage of 7 with one carried over.
	c := NewChunker(7, 3, tok)
	got := c.Split(strings.Join(sentences, " "))
	if len(got) != 5 {
		t.Fatalf("got %d passages %q, want 5", len(got), got)
	}
	for i, p := range got {
		want := sentences[i] + " " + sentences[i+1]
		if p != want {
			t.Errorf("passage %d = %q, want %q", i, p, want)
		}
	}
}

func TestChunker_HardSplitExactOverlap(t *testing.T) {
	words := make([]string, 30)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	c := NewChunker(10, 3, tok)
	got := c.Split(strings.Join(words, " "))

	wantStarts := []int{0, 7, 14, 21}
	if len(got) != len(wantStarts) {
		t.Fatalf("got %d passages %q, want %d", len(got), got, len(wantStarts))
	}
	for i, start := range wantStarts {
		end := min(start+10, len(words))
		want := strings.Join(words[start:end], " ")
		if got[i] != want {
			t.Errorf("passage %d = %q, want %q", i, got[i], want)
		}
	}
}

func TestChunker_HardSplitLongWordKeepsSource(t *testing.T) {
	text := "رقم/١٢٣/٤٥٦/٧٨٩/١٠١١ تابع"
	c := NewChunker(4, 0, tok)
	got := c.Split(text)

	want := []string{"رقم/١٢٣/", "٤٥٦/٧٨٩/", "١٠١١ تابع"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("passage %d = %q, want %q", i, got[i], want[i])
		}
		if !strings.Contains(text, got[i]) {
			t.Errorf("passage %q is not a substring of the source", got[i])
		}
		if n := len(tok.Tokens(got[i])); n > 4 {
			t.Errorf("passage %q has %d tokens", got[i], n)
		}
	}
}

func TestChunker_SeparatorPriority(t *testing.T) {
	c := NewChunker(5, 0, tok)
	got := c.Split("أولا ثانيا ثالثا\n\nرابعا خامسا سادسا")
	want := []string{"أولا ثانيا ثالثا", "رابعا خامسا سادسا"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Split = %q, want %q", got, want)
	}
}

func TestChunker_Defaults(t *testing.T) {
	c := NewChunker(0, -1, tok)
	if c.chunkSize != DefaultChunkSize || c.chunkOverlap != 0 {
		t.Errorf("size=%d overlap=%d", c.chunkSize, c.chunkOverlap)
	}
	c = NewChunker(10, 10, tok)
	if c.chunkOverlap != 9 {
		t.Errorf("overlap should be clamped below size, got %d", c.chunkOverlap)
	}
	c = NewChunker(10, 2, tok, WithSeparators([]string{"|"}))
	if got := c.Split("أ|ب"); len(got) != 1 {
		t.Errorf("custom separators: %q", got)
	}
}

func TestCombineRecord(t *testing.T) {
	tests := []struct {
		name string
		rec  models.CaseRecord
		want string
	}{
		{"all fields", models.CaseRecord{Title: "عنوان", Keywords: "عقد", Description: "وصف"}, "عنوان - عقد - وصف"},
		{"empty keywords dropped", models.CaseRecord{Title: "عنوان", Description: "وصف"}, "عنوان - وصف"},
		{"normalized", models.CaseRecord{Title: "أَحْكام"}, "احكام"},
		{"blank", models.CaseRecord{Title: "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CombineRecord(tt.rec); got != tt.want {
				t.Errorf("CombineRecord = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChunkRecords(t *testing.T) {
	c := NewChunker(5, 1, tok)
	recs := []models.CaseRecord{
		{CaseID: " أ1 ", Title: "عقد", Description: "قررت المحكمة فسخ عقد البيع لعدم الدفع"},
		{CaseID: "2", Title: ""},
		{CaseID: "3", Title: "حكم"},
	}
	got := c.ChunkRecords(recs)
	if len(got) < 3 {
		t.Fatalf("got %d passages", len(got))
	}
	last := got[len(got)-1]
	if last.CaseID != "3" || last.Text != "حكم" || last.Index != 0 || last.Tokens != 1 {
		t.Errorf("last passage = %+v", last)
	}
	for i, p := range got[:len(got)-1] {
		if p.CaseID != "ا1" {
			t.Errorf("passage %d case id = %q, want normalized ا1", i, p.CaseID)
		}
		if p.Index != i {
			t.Errorf("passage %d index = %d", i, p.Index)
		}
		if strings.Contains(p.Text, "حكم") && !strings.Contains(p.Text, "المحكمة") {
			t.Errorf("passage %d crosses records: %q", i, p.Text)
		}
	}

	texts, ids := Flatten(got)
	if len(texts) != len(got) || len(ids) != len(got) || ids[len(ids)-1] != "3" {
		t.Errorf("Flatten lengths %d/%d", len(texts), len(ids))
	}
}
