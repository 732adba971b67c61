package e2e

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/mizan/internal/dataset"
	"github.com/hyperjump/mizan/internal/embedding"
	"github.com/hyperjump/mizan/internal/evaluation"
	"github.com/hyperjump/mizan/internal/generator"
	"github.com/hyperjump/mizan/internal/indexer"
	"github.com/hyperjump/mizan/internal/keyword"
	"github.com/hyperjump/mizan/internal/models"
	"github.com/hyperjump/mizan/internal/rag"
	"github.com/hyperjump/mizan/internal/retriever"
	"github.com/hyperjump/mizan/internal/storage"
	"github.com/hyperjump/mizan/internal/vector"
)

const (
	e2eDimensions = 64
	e2eMaxTokens  = 256
)

type pipeline struct {
	dir       string
	provider  *embedding.Provider
	index     *vector.Index
	kw        *keyword.BleveIndex
	store     *storage.SQLiteStorage
	indexer   *indexer.Indexer
	retriever *retriever.Retriever
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db", "mizan.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	kw, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	provider := embedding.NewProvider(
		embedding.NewHashEncoder(e2eDimensions, e2eMaxTokens, embedding.PoolingMean),
		embedding.WithDocumentCache(500),
	)
	index := vector.New(vector.NewFileStore(filepath.Join(dir, "legal_index.bin")))
	chunker := indexer.NewChunker(300, 50, provider.Tokenizer())
	idx := indexer.NewIndexer(provider, index, chunker,
		indexer.WithStorage(store),
		indexer.WithKeywordIndex(kw),
		indexer.WithEmbeddingMethod(string(embedding.PoolingMean)),
	)
	return &pipeline{
		dir:       dir,
		provider:  provider,
		index:     index,
		kw:        kw,
		store:     store,
		indexer:   idx,
		retriever: retriever.New(provider, index),
	}
}

// buildFromWorkbook writes the corpus as a case workbook and indexes it from disk.
func (p *pipeline) buildFromWorkbook(t *testing.T, corpus *Corpus) *indexer.BuildStats {
	t.Helper()
	path := filepath.Join(p.dir, "cases.xlsx")
	if err := dataset.WriteCases(path, corpus.Cases); err != nil {
		t.Fatal(err)
	}
	stats, err := p.indexer.BuildFromFile(context.Background(), path, false)
	if err != nil {
		t.Fatalf("BuildFromFile: %v", err)
	}
	return stats
}

func TestE2E_EveryPassageRetrievesItsCase(t *testing.T) {
	p := newPipeline(t)
	corpus := BuildCorpus(len(topics))
	stats := p.buildFromWorkbook(t, corpus)
	if stats.Cases != corpus.TotalCases || stats.Passages < corpus.TotalCases {
		t.Fatalf("unexpected build stats: %+v", stats)
	}

	ctx := context.Background()
	for _, rec := range p.index.Records() {
		results, _, err := p.retriever.Retrieve(ctx, rec.Text, 1)
		if err != nil {
			t.Fatalf("Retrieve: %v", err)
		}
		if len(results) != 1 || results[0].CaseID != rec.CaseID {
			t.Errorf("passage of %s retrieved %+v", rec.CaseID, results)
		}
	}
}

func TestE2E_KeywordLookupFindsCase(t *testing.T) {
	p := newPipeline(t)
	corpus := BuildCorpus(len(topics))
	p.buildFromWorkbook(t, corpus)

	ctx := context.Background()
	n, err := p.kw.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if int(n) != p.index.Size() {
		t.Errorf("keyword documents = %d, index rows = %d", n, p.index.Size())
	}
	for _, tc := range corpus.TestCases {
		t.Run(tc.Description, func(t *testing.T) {
			hits, err := p.kw.Search(ctx, tc.Query, 5, nil)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(hits) == 0 || hits[0].CaseID != tc.ExpectedCaseID {
				t.Errorf("query %s: want %s first, got %+v", tc.Query, tc.ExpectedCaseID, hits)
			}
		})
	}
}

func TestE2E_IndexSurvivesReload(t *testing.T) {
	p := newPipeline(t)
	corpus := BuildCorpus(10)
	stats := p.buildFromWorkbook(t, corpus)

	ctx := context.Background()
	reloaded := vector.New(vector.NewFileStore(filepath.Join(p.dir, "legal_index.bin")))
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Size() != p.index.Size() || reloaded.Info().BuildID != stats.Info.BuildID {
		t.Errorf("reloaded index %+v differs from built %+v", reloaded.Info(), stats.Info)
	}

	query := p.index.Records()[0]
	want, _, err := p.retriever.Retrieve(ctx, query.Text, 3)
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := retriever.New(p.provider, reloaded).Retrieve(ctx, query.Text, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if got[i].Row != want[i].Row {
			t.Errorf("rank %d: row %d after reload, %d before", i, got[i].Row, want[i].Row)
		}
	}

	cases, err := p.store.CountCases(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cases != int64(corpus.TotalCases) {
		t.Errorf("stored %d cases, want %d", cases, corpus.TotalCases)
	}

	// Same bytes, no rebuild.
	again, err := p.indexer.BuildFromFile(ctx, filepath.Join(p.dir, "cases.xlsx"), false)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Unchanged {
		t.Error("unchanged workbook should not be rebuilt")
	}
}

func TestE2E_EvaluateRetrieval(t *testing.T) {
	p := newPipeline(t)
	corpus := BuildCorpus(len(topics))
	p.buildFromWorkbook(t, corpus)

	qa := make([]models.QAPair, 0, p.index.Size())
	for _, rec := range p.index.Records() {
		qa = append(qa, models.QAPair{Question: rec.Text, CaseID: rec.CaseID})
	}
	report, err := evaluation.EvaluateRetriever(context.Background(), qa, p.retriever, []int{1, 5})
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range report.Metrics {
		if m.Hit != 1 || m.MRR != 1 {
			t.Errorf("k=%d: hit %v mrr %v, want 1", m.K, m.Hit, m.MRR)
		}
	}
}

type fakeModel struct{ output string }

func (m *fakeModel) Generate(_ context.Context, _ string, _ generator.Params) (string, error) {
	return m.output, nil
}

func TestE2E_AskArticleQuestion(t *testing.T) {
	p := newPipeline(t)
	corpus := BuildCorpus(len(topics))
	p.buildFromWorkbook(t, corpus)

	gen := generator.New(&fakeModel{output: "المادة 10 من قانون الأحوال الشخصية"}, nil)
	orch := rag.New(p.retriever, gen, rag.WithTopK(3), rag.WithThreshold(-1))

	ctx := context.Background()
	question := corpus.QAPairs()[0].Question
	ans, err := orch.Answer(ctx, question)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Status != rag.StatusAnswered || ans.Kind != generator.KindArticle {
		t.Fatalf("status/kind = %s/%s", ans.Status, ans.Kind)
	}
	if ans.ArticlesFound == nil || !*ans.ArticlesFound {
		t.Errorf("articles should be found in %q", ans.Text)
	}
	if len(ans.Sources) != 3 {
		t.Errorf("got %d sources, want 3", len(ans.Sources))
	}

	rejected, err := orch.Answer(ctx, "how do I bake bread")
	if err != nil {
		t.Fatal(err)
	}
	if rejected.Status != rag.StatusRejectedScope {
		t.Errorf("status = %s, want %s", rejected.Status, rag.StatusRejectedScope)
	}
}
