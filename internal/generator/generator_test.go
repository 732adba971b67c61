package generator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeModel struct {
	output  string
	err     error
	prompts []string
	params  []Params
}

func (m *fakeModel) Generate(_ context.Context, prompt string, params Params) (string, error) {
	m.prompts = append(m.prompts, prompt)
	m.params = append(m.params, params)
	return m.output, m.err
}

type tokenModel struct {
	fakeModel
	pad, eos string
}

func (m *tokenModel) PadToken() string { return m.pad }
func (m *tokenModel) EOSToken() string { return m.eos }

func TestIsLegalArabicQuestion(t *testing.T) {
	r := DefaultRules()
	tests := []struct {
		name string
		q    string
		want bool
	}{
		{"empty", "", false},
		{"blank", "   ", false},
		{"english", "What is the penalty?", false},
		{"article question", "ما هي المواد القانونية؟", true},
		{"keyword with diacritics", "ما حكم عَقْد البيع؟", true},
		{"arabic without keyword", "ما هو الطقس اليوم؟", false},
		{"keyword but mostly latin", "عقد contract agreement terms and conditions", false},
		{"court", "ماذا قررت المحكمة في القضية؟", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.IsLegalArabicQuestion(tt.q); got != tt.want {
				t.Errorf("IsLegalArabicQuestion(%q) = %v, want %v", tt.q, got, tt.want)
			}
		})
	}
}

func TestArabicShare(t *testing.T) {
	if got := ArabicShare(""); got != 0 {
		t.Errorf("empty = %v", got)
	}
	if got := ArabicShare("abc"); got != 0 {
		t.Errorf("latin = %v", got)
	}
	if got := ArabicShare("عقد"); got != 1 {
		t.Errorf("arabic = %v", got)
	}
	if got := ArabicShare("عق ab"); got != 0.4 {
		t.Errorf("mixed = %v, want 0.4", got)
	}
}

func TestIsArticleQuestion(t *testing.T) {
	r := DefaultRules()
	tests := []struct {
		q    string
		want bool
	}{
		{"ما هي المواد المطبقة على عقد الإيجار؟", true},
		{"اي مواد تنطبق على الدعوى؟", true},
		{"ما هو النص القانوني للعقوبة؟", true},
		{"ما حكم فسخ العقد؟", false},
	}
	for _, tt := range tests {
		if got := r.IsArticleQuestion(tt.q); got != tt.want {
			t.Errorf("IsArticleQuestion(%q) = %v, want %v", tt.q, got, tt.want)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	r := DefaultRules()
	ctx := "سياق أول\nسياق ثان"

	p := r.BuildPrompt("ما هي المواد القانونية؟", ctx)
	if p.Kind != KindArticle || p.MaxNewTokens != 100 {
		t.Errorf("article prompt = %+v", p)
	}
	if !strings.HasPrefix(p.Text, "المعرفة التالية مستخلصة من قضايا قانونية:\n"+ctx) || !strings.HasSuffix(p.Text, "الجواب:") {
		t.Errorf("article prompt text = %q", p.Text)
	}

	p = r.BuildPrompt("ما حكم فسخ العقد؟", ctx)
	if p.Kind != KindGeneral || p.MaxNewTokens != 250 {
		t.Errorf("general prompt = %+v", p)
	}
	if p.Text != "ما حكم فسخ العقد؟\n الجواب:\n"+ctx {
		t.Errorf("general prompt text = %q", p.Text)
	}

	// Placeholders inside the question are not expanded again.
	p = r.BuildPrompt("{context} حكم", "X")
	if p.Text != "{context} حكم\n الجواب:\nX" {
		t.Errorf("placeholder in question = %q", p.Text)
	}
}

func TestExtractArticles(t *testing.T) {
	r := DefaultRules()
	text := "استندت المحكمة إلى المادة 147 من قانون العمل. كما طبقت المواد 10-12 من قانون التجارة\nثم المادة 147 من قانون العمل."
	ex := r.ExtractArticles(text)
	if !ex.Found {
		t.Fatal("expected articles")
	}
	want := []string{"المواد 147 قانون العمل", "المواد 10 إلى 12 قانون التجارة"}
	if len(ex.Items) != len(want) {
		t.Fatalf("items = %q, want %q", ex.Items, want)
	}
	for i := range want {
		if ex.Items[i] != want[i] {
			t.Errorf("item %d = %q, want %q", i, ex.Items[i], want[i])
		}
	}
	if !strings.HasPrefix(ex.Text, "✅ المواد القانونية المستخرجة:\n• المواد 147") {
		t.Errorf("text = %q", ex.Text)
	}
}

func TestExtractArticles_None(t *testing.T) {
	r := DefaultRules()
	ex := r.ExtractArticles("لا توجد أي إشارة هنا")
	if ex.Found || len(ex.Items) != 0 {
		t.Errorf("extraction = %+v", ex)
	}
	want := r.Messages.ArticlesHeader + "\n" + r.Messages.NoArticles
	if ex.Text != want {
		t.Errorf("text = %q, want %q", ex.Text, want)
	}
}

func TestCleanAnswer(t *testing.T) {
	r := DefaultRules()
	q := "ما حكم فسخ العقد؟"
	tests := []struct {
		name, in, want string
	}{
		{"echo and marker", q + "\n الجواب: يجوز الفسخ", "يجوز الفسخ"},
		{"leading colon", ": يجوز الفسخ ", "يجوز الفسخ"},
		{"one colon only", ":: نعم", ": نعم"},
		{"plain", "يجوز الفسخ", "يجوز الفسخ"},
		{"only echo", q + " الجواب:", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.CleanAnswer(tt.in, q); got != tt.want {
				t.Errorf("CleanAnswer = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSuppressRepeatedNgrams(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"a b a b c", 2, "a b a c"},
		{"a\nb a\nb", 2, "a\nb a"},
		{"a b a b", 0, "a b a b"},
		{"a a a", 1, "a"},
		{"", 2, ""},
	}
	for _, tt := range tests {
		if got := SuppressRepeatedNgrams(tt.in, tt.n); got != tt.want {
			t.Errorf("SuppressRepeatedNgrams(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestGenerate_Params(t *testing.T) {
	m := &fakeModel{output: "نص"}
	g := New(m, nil)
	if _, err := g.Generate(context.Background(), "prompt", 100); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	p := m.params[0]
	if p.MaxNewTokens != 100 || p.NumBeams != 4 || p.DoSample || p.NoRepeatNgramSize != 2 {
		t.Errorf("params = %+v", p)
	}
}

func TestNew_PadTokenFallback(t *testing.T) {
	tests := []struct {
		name string
		pad  string
		opts []Option
		want string
	}{
		{"eos fallback", "", nil, "</s>"},
		{"model pad", "<pad>", nil, "<pad>"},
		{"explicit", "<pad>", []Option{WithPadToken("[PAD]")}, "[PAD]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(&tokenModel{pad: tt.pad, eos: "</s>"}, nil, tt.opts...)
			if got := g.Params().PadToken; got != tt.want {
				t.Errorf("PadToken = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnswer_Article(t *testing.T) {
	m := &fakeModel{output: "المادة 5 من قانون العمل"}
	g := New(m, nil)
	res, err := g.Answer(context.Background(), "ما هي المواد القانونية؟", "سياق")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Kind != KindArticle || res.ArticlesFound == nil || !*res.ArticlesFound {
		t.Errorf("result = %+v", res)
	}
	if m.params[0].MaxNewTokens != 100 {
		t.Errorf("budget = %d, want 100", m.params[0].MaxNewTokens)
	}
	if !strings.HasPrefix(res.Text, "✅ المواد القانونية المستخرجة:") {
		t.Errorf("text = %q", res.Text)
	}
}

func TestAnswer_ArticleNoneFound(t *testing.T) {
	g := New(&fakeModel{output: "لا أعرف"}, nil)
	res, err := g.Answer(context.Background(), "ما هي المواد القانونية؟", "سياق")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.ArticlesFound == nil || *res.ArticlesFound {
		t.Errorf("ArticlesFound should be false: %+v", res)
	}
}

func TestAnswer_ArticleCitedInContext(t *testing.T) {
	ctxText := "قررت المحكمة تطبيق المادة 12 من قانون العمل"
	q := "ما هي المواد القانونية في هذه القضية؟"
	tests := []struct {
		name       string
		output     string
		fromPrompt bool
		wantFound  bool
	}{
		{"model does not repeat the citation", "لا اعرف", true, true},
		{"empty model output", "", true, true},
		{"continuation only", "لا اعرف", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := DefaultRules()
			rules.ExtractFromPrompt = tt.fromPrompt
			res, err := New(&fakeModel{output: tt.output}, rules).Answer(context.Background(), q, ctxText)
			if err != nil {
				t.Fatalf("Answer: %v", err)
			}
			if res.ArticlesFound == nil || *res.ArticlesFound != tt.wantFound {
				t.Fatalf("ArticlesFound = %v, want %v (text %q)", res.ArticlesFound, tt.wantFound, res.Text)
			}
			if tt.wantFound && !strings.Contains(res.Text, "المواد 12 قانون العمل") {
				t.Errorf("text = %q", res.Text)
			}
		})
	}
}

func TestLoadRules_ExtractFromPrompt(t *testing.T) {
	if !DefaultRules().ExtractFromPrompt {
		t.Fatal("default rules should extract from the prompt")
	}
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("extract_from_prompt: false\n"), 0644); err != nil {
		t.Fatal(err)
	}
	r, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if r.ExtractFromPrompt {
		t.Error("extract_from_prompt: false should be honoured")
	}
}

func TestAnswer_General(t *testing.T) {
	q := "ما حكم فسخ العقد؟"
	g := New(&fakeModel{output: q + " الجواب: يجوز الفسخ"}, nil)
	res, err := g.Answer(context.Background(), q, "سياق")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Kind != KindGeneral || res.Text != "يجوز الفسخ" || res.ArticlesFound != nil {
		t.Errorf("result = %+v", res)
	}

	g = New(&fakeModel{output: q}, nil)
	res, err = g.Answer(context.Background(), q, "سياق")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Text != DefaultRules().Messages.InsufficientInfo {
		t.Errorf("empty answer text = %q", res.Text)
	}
}

func TestAnswer_ModelError(t *testing.T) {
	boom := errors.New("boom")
	g := New(&fakeModel{err: boom}, nil)
	if _, err := g.Answer(context.Background(), "ما حكم العقد؟", ""); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := "legal_keywords: [\"ميراث\"]\narabic_ratio: 0.3\nmessages:\n  no_articles: \"لا شيء\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	r, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if !r.IsLegalArabicQuestion("ما نصيب الزوجة من الميراث؟") {
		t.Error("custom keyword should be accepted")
	}
	if r.IsLegalArabicQuestion("ما حكم العقد؟") {
		t.Error("default keywords should be replaced")
	}
	if r.Messages.NoArticles != "لا شيء" || r.Messages.InsufficientInfo == "" {
		t.Errorf("messages = %+v", r.Messages)
	}
	if r.MaxNewTokens.Article != 100 {
		t.Error("unset tables should keep defaults")
	}
}

func TestLoadRules_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"bad pattern": "article_pattern: \"([\"\n",
		"no group":    "article_pattern: \"المادة\"\n",
		"bad ratio":   "arabic_ratio: 1.5\n",
		"no keywords": "legal_keywords: []\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".yaml")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadRules(path); err == nil {
				t.Error("expected error")
			}
		})
	}
	if _, err := LoadRules(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
