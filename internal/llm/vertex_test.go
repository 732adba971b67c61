package llm

import (
	"context"
	"testing"

	"github.com/hyperjump/mizan/internal/generator"
	"github.com/m-mizutani/gollem"
)

type mockSession struct {
	texts []string
	input []gollem.Input
}

func (s *mockSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	s.input = input
	return &gollem.Response{Texts: s.texts}, nil
}

func (s *mockSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
}

func (s *mockSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return s.GenerateStream(ctx, input...)
}

func (s *mockSession) History() (*gollem.History, error) { return nil, nil }

func (s *mockSession) AppendHistory(*gollem.History) error { return nil }

func (s *mockSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

type mockLLMClient struct {
	session    *mockSession
	dimension  int
	sessionOps int
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	c.sessionOps = len(options)
	return c.session, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	c.dimension = dimension
	out := make([][]float64, len(input))
	for i := range input {
		out[i] = make([]float64, dimension)
		out[i][0] = float64(i + 1)
	}
	return out, nil
}

func TestVertexClient_EmbedBatch(t *testing.T) {
	mock := &mockLLMClient{}
	c := NewVertexClientWith(mock, 16)
	vecs, err := c.EmbedBatch(context.Background(), []string{"أ", "ب", ""})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if mock.dimension != 16 {
		t.Errorf("requested dimension = %d", mock.dimension)
	}
	if len(vecs) != 3 || len(vecs[2]) != 16 || vecs[2][0] != 3 {
		t.Errorf("vecs = %v", vecs)
	}
	if c.Dimensions() != 16 {
		t.Errorf("Dimensions = %d", c.Dimensions())
	}
}

func TestVertexClient_DefaultDimensions(t *testing.T) {
	c := NewVertexClientWith(&mockLLMClient{}, 0)
	if c.Dimensions() != DefaultGeminiDimensions {
		t.Errorf("Dimensions = %d", c.Dimensions())
	}
}

func TestVertexClient_Generate(t *testing.T) {
	session := &mockSession{texts: []string{"الإجابة", "هي نعم بالتأكيد"}}
	mock := &mockLLMClient{session: session}
	c := NewVertexClientWith(mock, 8, WithSystemPrompt("أجب بالعربية"))

	out, err := c.Generate(context.Background(), "سؤال", generator.Params{MaxNewTokens: 3})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "الإجابة هي نعم" {
		t.Errorf("out = %q", out)
	}
	if mock.sessionOps != 1 {
		t.Errorf("session options = %d, want 1", mock.sessionOps)
	}
	if len(session.input) != 1 {
		t.Fatalf("inputs = %d", len(session.input))
	}
}

func TestVertexClient_GenerateEmpty(t *testing.T) {
	c := NewVertexClientWith(&mockLLMClient{session: &mockSession{}}, 8)
	out, err := c.Generate(context.Background(), "p", generator.Params{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "" {
		t.Errorf("out = %q, want empty", out)
	}
}
