package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/mizan/internal/generator"
	"github.com/hyperjump/mizan/pkg/utils"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
)

// DefaultVertexLocation is the Vertex AI region used when none is configured.
const DefaultVertexLocation = "us-central1"

// VertexClient uses Gemini on Vertex AI (application default credentials) through gollem.
type VertexClient struct {
	client       gollem.LLMClient
	dimensions   int
	systemPrompt string
}

// VertexOption configures a VertexClient.
type VertexOption func(*VertexClient)

// WithSystemPrompt sets the session system prompt used for generation.
func WithSystemPrompt(p string) VertexOption {
	return func(c *VertexClient) { c.systemPrompt = p }
}

// NewVertexClient creates a client for the Vertex AI project and location.
func NewVertexClient(ctx context.Context, projectID, location string, dimensions int, opts ...VertexOption) (*VertexClient, error) {
	if projectID == "" {
		return nil, fmt.Errorf("vertex project is required")
	}
	if location == "" {
		location = DefaultVertexLocation
	}
	client, err := gemini.New(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return NewVertexClientWith(client, dimensions, opts...), nil
}

// NewVertexClientWith wraps an existing gollem client.
func NewVertexClientWith(client gollem.LLMClient, dimensions int, opts ...VertexOption) *VertexClient {
	if dimensions <= 0 {
		dimensions = DefaultGeminiDimensions
	}
	c := &VertexClient{client: client, dimensions: dimensions}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EmbedBatch embeds texts at the configured dimension.
func (c *VertexClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings, err := c.client.GenerateEmbedding(ctx, c.dimensions, nonEmpty(texts))
	if err != nil {
		return nil, fmt.Errorf("vertex embed: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("vertex returned %d embeddings for %d texts", len(embeddings), len(texts))
	}
	out := make([][]float32, len(embeddings))
	for i, e := range embeddings {
		out[i] = utils.Float32s(e)
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (c *VertexClient) Dimensions() int { return c.dimensions }

// Generate runs one session turn. Sessions do not take a length limit, so the
// output is clipped to params.MaxNewTokens words.
func (c *VertexClient) Generate(ctx context.Context, prompt string, params generator.Params) (string, error) {
	var opts []gollem.SessionOption
	if c.systemPrompt != "" {
		opts = append(opts, gollem.WithSessionSystemPrompt(c.systemPrompt))
	}
	session, err := c.client.NewSession(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	resp, err := session.GenerateContent(ctx, gollem.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("vertex generate: %w", err)
	}
	text := strings.Join(resp.Texts, "\n")
	return utils.TruncateWords(text, params.MaxNewTokens), nil
}

// Close is a no-op; gollem clients hold no closable resources.
func (c *VertexClient) Close() error { return nil }
