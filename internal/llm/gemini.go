package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/hyperjump/mizan/internal/generator"
	"google.golang.org/api/option"
)

// Gemini defaults.
const (
	DefaultGeminiModel          = "gemini-1.5-flash"
	DefaultGeminiEmbeddingModel = "text-embedding-004"
	DefaultGeminiDimensions     = 768
	// geminiBatchLimit is the service limit for one BatchEmbedContents call.
	geminiBatchLimit = 100
)

// GeminiClient uses the Gemini API (API key auth) for embeddings and generation.
type GeminiClient struct {
	client        *genai.Client
	generateModel string
	embedModel    string
	dimensions    int
}

// NewGeminiClient creates a client authenticated with apiKey.
func NewGeminiClient(ctx context.Context, apiKey, generateModel, embedModel string, dimensions int) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if generateModel == "" {
		generateModel = DefaultGeminiModel
	}
	if embedModel == "" {
		embedModel = DefaultGeminiEmbeddingModel
	}
	if dimensions <= 0 {
		dimensions = DefaultGeminiDimensions
	}
	return &GeminiClient{
		client:        client,
		generateModel: generateModel,
		embedModel:    embedModel,
		dimensions:    dimensions,
	}, nil
}

// EmbedBatch embeds texts in service-sized batches.
func (c *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	em := c.client.EmbeddingModel(c.embedModel)
	inputs := nonEmpty(texts)
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(inputs); start += geminiBatchLimit {
		end := min(start+geminiBatchLimit, len(inputs))
		b := em.NewBatch()
		for _, t := range inputs[start:end] {
			b.AddContent(genai.Text(t))
		}
		res, err := em.BatchEmbedContents(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("gemini embed: %w", err)
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(res.Embeddings), end-start)
		}
		for _, e := range res.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (c *GeminiClient) Dimensions() int { return c.dimensions }

// Generate asks for a single deterministic candidate limited to params.MaxNewTokens.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, params generator.Params) (string, error) {
	model := c.client.GenerativeModel(c.generateModel)
	model.SetCandidateCount(1)
	if !params.DoSample {
		model.SetTemperature(0)
	}
	if params.MaxNewTokens > 0 {
		model.SetMaxOutputTokens(int32(params.MaxNewTokens))
	}
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return responseText(resp), nil
}

// responseText concatenates the text parts of the first candidate. A response without
// candidates yields an empty answer, which the generator reports as insufficient
// information.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

// Close closes the underlying client.
func (c *GeminiClient) Close() error { return c.client.Close() }
