package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/hyperjump/mizan/internal/generator"
	"github.com/hyperjump/mizan/pkg/utils"
)

// DefaultOllamaURL is the local Ollama endpoint.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaClient talks to an Ollama server for embeddings and generation.
type OllamaClient struct {
	baseURL       string
	embedModel    string
	generateModel string
	httpClient    *http.Client
	seed          int
	stop          []string
	raw           bool

	mu         sync.RWMutex
	dimensions int
}

// OllamaOption configures an OllamaClient.
type OllamaOption func(*OllamaClient)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(o *OllamaClient) { o.httpClient = c }
}

// WithDimensions fixes the embedding dimension. When unset it is learned from the
// first response.
func WithDimensions(n int) OllamaOption {
	return func(o *OllamaClient) { o.dimensions = n }
}

// WithSeed sets the sampling seed sent with generate requests.
func WithSeed(seed int) OllamaOption {
	return func(o *OllamaClient) { o.seed = seed }
}

// WithStop sets sequences that end generation.
func WithStop(stop ...string) OllamaOption {
	return func(o *OllamaClient) { o.stop = stop }
}

// WithRawPrompt sends prompts without the model's chat template.
func WithRawPrompt(raw bool) OllamaOption {
	return func(o *OllamaClient) { o.raw = raw }
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Raw     bool           `json:"raw,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type listModelsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaClient creates a client. Either model may be empty when the client is used
// for only one role.
func NewOllamaClient(baseURL, embedModel, generateModel string, opts ...OllamaOption) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	c := &OllamaClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		embedModel:    embedModel,
		generateModel: generateModel,
		httpClient:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckModels verifies that the server is reachable and has the configured models.
func (c *OllamaClient) CheckModels(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to Ollama at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Ollama server responded with status %d", resp.StatusCode)
	}
	var list listModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("failed to parse models list: %w", err)
	}
	available := make(map[string]bool)
	for _, m := range list.Models {
		available[m.Name] = true
		available[strings.TrimSuffix(m.Name, ":latest")] = true
	}
	var missing []string
	for _, m := range []string{c.embedModel, c.generateModel} {
		if m != "" && !available[m] {
			missing = append(missing, m)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing Ollama models %v (install with: ollama pull <model>)", missing)
	}
	return nil
}

func (c *OllamaClient) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call Ollama API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("Ollama API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// EmbedBatch embeds texts with one /api/embed call.
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.embedModel == "" {
		return nil, fmt.Errorf("no Ollama embedding model configured")
	}
	var res embedResponse
	if err := c.post(ctx, "/api/embed", embedRequest{Model: c.embedModel, Input: nonEmpty(texts)}, &res); err != nil {
		return nil, err
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("Ollama returned %d embeddings for %d texts", len(res.Embeddings), len(texts))
	}
	out := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		out[i] = utils.Float32s(e)
	}
	c.mu.Lock()
	if c.dimensions == 0 && len(out) > 0 {
		c.dimensions = len(out[0])
	}
	c.mu.Unlock()
	return out, nil
}

// Dimensions returns the embedding dimension, or 0 before it is known.
func (c *OllamaClient) Dimensions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dimensions
}

// Generate runs a non-streaming /api/generate call. Ollama decodes greedily at
// temperature 0; beam width is not supported by the server and is ignored.
func (c *OllamaClient) Generate(ctx context.Context, prompt string, params generator.Params) (string, error) {
	if c.generateModel == "" {
		return "", fmt.Errorf("no Ollama generation model configured")
	}
	options := map[string]any{
		"temperature": 0,
		"seed":        c.seed,
	}
	if params.MaxNewTokens > 0 {
		options["num_predict"] = params.MaxNewTokens
	}
	if len(c.stop) > 0 {
		options["stop"] = c.stop
	}
	if params.DoSample {
		delete(options, "temperature")
	}
	var res generateResponse
	req := generateRequest{Model: c.generateModel, Prompt: prompt, Stream: false, Raw: c.raw, Options: options}
	if err := c.post(ctx, "/api/generate", req, &res); err != nil {
		return "", err
	}
	return res.Response, nil
}

// Close is a no-op; the HTTP client is shared.
func (c *OllamaClient) Close() error { return nil }
