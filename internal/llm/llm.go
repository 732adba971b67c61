// Package llm adapts remote model services to the embedding backend and generation
// model interfaces.
package llm

import (
	"strings"

	"github.com/hyperjump/mizan/internal/embedding"
	"github.com/hyperjump/mizan/internal/generator"
)

// Backend names accepted in configuration.
const (
	BackendOllama = "ollama"
	BackendGemini = "gemini"
	BackendVertex = "vertex"
)

var (
	_ embedding.Backend = (*OllamaClient)(nil)
	_ generator.Model   = (*OllamaClient)(nil)
	_ embedding.Backend = (*GeminiClient)(nil)
	_ generator.Model   = (*GeminiClient)(nil)
	_ embedding.Backend = (*VertexClient)(nil)
	_ generator.Model   = (*VertexClient)(nil)
)

// placeholder keeps empty inputs embeddable; services reject empty content.
const placeholder = " "

func nonEmpty(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			t = placeholder
		}
		out[i] = t
	}
	return out
}
