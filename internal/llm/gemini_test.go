package llm

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func TestResponseText(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{name: "nil", resp: nil, want: ""},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, want: ""},
		{
			name: "joins text parts",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("المادة 5 "), genai.Text("من قانون العمل")}},
			}}},
			want: "المادة 5 من قانون العمل",
		},
		{
			name: "blank text",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text(" ")}},
			}}},
			want: " ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := responseText(tt.resp); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	if _, err := NewGeminiClient(context.Background(), "", "", "", 0); err == nil {
		t.Fatal("expected error without api key")
	}
}
