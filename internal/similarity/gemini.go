package similarity

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const (
	defaultGeminiModel = "text-embedding-004"
	geminiTaskType     = "SEMANTIC_SIMILARITY"
)

// GeminiProvider embeds text with the Gemini embedding API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a Gemini client for apiKey.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (g *GeminiProvider) Name() string  { return "gemini" }
func (g *GeminiProvider) Model() string { return g.model }

// Close is a no-op; the genai client holds no resources that need releasing.
func (g *GeminiProvider) Close() error { return nil }

// Embed requests a similarity-tuned embedding of text.
func (g *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), &genai.EmbedContentConfig{
		TaskType: geminiTaskType,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini returned no embedding for model %s", g.model)
	}
	return resp.Embeddings[0].Values, nil
}
