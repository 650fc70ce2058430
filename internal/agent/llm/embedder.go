package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/bookworm-assistant/server/internal/agent/model"
	logx "github.com/bookworm-assistant/server/pkg/logger"
)

// GeminiEmbedder maps text to vectors through the genai embedding endpoint.
type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
}

func NewGeminiEmbedder(client *genai.Client, modelName string) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, modelName: modelName}
}

// Embed returns the embedding vector for one text. Empty input short-circuits
// to an empty vector; the caller skipped a branch, nothing broke.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		logx.Warn().Msg("embedding requested for empty text")
		return []float32{}, nil
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.modelName, genai.Text(text), nil)
	if err != nil {
		logx.Error().Err(err).Str("model", e.modelName).Msg("embedding call failed")
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("embed content: empty embedding response")
	}

	return resp.Embeddings[0].Values, nil
}

var _ model.Embedder = (*GeminiEmbedder)(nil)
