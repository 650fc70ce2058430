package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"

	"github.com/bookworm-assistant/server/internal/agent/graph/parsers"
	"github.com/bookworm-assistant/server/internal/agent/graph/prompts"
	"github.com/bookworm-assistant/server/internal/agent/model"
	logx "github.com/bookworm-assistant/server/pkg/logger"
)

// GeminiReranker reorders fused candidates with one completion on the cold
// model. The candidates are shown as a numbered list and the model answers
// with indices, so the payload stays small regardless of description length.
type GeminiReranker struct {
	cm        *gemini.ChatModel
	modelName string
}

func NewGeminiReranker(cm *gemini.ChatModel, modelName string) *GeminiReranker {
	return &GeminiReranker{cm: cm, modelName: modelName}
}

func (r *GeminiReranker) Rerank(ctx context.Context, query string, candidates []model.ProductSummary) ([]model.ProductSummary, bool, error) {
	if len(candidates) == 0 {
		return nil, false, nil
	}

	system, err := prompts.RenderRerankSystem(ctx)
	if err != nil {
		return nil, false, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n\nCandidates:\n%s", query, model.FormatProducts(candidates))

	out, err := r.cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(sb.String()),
	})
	if err != nil {
		logx.Error().Err(err).Msg("rerank call failed")
		return nil, false, fmt.Errorf("rerank: %w", err)
	}
	logUsage(out, r.modelName, "rerank")

	ranking, found, err := parsers.ParseRerank(out.Content, len(candidates))
	if err != nil {
		return nil, false, err
	}

	reordered := make([]model.ProductSummary, 0, len(ranking))
	for _, idx := range ranking {
		reordered = append(reordered, candidates[idx-1])
	}
	return reordered, found, nil
}

var _ model.Reranker = (*GeminiReranker)(nil)
