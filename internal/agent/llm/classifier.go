package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"

	"github.com/bookworm-assistant/server/internal/agent/graph/parsers"
	"github.com/bookworm-assistant/server/internal/agent/graph/prompts"
	"github.com/bookworm-assistant/server/internal/agent/model"
	logx "github.com/bookworm-assistant/server/pkg/logger"
)

// GeminiClassifier implements the structured-output capability on the cold
// chat model: every call is one completion whose content is parsed into a
// closed schema by the parsers package.
type GeminiClassifier struct {
	cm        *gemini.ChatModel
	modelName string
}

func NewGeminiClassifier(cm *gemini.ChatModel, modelName string) *GeminiClassifier {
	return &GeminiClassifier{cm: cm, modelName: modelName}
}

func (c *GeminiClassifier) ClassifyIntent(ctx context.Context, history []*schema.Message) (model.Intent, error) {
	out, err := c.cm.Generate(ctx, history)
	if err != nil {
		logx.Error().Err(err).Msg("intent classification call failed")
		return "", fmt.Errorf("classify intent: %w", err)
	}
	logUsage(out, c.modelName, "classify_intent")

	return parsers.ParseRouter(out.Content)
}

func (c *GeminiClassifier) ExtractOrderInfo(ctx context.Context, history []*schema.Message) (model.OrderInfo, error) {
	out, err := c.cm.Generate(ctx, history)
	if err != nil {
		logx.Error().Err(err).Msg("order extraction call failed")
		return model.OrderInfo{}, fmt.Errorf("extract order info: %w", err)
	}
	logUsage(out, c.modelName, "extract_order_info")

	return parsers.ParseOrderInfo(out.Content)
}

// DeriveSearchQueries owns its prompt: the caller hands over raw text and
// gets back the two search representations.
func (c *GeminiClassifier) DeriveSearchQueries(ctx context.Context, userQuery string) (model.SearchQueries, error) {
	system, err := prompts.RenderGenerateQuerySystem(ctx)
	if err != nil {
		return model.SearchQueries{}, err
	}

	out, err := c.cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(userQuery),
	})
	if err != nil {
		logx.Error().Err(err).Msg("search query derivation call failed")
		return model.SearchQueries{}, fmt.Errorf("derive search queries: %w", err)
	}
	logUsage(out, c.modelName, "derive_search_queries")

	return parsers.ParseSearchQueries(out.Content)
}

var _ model.Classifier = (*GeminiClassifier)(nil)
