package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"

	"github.com/bookworm-assistant/server/internal/agent/model"
	logx "github.com/bookworm-assistant/server/pkg/logger"
)

// GeminiGenerator produces the user-facing replies on the warm chat model.
// The system prompt is prepended per call so one model instance serves every
// response flavor.
type GeminiGenerator struct {
	cm        *gemini.ChatModel
	modelName string
}

func NewGeminiGenerator(cm *gemini.ChatModel, modelName string) *GeminiGenerator {
	return &GeminiGenerator{cm: cm, modelName: modelName}
}

func (g *GeminiGenerator) Generate(ctx context.Context, system string, history []*schema.Message) (string, error) {
	msgs := make([]*schema.Message, 0, len(history)+1)
	msgs = append(msgs, schema.SystemMessage(system))
	msgs = append(msgs, history...)

	out, err := g.cm.Generate(ctx, msgs)
	if err != nil {
		logx.Error().Err(err).Msg("response generation call failed")
		return "", fmt.Errorf("generate response: %w", err)
	}
	logUsage(out, g.modelName, "generate_response")

	return out.Content, nil
}

var _ model.Generator = (*GeminiGenerator)(nil)
