package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/bookworm-assistant/server/internal/agent/model"
	logx "github.com/bookworm-assistant/server/pkg/logger"
)

// ClientConfig holds everything needed to build the Gemini-backed
// capabilities: one API client shared by both chat models and the
// embedding calls.
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Classifier *model.ClassifierModelConfig
	Response   *model.ResponseModelConfig
	Embedding  *model.EmbeddingConfig
}

// Clients bundles the constructed chat models plus the raw genai client
// used for embeddings.
type Clients struct {
	Classifier          *gemini.ChatModel
	Response            *gemini.ChatModel
	Genai               *genai.Client
	ClassifierModelName string
	ResponseModelName   string
	EmbeddingModelName  string
}

// NewClients creates the shared Gemini client and both chat models. The
// classifier model runs cold (low temperature, small budget) because its
// output is parsed, not read; the response model gets room to write.
func NewClients(ctx context.Context, config ClientConfig) (*Clients, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	classifierModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Classifier.Model,
		Temperature: &config.Classifier.Temperature,
		MaxTokens:   &config.Classifier.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(0)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating classifier model")
		return nil, fmt.Errorf("error creating classifier model: %w", err)
	}

	responseModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Response.Model,
		Temperature: &config.Response.Temperature,
		MaxTokens:   &config.Response.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, fmt.Errorf("error creating response model: %w", err)
	}

	return &Clients{
		Classifier:          classifierModel,
		Response:            responseModel,
		Genai:               client,
		ClassifierModelName: config.Classifier.Model,
		ResponseModelName:   config.Response.Model,
		EmbeddingModelName:  config.Embedding.Model,
	}, nil
}

// logUsage computes and logs per-call USD cost when usage metadata came back
// with the completion and cost logging is enabled.
func logUsage(out *schema.Message, modelName, op string) {
	if !model.CostEnabled() || out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	pricing := model.ResolvePricing(modelName)
	inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
	logx.Debug().
		Str("op", op).
		Str("model", modelName).
		Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
		Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
		Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}
