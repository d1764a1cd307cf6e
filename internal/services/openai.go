package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const providerOpenAI = "openai"

type OpenAIService interface {
	LLMProvider
	EmbeddingProvider
}

type openAIService struct {
	client     openai.Client
	model      string
	embedModel string
	dimension  int
	retry      RetryPolicy
	log        *zap.Logger
}

// NewOpenAIService builds a chat + embedding provider. The SDK's own retries are
// disabled so every call goes through the shared RetryPolicy.
func NewOpenAIService(apiKey, model, embedModel string, dimension int, retry RetryPolicy, log *zap.Logger) (OpenAIService, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key is required")
	}

	return &openAIService{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(0),
		),
		model:      model,
		embedModel: embedModel,
		dimension:  dimension,
		retry:      retry,
		log:        log.With(zap.String("provider", providerOpenAI), zap.String("model", model)),
	}, nil
}

func (o *openAIService) Name() string {
	return providerOpenAI
}

func (o *openAIService) Dimension() int {
	return o.dimension
}

func (o *openAIService) GenerateJSON(ctx context.Context, req CompletionRequest) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(o.model),
		Messages:    messages,
		Temperature: openai.Float(float64(req.Temperature)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	return withRetry(ctx, o.retry, o.log, providerOpenAI, "generate", isOpenAITransient,
		func(ctx context.Context) (string, error) {
			completion, err := o.client.Chat.Completions.New(ctx, params)
			if err != nil {
				return "", fmt.Errorf("OpenAI API call failed: %w", err)
			}

			if len(completion.Choices) == 0 {
				return "", errors.New("no completion choices returned")
			}

			return completion.Choices[0].Message.Content, nil
		})
}

func (o *openAIService) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(o.embedModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(TruncateHead(text, MaxEmbeddingChars)),
		},
	}
	if o.dimension > 0 {
		params.Dimensions = openai.Int(int64(o.dimension))
	}

	return withRetry(ctx, o.retry, o.log, providerOpenAI, "embed", isOpenAITransient,
		func(ctx context.Context) ([]float32, error) {
			resp, err := o.client.Embeddings.New(ctx, params)
			if err != nil {
				return nil, fmt.Errorf("failed to generate embeddings: %w", err)
			}

			if len(resp.Data) == 0 {
				return nil, errors.New("no embeddings generated")
			}

			vector := make([]float32, len(resp.Data[0].Embedding))
			for i, v := range resp.Data[0].Embedding {
				vector[i] = float32(v)
			}
			return vector, nil
		})
}

func isOpenAITransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return isHTTPTransient(apiErr.StatusCode)
	}
	return true
}

var _ OpenAIService = (*openAIService)(nil)
