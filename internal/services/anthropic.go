package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

const providerAnthropic = "anthropic"

// jsonOnlyInstruction stands in for a JSON response mode, which the Messages API lacks.
const jsonOnlyInstruction = "Reply with a single JSON object and nothing else."

type anthropicService struct {
	client *anthropic.Client
	model  string
	retry  RetryPolicy
	log    *zap.Logger
}

func NewAnthropicService(apiKey, model string, retry RetryPolicy, log *zap.Logger) (LLMProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("anthropic api key is required")
	}

	client := anthropic.NewClient(
		anthropicopt.WithAPIKey(apiKey),
		anthropicopt.WithMaxRetries(0),
	)

	return &anthropicService{
		client: &client,
		model:  model,
		retry:  retry,
		log:    log.With(zap.String("provider", providerAnthropic), zap.String("model", model)),
	}, nil
}

func (a *anthropicService) Name() string {
	return providerAnthropic
}

func (a *anthropicService) GenerateJSON(ctx context.Context, req CompletionRequest) (string, error) {
	maxTokens := int64(2048)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	system := jsonOnlyInstruction
	if req.System != "" {
		system = req.System + "\n\n" + jsonOnlyInstruction
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(float64(req.Temperature)),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}

	return withRetry(ctx, a.retry, a.log, providerAnthropic, "generate", isAnthropicTransient,
		func(ctx context.Context) (string, error) {
			rsp, err := a.client.Messages.New(ctx, params)
			if err != nil {
				return "", fmt.Errorf("anthropic API call failed: %w", err)
			}

			var b strings.Builder
			for _, content := range rsp.Content {
				if text, ok := content.AsAny().(anthropic.TextBlock); ok {
					b.WriteString(text.Text)
				}
			}

			result := strings.TrimSpace(b.String())
			if result == "" {
				return "", errors.New("no response from Anthropic")
			}

			return result, nil
		})
}

func isAnthropicTransient(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return isHTTPTransient(apiErr.StatusCode)
	}
	return true
}
