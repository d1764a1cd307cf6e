package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const providerGemini = "gemini"

type GeminiService interface {
	LLMProvider
	EmbeddingProvider
}

type geminiService struct {
	client     *genai.Client
	modelName  string
	embedModel string
	dimension  int
	retry      RetryPolicy
	log        *zap.Logger
}

func NewGeminiService(apiKey, model, embedModel string, dimension int, retry RetryPolicy, log *zap.Logger) (GeminiService, error) {
	ctx := context.Background()

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiService{
		client:     client,
		modelName:  model,
		embedModel: embedModel,
		dimension:  dimension,
		retry:      retry,
		log:        log.With(zap.String("provider", providerGemini), zap.String("model", model)),
	}, nil
}

func (g *geminiService) Name() string {
	return providerGemini
}

func (g *geminiService) Dimension() int {
	return g.dimension
}

// Embed implements EmbeddingProvider.
func (g *geminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	text = TruncateHead(text, MaxEmbeddingChars)

	dim := int32(g.dimension)
	config := &genai.EmbedContentConfig{OutputDimensionality: &dim}

	return withRetry(ctx, g.retry, g.log, providerGemini, "embed", isGeminiTransient,
		func(ctx context.Context) ([]float32, error) {
			result, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), config)
			if err != nil {
				return nil, fmt.Errorf("failed to generate embedding: %w", err)
			}

			if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
				return nil, errors.New("empty embedding result")
			}

			return result.Embeddings[0].Values, nil
		})
}

// GenerateJSON implements LLMProvider.
func (g *geminiService) GenerateJSON(ctx context.Context, req CompletionRequest) (string, error) {
	temperature := req.Temperature
	maxTokens := int32(4096)
	if req.MaxTokens > 0 {
		maxTokens = int32(req.MaxTokens)
	}

	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  maxTokens,
		ResponseMIMEType: "application/json",
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	return withRetry(ctx, g.retry, g.log, providerGemini, "generate", isGeminiTransient,
		func(ctx context.Context) (string, error) {
			resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(req.Prompt), config)
			if err != nil {
				return "", fmt.Errorf("failed to generate text: %w", err)
			}

			if resp == nil {
				return "", errors.New("no response generated (nil response)")
			}

			text := strings.TrimSpace(resp.Text())
			if text == "" {
				return "", errors.New("no text content in response")
			}

			g.log.Debug("📊 Gemini response received", zap.String("preview", TruncateForLog(text, 200)))
			return text, nil
		})
}

func isGeminiTransient(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return isHTTPTransient(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return isHTTPTransient(apiErrPtr.Code)
	}
	// Transport failures carry no status code.
	return true
}
