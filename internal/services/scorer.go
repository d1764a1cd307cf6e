package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"alfredoptarigan/hr-agent/internal/apperr"
	"alfredoptarigan/hr-agent/internal/models"
)

const scoringTemperature = 0.3

// ScoreResult is a validated scorer reply. Sub-scores are clamped to [0,100],
// Overall is always recomputed from them and Recommendation is its band.
type ScoreResult struct {
	TechnicalScore  float64
	ExperienceScore float64
	EducationScore  float64
	OverallScore    float64
	Strengths       []string
	Concerns        []string
	Recommendation  models.Recommendation
	// ModelRecommendation is the label the model chose, kept for the analysis only.
	ModelRecommendation models.Recommendation
	Summary             string
	// Analysis is the raw JSON object returned by the model.
	Analysis string
}

// Apply copies the result onto an evaluation row.
func (r *ScoreResult) Apply(eval *models.Evaluation) {
	eval.TechnicalScore = r.TechnicalScore
	eval.ExperienceScore = r.ExperienceScore
	eval.EducationScore = r.EducationScore
	eval.OverallScore = r.OverallScore
	eval.Recommendation = r.Recommendation
	eval.AIAnalysis = r.Analysis
	eval.SetStrengths(r.Strengths)
	eval.SetConcerns(r.Concerns)
}

type Scorer interface {
	Score(ctx context.Context, jobDescription, resumeText string) (*ScoreResult, error)
}

type scorer struct {
	llm           LLMProvider
	promptBuilder *PromptBuilder
	log           *zap.Logger
}

func NewScorer(llm LLMProvider, log *zap.Logger) Scorer {
	return &scorer{
		llm:           llm,
		promptBuilder: NewPromptBuilder(),
		log:           log,
	}
}

// Score issues one structured-output call. Provider failures come back as
// *apperr.ProviderError, unreadable replies as *apperr.EvaluationParseError.
func (s *scorer) Score(ctx context.Context, jobDescription, resumeText string) (*ScoreResult, error) {
	prompt := s.promptBuilder.BuildScoringPrompt(jobDescription, resumeText)
	s.log.Debug("📝 scoring prompt built", zap.Int("length", len(prompt)))

	response, err := s.llm.GenerateJSON(ctx, CompletionRequest{
		System:      scoringSystemPrompt,
		Prompt:      prompt,
		Temperature: scoringTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate evaluation: %w", err)
	}

	result, err := ParseScoreResponse(response)
	if err != nil {
		s.log.Warn("❌ failed to parse evaluation response",
			zap.String("response", TruncateForLog(response, 300)),
			zap.Error(err),
		)
		return nil, err
	}

	return result, nil
}

// ParseScoreResponse validates a scorer reply. The three sub-scores are
// required; lists default to empty and a missing label to Moderate Match.
func ParseScoreResponse(response string) (*ScoreResult, error) {
	raw := extractJSON(response)

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, &apperr.EvaluationParseError{Raw: response, Err: err}
	}
	if payload == nil {
		return nil, &apperr.EvaluationParseError{Raw: response, Err: errors.New("response is not a JSON object")}
	}

	scores := make(map[string]float64, 3)
	for _, key := range []string{"technical_score", "experience_score", "education_score"} {
		v, ok := coerceFloat(payload[key])
		if !ok {
			return nil, &apperr.EvaluationParseError{Raw: response, Err: fmt.Errorf("missing or non-numeric %s", key)}
		}
		scores[key] = models.ClampScore(v)
	}

	result := &ScoreResult{
		TechnicalScore:      scores["technical_score"],
		ExperienceScore:     scores["experience_score"],
		EducationScore:      scores["education_score"],
		Strengths:           coerceStrings(payload["strengths"]),
		Concerns:            coerceStrings(payload["concerns"]),
		ModelRecommendation: models.ModerateMatch,
		Summary:             coerceString(payload["summary"]),
		Analysis:            raw,
	}

	if label, ok := models.ParseRecommendation(coerceString(payload["recommendation"])); ok {
		result.ModelRecommendation = label
	}

	result.OverallScore = models.OverallScore(result.TechnicalScore, result.ExperienceScore, result.EducationScore)
	result.Recommendation = models.RecommendationFor(result.OverallScore)

	return result, nil
}

// extractJSON tries to extract JSON from text that might contain markdown or other formatting
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return text[start : end+1]
	}

	return strings.TrimSpace(text)
}

func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n), "%")), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

func coerceStrings(v any) []string {
	items := []string{}
	switch list := v.(type) {
	case []any:
		for _, item := range list {
			if s := coerceString(item); s != "" {
				items = append(items, s)
			}
		}
	case string:
		if s := strings.TrimSpace(list); s != "" {
			items = append(items, s)
		}
	}
	return items
}
