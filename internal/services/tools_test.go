package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"alfredoptarigan/hr-agent/internal/apperr"
	"alfredoptarigan/hr-agent/internal/models"
)

func (f *ragFixture) tools() ToolInvoker {
	return NewToolRegistry(f.jobs, f.candidates, f.evals, f.embedder, f.index, f.evaluator, zap.NewNop())
}

func (f *ragFixture) storeEvaluation(t *testing.T, candidateID uint, overall float64, strengths ...string) {
	t.Helper()

	eval := &models.Evaluation{
		CandidateID:    candidateID,
		OverallScore:   overall,
		Recommendation: models.RecommendationFor(overall),
	}
	eval.SetStrengths(strengths)
	require.NoError(t, f.evals.Upsert(eval))
}

func invokeTool(t *testing.T, tools ToolInvoker, name ToolName, input map[string]any, out any) {
	t.Helper()

	raw, err := tools.Invoke(context.Background(), string(name), input)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(raw), out))
}

func TestValidateArgs(t *testing.T) {
	spec := ToolSpec{
		Name: "probe",
		Params: []ParamSpec{
			{Name: "job_id", Type: ParamInteger, Required: true},
			{Name: "top_k", Type: ParamInteger, Default: 15},
			{Name: "min_score", Type: ParamNumber},
			{Name: "skills", Type: ParamStringList},
			{Name: "ids", Type: ParamIntegerList},
		},
	}

	t.Run("coerces and fills defaults", func(t *testing.T) {
		args, err := ValidateArgs(spec, map[string]any{
			"job_id":    "#3",
			"min_score": "72.5",
			"skills":    "Go, PostgreSQL ,",
			"ids":       []any{float64(4), "5"},
			"extra":     true,
		})
		require.NoError(t, err)

		jobID, err := args.ID("job_id")
		require.NoError(t, err)
		assert.Equal(t, uint(3), jobID)

		topK, _ := args.Int("top_k")
		assert.Equal(t, 15, topK)

		minScore, ok := args.Float("min_score")
		assert.True(t, ok)
		assert.Equal(t, 72.5, minScore)

		assert.Equal(t, []string{"Go", "PostgreSQL"}, args.Strings("skills"))
		assert.Equal(t, []int{4, 5}, args.Ints("ids"))
		assert.NotContains(t, args, "extra")
	})

	t.Run("single id becomes a list", func(t *testing.T) {
		args, err := ValidateArgs(spec, map[string]any{"job_id": float64(1), "ids": float64(9)})
		require.NoError(t, err)
		assert.Equal(t, []int{9}, args.Ints("ids"))
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := ValidateArgs(spec, map[string]any{"top_k": 5})
		assert.True(t, apperr.IsValidation(err))
		assert.Contains(t, err.Error(), "job_id")
	})

	t.Run("fractional integer", func(t *testing.T) {
		_, err := ValidateArgs(spec, map[string]any{"job_id": 2.5})
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("non-positive id", func(t *testing.T) {
		args, err := ValidateArgs(spec, map[string]any{"job_id": 0})
		require.NoError(t, err)
		_, err = args.ID("job_id")
		assert.True(t, apperr.IsValidation(err))
	})
}

func TestToolRegistryUnknownTool(t *testing.T) {
	f := newRAGFixture(t)
	tools := f.tools()

	_, ok := tools.Spec("send_offer_letter")
	assert.False(t, ok)

	_, err := tools.Invoke(context.Background(), "send_offer_letter", map[string]any{})
	assert.True(t, apperr.IsValidation(err))

	spec, ok := tools.Spec(" Search_Candidates ")
	require.True(t, ok)
	assert.Equal(t, ToolSearchCandidates, spec.Name)
	assert.Len(t, tools.Specs(), 5)
}

func TestSearchCandidatesTool(t *testing.T) {
	f := newRAGFixture(t)
	f.addCandidate(t, 1, 1, "Alice", "RESUME-A")
	f.addCandidate(t, 2, 2, "Dan", "RESUME-D")

	carol := &models.Candidate{ID: 3, JobID: 1, Name: strPtr("Carol"), Email: strPtr("carol@example.com"), ResumeText: "RESUME-C"}
	f.candidates.candidates[3] = carol
	_, err := f.index.Upsert(context.Background(), 3, []float32{1, 1, 0}, CandidateMetadata(carol))
	require.NoError(t, err)

	var result searchResult
	invokeTool(t, f.tools(), ToolSearchCandidates, map[string]any{"job_id": 1}, &result)

	assert.Equal(t, "Backend Engineer", result.JobTitle)
	require.Equal(t, 2, result.Count)
	assert.Equal(t, uint(1), result.Candidates[0].CandidateID)
	assert.Equal(t, 1.0, result.Candidates[0].Score)
	assert.Equal(t, uint(3), result.Candidates[1].CandidateID)
	assert.Equal(t, 0.707, result.Candidates[1].Score)
	assert.Equal(t, "carol@example.com", *result.Candidates[1].Email)
	assert.Equal(t, []string{backendDescription}, f.embedder.calls)
}

func TestSearchCandidatesToolZeroTopK(t *testing.T) {
	f := newRAGFixture(t)
	f.addCandidate(t, 1, 1, "Alice", "RESUME-A")

	var result searchResult
	invokeTool(t, f.tools(), ToolSearchCandidates, map[string]any{"job_id": 1, "top_k": 0, "query": "kubernetes"}, &result)

	assert.Equal(t, 0, result.Count)
	assert.NotNil(t, result.Candidates)
	assert.Empty(t, f.embedder.calls)
}

func TestGetJobDetailsTool(t *testing.T) {
	f := newRAGFixture(t)
	f.addCandidate(t, 1, 1, "Alice", "RESUME-A")
	f.addCandidate(t, 2, 1, "Bob", "RESUME-B")

	var details map[string]any
	invokeTool(t, f.tools(), ToolGetJobDetails, map[string]any{"job_id": "1"}, &details)

	assert.Equal(t, "Backend Engineer", details["title"])
	assert.Equal(t, backendDescription, details["description"])
	assert.Equal(t, float64(2), details["candidate_count"])

	_, err := f.tools().Invoke(context.Background(), string(ToolGetJobDetails), map[string]any{"job_id": 42})
	assert.True(t, apperr.IsNotFound(err))
}

func TestEvaluateCandidateTool(t *testing.T) {
	f := newRAGFixture(t)
	f.addCandidate(t, 1, 1, "Alice", "RESUME-A")
	f.addCandidate(t, 2, 2, "Dan", "RESUME-D")
	f.llm.on("RESUME", scoreJSON(100, 100, 100))
	tools := f.tools()

	var result struct {
		candidateEvaluation
		JobID    uint   `json:"job_id"`
		JobTitle string `json:"job_title"`
	}
	invokeTool(t, tools, ToolEvaluate, map[string]any{"job_id": 1, "candidate_id": 1}, &result)

	assert.Equal(t, "Backend Engineer", result.JobTitle)
	assert.Equal(t, "Alice", result.CandidateName)
	assert.InDelta(t, 85.0, result.OverallScore, 0.01)
	assert.Equal(t, models.StrongMatch, result.Recommendation)
	assert.Equal(t, 1, f.evals.count())

	_, err := tools.Invoke(context.Background(), string(ToolEvaluate), map[string]any{"job_id": 1, "candidate_id": 2})
	assert.True(t, apperr.IsValidation(err))

	_, err = tools.Invoke(context.Background(), string(ToolEvaluate), map[string]any{"job_id": 1, "candidate_id": 77})
	assert.True(t, apperr.IsNotFound(err))

	_, err = tools.Invoke(context.Background(), string(ToolEvaluate), map[string]any{"job_id": 9, "candidate_id": 1})
	assert.True(t, apperr.IsNotFound(err))
}

func TestCompareCandidatesTool(t *testing.T) {
	f := newRAGFixture(t)
	f.addCandidate(t, 1, 1, "Alice", "RESUME-A")
	f.addCandidate(t, 2, 1, "Bob", "RESUME-B")
	f.addCandidate(t, 3, 2, "Dan", "RESUME-D")
	f.storeEvaluation(t, 1, 90)
	f.llm.on("RESUME", scoreJSON(70, 70, 70))

	var result compareResult
	invokeTool(t, f.tools(), ToolCompare, map[string]any{
		"job_id":        1,
		"candidate_ids": []any{2, 1, 1, 3, 99},
	}, &result)

	require.Len(t, result.Comparisons, 2)
	assert.Equal(t, uint(1), result.Comparisons[0].CandidateID)
	assert.Equal(t, uint(2), result.Comparisons[1].CandidateID)
	assert.Equal(t, "Compared 2 candidates. Top ranked: Alice (Score: 90.0)", result.Summary)

	failed := []uint{}
	for _, failure := range result.Failures {
		failed = append(failed, failure.CandidateID)
	}
	assert.ElementsMatch(t, []uint{3, 99}, failed)

	// Alice already had an evaluation; only Bob was scored.
	assert.Equal(t, 1, f.llm.calls())
}

func TestCompareCandidatesToolBounds(t *testing.T) {
	f := newRAGFixture(t)
	ids := []any{}
	for i := uint(1); i <= 12; i++ {
		f.addCandidate(t, i, 1, fmt.Sprintf("Candidate %d", i), fmt.Sprintf("RESUME-%d", i))
		ids = append(ids, int(i))
	}
	f.llm.on("RESUME", scoreJSON(70, 70, 70))
	tools := f.tools()

	_, err := tools.Invoke(context.Background(), string(ToolCompare), map[string]any{"job_id": 1, "candidate_ids": []any{1}})
	assert.True(t, apperr.IsValidation(err))

	var result compareResult
	invokeTool(t, tools, ToolCompare, map[string]any{"job_id": 1, "candidate_ids": ids}, &result)

	assert.Len(t, result.Comparisons, 10)
	assert.Equal(t, 10, f.llm.calls())
	assert.Equal(t, uint(1), result.Comparisons[0].CandidateID)
}

func TestFilterCandidatesTool(t *testing.T) {
	f := newRAGFixture(t)
	f.addCandidate(t, 1, 1, "Alice", "Backend engineer with 7 years of Go and Kubernetes")
	f.addCandidate(t, 2, 1, "Bob", "Data engineer, 3 yrs Python")
	f.addCandidate(t, 3, 1, "Carol", "Not evaluated yet, 12 years")
	f.storeEvaluation(t, 1, 85, "Go", "Kubernetes")
	f.storeEvaluation(t, 2, 60, "Python")
	tools := f.tools()

	type filterResult struct {
		Candidates  []filteredCandidate `json:"candidates"`
		Count       int                 `json:"count"`
		Unevaluated int                 `json:"unevaluated"`
	}
	filter := func(input map[string]any) filterResult {
		input["job_id"] = 1
		var result filterResult
		invokeTool(t, tools, ToolFilter, input, &result)
		return result
	}
	idsOf := func(r filterResult) []uint {
		ids := []uint{}
		for _, c := range r.Candidates {
			ids = append(ids, c.CandidateID)
		}
		return ids
	}

	all := filter(map[string]any{})
	assert.Equal(t, []uint{1, 2}, idsOf(all))
	assert.Equal(t, 1, all.Unevaluated)
	require.NotNil(t, all.Candidates[0].ExperienceYears)
	assert.Equal(t, 7, *all.Candidates[0].ExperienceYears)

	assert.Equal(t, []uint{1}, idsOf(filter(map[string]any{"min_score": 70})))
	assert.Equal(t, []uint{2}, idsOf(filter(map[string]any{"skills": []any{"PYTHON"}})))
	assert.Empty(t, idsOf(filter(map[string]any{"skills": []any{"kubernetes", "python"}})))
	assert.Equal(t, []uint{1}, idsOf(filter(map[string]any{"min_experience": 5})))
}

func TestEstimateExperienceYears(t *testing.T) {
	years, ok := EstimateExperienceYears("2 years at Acme, then 5+ years at Initech and 3 yrs freelancing")
	assert.True(t, ok)
	assert.Equal(t, 5, years)

	_, ok = EstimateExperienceYears("Recent graduate")
	assert.False(t, ok)
}
