package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"alfredoptarigan/hr-agent/internal/apperr"
	"alfredoptarigan/hr-agent/internal/models"
)

const backendDescription = "Backend Engineer: Go, PostgreSQL, distributed systems"

type ragFixture struct {
	jobs       *fakeJobRepo
	candidates *fakeCandidateRepo
	evals      *fakeEvalRepo
	embedder   *fakeEmbedder
	index      VectorIndex
	llm        *fakeLLM
	evaluator  EvaluatorService
}

func newRAGFixture(t *testing.T) *ragFixture {
	t.Helper()

	f := &ragFixture{
		jobs: newFakeJobRepo(
			&models.Job{ID: 1, Title: "Backend Engineer", Description: backendDescription},
			&models.Job{ID: 2, Title: "Product Designer", Description: "Figma, user research"},
		),
		candidates: newFakeCandidateRepo(),
		embedder:   newFakeEmbedder(3),
		index:      NewMemoryIndex(3, zap.NewNop()),
		llm:        &fakeLLM{},
	}
	f.evals = newFakeEvalRepo(f.candidates)
	f.embedder.vectors[backendDescription] = []float32{1, 0, 0}
	f.evaluator = NewEvaluatorService(f.evals, NewScorer(f.llm, zap.NewNop()), zap.NewNop())
	return f
}

func (f *ragFixture) addCandidate(t *testing.T, id, jobID uint, name, resume string) *models.Candidate {
	t.Helper()

	c := &models.Candidate{ID: id, JobID: jobID, Name: strPtr(name), ResumeText: resume}
	f.candidates.candidates[id] = c

	vectorID, err := f.index.Upsert(context.Background(), id, []float32{1, 0, 0}, CandidateMetadata(c))
	require.NoError(t, err)
	c.VectorID = &vectorID
	return c
}

func (f *ragFixture) rag(policy ReusePolicy) RAGService {
	return NewRAGService(f.jobs, f.candidates, f.embedder, f.index, f.evaluator, policy, 4, zap.NewNop())
}

func rankedIDs(report *BatchReport) []uint {
	ids := make([]uint, 0, len(report.Ranked))
	for _, r := range report.Ranked {
		ids = append(ids, r.Candidate.ID)
	}
	return ids
}

func TestRAGEvaluateRanksCandidates(t *testing.T) {
	f := newRAGFixture(t)
	f.addCandidate(t, 1, 1, "Alice", "RESUME-A senior Go engineer")
	f.addCandidate(t, 2, 1, "Bob", "RESUME-B staff engineer")
	f.addCandidate(t, 3, 1, "Carol", "RESUME-C junior designer")
	f.llm.
		on("RESUME-A", scoreJSON(90, 90, 90)).
		on("RESUME-B", scoreJSON(100, 100, 100)).
		on("RESUME-C", scoreJSON(20, 20, 20))

	report, err := f.rag(AlwaysRescore).Evaluate(context.Background(), 1, DefaultRetrievalTopK)
	require.NoError(t, err)

	assert.Equal(t, int64(3), report.TotalCandidates)
	assert.Equal(t, []uint{2, 1, 3}, rankedIDs(report))
	assert.Equal(t, 0, report.FailedCount())

	resp := report.Response()
	require.Len(t, resp.Top5, 3)
	assert.Equal(t, models.StrongMatch, resp.Top5[0].Recommendation)
	assert.Equal(t, models.GoodMatch, resp.Top5[1].Recommendation)
	assert.Equal(t, models.WeakMatch, resp.Top5[2].Recommendation)
	assert.Equal(t, "Carol", resp.Top5[2].CandidateName)
	assert.Greater(t, resp.Top5[0].OverallScore, 65.0)
	assert.Greater(t, resp.Top5[1].OverallScore, 65.0)
	assert.Less(t, resp.Top5[2].OverallScore, 50.0)

	for _, e := range resp.Top5 {
		assert.InDelta(t, models.OverallScore(e.TechnicalScore, e.ExperienceScore, e.EducationScore), e.OverallScore, 0.01)
	}
}

func TestRAGEvaluateFiltersOtherJobs(t *testing.T) {
	f := newRAGFixture(t)
	f.addCandidate(t, 1, 1, "Alice", "RESUME-A")
	f.addCandidate(t, 2, 2, "Dan", "RESUME-D")
	f.llm.on("RESUME", scoreJSON(70, 70, 70))

	report, err := f.rag(AlwaysRescore).Evaluate(context.Background(), 1, DefaultRetrievalTopK)
	require.NoError(t, err)

	assert.Equal(t, []uint{1}, rankedIDs(report))
	assert.Equal(t, 1, f.llm.calls())
}

func TestRAGEvaluateIsolatesFailures(t *testing.T) {
	f := newRAGFixture(t)
	f.addCandidate(t, 1, 1, "Alice", "RESUME-A")
	f.addCandidate(t, 2, 1, "Bob", "RESUME-B")
	f.addCandidate(t, 3, 1, "Carol", "RESUME-C")
	f.llm.
		on("RESUME-A", scoreJSON(90, 90, 90)).
		on("RESUME-B", "the model rambled instead of answering").
		onErr("RESUME-C", &apperr.ProviderError{Provider: "fake", Op: "generate", Err: errors.New("boom")})

	report, err := f.rag(AlwaysRescore).Evaluate(context.Background(), 1, DefaultRetrievalTopK)
	require.NoError(t, err)

	assert.Equal(t, []uint{1}, rankedIDs(report))
	assert.Equal(t, 2, report.FailedCount())

	failed := map[uint]string{}
	for _, failure := range report.Failures() {
		failed[failure.CandidateID] = failure.Reason
	}
	assert.Contains(t, failed, uint(2))
	assert.Contains(t, failed, uint(3))
	assert.Equal(t, 1, f.evals.count())
}

func TestRAGEvaluateAllFailuresReturnsEmptyRanking(t *testing.T) {
	f := newRAGFixture(t)
	f.addCandidate(t, 1, 1, "Alice", "RESUME-A")
	f.addCandidate(t, 2, 1, "Bob", "RESUME-B")
	f.llm.on("RESUME", "not json")

	report, err := f.rag(AlwaysRescore).Evaluate(context.Background(), 1, DefaultRetrievalTopK)
	require.NoError(t, err)

	assert.Empty(t, report.Ranked)
	assert.Equal(t, 2, report.FailedCount())

	resp := report.Response()
	assert.NotNil(t, resp.Top5)
	assert.Empty(t, resp.Top5)
	assert.Equal(t, 2, resp.FailedCount)
}

func TestRAGEvaluateUnknownJob(t *testing.T) {
	f := newRAGFixture(t)

	_, err := f.rag(AlwaysRescore).Evaluate(context.Background(), 99, DefaultRetrievalTopK)
	assert.True(t, apperr.IsNotFound(err))
}

func TestRAGEvaluateZeroTopK(t *testing.T) {
	f := newRAGFixture(t)
	f.addCandidate(t, 1, 1, "Alice", "RESUME-A")

	report, err := f.rag(AlwaysRescore).Evaluate(context.Background(), 1, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Retrieved)
	assert.Empty(t, report.Ranked)
	assert.Equal(t, 0, f.llm.calls())
	assert.Empty(t, f.embedder.calls)
}

func TestRAGEvaluateReturnsAtMostFive(t *testing.T) {
	f := newRAGFixture(t)
	for i := uint(1); i <= 7; i++ {
		marker := fmt.Sprintf("RESUME-%d;", i)
		f.addCandidate(t, i, 1, fmt.Sprintf("Candidate %d", i), marker)
		score := float64(10 * i)
		f.llm.on(marker, scoreJSON(score, score, score))
	}

	report, err := f.rag(AlwaysRescore).Evaluate(context.Background(), 1, DefaultRetrievalTopK)
	require.NoError(t, err)

	assert.Equal(t, []uint{7, 6, 5, 4, 3}, rankedIDs(report))
	assert.Len(t, report.Outcomes, 7)
}

func TestRAGEvaluateUpdatesEvaluationsInPlace(t *testing.T) {
	f := newRAGFixture(t)
	f.addCandidate(t, 1, 1, "Alice", "RESUME-A")
	f.addCandidate(t, 2, 1, "Bob", "RESUME-B")
	f.llm.on("RESUME", scoreJSON(70, 70, 70))

	rag := f.rag(AlwaysRescore)
	for i := 0; i < 2; i++ {
		_, err := rag.Evaluate(context.Background(), 1, DefaultRetrievalTopK)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, f.evals.count())
	assert.Equal(t, 4, f.evals.upserts)
	assert.Equal(t, 4, f.llm.calls())
}

func TestRAGEvaluateReuseExisting(t *testing.T) {
	f := newRAGFixture(t)
	alice := f.addCandidate(t, 1, 1, "Alice", "RESUME-A")
	f.addCandidate(t, 2, 1, "Bob", "RESUME-B")
	f.llm.on("RESUME", scoreJSON(70, 70, 70))

	job, _ := f.jobs.FindByID(1)
	_, err := f.evaluator.EvaluateCandidate(context.Background(), job, alice)
	require.NoError(t, err)
	require.Equal(t, 1, f.llm.calls())

	report, err := f.rag(ReuseExisting).Evaluate(context.Background(), 1, DefaultRetrievalTopK)
	require.NoError(t, err)

	assert.Len(t, report.Ranked, 2)
	assert.Equal(t, 2, f.llm.calls())

	reused := 0
	for _, o := range report.Outcomes {
		if o.Reused {
			reused++
			assert.Equal(t, uint(1), o.Candidate.ID)
		}
	}
	assert.Equal(t, 1, reused)
}

func TestRankOutcomesBreaksTiesByCandidateID(t *testing.T) {
	outcome := func(id uint, overall float64) CandidateOutcome {
		return CandidateOutcome{
			Candidate:  &models.Candidate{ID: id},
			Evaluation: &models.Evaluation{CandidateID: id, OverallScore: overall},
		}
	}

	ranked := RankOutcomes([]CandidateOutcome{
		outcome(9, 70),
		outcome(5, 70),
		{Candidate: &models.Candidate{ID: 1}, Err: errors.New("failed")},
		outcome(2, 70),
		outcome(4, 90),
	}, MaxRankedEvaluations)

	ids := make([]uint, 0, len(ranked))
	for _, r := range ranked {
		ids = append(ids, r.Candidate.ID)
	}
	assert.Equal(t, []uint{4, 2, 5, 9}, ids)
}
