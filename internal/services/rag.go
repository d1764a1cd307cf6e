package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"alfredoptarigan/hr-agent/internal/models"
	"alfredoptarigan/hr-agent/internal/repositories"
)

const (
	// DefaultRetrievalTopK is how many vector matches the pipeline scores.
	DefaultRetrievalTopK = 15

	// MaxRankedEvaluations is the size of the returned shortlist.
	MaxRankedEvaluations = 5
)

// ReusePolicy decides whether the pipeline re-scores candidates that already
// have an evaluation.
type ReusePolicy int

const (
	// AlwaysRescore scores every retrieved candidate again.
	AlwaysRescore ReusePolicy = iota
	// ReuseExisting keeps stored evaluations and scores only new candidates.
	ReuseExisting
)

// CandidateOutcome is the result of scoring one retrieved candidate: either
// Evaluation or Err is set.
type CandidateOutcome struct {
	Candidate  *models.Candidate
	Evaluation *models.Evaluation
	Reused     bool
	Err        error
}

func (o CandidateOutcome) OK() bool {
	return o.Err == nil && o.Evaluation != nil
}

type RankedEvaluation struct {
	Candidate  *models.Candidate
	Evaluation *models.Evaluation
}

// BatchReport aggregates one pipeline run. An empty Ranked list with a
// non-zero FailedCount means every retrieved candidate failed scoring.
type BatchReport struct {
	JobID           uint
	TotalCandidates int64
	Retrieved       int
	Outcomes        []CandidateOutcome
	Ranked          []RankedEvaluation
}

func (r *BatchReport) FailedCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}

func (r *BatchReport) Failures() []models.CandidateFailure {
	var failures []models.CandidateFailure
	for _, o := range r.Outcomes {
		if o.OK() {
			continue
		}
		failures = append(failures, models.CandidateFailure{
			CandidateID: o.Candidate.ID,
			Reason:      o.Err.Error(),
		})
	}
	return failures
}

// Response renders the report for the HTTP layer.
func (r *BatchReport) Response() models.TopCandidatesResponse {
	top := make([]models.EvaluationResponse, 0, len(r.Ranked))
	for _, ranked := range r.Ranked {
		top = append(top, models.NewEvaluationResponse(ranked.Candidate, ranked.Evaluation))
	}

	return models.TopCandidatesResponse{
		JobID:           r.JobID,
		TotalCandidates: r.TotalCandidates,
		Top5:            top,
		FailedCount:     r.FailedCount(),
		Failures:        r.Failures(),
	}
}

type RAGService interface {
	Evaluate(ctx context.Context, jobID uint, topK int) (*BatchReport, error)
}

type ragService struct {
	jobRepo       repositories.JobRepository
	candidateRepo repositories.CandidateRepository
	embedder      EmbeddingProvider
	index         VectorIndex
	evaluator     EvaluatorService
	policy        ReusePolicy
	concurrency   int
	log           *zap.Logger
}

func NewRAGService(
	jobRepo repositories.JobRepository,
	candidateRepo repositories.CandidateRepository,
	embedder EmbeddingProvider,
	index VectorIndex,
	evaluator EvaluatorService,
	policy ReusePolicy,
	concurrency int,
	log *zap.Logger,
) RAGService {
	if concurrency < 1 {
		concurrency = 1
	}

	return &ragService{
		jobRepo:       jobRepo,
		candidateRepo: candidateRepo,
		embedder:      embedder,
		index:         index,
		evaluator:     evaluator,
		policy:        policy,
		concurrency:   concurrency,
		log:           log,
	}
}

// Evaluate retrieves the candidates closest to the job description, scores
// them and returns the best five. Only a missing job or a failed retrieval is
// an error; scoring failures are recorded per candidate in the report.
func (s *ragService) Evaluate(ctx context.Context, jobID uint, topK int) (*BatchReport, error) {
	job, err := s.jobRepo.FindByID(jobID)
	if err != nil {
		return nil, err
	}

	log := s.log.With(zap.Uint("job_id", jobID))

	total, err := s.candidateRepo.CountByJob(jobID)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{JobID: jobID, TotalCandidates: total}

	log.Info("🔍 Retrieving candidates", zap.Int("top_k", ClampTopK(topK)))
	candidates, err := s.retrieve(ctx, job, topK)
	if err != nil {
		return nil, err
	}
	report.Retrieved = len(candidates)

	if len(candidates) == 0 {
		log.Info("no candidates retrieved")
		report.Ranked = []RankedEvaluation{}
		return report, nil
	}

	report.Outcomes = s.scoreAll(ctx, job, candidates)
	report.Ranked = RankOutcomes(report.Outcomes, MaxRankedEvaluations)

	log.Info("✅ Evaluation batch completed",
		zap.Int("retrieved", report.Retrieved),
		zap.Int("failed", report.FailedCount()),
		zap.Int("ranked", len(report.Ranked)),
	)
	return report, nil
}

// retrieve resolves vector matches to candidates of this job, in match order.
// Matches pointing at other jobs or unknown candidates are dropped.
func (s *ragService) retrieve(ctx context.Context, job *models.Job, topK int) ([]*models.Candidate, error) {
	topK = ClampTopK(topK)
	if topK == 0 {
		return nil, nil
	}

	vector, err := s.embedder.Embed(ctx, job.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to embed job description: %w", err)
	}

	matches, err := s.index.Query(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector index: %w", err)
	}

	ids := make([]uint, 0, len(matches))
	seen := make(map[uint]bool, len(matches))
	for _, m := range matches {
		if m.CandidateID == 0 || seen[m.CandidateID] {
			continue
		}
		seen[m.CandidateID] = true
		ids = append(ids, m.CandidateID)
	}

	found, err := s.candidateRepo.FindByIDs(ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]*models.Candidate, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	candidates := make([]*models.Candidate, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok || c.JobID != job.ID {
			continue
		}
		candidates = append(candidates, c)
	}

	return candidates, nil
}

// scoreAll fans out with bounded concurrency. Every candidate gets an outcome;
// one failure never stops the others.
func (s *ragService) scoreAll(ctx context.Context, job *models.Job, candidates []*models.Candidate) []CandidateOutcome {
	outcomes := make([]CandidateOutcome, len(candidates))

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, candidate := range candidates {
		g.Go(func() error {
			outcomes[i] = s.scoreOne(ctx, job, candidate)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (s *ragService) scoreOne(ctx context.Context, job *models.Job, candidate *models.Candidate) CandidateOutcome {
	outcome := CandidateOutcome{Candidate: candidate}

	if s.policy == ReuseExisting {
		outcome.Evaluation, outcome.Reused, outcome.Err = s.evaluator.EnsureEvaluation(ctx, job, candidate)
	} else {
		outcome.Evaluation, outcome.Err = s.evaluator.EvaluateCandidate(ctx, job, candidate)
	}

	if outcome.Err != nil {
		s.log.Warn("⚠️ candidate evaluation failed",
			zap.Uint("candidate_id", candidate.ID),
			zap.Error(outcome.Err),
		)
	}
	return outcome
}

// RankOutcomes orders successes by overall score descending, candidate id
// ascending on ties, and keeps at most limit entries.
func RankOutcomes(outcomes []CandidateOutcome, limit int) []RankedEvaluation {
	ranked := make([]RankedEvaluation, 0, len(outcomes))
	for _, o := range outcomes {
		if !o.OK() {
			continue
		}
		ranked = append(ranked, RankedEvaluation{Candidate: o.Candidate, Evaluation: o.Evaluation})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Evaluation, ranked[j].Evaluation
		if a.OverallScore != b.OverallScore {
			return a.OverallScore > b.OverallScore
		}
		return ranked[i].Candidate.ID < ranked[j].Candidate.ID
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
