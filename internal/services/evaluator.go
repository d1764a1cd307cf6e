package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"alfredoptarigan/hr-agent/internal/apperr"
	"alfredoptarigan/hr-agent/internal/models"
	"alfredoptarigan/hr-agent/internal/repositories"
)

// EvaluatorService scores one candidate against a job and keeps the single
// evaluation row of that candidate current.
type EvaluatorService interface {
	// EvaluateCandidate always re-scores and updates the stored evaluation in place.
	EvaluateCandidate(ctx context.Context, job *models.Job, candidate *models.Candidate) (*models.Evaluation, error)
	// EnsureEvaluation returns the stored evaluation when there is one, scoring
	// only candidates never evaluated. The bool reports a reused evaluation.
	EnsureEvaluation(ctx context.Context, job *models.Job, candidate *models.Candidate) (*models.Evaluation, bool, error)
}

type evaluatorService struct {
	evalRepo repositories.EvaluationRepository
	scorer   Scorer
	log      *zap.Logger
}

func NewEvaluatorService(evalRepo repositories.EvaluationRepository, scorer Scorer, log *zap.Logger) EvaluatorService {
	return &evaluatorService{
		evalRepo: evalRepo,
		scorer:   scorer,
		log:      log,
	}
}

func (e *evaluatorService) EvaluateCandidate(ctx context.Context, job *models.Job, candidate *models.Candidate) (*models.Evaluation, error) {
	log := e.log.With(zap.Uint("job_id", job.ID), zap.Uint("candidate_id", candidate.ID))
	log.Info("🤖 Evaluating candidate with LLM")

	result, err := e.scorer.Score(ctx, job.Description, candidate.ResumeText)
	if err != nil {
		return nil, fmt.Errorf("failed to score candidate %d: %w", candidate.ID, err)
	}

	eval := &models.Evaluation{CandidateID: candidate.ID}
	result.Apply(eval)

	if err := e.evalRepo.Upsert(eval); err != nil {
		return nil, fmt.Errorf("failed to save evaluation: %w", err)
	}

	log.Info("✅ Evaluation saved",
		zap.Float64("overall_score", eval.OverallScore),
		zap.String("recommendation", string(eval.Recommendation)),
	)
	return eval, nil
}

func (e *evaluatorService) EnsureEvaluation(ctx context.Context, job *models.Job, candidate *models.Candidate) (*models.Evaluation, bool, error) {
	existing, err := e.evalRepo.FindByCandidateID(candidate.ID)
	if err == nil {
		return existing, true, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, false, err
	}

	eval, err := e.EvaluateCandidate(ctx, job, candidate)
	if err != nil {
		return nil, false, err
	}
	return eval, false, nil
}
