package repositories

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alfredoptarigan/hr-agent/internal/apperr"
	"alfredoptarigan/hr-agent/internal/models"
)

type EvaluationRepository interface {
	Upsert(eval *models.Evaluation) error
	FindByCandidateID(candidateID uint) (*models.Evaluation, error)
	FindByCandidateIDs(candidateIDs []uint) ([]models.Evaluation, error)
	FindByJob(jobID uint) ([]models.Evaluation, error)
}

type evaluationRepository struct {
	db *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

// Upsert writes the evaluation keyed by candidate_id. An existing row for the
// candidate is updated in place so a candidate never has two evaluations.
func (r *evaluationRepository) Upsert(eval *models.Evaluation) error {
	now := time.Now()
	if eval.CreatedAt.IsZero() {
		eval.CreatedAt = now
	}
	eval.UpdatedAt = now

	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "candidate_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"overall_score",
			"technical_score",
			"experience_score",
			"education_score",
			"strengths",
			"concerns",
			"recommendation",
			"ai_analysis",
			"updated_at",
		}),
	}).Create(eval).Error
	if err != nil {
		return fmt.Errorf("failed to upsert evaluation: %w", err)
	}

	return nil
}

func (r *evaluationRepository) FindByCandidateID(candidateID uint) (*models.Evaluation, error) {
	var eval models.Evaluation
	if err := r.db.Where("candidate_id = ?", candidateID).First(&eval).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("evaluation for candidate %d", candidateID)
		}
		return nil, fmt.Errorf("failed to find evaluation: %w", err)
	}
	return &eval, nil
}

func (r *evaluationRepository) FindByCandidateIDs(candidateIDs []uint) ([]models.Evaluation, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	var evals []models.Evaluation
	if err := r.db.Where("candidate_id IN ?", candidateIDs).Find(&evals).Error; err != nil {
		return nil, fmt.Errorf("failed to find evaluations: %w", err)
	}
	return evals, nil
}

// FindByJob returns every evaluation whose candidate belongs to the job.
func (r *evaluationRepository) FindByJob(jobID uint) ([]models.Evaluation, error) {
	var evals []models.Evaluation
	err := r.db.
		Select("evaluations.*").
		Joins("JOIN candidates ON candidates.id = evaluations.candidate_id").
		Where("candidates.job_id = ?", jobID).
		Order("evaluations.overall_score DESC").
		Find(&evals).Error

	if err != nil {
		return nil, fmt.Errorf("failed to find evaluations for job: %w", err)
	}

	return evals, nil
}
