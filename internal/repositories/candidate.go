package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"alfredoptarigan/hr-agent/internal/apperr"
	"alfredoptarigan/hr-agent/internal/models"
)

type CandidateRepository interface {
	Create(candidate *models.Candidate) error
	FindByID(id uint) (*models.Candidate, error)
	FindByIDs(ids []uint) ([]models.Candidate, error)
	FindByJob(jobID uint) ([]models.Candidate, error)
	CountByJob(jobID uint) (int64, error)
	FindUnindexed(limit int) ([]models.Candidate, error)
	UpdateVectorID(id uint, vectorID string) error
	Delete(id uint) error
}

type candidateRepository struct {
	db *gorm.DB
}

func NewCandidateRepository(db *gorm.DB) CandidateRepository {
	return &candidateRepository{db: db}
}

func (r *candidateRepository) Create(candidate *models.Candidate) error {
	if err := r.db.Create(candidate).Error; err != nil {
		return fmt.Errorf("failed to create candidate: %w", err)
	}
	return nil
}

func (r *candidateRepository) FindByID(id uint) (*models.Candidate, error) {
	var candidate models.Candidate
	if err := r.db.Where("id = ?", id).First(&candidate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("candidate %d", id)
		}
		return nil, fmt.Errorf("failed to find candidate: %w", err)
	}
	return &candidate, nil
}

func (r *candidateRepository) FindByIDs(ids []uint) ([]models.Candidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var candidates []models.Candidate
	if err := r.db.Where("id IN ?", ids).Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to find candidates: %w", err)
	}
	return candidates, nil
}

func (r *candidateRepository) FindByJob(jobID uint) ([]models.Candidate, error) {
	var candidates []models.Candidate
	err := r.db.
		Where("job_id = ?", jobID).
		Order("id ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find candidates for job: %w", err)
	}
	return candidates, nil
}

func (r *candidateRepository) CountByJob(jobID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.Candidate{}).Where("job_id = ?", jobID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count candidates: %w", err)
	}
	return count, nil
}

// FindUnindexed returns candidates that have resume text but no vector entry yet.
func (r *candidateRepository) FindUnindexed(limit int) ([]models.Candidate, error) {
	var candidates []models.Candidate
	err := r.db.
		Where("vector_id IS NULL AND resume_text <> ''").
		Order("created_at ASC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find unindexed candidates: %w", err)
	}
	return candidates, nil
}

func (r *candidateRepository) UpdateVectorID(id uint, vectorID string) error {
	result := r.db.Model(&models.Candidate{}).
		Where("id = ?", id).
		Update("vector_id", vectorID)

	if result.Error != nil {
		return fmt.Errorf("failed to update vector id: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return apperr.NotFound("candidate %d", id)
	}

	return nil
}

func (r *candidateRepository) Delete(id uint) error {
	result := r.db.Delete(&models.Candidate{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete candidate: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("candidate %d", id)
	}
	return nil
}
