package repositories

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"alfredoptarigan/hr-agent/internal/apperr"
	"alfredoptarigan/hr-agent/internal/models"
)

type ChatRepository interface {
	FindSession(sessionID string) (*models.ChatSession, error)
	CreateSession(session *models.ChatSession) error
	TouchSession(sessionID string, at time.Time) error
	ListSessions(jobID *uint) ([]models.SessionSummary, error)
	AddMessage(message *models.ChatMessage) error
	ListMessages(sessionID string) ([]models.ChatMessage, error)
}

type chatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) FindSession(sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := r.db.Where("session_id = ?", sessionID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("session %s", sessionID)
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &session, nil
}

func (r *chatRepository) CreateSession(session *models.ChatSession) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *chatRepository) TouchSession(sessionID string, at time.Time) error {
	result := r.db.Model(&models.ChatSession{}).
		Where("session_id = ?", sessionID).
		Update("updated_at", at)

	if result.Error != nil {
		return fmt.Errorf("failed to update session: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return apperr.NotFound("session %s", sessionID)
	}

	return nil
}

// ListSessions returns sessions most recently active first, with their message counts.
func (r *chatRepository) ListSessions(jobID *uint) ([]models.SessionSummary, error) {
	query := r.db.Table("chat_sessions AS s").
		Select("s.session_id, s.job_id, s.created_at, COUNT(m.id) AS message_count").
		Joins("LEFT JOIN chat_messages AS m ON m.session_id = s.session_id")

	if jobID != nil {
		query = query.Where("s.job_id = ?", *jobID)
	}

	var summaries []models.SessionSummary
	err := query.
		Group("s.id").
		Order("s.updated_at DESC").
		Scan(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return summaries, nil
}

// AddMessage appends to the session log. Messages are never updated afterwards.
func (r *chatRepository) AddMessage(message *models.ChatMessage) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("failed to add message: %w", err)
	}
	return nil
}

func (r *chatRepository) ListMessages(sessionID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}
