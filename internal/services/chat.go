package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"alfredoptarigan/hr-agent/internal/apperr"
	"alfredoptarigan/hr-agent/internal/models"
	"alfredoptarigan/hr-agent/internal/repositories"
)

type ChatService interface {
	// Chat runs one agent turn. Failures are reported in the response, never returned.
	Chat(ctx context.Context, req models.ChatRequest) models.ChatResponse
	// ClearSession empties the conversation memory; persisted messages are kept.
	ClearSession(sessionID string) models.ClearSessionResponse
	ListSessions(jobID *uint) ([]models.SessionSummary, error)
	GetHistory(sessionID string) (*models.HistoryResponse, error)
}

type chatService struct {
	chatRepo     repositories.ChatRepository
	sessions     *SessionManager
	orchestrator *Orchestrator
	now          func() time.Time
	log          *zap.Logger
}

func NewChatService(chatRepo repositories.ChatRepository, sessions *SessionManager, orchestrator *Orchestrator, log *zap.Logger) ChatService {
	return &chatService{
		chatRepo:     chatRepo,
		sessions:     sessions,
		orchestrator: orchestrator,
		now:          time.Now,
		log:          log,
	}
}

// JobContextMessage prefixes message with the job the session is about.
func JobContextMessage(jobID *uint, message string) string {
	if jobID == nil {
		return message
	}
	return fmt.Sprintf("[Job ID: %d] %s", *jobID, message)
}

func (s *chatService) Chat(ctx context.Context, req models.ChatRequest) models.ChatResponse {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	log := s.log.With(zap.String("session_id", sessionID))

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return failedChat(sessionID, apperr.Validation("message is required"))
	}

	var turn TurnResult
	err := s.sessions.WithSession(ctx, sessionID, func(session *Session) error {
		if err := s.ensureStoredSession(sessionID, req.JobID); err != nil {
			return err
		}

		// The job is bound when the session starts; later job ids are ignored.
		if session.JobID == nil && req.JobID != nil {
			jobID := *req.JobID
			session.JobID = &jobID
		}

		if err := s.chatRepo.AddMessage(&models.ChatMessage{
			SessionID: sessionID,
			Role:      models.RoleUser,
			Content:   message,
		}); err != nil {
			return err
		}

		input := JobContextMessage(session.JobID, message)
		log.Info("💬 Agent turn started", zap.Int("history", len(session.Transcript)))

		turn = s.orchestrator.Run(ctx, session.Transcript, input)

		if turn.Success || errors.Is(turn.Err, apperr.ErrIterationLimit) {
			session.Transcript = session.Transcript.
				Append(models.RoleUser, input).
				Append(models.RoleAgent, turn.Response)
		}

		reply := &models.ChatMessage{
			SessionID: sessionID,
			Role:      models.RoleAgent,
			Content:   turn.Response,
		}
		reply.SetReasoning(nonNilSteps(turn.Trace))
		reply.SetToolsUsed(nonNilStrings(turn.ToolsUsed))
		if err := s.chatRepo.AddMessage(reply); err != nil {
			return err
		}

		if err := s.chatRepo.TouchSession(sessionID, s.now()); err != nil {
			log.Warn("⚠️ failed to update session timestamp", zap.Error(err))
		}
		return nil
	})
	if err != nil {
		log.Error("❌ chat turn failed", zap.Error(err))
		resp := failedChat(sessionID, err)
		if turn.Response != "" {
			resp.Response = turn.Response
			resp.Reasoning = nonNilSteps(turn.Trace)
			resp.ToolsUsed = nonNilStrings(turn.ToolsUsed)
		}
		return resp
	}

	resp := models.ChatResponse{
		Response:  turn.Response,
		Reasoning: nonNilSteps(turn.Trace),
		ToolsUsed: nonNilStrings(turn.ToolsUsed),
		Success:   turn.Success,
		SessionID: sessionID,
	}
	if turn.Err != nil {
		msg := turn.Err.Error()
		resp.Error = &msg
	}
	return resp
}

func (s *chatService) ensureStoredSession(sessionID string, jobID *uint) error {
	_, err := s.chatRepo.FindSession(sessionID)
	if err == nil {
		return nil
	}
	if !apperr.IsNotFound(err) {
		return err
	}

	return s.chatRepo.CreateSession(&models.ChatSession{
		SessionID: sessionID,
		JobID:     jobID,
	})
}

func (s *chatService) ClearSession(sessionID string) models.ClearSessionResponse {
	if s.sessions.Clear(sessionID) {
		s.log.Info("🧹 Session memory cleared", zap.String("session_id", sessionID))
	}
	return models.ClearSessionResponse{Status: "cleared", SessionID: sessionID}
}

func (s *chatService) ListSessions(jobID *uint) ([]models.SessionSummary, error) {
	sessions, err := s.chatRepo.ListSessions(jobID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []models.SessionSummary{}
	}
	return sessions, nil
}

func (s *chatService) GetHistory(sessionID string) (*models.HistoryResponse, error) {
	if _, err := s.chatRepo.FindSession(sessionID); err != nil {
		return nil, err
	}

	messages, err := s.chatRepo.ListMessages(sessionID)
	if err != nil {
		return nil, err
	}

	history := &models.HistoryResponse{
		SessionID: sessionID,
		Messages:  make([]models.HistoryMessage, 0, len(messages)),
	}
	for i := range messages {
		history.Messages = append(history.Messages, models.NewHistoryMessage(&messages[i]))
	}
	return history, nil
}

func failedChat(sessionID string, err error) models.ChatResponse {
	msg := err.Error()
	return models.ChatResponse{
		Response:  "I encountered an error: " + msg,
		Reasoning: []models.ReasoningStep{},
		ToolsUsed: []string{},
		Success:   false,
		SessionID: sessionID,
		Error:     &msg,
	}
}

func nonNilSteps(steps []models.ReasoningStep) []models.ReasoningStep {
	if steps == nil {
		return []models.ReasoningStep{}
	}
	return steps
}

func nonNilStrings(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
