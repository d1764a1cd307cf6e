package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/hr-agent/internal/models"
	"alfredoptarigan/hr-agent/internal/services"
)

type ChatHandler struct {
	chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// HandleChat handles POST /chat. Agent failures come back as success=false
// with status 200.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req models.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message is required",
		})
	}

	return c.JSON(h.chatService.Chat(c.UserContext(), req))
}

// HandleListSessions handles GET /chat/sessions?job_id=
func (h *ChatHandler) HandleListSessions(c *fiber.Ctx) error {
	jobID, err := parseOptionalIDQuery(c, "job_id")
	if err != nil {
		return err
	}

	sessions, err := h.chatService.ListSessions(jobID)
	if err != nil {
		return err
	}
	return c.JSON(sessions)
}

// HandleHistory handles GET /chat/sessions/:session_id
func (h *ChatHandler) HandleHistory(c *fiber.Ctx) error {
	history, err := h.chatService.GetHistory(c.Params("session_id"))
	if err != nil {
		return err
	}
	return c.JSON(history)
}

// HandleClear handles POST /chat/sessions/:session_id/clear
func (h *ChatHandler) HandleClear(c *fiber.Ctx) error {
	return c.JSON(h.chatService.ClearSession(c.Params("session_id")))
}
