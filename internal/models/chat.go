package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleAgent MessageRole = "agent"
)

type ChatSession struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"type:text;uniqueIndex;not null" json:"session_id"`
	JobID     *uint     `gorm:"index" json:"job_id,omitempty"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relations
	Messages []ChatMessage `gorm:"foreignKey:SessionID;references:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// ChatMessage is append-only.
type ChatMessage struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	SessionID string         `gorm:"type:text;index;not null" json:"session_id"`
	Role      MessageRole    `gorm:"type:text;not null" json:"role"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Reasoning datatypes.JSON `gorm:"type:jsonb" json:"reasoning,omitempty"`
	ToolsUsed datatypes.JSON `gorm:"type:jsonb" json:"tools_used,omitempty"`
	CreatedAt time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

// ReasoningStep is one tool invocation observed during an agent turn.
type ReasoningStep struct {
	Tool   string         `json:"tool"`
	Input  map[string]any `json:"input"`
	Output string         `json:"output"`
}

func (m *ChatMessage) SetReasoning(steps []ReasoningStep) {
	if steps == nil {
		m.Reasoning = nil
		return
	}
	b, err := json.Marshal(steps)
	if err != nil {
		return
	}
	m.Reasoning = datatypes.JSON(b)
}

func (m *ChatMessage) ReasoningSteps() []ReasoningStep {
	if len(m.Reasoning) == 0 {
		return nil
	}
	var steps []ReasoningStep
	if err := json.Unmarshal(m.Reasoning, &steps); err != nil {
		return nil
	}
	return steps
}

func (m *ChatMessage) SetToolsUsed(tools []string) {
	if tools == nil {
		m.ToolsUsed = nil
		return
	}
	m.ToolsUsed = encodeStrings(tools)
}

func (m *ChatMessage) ToolNames() []string {
	if len(m.ToolsUsed) == 0 {
		return nil
	}
	return decodeStrings(m.ToolsUsed)
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
