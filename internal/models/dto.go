package models

import "time"

type CreateJobRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
}

type JobResponse struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type CandidateResponse struct {
	ID        uint      `json:"id"`
	JobID     uint      `json:"job_id"`
	Name      *string   `json:"name"`
	Email     *string   `json:"email"`
	Indexed   bool      `json:"indexed"`
	CreatedAt time.Time `json:"created_at"`
}

type UploadResponse struct {
	Uploaded     int      `json:"uploaded"`
	JobID        uint     `json:"job_id"`
	CandidateIDs []uint   `json:"candidate_ids"`
	Skipped      []string `json:"skipped,omitempty"`
}

type EvaluationResponse struct {
	CandidateID     uint           `json:"candidate_id"`
	CandidateName   string         `json:"candidate_name"`
	OverallScore    float64        `json:"overall_score"`
	TechnicalScore  float64        `json:"technical_score"`
	ExperienceScore float64        `json:"experience_score"`
	EducationScore  float64        `json:"education_score"`
	Strengths       []string       `json:"strengths"`
	Concerns        []string       `json:"concerns"`
	Recommendation  Recommendation `json:"recommendation"`
	AIAnalysis      *string        `json:"ai_analysis,omitempty"`
}

type CandidateFailure struct {
	CandidateID uint   `json:"candidate_id"`
	Reason      string `json:"reason"`
}

type TopCandidatesResponse struct {
	JobID           uint                 `json:"job_id"`
	TotalCandidates int64                `json:"total_candidates"`
	Top5            []EvaluationResponse `json:"top_5"`
	FailedCount     int                  `json:"failed_count"`
	Failures        []CandidateFailure   `json:"failures,omitempty"`
}

type ChatRequest struct {
	Message   string `json:"message" validate:"required"`
	JobID     *uint  `json:"job_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type ChatResponse struct {
	Response  string          `json:"response"`
	Reasoning []ReasoningStep `json:"reasoning"`
	ToolsUsed []string        `json:"tools_used"`
	Success   bool            `json:"success"`
	SessionID string          `json:"session_id"`
	Error     *string         `json:"error,omitempty"`
}

type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	JobID        *uint     `json:"job_id"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int64     `json:"message_count"`
}

type HistoryMessage struct {
	ID        uint            `json:"id"`
	Role      MessageRole     `json:"role"`
	Content   string          `json:"content"`
	Reasoning []ReasoningStep `json:"reasoning,omitempty"`
	ToolsUsed []string        `json:"tools_used,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type HistoryResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []HistoryMessage `json:"messages"`
}

type ClearSessionResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

func NewJobResponse(job *Job) JobResponse {
	return JobResponse{
		ID:          job.ID,
		Title:       job.Title,
		Description: job.Description,
		CreatedAt:   job.CreatedAt,
	}
}

func NewCandidateResponse(c *Candidate) CandidateResponse {
	return CandidateResponse{
		ID:        c.ID,
		JobID:     c.JobID,
		Name:      c.Name,
		Email:     c.Email,
		Indexed:   c.VectorID != nil,
		CreatedAt: c.CreatedAt,
	}
}

func NewEvaluationResponse(c *Candidate, e *Evaluation) EvaluationResponse {
	resp := EvaluationResponse{
		CandidateID:     e.CandidateID,
		CandidateName:   "Unknown",
		OverallScore:    e.OverallScore,
		TechnicalScore:  e.TechnicalScore,
		ExperienceScore: e.ExperienceScore,
		EducationScore:  e.EducationScore,
		Strengths:       e.StrengthList(),
		Concerns:        e.ConcernList(),
		Recommendation:  e.Recommendation,
	}
	if c != nil {
		resp.CandidateName = c.DisplayName()
	}
	if e.AIAnalysis != "" {
		analysis := e.AIAnalysis
		resp.AIAnalysis = &analysis
	}
	return resp
}

func NewHistoryMessage(m *ChatMessage) HistoryMessage {
	return HistoryMessage{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		Reasoning: m.ReasoningSteps(),
		ToolsUsed: m.ToolNames(),
		CreatedAt: m.CreatedAt,
	}
}
