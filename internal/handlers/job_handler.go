package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"alfredoptarigan/hr-agent/internal/apperr"
	"alfredoptarigan/hr-agent/internal/models"
	"alfredoptarigan/hr-agent/internal/repositories"
	"alfredoptarigan/hr-agent/internal/services"
)

type JobHandler struct {
	jobRepo       repositories.JobRepository
	candidateRepo repositories.CandidateRepository
	index         services.VectorIndex
	rag           services.RAGService
	log           *zap.Logger
}

func NewJobHandler(
	jobRepo repositories.JobRepository,
	candidateRepo repositories.CandidateRepository,
	index services.VectorIndex,
	rag services.RAGService,
	log *zap.Logger,
) *JobHandler {
	return &JobHandler{
		jobRepo:       jobRepo,
		candidateRepo: candidateRepo,
		index:         index,
		rag:           rag,
		log:           log,
	}
}

// HandleCreate handles POST /jobs
func (h *JobHandler) HandleCreate(c *fiber.Ctx) error {
	var req models.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title is required",
		})
	}
	if req.Description == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "description is required",
		})
	}

	job := &models.Job{Title: req.Title, Description: req.Description}
	if err := h.jobRepo.Create(job); err != nil {
		return err
	}

	h.log.Info("📝 Job created", zap.Uint("job_id", job.ID))
	return c.Status(fiber.StatusCreated).JSON(models.NewJobResponse(job))
}

// HandleList handles GET /jobs
func (h *JobHandler) HandleList(c *fiber.Ctx) error {
	jobs, err := h.jobRepo.List()
	if err != nil {
		return err
	}

	resp := make([]models.JobResponse, 0, len(jobs))
	for i := range jobs {
		resp = append(resp, models.NewJobResponse(&jobs[i]))
	}
	return c.JSON(resp)
}

// HandleGet handles GET /jobs/:id
func (h *JobHandler) HandleGet(c *fiber.Ctx) error {
	jobID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	job, err := h.jobRepo.FindByID(jobID)
	if err != nil {
		return err
	}
	return c.JSON(models.NewJobResponse(job))
}

// HandleDelete handles DELETE /jobs/:id. Candidates and evaluations go with
// the job; their vectors are removed best effort.
func (h *JobHandler) HandleDelete(c *fiber.Ctx) error {
	jobID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	candidates, err := h.candidateRepo.FindByJob(jobID)
	if err != nil {
		return err
	}

	if err := h.jobRepo.Delete(jobID); err != nil {
		return err
	}

	for _, candidate := range candidates {
		if candidate.VectorID != nil {
			h.index.Delete(c.UserContext(), *candidate.VectorID)
		}
	}

	h.log.Info("🗑️ Job deleted", zap.Uint("job_id", jobID), zap.Int("candidates", len(candidates)))
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleListCandidates handles GET /jobs/:id/candidates
func (h *JobHandler) HandleListCandidates(c *fiber.Ctx) error {
	jobID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	if _, err := h.jobRepo.FindByID(jobID); err != nil {
		return err
	}

	candidates, err := h.candidateRepo.FindByJob(jobID)
	if err != nil {
		return err
	}

	resp := make([]models.CandidateResponse, 0, len(candidates))
	for i := range candidates {
		resp = append(resp, models.NewCandidateResponse(&candidates[i]))
	}
	return c.JSON(resp)
}

// HandleTopCandidates handles GET /jobs/:id/top-candidates?top_k=15
func (h *JobHandler) HandleTopCandidates(c *fiber.Ctx) error {
	jobID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	topK := services.DefaultRetrievalTopK
	if raw := c.Query("top_k"); raw != "" {
		topK, err = strconv.Atoi(raw)
		if err != nil || topK < 0 {
			return apperr.Validation("invalid top_k %q", raw)
		}
	}

	report, err := h.rag.Evaluate(c.UserContext(), jobID, topK)
	if err != nil {
		return err
	}

	return c.JSON(report.Response())
}
