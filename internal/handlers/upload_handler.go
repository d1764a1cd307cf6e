package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"alfredoptarigan/hr-agent/internal/models"
	"alfredoptarigan/hr-agent/internal/repositories"
	"alfredoptarigan/hr-agent/internal/services"
)

const resumeFormField = "files"

type UploadHandler struct {
	jobRepo        repositories.JobRepository
	candidateRepo  repositories.CandidateRepository
	storageService services.StorageService
	parser         services.ResumeParser
	worker         services.Worker
	log            *zap.Logger
}

func NewUploadHandler(
	jobRepo repositories.JobRepository,
	candidateRepo repositories.CandidateRepository,
	storageService services.StorageService,
	parser services.ResumeParser,
	worker services.Worker,
	log *zap.Logger,
) *UploadHandler {
	return &UploadHandler{
		jobRepo:        jobRepo,
		candidateRepo:  candidateRepo,
		storageService: storageService,
		parser:         parser,
		worker:         worker,
		log:            log,
	}
}

// HandleUpload handles POST /jobs/:id/resumes. Files that cannot be saved or
// parsed are skipped; indexing happens in the background worker.
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	jobID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	if _, err := h.jobRepo.FindByID(jobID); err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to parse multipart form",
		})
	}

	files := form.File[resumeFormField]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No files uploaded. Please upload resumes as 'files' (PDF).",
		})
	}

	resp := models.UploadResponse{JobID: jobID, CandidateIDs: []uint{}}

	for _, file := range files {
		log := h.log.With(zap.Uint("job_id", jobID), zap.String("file", file.Filename))

		filePath, err := h.storageService.SaveResume(jobID, file)
		if err != nil {
			log.Warn("⚠️ resume rejected", zap.Error(err))
			resp.Skipped = append(resp.Skipped, file.Filename)
			continue
		}

		parsed, err := h.parser.Parse(filePath)
		if err != nil {
			log.Warn("⚠️ resume could not be parsed", zap.Error(err))
			_ = h.storageService.DeleteFile(filePath)
			resp.Skipped = append(resp.Skipped, file.Filename)
			continue
		}

		candidate := &models.Candidate{
			JobID:          jobID,
			Name:           parsed.Name,
			Email:          parsed.Email,
			ResumeFilePath: filePath,
			ResumeText:     parsed.Text,
		}
		if err := h.candidateRepo.Create(candidate); err != nil {
			log.Error("❌ failed to save candidate", zap.Error(err))
			_ = h.storageService.DeleteFile(filePath)
			resp.Skipped = append(resp.Skipped, file.Filename)
			continue
		}

		h.worker.Enqueue(candidate.ID)
		resp.CandidateIDs = append(resp.CandidateIDs, candidate.ID)
		resp.Uploaded++
	}

	log := h.log.With(zap.Uint("job_id", jobID))
	log.Info("📤 Resumes uploaded", zap.Int("uploaded", resp.Uploaded), zap.Int("skipped", len(resp.Skipped)))

	return c.Status(fiber.StatusCreated).JSON(resp)
}
