package handlers

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(api fiber.Router, jobs *JobHandler, uploads *UploadHandler, chat *ChatHandler) {
	api.Post("/jobs", jobs.HandleCreate)
	api.Get("/jobs", jobs.HandleList)
	api.Get("/jobs/:id", jobs.HandleGet)
	api.Delete("/jobs/:id", jobs.HandleDelete)
	api.Get("/jobs/:id/candidates", jobs.HandleListCandidates)
	api.Post("/jobs/:id/resumes", uploads.HandleUpload)
	api.Get("/jobs/:id/top-candidates", jobs.HandleTopCandidates)

	api.Post("/chat", chat.HandleChat)
	api.Get("/chat/sessions", chat.HandleListSessions)
	api.Get("/chat/sessions/:session_id", chat.HandleHistory)
	api.Post("/chat/sessions/:session_id/clear", chat.HandleClear)
}
