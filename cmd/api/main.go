package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"alfredoptarigan/hr-agent/internal/app"
	"alfredoptarigan/hr-agent/internal/config"
	"alfredoptarigan/hr-agent/internal/handlers"
	"alfredoptarigan/hr-agent/internal/services"
)

func main() {
	cfg := config.Load()

	zlog, err := config.NewLogger(cfg.Server.LogJSON, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("❌ Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("✅ Config loaded successfully", zap.String("env", cfg.Server.Env))

	c, err := app.New(cfg, zlog)
	if err != nil {
		zlog.Fatal("❌ Failed to initialize application", zap.Error(err))
	}

	if err := c.Storage.EnsureUploadDir(); err != nil {
		zlog.Fatal("❌ Failed to create upload directory", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := services.NewWorker(
		c.CandidateRepo,
		c.Indexer,
		cfg.Worker.Concurrency,
		cfg.Worker.PollInterval,
		zlog,
	)
	worker.Start(ctx)
	c.Sessions.Start(0)
	zlog.Info("✅ Background workers started")

	jobHandler := handlers.NewJobHandler(c.JobRepo, c.CandidateRepo, c.Index, c.RAG, zlog)
	uploadHandler := handlers.NewUploadHandler(c.JobRepo, c.CandidateRepo, c.Storage, c.Parser, worker, zlog)
	chatHandler := handlers.NewChatHandler(c.Chat)
	zlog.Info("✅ Handlers initialized")

	fiberApp := fiber.New(fiber.Config{
		AppName:      "HR Agent API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		BodyLimit:    int(cfg.Storage.MaxFileSize) * 10,
		ErrorHandler: handlers.ErrorHandler,
	})

	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	api := fiberApp.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	handlers.RegisterRoutes(api, jobHandler, uploadHandler, chatHandler)

	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "HR Agent API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/jobs",
				"GET /api/v1/jobs/:id",
				"POST /api/v1/jobs/:id/resumes",
				"GET /api/v1/jobs/:id/top-candidates",
				"POST /api/v1/chat",
				"GET /api/v1/chat/sessions",
				"GET /api/v1/chat/sessions/:session_id",
				"POST /api/v1/chat/sessions/:session_id/clear",
			},
		})
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		zlog.Info("🛑 Shutting down server...")
		worker.Stop()
		c.Sessions.Stop()
		cancel()
		if err := fiberApp.Shutdown(); err != nil {
			zlog.Error("❌ Server forced to shutdown", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	zlog.Info("🚀 Server starting", zap.String("addr", addr))

	if err := fiberApp.Listen(addr); err != nil {
		zlog.Fatal("❌ Failed to start server", zap.Error(err))
	}
}
