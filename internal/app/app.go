package app

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"alfredoptarigan/hr-agent/internal/config"
	"alfredoptarigan/hr-agent/internal/repositories"
	"alfredoptarigan/hr-agent/internal/services"
)

// Container holds every wired component shared by the API server and the CLI.
type Container struct {
	Config *config.Config
	Log    *zap.Logger
	DB     *gorm.DB

	JobRepo       repositories.JobRepository
	CandidateRepo repositories.CandidateRepository
	EvalRepo      repositories.EvaluationRepository
	ChatRepo      repositories.ChatRepository

	LLM      services.LLMProvider
	Embedder services.EmbeddingProvider
	Index    services.VectorIndex

	Evaluator    services.EvaluatorService
	RAG          services.RAGService
	Indexer      services.Indexer
	Tools        services.ToolInvoker
	Orchestrator *services.Orchestrator
	Sessions     *services.SessionManager
	Chat         services.ChatService
	Storage      services.StorageService
	Parser       services.ResumeParser
}

func RetryPolicy(cfg *config.Config) services.RetryPolicy {
	return services.RetryPolicy{
		MaxAttempts:  cfg.Provider.RetryMaxAttempts,
		InitialDelay: cfg.Provider.RetryInitialDelay,
		MaxDelay:     cfg.Provider.RetryMaxDelay,
		Timeout:      cfg.Provider.Timeout,
	}
}

func New(cfg *config.Config, log *zap.Logger) (*Container, error) {
	db, err := config.InitDatabase(cfg, log)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:        cfg,
		Log:           log,
		DB:            db,
		JobRepo:       repositories.NewJobRepository(db),
		CandidateRepo: repositories.NewCandidateRepository(db),
		EvalRepo:      repositories.NewEvaluationRepository(db),
		ChatRepo:      repositories.NewChatRepository(db),
	}
	log.Info("✅ Repositories initialized successfully")

	retry := RetryPolicy(cfg)

	if c.LLM, c.Embedder, err = newProviders(cfg, retry, log); err != nil {
		return nil, err
	}
	log.Info("✅ AI providers initialized",
		zap.String("llm", cfg.LLM.Provider),
		zap.String("embeddings", cfg.LLM.EmbeddingProvider),
	)

	if c.Index, err = newVectorIndex(cfg, db, retry, log); err != nil {
		return nil, err
	}
	log.Info("✅ Vector index initialized", zap.String("backend", cfg.Vector.Backend))

	scorer := services.NewScorer(c.LLM, log)
	c.Evaluator = services.NewEvaluatorService(c.EvalRepo, scorer, log)
	c.RAG = services.NewRAGService(
		c.JobRepo,
		c.CandidateRepo,
		c.Embedder,
		c.Index,
		c.Evaluator,
		services.AlwaysRescore,
		cfg.Worker.EvalConcurrency,
		log,
	)
	c.Indexer = services.NewIndexer(c.CandidateRepo, c.Embedder, c.Index, log)
	c.Tools = services.NewToolRegistry(
		c.JobRepo,
		c.CandidateRepo,
		c.EvalRepo,
		c.Embedder,
		c.Index,
		c.Evaluator,
		log,
	)
	c.Orchestrator = services.NewOrchestrator(c.LLM, c.Tools, cfg.Agent.MaxIterations, log)
	c.Sessions = services.NewSessionManager(cfg.Agent.SessionIdleTimeout, log)
	c.Chat = services.NewChatService(c.ChatRepo, c.Sessions, c.Orchestrator, log)

	c.Storage = services.NewStorageService(cfg.Storage.UploadPath, cfg.Storage.MaxFileSize)
	c.Parser = services.NewResumeParser()
	log.Info("✅ Services initialized successfully")

	return c, nil
}

func newProviders(cfg *config.Config, retry services.RetryPolicy, log *zap.Logger) (services.LLMProvider, services.EmbeddingProvider, error) {
	var gemini services.GeminiService
	var openai services.OpenAIService
	var err error

	needs := func(name string) bool {
		return cfg.LLM.Provider == name || cfg.LLM.EmbeddingProvider == name
	}

	if needs("gemini") {
		gemini, err = services.NewGeminiService(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.EmbedModel, cfg.Vector.Dimension, retry, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Gemini: %w", err)
		}
	}
	if needs("openai") {
		openai, err = services.NewOpenAIService(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.EmbedModel, cfg.Vector.Dimension, retry, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize OpenAI: %w", err)
		}
	}

	var llm services.LLMProvider
	switch cfg.LLM.Provider {
	case "gemini":
		llm = gemini
	case "openai":
		llm = openai
	case "anthropic":
		llm, err = services.NewAnthropicService(cfg.Anthropic.APIKey, cfg.Anthropic.Model, retry, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Anthropic: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLM.Provider)
	}

	var embedder services.EmbeddingProvider
	switch cfg.LLM.EmbeddingProvider {
	case "gemini":
		embedder = gemini
	case "openai":
		embedder = openai
	default:
		return nil, nil, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", cfg.LLM.EmbeddingProvider)
	}

	return llm, embedder, nil
}

func newVectorIndex(cfg *config.Config, db *gorm.DB, retry services.RetryPolicy, log *zap.Logger) (services.VectorIndex, error) {
	switch cfg.Vector.Backend {
	case "qdrant":
		qdrant, err := services.NewQdrantService(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Qdrant.Collection, cfg.Vector.Dimension, retry, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Qdrant: %w", err)
		}
		if err := qdrant.InitCollection(); err != nil {
			return nil, fmt.Errorf("failed to initialize Qdrant collection: %w", err)
		}
		return qdrant, nil
	case "pgvector":
		return services.NewPGVectorIndex(db, cfg.Vector.Dimension, retry, log)
	case "memory":
		log.Warn("⚠️ using in-memory vector index, vectors are lost on restart")
		return services.NewMemoryIndex(cfg.Vector.Dimension, log), nil
	default:
		return nil, fmt.Errorf("unknown VECTOR_BACKEND %q", cfg.Vector.Backend)
	}
}
