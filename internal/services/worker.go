package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"alfredoptarigan/hr-agent/internal/models"
	"alfredoptarigan/hr-agent/internal/repositories"
)

const (
	indexQueueSize   = 100
	indexPollBatch   = 10
	resumeMetaChars  = 1000
	defaultPollEvery = 10 * time.Second
)

// Indexer embeds candidate resumes into the vector index.
type Indexer interface {
	// IndexCandidate upserts the resume vector and replaces the previous one.
	IndexCandidate(ctx context.Context, candidate *models.Candidate) (string, error)
}

// Worker indexes candidates in the background. Uploads enqueue new
// candidates; a poller picks up any candidate still without a vector.
type Worker interface {
	Start(ctx context.Context)
	Stop()
	Enqueue(candidateID uint)
}

type indexer struct {
	candidateRepo repositories.CandidateRepository
	embedder      EmbeddingProvider
	index         VectorIndex
	log           *zap.Logger
}

func NewIndexer(candidateRepo repositories.CandidateRepository, embedder EmbeddingProvider, index VectorIndex, log *zap.Logger) Indexer {
	return &indexer{
		candidateRepo: candidateRepo,
		embedder:      embedder,
		index:         index,
		log:           log,
	}
}

// CandidateMetadata is the payload stored with a candidate vector.
func CandidateMetadata(c *models.Candidate) map[string]any {
	meta := map[string]any{
		MetaCandidateID: c.ID,
		MetaJobID:       c.JobID,
		MetaName:        "",
		MetaEmail:       "",
		MetaResumeText:  TruncateHead(c.ResumeText, resumeMetaChars),
	}
	if c.Name != nil {
		meta[MetaName] = *c.Name
	}
	if c.Email != nil {
		meta[MetaEmail] = *c.Email
	}
	return meta
}

func (ix *indexer) IndexCandidate(ctx context.Context, candidate *models.Candidate) (string, error) {
	log := ix.log.With(zap.Uint("candidate_id", candidate.ID))

	vector, err := ix.embedder.Embed(ctx, candidate.ResumeText)
	if err != nil {
		return "", fmt.Errorf("failed to embed resume: %w", err)
	}

	vectorID, err := ix.index.Upsert(ctx, candidate.ID, vector, CandidateMetadata(candidate))
	if err != nil {
		return "", fmt.Errorf("failed to upsert resume vector: %w", err)
	}

	if err := ix.candidateRepo.UpdateVectorID(candidate.ID, vectorID); err != nil {
		ix.index.Delete(ctx, vectorID)
		return "", err
	}

	if candidate.VectorID != nil && *candidate.VectorID != vectorID {
		ix.index.Delete(ctx, *candidate.VectorID)
	}
	candidate.VectorID = &vectorID

	log.Info("📌 Resume indexed", zap.String("vector_id", vectorID))
	return vectorID, nil
}

type worker struct {
	candidateRepo repositories.CandidateRepository
	indexer       Indexer
	queue         chan uint
	concurrency   int
	pollInterval  time.Duration
	log           *zap.Logger

	inFlight sync.Map
	wg       sync.WaitGroup
	stopChan chan struct{}
}

func NewWorker(
	candidateRepo repositories.CandidateRepository,
	indexer Indexer,
	concurrency int,
	pollInterval time.Duration,
	log *zap.Logger,
) Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollEvery
	}

	return &worker{
		candidateRepo: candidateRepo,
		indexer:       indexer,
		queue:         make(chan uint, indexQueueSize),
		concurrency:   concurrency,
		pollInterval:  pollInterval,
		log:           log,
		stopChan:      make(chan struct{}),
	}
}

func (w *worker) Start(ctx context.Context) {
	w.log.Info("🚀 Starting index worker", zap.Int("concurrency", w.concurrency))

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.process(ctx, i+1)
	}

	w.wg.Add(1)
	go w.pollUnindexed(ctx)
}

func (w *worker) Stop() {
	w.log.Info("🛑 Stopping index worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.log.Info("✅ Index worker stopped")
}

// Enqueue schedules a candidate unless it is already queued or running.
func (w *worker) Enqueue(candidateID uint) {
	if _, busy := w.inFlight.LoadOrStore(candidateID, struct{}{}); busy {
		return
	}

	select {
	case w.queue <- candidateID:
		w.log.Debug("📥 candidate enqueued", zap.Uint("candidate_id", candidateID))
	case <-w.stopChan:
		w.inFlight.Delete(candidateID)
		w.log.Warn("⚠️ worker stopped, cannot enqueue candidate", zap.Uint("candidate_id", candidateID))
	}
}

func (w *worker) process(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case candidateID := <-w.queue:
			w.indexOne(ctx, workerID, candidateID)
			w.inFlight.Delete(candidateID)
		}
	}
}

func (w *worker) indexOne(ctx context.Context, workerID int, candidateID uint) {
	log := w.log.With(zap.Int("worker", workerID), zap.Uint("candidate_id", candidateID))

	candidate, err := w.candidateRepo.FindByID(candidateID)
	if err != nil {
		log.Warn("⚠️ candidate lookup failed", zap.Error(err))
		return
	}
	if candidate.VectorID != nil {
		return
	}

	if _, err := w.indexer.IndexCandidate(ctx, candidate); err != nil {
		log.Error("❌ failed to index candidate", zap.Error(err))
	}
}

func (w *worker) pollUnindexed(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending, err := w.candidateRepo.FindUnindexed(indexPollBatch)
			if err != nil {
				w.log.Warn("⚠️ failed to fetch unindexed candidates", zap.Error(err))
				continue
			}

			if len(pending) > 0 {
				w.log.Info("📋 Found unindexed candidates", zap.Int("count", len(pending)))
			}
			for _, c := range pending {
				w.Enqueue(c.ID)
			}
		}
	}
}
