package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"alfredoptarigan/hr-agent/internal/apperr"
)

// MaxTopK caps every similarity query.
const MaxTopK = 50

// Metadata keys stored alongside every candidate vector.
const (
	MetaCandidateID = "candidate_id"
	MetaJobID       = "job_id"
	MetaName        = "name"
	MetaEmail       = "email"
	MetaResumeText  = "resume_text"
	MetaVectorID    = "vector_id"
)

type VectorMatch struct {
	ExternalID  string
	CandidateID uint
	Score       float32
	Metadata    map[string]any
}

// VectorIndex stores candidate resume vectors. Reads are eventually consistent:
// an upserted vector may not show up in the next Query.
type VectorIndex interface {
	Upsert(ctx context.Context, candidateID uint, vector []float32, metadata map[string]any) (string, error)
	Query(ctx context.Context, vector []float32, topK int) ([]VectorMatch, error)
	// Delete is best effort. Failures are logged, never returned.
	Delete(ctx context.Context, externalID string)
	Dimension() int
}

// ClampTopK bounds topK to [0, MaxTopK].
func ClampTopK(topK int) int {
	if topK <= 0 {
		return 0
	}
	if topK > MaxTopK {
		return MaxTopK
	}
	return topK
}

// NewVectorID builds the external id of a candidate vector. A new id is
// minted on every upsert; callers keep only the latest.
func NewVectorID(candidateID uint) string {
	return fmt.Sprintf("candidate_%d_%s", candidateID, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func checkDimension(vector []float32, dimension int) error {
	if dimension > 0 && len(vector) != dimension {
		return apperr.Validation("vector has dimension %d, index expects %d", len(vector), dimension)
	}
	return nil
}

// CandidateIDFromMetadata resolves the candidate id stored in a match payload.
func CandidateIDFromMetadata(metadata map[string]any) (uint, bool) {
	raw, ok := metadata[MetaCandidateID]
	if !ok || raw == nil {
		return 0, false
	}

	switch v := raw.(type) {
	case uint:
		return v, v > 0
	case uint64:
		return uint(v), v > 0
	case int:
		return uint(v), v > 0
	case int64:
		return uint(v), v > 0
	case float64:
		if v <= 0 || v != math.Trunc(v) {
			return 0, false
		}
		return uint(v), true
	case string:
		id, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil || id == 0 {
			return 0, false
		}
		return uint(id), true
	default:
		return 0, false
	}
}

// CosineSimilarity returns 0 for mismatched or zero vectors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

type memoryEntry struct {
	id       string
	vector   []float32
	metadata map[string]any
}

type memoryIndex struct {
	dimension int
	log       *zap.Logger

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryIndex is a process-local index used for development and tests.
func NewMemoryIndex(dimension int, log *zap.Logger) VectorIndex {
	return &memoryIndex{
		dimension: dimension,
		log:       log,
		entries:   make(map[string]memoryEntry),
	}
}

func (m *memoryIndex) Dimension() int {
	return m.dimension
}

func (m *memoryIndex) Upsert(_ context.Context, candidateID uint, vector []float32, metadata map[string]any) (string, error) {
	if err := checkDimension(vector, m.dimension); err != nil {
		return "", err
	}

	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[MetaCandidateID] = candidateID

	id := NewVectorID(candidateID)
	stored := make([]float32, len(vector))
	copy(stored, vector)

	m.mu.Lock()
	m.entries[id] = memoryEntry{id: id, vector: stored, metadata: meta}
	m.mu.Unlock()

	return id, nil
}

func (m *memoryIndex) Query(_ context.Context, vector []float32, topK int) ([]VectorMatch, error) {
	topK = ClampTopK(topK)
	if topK == 0 {
		return []VectorMatch{}, nil
	}
	if err := checkDimension(vector, m.dimension); err != nil {
		return nil, err
	}

	m.mu.RLock()
	matches := make([]VectorMatch, 0, len(m.entries))
	for _, entry := range m.entries {
		candidateID, ok := CandidateIDFromMetadata(entry.metadata)
		if !ok {
			continue
		}
		matches = append(matches, VectorMatch{
			ExternalID:  entry.id,
			CandidateID: candidateID,
			Score:       CosineSimilarity(vector, entry.vector),
			Metadata:    entry.metadata,
		})
	}
	m.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ExternalID < matches[j].ExternalID
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *memoryIndex) Delete(_ context.Context, externalID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[externalID]; !ok {
		m.log.Warn("⚠️ vector not found for delete", zap.String("vector_id", externalID))
		return
	}
	delete(m.entries, externalID)
}
