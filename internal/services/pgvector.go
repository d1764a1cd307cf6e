package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const providerPGVector = "pgvector"

// CandidateVector is the pgvector row backing one candidate resume embedding.
type CandidateVector struct {
	ID          string          `gorm:"primaryKey;type:text"`
	CandidateID uint            `gorm:"index;not null"`
	Metadata    datatypes.JSON  `gorm:"type:jsonb"`
	Embedding   pgvector.Vector `gorm:"type:vector"`
	CreatedAt   time.Time
}

func (CandidateVector) TableName() string {
	return "candidate_vectors"
}

type pgvectorRow struct {
	ID          string
	CandidateID uint
	Metadata    datatypes.JSON
	Score       float32
}

type pgvectorIndex struct {
	db        *gorm.DB
	dimension int
	retry     RetryPolicy
	log       *zap.Logger
}

// NewPGVectorIndex stores vectors in the application database. The
// candidate_vectors table is migrated here since it only exists for this backend.
func NewPGVectorIndex(db *gorm.DB, dimension int, retry RetryPolicy, log *zap.Logger) (VectorIndex, error) {
	if err := db.AutoMigrate(&CandidateVector{}); err != nil {
		return nil, fmt.Errorf("failed to migrate candidate vectors: %w", err)
	}

	return &pgvectorIndex{
		db:        db,
		dimension: dimension,
		retry:     retry,
		log:       log.With(zap.String("provider", providerPGVector)),
	}, nil
}

func (p *pgvectorIndex) Dimension() int {
	return p.dimension
}

func (p *pgvectorIndex) Upsert(ctx context.Context, candidateID uint, vector []float32, metadata map[string]any) (string, error) {
	if err := checkDimension(vector, p.dimension); err != nil {
		return "", err
	}

	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[MetaCandidateID] = candidateID

	raw, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	row := &CandidateVector{
		ID:          NewVectorID(candidateID),
		CandidateID: candidateID,
		Metadata:    datatypes.JSON(raw),
		Embedding:   pgvector.NewVector(vector),
	}

	_, err = withRetry(ctx, p.retry, p.log, providerPGVector, "upsert", nil,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.db.WithContext(ctx).Create(row).Error
		})
	if err != nil {
		return "", err
	}

	return row.ID, nil
}

func (p *pgvectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]VectorMatch, error) {
	topK = ClampTopK(topK)
	if topK == 0 {
		return []VectorMatch{}, nil
	}
	if err := checkDimension(vector, p.dimension); err != nil {
		return nil, err
	}

	query := pgvector.NewVector(vector)
	rows, err := withRetry(ctx, p.retry, p.log, providerPGVector, "query", nil,
		func(ctx context.Context) ([]pgvectorRow, error) {
			var rows []pgvectorRow
			err := p.db.WithContext(ctx).
				Model(&CandidateVector{}).
				Select("id, candidate_id, metadata, 1 - (embedding <=> ?) AS score", query).
				Order(gorm.Expr("embedding <=> ?", query)).
				Limit(topK).
				Scan(&rows).Error
			return rows, err
		})
	if err != nil {
		return nil, err
	}

	matches := make([]VectorMatch, 0, len(rows))
	for _, row := range rows {
		metadata := map[string]any{}
		if len(row.Metadata) > 0 {
			if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
				p.log.Warn("⚠️ unreadable vector metadata", zap.String("vector_id", row.ID), zap.Error(err))
			}
		}

		candidateID, ok := CandidateIDFromMetadata(metadata)
		if !ok {
			continue
		}

		matches = append(matches, VectorMatch{
			ExternalID:  row.ID,
			CandidateID: candidateID,
			Score:       row.Score,
			Metadata:    metadata,
		})
	}

	return matches, nil
}

func (p *pgvectorIndex) Delete(ctx context.Context, externalID string) {
	_, err := withRetry(ctx, p.retry, p.log, providerPGVector, "delete", nil,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.db.WithContext(ctx).Delete(&CandidateVector{}, "id = ?", externalID).Error
		})
	if err != nil {
		p.log.Warn("⚠️ failed to delete vector", zap.String("vector_id", externalID), zap.Error(err))
	}
}
