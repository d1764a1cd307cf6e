package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const providerQdrant = "qdrant"

// vectorNamespace derives stable qdrant point ids from external vector ids.
var vectorNamespace = uuid.MustParse("6f1c1f43-6f35-4f55-9d0c-2b2f3c8c7a11")

type QdrantService interface {
	VectorIndex
	InitCollection() error
}

type qdrantService struct {
	client         *qdrant.Client
	collectionName string
	vectorSize     uint64
	retry          RetryPolicy
	log            *zap.Logger
}

func NewQdrantService(urlStr, apiKey, collectionName string, dimension int, retry RetryPolicy, log *zap.Logger) (QdrantService, error) {
	// Parse URL to extract host, port, and TLS usage
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsed.Hostname()
	useTLS := parsed.Scheme == "https"

	// gRPC port
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &qdrantService{
		client:         client,
		collectionName: collectionName,
		vectorSize:     uint64(dimension),
		retry:          retry,
		log:            log.With(zap.String("provider", providerQdrant), zap.String("collection", collectionName)),
	}, nil
}

func (q *qdrantService) Dimension() int {
	return int(q.vectorSize)
}

// InitCollection creates the collection with the configured dimension. The
// dimension stays fixed for the lifetime of the collection.
func (q *qdrantService) InitCollection() error {
	ctx := context.Background()

	exists, err := q.client.CollectionExists(ctx, q.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if exists {
		q.log.Info("✅ Collection already exists")
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	q.log.Info("✅ Qdrant collection created")
	return nil
}

// Upsert implements VectorIndex.
func (q *qdrantService) Upsert(ctx context.Context, candidateID uint, vector []float32, metadata map[string]any) (string, error) {
	if err := checkDimension(vector, int(q.vectorSize)); err != nil {
		return "", err
	}

	vectorID := NewVectorID(candidateID)

	payload := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		payload[k] = qdrantPayloadValue(v)
	}
	payload[MetaCandidateID] = int64(candidateID)
	payload[MetaVectorID] = vectorID

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(uuid.NewSHA1(vectorNamespace, []byte(vectorID)).String()),
		Vectors: qdrant.NewVectors(vector...),
		Payload: qdrant.NewValueMap(payload),
	}

	_, err := withRetry(ctx, q.retry, q.log, providerQdrant, "upsert", isGRPCTransient,
		func(ctx context.Context) (*qdrant.UpdateResult, error) {
			return q.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: q.collectionName,
				Points:         []*qdrant.PointStruct{point},
			})
		})
	if err != nil {
		return "", err
	}

	return vectorID, nil
}

// Query implements VectorIndex.
func (q *qdrantService) Query(ctx context.Context, vector []float32, topK int) ([]VectorMatch, error) {
	topK = ClampTopK(topK)
	if topK == 0 {
		return []VectorMatch{}, nil
	}
	if err := checkDimension(vector, int(q.vectorSize)); err != nil {
		return nil, err
	}

	points, err := withRetry(ctx, q.retry, q.log, providerQdrant, "query", isGRPCTransient,
		func(ctx context.Context) ([]*qdrant.ScoredPoint, error) {
			return q.client.Query(ctx, &qdrant.QueryPoints{
				CollectionName: q.collectionName,
				Query:          qdrant.NewQuery(vector...),
				Limit:          qdrant.PtrOf(uint64(topK)),
				WithPayload:    qdrant.NewWithPayload(true),
			})
		})
	if err != nil {
		return nil, err
	}

	matches := make([]VectorMatch, 0, len(points))
	for _, point := range points {
		metadata := make(map[string]any, len(point.Payload))
		for key, value := range point.Payload {
			metadata[key] = qdrantValueToAny(value)
		}

		candidateID, ok := CandidateIDFromMetadata(metadata)
		if !ok {
			q.log.Debug("skipping match without candidate id")
			continue
		}

		externalID, _ := metadata[MetaVectorID].(string)
		matches = append(matches, VectorMatch{
			ExternalID:  externalID,
			CandidateID: candidateID,
			Score:       point.Score,
			Metadata:    metadata,
		})
	}

	return matches, nil
}

// Delete implements VectorIndex.
func (q *qdrantService) Delete(ctx context.Context, externalID string) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(MetaVectorID, externalID),
		},
	}

	_, err := withRetry(ctx, q.retry, q.log, providerQdrant, "delete", isGRPCTransient,
		func(ctx context.Context) (*qdrant.UpdateResult, error) {
			return q.client.Delete(ctx, &qdrant.DeletePoints{
				CollectionName: q.collectionName,
				Points: &qdrant.PointsSelector{
					PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
						Filter: filter,
					},
				},
			})
		})
	if err != nil {
		q.log.Warn("⚠️ failed to delete vector", zap.String("vector_id", externalID), zap.Error(err))
	}
}

// qdrantPayloadValue narrows unsigned ids to int64, which the payload encoder accepts.
func qdrantPayloadValue(v any) any {
	switch n := v.(type) {
	case uint:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case *string:
		if n == nil {
			return ""
		}
		return *n
	default:
		return v
	}
}

func qdrantValueToAny(value *qdrant.Value) any {
	if value == nil {
		return nil
	}

	switch kind := value.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	default:
		return nil
	}
}

func isGRPCTransient(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return true
	}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal:
		return true
	default:
		return false
	}
}
