package contract

import (
	"context"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/repository/specification"
)

type ScoredPassageEmbedding struct {
	Embedding  *entity.PassageEmbedding
	Similarity float64
}

type PassageEmbeddingRepository interface {
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]*ScoredPassageEmbedding, error)
}
