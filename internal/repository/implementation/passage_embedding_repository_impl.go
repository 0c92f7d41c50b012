package implementation

import (
	"context"

	"rag-chat-be/internal/mapper"
	"rag-chat-be/internal/model"
	"rag-chat-be/internal/repository/contract"
	"rag-chat-be/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type PassageEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PassageEmbeddingMapper
}

func NewPassageEmbeddingRepository(db *gorm.DB) contract.PassageEmbeddingRepository {
	return &PassageEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewPassageEmbeddingMapper(),
	}
}

func (r *PassageEmbeddingRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *PassageEmbeddingRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.PassageEmbedding{}).Count(&count).Error
	return count, err
}

// SearchSimilar ranks passages by cosine similarity, best first.
// pgvector's <=> is cosine distance, so similarity is 1 - distance.
func (r *PassageEmbeddingRepositoryImpl) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]*contract.ScoredPassageEmbedding, error) {
	if limit <= 0 {
		limit = 3
	}

	type result struct {
		model.PassageEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("passage_embeddings").
		Select("passage_embeddings.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredPassageEmbedding, len(results))
	for i, res := range results {
		e, err := r.mapper.ToEntity(&res.PassageEmbedding)
		if err != nil {
			return nil, err
		}
		scored[i] = &contract.ScoredPassageEmbedding{
			Embedding:  e,
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}
