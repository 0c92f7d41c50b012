package retrieval

import (
	"context"
	"fmt"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/repository/unitofwork"
	"rag-chat-be/pkg/embedding"
)

// PgvectorRetriever embeds the query and runs a cosine search over passage_embeddings.
type PgvectorRetriever struct {
	uowFactory unitofwork.RepositoryFactory
	embedder   embedding.EmbeddingProvider
}

func NewPgvectorRetriever(uowFactory unitofwork.RepositoryFactory, embedder embedding.EmbeddingProvider) *PgvectorRetriever {
	return &PgvectorRetriever{
		uowFactory: uowFactory,
		embedder:   embedder,
	}
}

// CountPassages reports how many passages are indexed.
func (r *PgvectorRetriever) CountPassages(ctx context.Context) (int64, error) {
	return r.uowFactory.NewUnitOfWork(ctx).PassageEmbeddingRepository().Count(ctx)
}

func (r *PgvectorRetriever) Retrieve(ctx context.Context, query string, k int) ([]entity.Passage, error) {
	emb, err := r.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	uow := r.uowFactory.NewUnitOfWork(ctx)
	scored, err := uow.PassageEmbeddingRepository().SearchSimilar(ctx, emb.Embedding.Values, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	passages := make([]entity.Passage, 0, len(scored))
	for _, s := range scored {
		passages = append(passages, entity.Passage{
			Content:        s.Embedding.Content,
			SourceMetadata: s.Embedding.SourceMetadata,
		})
	}
	return passages, nil
}
