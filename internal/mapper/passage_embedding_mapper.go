package mapper

import (
	"fmt"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/model"
)

type PassageEmbeddingMapper struct{}

func NewPassageEmbeddingMapper() *PassageEmbeddingMapper {
	return &PassageEmbeddingMapper{}
}

func (m *PassageEmbeddingMapper) ToEntity(e *model.PassageEmbedding) (*entity.PassageEmbedding, error) {
	if e == nil {
		return nil, nil
	}

	metadata, err := DecodeMetadata(e.SourceMetadata)
	if err != nil {
		return nil, fmt.Errorf("passage %s: malformed source metadata: %w", e.Id, err)
	}

	return &entity.PassageEmbedding{
		Id:             e.Id,
		Content:        e.Content,
		SourceMetadata: metadata,
		EmbeddingValue: e.EmbeddingValue.Slice(),
		CreatedAt:      e.CreatedAt,
	}, nil
}
