package entity

import (
	"time"

	"github.com/google/uuid"
)

type PassageEmbedding struct {
	Id             uuid.UUID
	Content        string
	SourceMetadata map[string]any
	EmbeddingValue []float32
	CreatedAt      time.Time
}
