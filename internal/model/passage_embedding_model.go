package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type PassageEmbedding struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Content        string          `gorm:"type:text;not null"`
	SourceMetadata datatypes.JSON  `gorm:"type:jsonb"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(768)"` // text-embedding-004 and nomic-embed-text are both 768-d
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
}

func (PassageEmbedding) TableName() string {
	return "passage_embeddings"
}
