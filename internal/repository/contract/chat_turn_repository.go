package contract

import (
	"context"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/repository/specification"
)

// ChatTurnRepository has no update path: turns are immutable once created.
type ChatTurnRepository interface {
	Create(ctx context.Context, turn *entity.Turn) error
	NextSequence(ctx context.Context, sessionId string) (int64, error)
	DeleteBySessionId(ctx context.Context, sessionId string) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Turn, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
