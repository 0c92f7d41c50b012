package retrieval

import (
	"context"
	"errors"
	"time"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/rag"
)

const (
	DefaultK       = 3
	DefaultTimeout = 20 * time.Second
)

// Retriever is a similarity index. Passages come back best match first.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]entity.Passage, error)
}

// Client fixes k and the per-call timeout for a backend and turns every
// backend failure into an empty result.
type Client struct {
	backend Retriever
	k       int
	timeout time.Duration
	logger  logger.ILogger
}

func NewClient(backend Retriever, k int, timeout time.Duration, log logger.ILogger) *Client {
	if k < 1 {
		k = 1
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		backend: backend,
		k:       k,
		timeout: timeout,
		logger:  log,
	}
}

func (c *Client) K() int {
	return c.k
}

// Retrieve never fails; an unreachable or empty index yields no passages.
func (c *Client) Retrieve(ctx context.Context, query string) []entity.Passage {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	passages, err := c.backend.Retrieve(ctx, query, c.k)
	if err != nil {
		rerr := rag.NewError(rag.KindRetrieval, "retrieve", err)
		c.logger.Warn("RETRIEVAL", "Retrieval failed, continuing without context", map[string]interface{}{
			"error":     rerr.Error(),
			"timed_out": errors.Is(err, context.DeadlineExceeded),
		})
		return []entity.Passage{}
	}

	if len(passages) > c.k {
		passages = passages[:c.k]
	}
	return entity.ClonePassages(passages)
}

// NoopRetriever is an always-empty index.
type NoopRetriever struct{}

func (NoopRetriever) Retrieve(ctx context.Context, query string, k int) ([]entity.Passage, error) {
	return []entity.Passage{}, nil
}
