package completion

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"time"

	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/rag"
)

const DefaultTimeout = 120 * time.Second

var ErrEmptyCompletion = errors.New("model returned an empty response")

// Client runs completions against one provider with a per-call deadline.
type Client struct {
	provider llm.LLMProvider
	timeout  time.Duration
	logger   logger.ILogger
}

func NewClient(provider llm.LLMProvider, timeout time.Duration, log logger.ILogger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		provider: provider,
		timeout:  timeout,
		logger:   log,
	}
}

// Complete blocks for the whole response. Provider failures and empty
// responses are returned as completion errors.
func (c *Client) Complete(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	text, err := c.provider.Chat(ctx, messages, opts...)
	if err != nil {
		return "", rag.NewError(rag.KindCompletion, "complete", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", rag.NewError(rag.KindCompletion, "complete", ErrEmptyCompletion)
	}

	c.logger.Debug("COMPLETION", "Completion finished", map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
		"chars":       len(text),
	})
	return text, nil
}

// Stream yields the response as non-empty fragments whose concatenation is
// the full text. A reply that is only whitespace ends with the same empty
// completion error Complete returns. Every range over the sequence issues a new request. Stopping
// the range early closes the upstream connection.
func (c *Client) Stream(ctx context.Context, messages []llm.Message, opts ...llm.Option) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		stream, err := c.provider.ChatStream(ctx, messages, opts...)
		if err != nil {
			yield("", rag.NewError(rag.KindCompletion, "open stream", err))
			return
		}
		defer stream.Close()

		// blank stays true until a fragment carries more than whitespace.
		blank := true
		for {
			delta, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				yield("", rag.NewError(rag.KindCompletion, "read stream", err))
				return
			}
			if delta == "" {
				continue
			}
			if blank && strings.TrimSpace(delta) != "" {
				blank = false
			}
			if !yield(delta, nil) {
				return
			}
		}

		if blank {
			yield("", rag.NewError(rag.KindCompletion, "read stream", ErrEmptyCompletion))
		}
	}
}
