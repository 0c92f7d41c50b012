package completion

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/rag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	deltas []string
	err    error
	closed bool
}

func (s *fakeStream) Recv() (string, error) {
	if len(s.deltas) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	d := s.deltas[0]
	s.deltas = s.deltas[1:]
	return d, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeProvider struct {
	reply   string
	err     error
	deltas  []string
	midErr  error
	opened  int
	streams []*fakeStream
	block   bool
}

func (p *fakeProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	if p.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return p.reply, p.err
}

func (p *fakeProvider) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (llm.Stream, error) {
	p.opened++
	if p.err != nil {
		return nil, p.err
	}
	s := &fakeStream{deltas: append([]string(nil), p.deltas...), err: p.midErr}
	p.streams = append(p.streams, s)
	return s, nil
}

func newClient(p *fakeProvider) *Client {
	return NewClient(p, time.Second, logger.NewNopLogger())
}

func TestClient_Complete(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		want     string
		wantErr  bool
	}{
		{name: "ok", provider: &fakeProvider{reply: "Paris."}, want: "Paris."},
		{name: "provider error", provider: &fakeProvider{err: errors.New("502 bad gateway")}, wantErr: true},
		{name: "empty response", provider: &fakeProvider{reply: "  \n"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newClient(tt.provider).Complete(context.Background(), nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, rag.IsKind(err, rag.KindCompletion))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_Complete_Timeout(t *testing.T) {
	c := NewClient(&fakeProvider{block: true}, 20*time.Millisecond, logger.NewNopLogger())

	_, err := c.Complete(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, rag.IsKind(err, rag.KindCompletion))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Stream_ConcatenationDropsEmptyDeltas(t *testing.T) {
	p := &fakeProvider{deltas: []string{"The ", "", "capital ", "is ", "", "Paris."}}
	c := newClient(p)

	var fragments []string
	for fragment, err := range c.Stream(context.Background(), nil) {
		require.NoError(t, err)
		fragments = append(fragments, fragment)
	}

	assert.Equal(t, []string{"The ", "capital ", "is ", "Paris."}, fragments)
	assert.Equal(t, "The capital is Paris.", strings.Join(fragments, ""))
	assert.True(t, p.streams[0].closed)
}

func TestClient_Stream_ReissuesPerRange(t *testing.T) {
	p := &fakeProvider{deltas: []string{"a", "b"}}
	seq := newClient(p).Stream(context.Background(), nil)

	for range 2 {
		var sb strings.Builder
		for fragment, err := range seq {
			require.NoError(t, err)
			sb.WriteString(fragment)
		}
		assert.Equal(t, "ab", sb.String())
	}
	assert.Equal(t, 2, p.opened)
}

func TestClient_Stream_EarlyBreakClosesUpstream(t *testing.T) {
	p := &fakeProvider{deltas: []string{"a", "b", "c"}}

	for fragment := range newClient(p).Stream(context.Background(), nil) {
		assert.Equal(t, "a", fragment)
		break
	}
	require.Len(t, p.streams, 1)
	assert.True(t, p.streams[0].closed)
}

func TestClient_Stream_Errors(t *testing.T) {
	tests := []struct {
		name         string
		provider     *fakeProvider
		wantFragment []string
	}{
		{name: "open fails", provider: &fakeProvider{err: errors.New("dial tcp: refused")}},
		{name: "mid-stream failure", provider: &fakeProvider{deltas: []string{"par"}, midErr: io.ErrUnexpectedEOF}, wantFragment: []string{"par"}},
		{name: "nothing emitted", provider: &fakeProvider{deltas: []string{"", ""}}},
		{name: "whitespace only", provider: &fakeProvider{deltas: []string{" ", "\n", "\t "}}, wantFragment: []string{" ", "\n", "\t "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fragments []string
			var lastErr error
			for fragment, err := range newClient(tt.provider).Stream(context.Background(), nil) {
				if err != nil {
					lastErr = err
					continue
				}
				fragments = append(fragments, fragment)
			}
			assert.Equal(t, tt.wantFragment, fragments)
			require.Error(t, lastErr)
			assert.True(t, rag.IsKind(lastErr, rag.KindCompletion))
		})
	}
}

func TestClient_Stream_WhitespaceReplyMatchesComplete(t *testing.T) {
	p := &fakeProvider{reply: " \n ", deltas: []string{" ", "\n", " "}}
	c := newClient(p)

	_, completeErr := c.Complete(context.Background(), nil)
	require.ErrorIs(t, completeErr, ErrEmptyCompletion)

	var streamErr error
	for _, err := range c.Stream(context.Background(), nil) {
		if err != nil {
			streamErr = err
		}
	}
	require.ErrorIs(t, streamErr, ErrEmptyCompletion)
}
