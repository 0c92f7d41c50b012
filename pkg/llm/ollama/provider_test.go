package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"rag-chat-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_Chat(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaMessage{Role: "assistant", Content: "hello there"},
			Done:    true,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	out, err := p.Chat(context.Background(), []llm.Message{
		{Role: "system", Content: "be nice"},
		{Role: "model", Content: "earlier"},
		{Role: "user", Content: "hi"},
	}, llm.WithTemperature(0), llm.WithMaxTokens(8))

	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
	assert.Equal(t, "llama3", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, 0.0, got.Options.Temperature)
	assert.Equal(t, 8, got.Options.NumPredict)
}

func TestOllamaProvider_ChatErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "missing").Chat(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	assert.ErrorContains(t, err, "status 404")
}

func TestOllamaProvider_ChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		for _, part := range []string{"Hel", "", "lo"} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", part)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	stream, err := NewOllamaProvider(srv.URL, "llama3").ChatStream(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	defer stream.Close()

	var deltas []string
	for {
		d, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		deltas = append(deltas, d)
	}
	assert.Equal(t, []string{"Hel", "", "lo"}, deltas)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOllamaProvider_ChatStreamTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"partial"},"done":false}`)
	}))
	defer srv.Close()

	stream, err := NewOllamaProvider(srv.URL, "llama3").ChatStream(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	defer stream.Close()

	d, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "partial", d)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
