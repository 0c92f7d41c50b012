package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVector(t *testing.T) {
	out := normalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, out[0], 1e-6)
	assert.InDelta(t, 0.8, out[1], 1e-6)

	zero := normalizeVector([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestOllamaProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "hello", req.Prompt)
		fmt.Fprint(w, `{"embedding":[1.0, 1.0]}`)
	}))
	defer srv.Close()

	res, err := NewOllamaProvider(srv.URL, "").Generate(context.Background(), "hello", TaskRetrievalQuery)
	require.NoError(t, err)
	require.Len(t, res.Embedding.Values, 2)
	assert.InDelta(t, 1/math.Sqrt2, res.Embedding.Values[0], 1e-6)
}

func TestGeminiProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("x-goog-api-key"))
		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, TaskRetrievalQuery, req.TaskType)
		assert.Equal(t, "hello", req.Content.Parts[0].Text)
		fmt.Fprint(w, `{"embedding":{"values":[0.1,0.2,0.3]}}`)
	}))
	defer srv.Close()

	p := NewGeminiProvider("key").(*GeminiProvider)
	p.Endpoint = srv.URL

	res, err := p.Generate(context.Background(), "hello", TaskRetrievalQuery)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, res.Embedding.Values)
}

func TestGeminiProvider_GenerateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewGeminiProvider("bad").(*GeminiProvider)
	p.Endpoint = srv.URL

	_, err := p.Generate(context.Background(), "hello", TaskRetrievalQuery)
	assert.ErrorContains(t, err, "code 403")
}
