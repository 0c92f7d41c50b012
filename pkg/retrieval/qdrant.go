package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/mapper"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/embedding"
)

// QdrantRetriever searches a Qdrant collection over its REST API. The
// "text" payload field is the passage content; every other payload field is
// passed through as source metadata.
type QdrantRetriever struct {
	url        string
	apiKey     string
	collection string
	embedder   embedding.EmbeddingProvider
	client     *http.Client
	logger     logger.ILogger
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

func NewQdrantRetriever(cfg QdrantConfig, embedder embedding.EmbeddingProvider, log logger.ILogger) *QdrantRetriever {
	return &QdrantRetriever{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		embedder:   embedder,
		client:     &http.Client{},
		logger:     log,
	}
}

type qdrantSearchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

func (r *QdrantRetriever) Retrieve(ctx context.Context, query string, k int) ([]entity.Passage, error) {
	emb, err := r.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	data, err := json.Marshal(qdrantSearchRequest{
		Vector:      emb.Embedding.Values,
		Limit:       k,
		WithPayload: true,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", r.url, r.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("api-key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("qdrant POST %s failed: %s: %s", url, resp.Status, string(body))
	}

	var out qdrantSearchResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode qdrant response: %w", err)
	}

	passages := make([]entity.Passage, 0, len(out.Result))
	for _, hit := range out.Result {
		text, _ := hit.Payload["text"].(string)
		if text == "" {
			r.logger.Warn("RETRIEVAL", "Skipping Qdrant hit without a text payload", map[string]interface{}{
				"collection": r.collection,
				"point_id":   fmt.Sprint(hit.ID),
			})
			continue
		}
		metadata := make(map[string]any, len(hit.Payload))
		for key, v := range hit.Payload {
			if key != "text" {
				metadata[key] = v
			}
		}
		passages = append(passages, entity.Passage{Content: text, SourceMetadata: mapper.NormalizeMetadata(metadata)})
	}
	return passages, nil
}
