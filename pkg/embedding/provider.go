package embedding

import "context"

// Task types understood by providers that distinguish query and document vectors.
const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// EmbeddingProvider defines the interface for generating text embeddings
type EmbeddingProvider interface {
	Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error)
}

type EmbeddingResponseEmbedding struct {
	Values []float32 `json:"values"`
}

type EmbeddingResponse struct {
	Embedding EmbeddingResponseEmbedding `json:"embedding"`
}

func NewProvider(name, geminiKey, ollamaBaseURL, ollamaModel string) EmbeddingProvider {
	if name == "gemini" {
		return NewGeminiProvider(geminiKey)
	}
	return NewOllamaProvider(ollamaBaseURL, ollamaModel)
}
