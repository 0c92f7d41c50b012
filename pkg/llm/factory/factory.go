package factory

import (
	"fmt"

	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/llm/ollama"
	"rag-chat-be/pkg/llm/openai"
)

func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai":
		if baseURL == "" {
			return nil, fmt.Errorf("base url is required for provider %s", providerType)
		}
		return openai.NewProvider(apiKey, baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
