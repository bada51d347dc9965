package factory

import (
	"fmt"

	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/llm/ollama"
	"rag-chat-be/pkg/llm/openai"
)

type ProviderConfig struct {
	Provider      string // "ollama" or "openai"
	Model         string
	OllamaBaseURL string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewLLMProvider(cfg ProviderConfig) (llm.StreamingProvider, error) {
	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model), nil
	case "openai":
		return openai.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
