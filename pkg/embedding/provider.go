package embedding

import (
	"context"
	"fmt"
	"math"
)

// EmbeddingProvider turns text into a unit-length vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Config struct {
	Provider      string // "ollama" or "openai"
	Model         string
	OllamaBaseURL string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewProvider(cfg Config) (EmbeddingProvider, error) {
	switch cfg.Provider {
	case "ollama", "":
		return NewOllamaProvider(cfg.OllamaBaseURL, cfg.Model), nil
	case "openai":
		p, err := NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// normalizeVector scales vec to magnitude 1; cosine distance in pgvector assumes it.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
