package embedding

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
)

type OpenAIProvider struct {
	client *goopenai.Client
	model  goopenai.EmbeddingModel
}

func NewOpenAIProvider(apiKey, baseURL, model string) (*OpenAIProvider, error) {
	if apiKey == "" && baseURL == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}
	if model == "" {
		model = string(goopenai.SmallEmbedding3)
	}
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client: goopenai.NewClientWithConfig(cfg),
		model:  goopenai.EmbeddingModel(model),
	}, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: []string{text},
		Model: p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("openai embedding: empty vector")
	}
	return normalizeVector(resp.Data[0].Embedding), nil
}
