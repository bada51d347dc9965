package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"rag-chat-be/pkg/llm"

	goopenai "github.com/sashabaranov/go-openai"
)

type OpenAIProvider struct {
	client *goopenai.Client
	model  string
}

var _ llm.StreamingProvider = &OpenAIProvider{}

// NewOpenAIProvider targets api.openai.com unless baseURL points at a compatible server.
func NewOpenAIProvider(apiKey, baseURL, model string) (*OpenAIProvider, error) {
	if apiKey == "" && baseURL == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client: goopenai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (p *OpenAIProvider) request(history []llm.Message, stream bool, opts ...llm.Option) goopenai.ChatCompletionRequest {
	options := llm.Apply(llm.Options{Temperature: 0.7}, opts...)

	model := p.model
	if options.Model != "" {
		model = options.Model
	}

	msgs := make([]goopenai.ChatCompletionMessage, len(history))
	for i, m := range history {
		role := m.Role
		if role == "model" {
			role = goopenai.ChatMessageRoleAssistant
		}
		msgs[i] = goopenai.ChatCompletionMessage{Role: role, Content: m.Content}
	}

	req := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: float32(options.Temperature),
		Stream:      stream,
	}
	if options.MaxTokens > 0 {
		req.MaxCompletionTokens = options.MaxTokens
	}
	return req
}

func (p *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(history, false, opts...))
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: goopenai.ChatMessageRoleUser, Content: prompt}}, opts...)
}

func (p *OpenAIProvider) ChatStream(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.ChunkStream, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, p.request(history, true, opts...))
	if err != nil {
		return nil, fmt.Errorf("openai stream failed: %w", err)
	}
	return &chunkStream{stream: stream}, nil
}

// chunkStream re-serialises each SSE delta so the adapter sees a raw envelope like any other provider.
type chunkStream struct {
	stream *goopenai.ChatCompletionStream
}

func (s *chunkStream) Recv() ([]byte, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

func (s *chunkStream) Decode(raw []byte) (string, error) {
	var resp goopenai.ChatCompletionStreamResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode openai chunk: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *chunkStream) Close() error {
	return s.stream.Close()
}
