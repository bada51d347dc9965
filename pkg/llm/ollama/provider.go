package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"rag-chat-be/pkg/llm"
)

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
	// Streaming requests have no client-side deadline; the caller's context bounds them.
	StreamClient *http.Client
}

var _ llm.StreamingProvider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
		StreamClient: &http.Client{},
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

func (o *OllamaProvider) buildRequest(ctx context.Context, history []llm.Message, stream bool, opts ...llm.Option) (*http.Request, error) {
	options := llm.Apply(llm.Options{Temperature: 0.7}, opts...)

	ollamaMessages := make([]ollamaMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		ollamaMessages[i] = ollamaMessage{
			Role:    role,
			Content: msg.Content,
		}
	}

	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := ollamaChatRequest{
		Model:    model,
		Messages: ollamaMessages,
		Stream:   stream,
		Options: &ollamaOptions{
			Temperature: options.Temperature,
			NumPredict:  options.MaxTokens,
		},
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	req, err := o.buildRequest(ctx, history, false, opts...)
	if err != nil {
		return "", err
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var ollamaResp ollamaChatResponse
	if err := json.Unmarshal(bodyBytes, &ollamaResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	return ollamaResp.Message.Content, nil
}

func (o *OllamaProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return o.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// ChatStream opens a streaming chat. Ollama answers with one JSON object per line.
func (o *OllamaProvider) ChatStream(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.ChunkStream, error) {
	req, err := o.buildRequest(ctx, history, true, opts...)
	if err != nil {
		return nil, err
	}

	client := o.StreamClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama stream request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return &chunkStream{body: resp.Body, reader: bufio.NewReader(resp.Body)}, nil
}

// chunkStream is read by one goroutine (Recv) and decoded by another (Decode);
// only Recv touches done.
type chunkStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	done   bool
}

type doneMarker struct {
	Done bool `json:"done"`
}

func (s *chunkStream) Recv() ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}
	for {
		line, err := s.reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var marker doneMarker
			if json.Unmarshal(line, &marker) == nil && marker.Done {
				s.done = true
			}
			return line, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true
			}
			return nil, err
		}
	}
}

func (s *chunkStream) Decode(raw []byte) (string, error) {
	var chunk ollamaChatResponse
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return "", fmt.Errorf("decode ollama chunk: %w", err)
	}
	if chunk.Error != "" {
		return "", fmt.Errorf("ollama stream error: %s", chunk.Error)
	}
	return chunk.Message.Content, nil
}

func (s *chunkStream) Close() error {
	return s.body.Close()
}
