package integration

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"rag-chat-be/pkg/embedding"
	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/llm/ollama"
	"rag-chat-be/pkg/rag/followup"
	"rag-chat-be/pkg/rag/rewrite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ollamaOrSkip(t *testing.T) (baseURL, model string) {
	t.Helper()
	baseURL = os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model = os.Getenv("LLM_MODEL")
	if model == "" {
		model = "llama3"
	}

	client := &http.Client{Timeout: 2 * time.Second}
	res, err := client.Get(baseURL)
	if err != nil {
		t.Skipf("Skipping integration test: Ollama not running at %s", baseURL)
	}
	res.Body.Close()
	return baseURL, model
}

func TestOllamaStream(t *testing.T) {
	baseURL, model := ollamaOrSkip(t)
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	provider := ollama.NewOllamaProvider(baseURL, model)
	s, err := provider.ChatStream(ctx, []llm.Message{
		{Role: "system", Content: "Answer in one short sentence."},
		{Role: "user", Content: "Say 'Ollama works!'"},
	})
	require.NoError(t, err)
	defer s.Close()

	var b strings.Builder
	for {
		raw, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		text, err := s.Decode(raw)
		require.NoError(t, err)
		b.WriteString(text)
	}
	assert.NotEmpty(t, strings.TrimSpace(b.String()))
	t.Logf("Streamed answer: %s", b.String())
}

func TestOllamaAuxiliarySteps(t *testing.T) {
	baseURL, model := ollamaOrSkip(t)
	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	provider := ollama.NewOllamaProvider(baseURL, model)

	prompts := followup.NewGenerator(provider).Generate(ctx, "How many vacation days do I get?", "You get twenty days per year.")
	assert.False(t, prompts.Degraded, "follow-up generation degraded: %v", prompts.Cause)
	t.Logf("Follow-ups: %v", prompts.Value)

	query := rewrite.NewRewriter(provider, 3).Rewrite(ctx, "and for contractors?", nil)
	assert.NotEmpty(t, query.Value)
}

func TestOllamaEmbedding(t *testing.T) {
	baseURL, _ := ollamaOrSkip(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = "nomic-embed-text"
	}
	vec, err := embedding.NewOllamaProvider(baseURL, model).Embed(ctx, "vacation policy")
	require.NoError(t, err)
	assert.NotEmpty(t, vec)
}
