package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rag-chat-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_Chat(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"model":"llama3","message":{"role":"assistant","content":"hi there"},"done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	out, err := p.Generate(context.Background(), "hello", llm.WithMaxTokens(25))

	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
	assert.False(t, got.Stream)
	assert.Equal(t, 25, got.Options.NumPredict)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestOllamaProvider_ChatErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "missing").Generate(context.Background(), "x")
	assert.Error(t, err)
}

func TestOllamaProvider_ChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lines := []string{
			`{"message":{"role":"assistant","content":"Hel"},"done":false}`,
			``,
			`{"message":{"role":"assistant","content":"lo"},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true}`,
		}
		fmt.Fprint(w, strings.Join(lines, "\n"))
	}))
	defer srv.Close()

	stream, err := NewOllamaProvider(srv.URL, "llama3").ChatStream(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	defer stream.Close()

	var sb strings.Builder
	for {
		raw, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		text, err := stream.Decode(raw)
		require.NoError(t, err)
		sb.WriteString(text)
	}
	assert.Equal(t, "Hello", sb.String())
}

func TestOllamaProvider_ChatStreamErrorChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"out of memory"}`)
	}))
	defer srv.Close()

	stream, err := NewOllamaProvider(srv.URL, "llama3").ChatStream(context.Background(), nil)
	require.NoError(t, err)
	defer stream.Close()

	raw, err := stream.Recv()
	require.NoError(t, err)
	_, err = stream.Decode(raw)
	assert.ErrorContains(t, err, "out of memory")
}

func TestOllamaProvider_ChatStreamStopsAtDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"ok"},"done":true}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"trailing"},"done":false}`)
	}))
	defer srv.Close()

	stream, err := NewOllamaProvider(srv.URL, "llama3").ChatStream(context.Background(), nil)
	require.NoError(t, err)
	defer stream.Close()

	raw, err := stream.Recv()
	require.NoError(t, err)
	text, err := stream.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}
