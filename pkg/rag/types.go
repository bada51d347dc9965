// Package rag holds the value types shared by the chat pipeline stages.
package rag

import (
	"context"
	"encoding/json"

	"rag-chat-be/pkg/llm"
)

// Source is a citation shown with an answer. Sources are unique by URI within one retrieval.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// HistoryTurn is one prior exchange as sent by the client.
type HistoryTurn struct {
	User     string          `json:"user"`
	Chatbot  string          `json:"chatbot"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Turn is a completed exchange ready to be persisted.
type Turn struct {
	User         string   `json:"user"`
	Chatbot      string   `json:"chatbot"`
	Sources      []Source `json:"sources"`
	Prompts      []string `json:"prompts"`
	ResponseTime float64  `json:"response_time"`
	MessageID    string   `json:"messageId,omitempty"`
}

// Completer is the auxiliary generation surface used by the best-effort stages.
type Completer interface {
	Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error)
}

// LastTurns returns at most n trailing turns.
func LastTurns(history []HistoryTurn, n int) []HistoryTurn {
	if n <= 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// ToMessages flattens history into alternating user/assistant chat messages.
func ToMessages(history []HistoryTurn) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)*2)
	for _, h := range history {
		if h.User != "" {
			msgs = append(msgs, llm.Message{Role: "user", Content: h.User})
		}
		if h.Chatbot != "" {
			msgs = append(msgs, llm.Message{Role: "assistant", Content: h.Chatbot})
		}
	}
	return msgs
}
