package dto

import (
	"encoding/json"

	"rag-chat-be/pkg/rag"
)

// ChatFrame is the inbound route-dispatch frame.
type ChatFrame struct {
	Action string      `json:"action"`
	Data   ChatRequest `json:"data"`
}

type ChatRequest struct {
	UserMessage string               `json:"userMessage" validate:"required"`
	UserID      string               `json:"user_id" validate:"required"`
	SessionID   string               `json:"session_id" validate:"required"`
	ChatHistory []ChatHistoryItemDTO `json:"chatHistory" validate:"omitempty,dive"`
}

type ChatHistoryItemDTO struct {
	User     string          `json:"user"`
	Chatbot  string          `json:"chatbot"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

func (r ChatRequest) History() []rag.HistoryTurn {
	out := make([]rag.HistoryTurn, 0, len(r.ChatHistory))
	for _, h := range r.ChatHistory {
		out = append(out, rag.HistoryTurn{User: h.User, Chatbot: h.Chatbot, Metadata: h.Metadata})
	}
	return out
}

// RouteError is the body returned for unrecognised routes.
type RouteError struct {
	Error string `json:"error"`
}

type RouteAck struct {
	Action string `json:"action"`
}
