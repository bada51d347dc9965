package entity

import (
	"time"
)

type Source struct {
	Title string
	URI   string
}

// ChatMessage is one stored turn. BotResponse is nil for prompts recorded before an answer exists.
type ChatMessage struct {
	Id               string
	ChatSessionId    string
	UserPrompt       string
	BotResponse      *string
	Sources          []Source
	SuggestedPrompts []string
	ResponseTime     float64
	CreatedAt        time.Time
	Feedback         *MessageFeedback
}

// MessageFeedback is the rating a user left on one answer. Rank is optional.
type MessageFeedback struct {
	Type      string
	Rank      *int
	Category  string
	Message   string
	CreatedAt time.Time
}
