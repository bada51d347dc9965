// Package session records finished turns through the session store.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/rag"
	"rag-chat-be/pkg/rag/outcome"
	"rag-chat-be/pkg/sessionstore"
)

const (
	FallbackTitle  = "New chat session"
	titleMaxTokens = 25
)

var ErrEmptyTitle = errors.New("title generator returned empty text")

type Store interface {
	GetSession(ctx context.Context, userID, sessionID string) (sessionstore.Session, error)
	CreateSession(ctx context.Context, userID, sessionID, title string, entry sessionstore.ChatEntry) (string, error)
	AppendTurn(ctx context.Context, sessionID string, entry sessionstore.ChatEntry) (string, error)
}

type Recorder struct {
	store     Store
	completer rag.Completer
	logger    logger.ILogger
}

func NewRecorder(store Store, completer rag.Completer, log logger.ILogger) *Recorder {
	return &Recorder{store: store, completer: completer, logger: log}
}

type Fetched struct {
	Session sessionstore.Session
	Err     error
}

// FetchAsync starts the prior-session lookup; the channel yields exactly one value.
func (r *Recorder) FetchAsync(ctx context.Context, userID, sessionID string) <-chan Fetched {
	ch := make(chan Fetched, 1)
	go func() {
		s, err := r.store.GetSession(ctx, userID, sessionID)
		ch <- Fetched{Session: s, Err: err}
	}()
	return ch
}

// Title summarises the opening exchange. It never fails.
func (r *Recorder) Title(ctx context.Context, userMessage, botResponse string) outcome.Result[string] {
	out, err := r.completer.Generate(ctx, TitlePrompt(userMessage, botResponse), llm.WithMaxTokens(titleMaxTokens))
	if err != nil {
		return outcome.Fallback(FallbackTitle, fmt.Errorf("title: %w", err))
	}
	title := strings.TrimSpace(strings.ReplaceAll(out, `"`, ""))
	if title == "" {
		return outcome.Fallback(FallbackTitle, ErrEmptyTitle)
	}
	return outcome.Ok(title)
}

func TitlePrompt(userMessage, botResponse string) string {
	return "Generate a concise title for this chat session based on the initial user prompt and response. " +
		"The title should succinctly capture the essence of the chat's main topic without adding extra content.\n\n" +
		"User: " + userMessage + "\n" +
		"Assistant: " + botResponse + "\n\n" +
		"Here's your session title:"
}

type Recorded struct {
	MessageID string
	Created   bool
}

// Record creates the session when prior has no key, otherwise appends. Exactly one
// store write is attempted. A failed or unreadable reply leaves MessageID empty.
func (r *Recorder) Record(ctx context.Context, prior sessionstore.Session, userID, sessionID, title string, turn rag.Turn) Recorded {
	entry := sessionstore.EntryFromTurn(turn)
	details := map[string]interface{}{"session_id": sessionID, "user_id": userID}

	if !prior.Exists() {
		id, err := r.store.CreateSession(ctx, userID, sessionID, title, entry)
		if err != nil {
			details["error"] = err
			r.logger.Error("SessionRecorder", "Failed to create session", details)
			return Recorded{Created: true}
		}
		return Recorded{MessageID: id, Created: true}
	}

	id, err := r.store.AppendTurn(ctx, sessionID, entry)
	if err != nil {
		details["error"] = err
		r.logger.Error("SessionRecorder", "Failed to append turn", details)
		return Recorded{}
	}
	return Recorded{MessageID: id}
}
