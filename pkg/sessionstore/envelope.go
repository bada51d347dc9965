// Package sessionstore is the request/reply contract with the session handler.
//
// Replies are double encoded: the outer JSON object carries a status code and a
// body that is itself a JSON string. DecodeBody is the only place that unwraps it.
package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"rag-chat-be/pkg/rag"
)

const (
	OpGetSession                    = "get_session"
	OpAddNewSessionWithFirstMessage = "add_new_session_with_first_message"
	OpAddMessageToExistingSession   = "add_message_to_existing_session"
	OpAddSession                    = "add_session"
	OpUpdateSession                 = "update_session"
	OpListSessionsByUserID          = "list_sessions_by_user_id"
	OpListAllSessionsByUserID       = "list_all_sessions_by_user_id"
	OpDeleteSession                 = "delete_session"
	OpListAllSessions               = "list_all_sessions"
	OpUpdateReviewSession           = "update_review_session"
	OpDeleteReviewSession           = "delete_review_session"
	OpAddFeedback                   = "add_feedback"
	OpGetFeedback                   = "get_feedback"
	OpDownloadFeedback              = "download_feedback"
	OpDeleteFeedback                = "delete_feedback"

	RecentSessionsLimit = 15
	AllSessionsLimit    = 100
)

var ErrMalformedResponse = errors.New("malformed session store response")

// ChatEntry is one turn as carried in new_chat_entry.
type ChatEntry struct {
	UserPrompt       string       `json:"user_prompt"`
	BotResponse      string       `json:"bot_response"`
	Sources          []rag.Source `json:"sources"`
	SuggestedPrompts []string     `json:"suggested_prompts"`
	ResponseTime     float64      `json:"response_time"`
}

// UnmarshalJSON also accepts a bare string, which update_session callers send as the user prompt.
func (e *ChatEntry) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var prompt string
		if err := json.Unmarshal(data, &prompt); err != nil {
			return err
		}
		*e = ChatEntry{UserPrompt: prompt}
		return nil
	}
	type plain ChatEntry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = ChatEntry(p)
	return nil
}

func EntryFromTurn(t rag.Turn) ChatEntry {
	return ChatEntry{
		UserPrompt:       t.User,
		BotResponse:      t.Chatbot,
		Sources:          t.Sources,
		SuggestedPrompts: t.Prompts,
		ResponseTime:     t.ResponseTime,
	}
}

type Request struct {
	Operation    string        `json:"operation"`
	SessionID    string        `json:"session_id,omitempty"`
	UserID       string        `json:"user_id,omitempty"`
	Title        string        `json:"title,omitempty"`
	NewChatEntry *ChatEntry    `json:"new_chat_entry,omitempty"`
	ReviewID     string        `json:"review_id,omitempty"`
	StartTime    string        `json:"start_time,omitempty"`
	EndTime      string        `json:"end_time,omitempty"`
	HasFeedback  string        `json:"has_feedback,omitempty"`
	HasReview    string        `json:"has_review,omitempty"`
	MessageID    string        `json:"message_id,omitempty"`
	FeedbackData *FeedbackData `json:"feedback_data,omitempty"`
	Topic        string        `json:"topic,omitempty"`
}

// ParseRequest accepts the plain envelope or one wrapped as {"body": "<json>"}.
func ParseRequest(data []byte) (Request, error) {
	var wrapped struct {
		Body *string `json:"body"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Body != nil {
		data = []byte(*wrapped.Body)
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("parse request: %w", err)
	}
	return req, nil
}

type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// EncodeResponse marshals payload into the body string and wraps it.
func EncodeResponse(status int, payload interface{}) []byte {
	body, err := json.Marshal(payload)
	if err != nil {
		status = 500
		body, _ = json.Marshal(err.Error())
	}
	out, _ := json.Marshal(Response{StatusCode: status, Body: string(body)})
	return out
}

// StatusError is a non-2xx reply; Message is the decoded body when it was a JSON string.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("session store returned %d: %s", e.StatusCode, e.Message)
}

// DecodeBody unwraps a reply into T.
func DecodeBody[T any](raw []byte) (T, error) {
	var zero T

	var outer Response
	if err := json.Unmarshal(raw, &outer); err != nil {
		return zero, fmt.Errorf("%w: outer envelope: %v", ErrMalformedResponse, err)
	}

	if outer.StatusCode != 0 && (outer.StatusCode < 200 || outer.StatusCode > 299) {
		var msg string
		if err := json.Unmarshal([]byte(outer.Body), &msg); err != nil {
			msg = outer.Body
		}
		return zero, &StatusError{StatusCode: outer.StatusCode, Message: msg}
	}

	if strings.TrimSpace(outer.Body) == "" {
		return zero, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}

	var out T
	if err := json.Unmarshal([]byte(outer.Body), &out); err != nil {
		return zero, fmt.Errorf("%w: body: %v", ErrMalformedResponse, err)
	}
	return out, nil
}
