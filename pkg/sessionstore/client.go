package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Transport sends one request payload and returns the raw reply.
type Transport interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
}

type Client struct {
	transport Transport
	subject   string
	timeout   time.Duration
}

func NewClient(transport Transport, subject string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{transport: transport, subject: subject, timeout: timeout}
}

func (c *Client) call(ctx context.Context, req Request) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", req.Operation, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.transport.Request(ctx, c.subject, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Operation, err)
	}
	return raw, nil
}

func do[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var zero T
	raw, err := c.call(ctx, req)
	if err != nil {
		return zero, err
	}
	out, err := DecodeBody[T](raw)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", req.Operation, err)
	}
	return out, nil
}

// GetSession returns an empty Session when none exists yet.
func (c *Client) GetSession(ctx context.Context, userID, sessionID string) (Session, error) {
	return do[Session](ctx, c, Request{Operation: OpGetSession, SessionID: sessionID, UserID: userID})
}

func (c *Client) CreateSession(ctx context.Context, userID, sessionID, title string, entry ChatEntry) (string, error) {
	ref, err := do[MessageRef](ctx, c, Request{
		Operation:    OpAddNewSessionWithFirstMessage,
		SessionID:    sessionID,
		UserID:       userID,
		Title:        title,
		NewChatEntry: &entry,
	})
	return ref.MessageID, err
}

func (c *Client) AppendTurn(ctx context.Context, sessionID string, entry ChatEntry) (string, error) {
	ref, err := do[MessageRef](ctx, c, Request{
		Operation:    OpAddMessageToExistingSession,
		SessionID:    sessionID,
		NewChatEntry: &entry,
	})
	return ref.MessageID, err
}

// AddSession creates an empty, titled session.
func (c *Client) AddSession(ctx context.Context, userID, sessionID, title string) (MessageRef, error) {
	return do[MessageRef](ctx, c, Request{Operation: OpAddSession, SessionID: sessionID, UserID: userID, Title: title})
}

// UpdateSession records a prompt that has no answer yet.
func (c *Client) UpdateSession(ctx context.Context, userID, sessionID, prompt string) (string, error) {
	ref, err := do[MessageRef](ctx, c, Request{
		Operation:    OpUpdateSession,
		SessionID:    sessionID,
		UserID:       userID,
		NewChatEntry: &ChatEntry{UserPrompt: prompt},
	})
	return ref.MessageID, err
}

func (c *Client) ListSessions(ctx context.Context, userID string, all bool) ([]SessionSummary, error) {
	op := OpListSessionsByUserID
	if all {
		op = OpListAllSessionsByUserID
	}
	return do[[]SessionSummary](ctx, c, Request{Operation: op, UserID: userID})
}

func (c *Client) DeleteSession(ctx context.Context, userID, sessionID string) error {
	_, err := do[string](ctx, c, Request{Operation: OpDeleteSession, SessionID: sessionID, UserID: userID})
	return err
}

func (c *Client) ListAllSessions(ctx context.Context, f ListFilter) ([]SessionSummary, error) {
	return do[[]SessionSummary](ctx, c, Request{
		Operation:   OpListAllSessions,
		StartTime:   f.StartTime,
		EndTime:     f.EndTime,
		HasFeedback: f.HasFeedback,
		HasReview:   f.HasReview,
		UserID:      f.UserID,
	})
}

func (c *Client) UpdateReview(ctx context.Context, reviewID, sessionID, userID string) (Review, error) {
	return do[Review](ctx, c, Request{Operation: OpUpdateReviewSession, ReviewID: reviewID, SessionID: sessionID, UserID: userID})
}

func (c *Client) DeleteReview(ctx context.Context, reviewID, sessionID, userID string) error {
	_, err := do[string](ctx, c, Request{Operation: OpDeleteReviewSession, ReviewID: reviewID, SessionID: sessionID, UserID: userID})
	return err
}

func (c *Client) AddFeedback(ctx context.Context, userID, sessionID, messageID string, data FeedbackData) (FeedbackRef, error) {
	return do[FeedbackRef](ctx, c, Request{
		Operation:    OpAddFeedback,
		SessionID:    sessionID,
		UserID:       userID,
		MessageID:    messageID,
		FeedbackData: &data,
	})
}

func (c *Client) ListFeedback(ctx context.Context, f FeedbackFilter) ([]Feedback, error) {
	return do[[]Feedback](ctx, c, Request{
		Operation: OpGetFeedback,
		StartTime: f.StartTime,
		EndTime:   f.EndTime,
		Topic:     f.Topic,
		SessionID: f.SessionID,
	})
}

// DownloadFeedback returns the matching feedback as CSV text.
func (c *Client) DownloadFeedback(ctx context.Context, f FeedbackFilter) (string, error) {
	return do[string](ctx, c, Request{
		Operation: OpDownloadFeedback,
		StartTime: f.StartTime,
		EndTime:   f.EndTime,
		Topic:     f.Topic,
		SessionID: f.SessionID,
	})
}

// DeleteFeedback clears the feedback on one message. An empty userID skips the ownership check.
func (c *Client) DeleteFeedback(ctx context.Context, userID, sessionID, messageID string) error {
	_, err := do[string](ctx, c, Request{Operation: OpDeleteFeedback, SessionID: sessionID, UserID: userID, MessageID: messageID})
	return err
}
