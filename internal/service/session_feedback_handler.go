package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/repository/specification"
	"rag-chat-be/pkg/sessionstore"
)

const (
	defaultFeedbackType     = "neutral"
	defaultFeedbackCategory = "general"
)

// feedbackCategories are the topic labels that select by category rather than type.
var feedbackCategories = map[string]struct{}{
	"Error Messages":              {},
	"Not Clear":                   {},
	"Poorly Formatted":            {},
	"Inaccurate":                  {},
	"Not Relevant to My Question": {},
	"Other":                       {},
}

var feedbackCSVHeader = []string{
	"FeedbackID", "SessionID", "UserPrompt", "FeedbackComment", "Topic", "Rank", "Feedback", "ChatbotMessage", "CreatedAt",
}

// findOwnedMessage resolves a message inside a session; a non-empty userID must own the session.
func (s *sessionHandlerService) findOwnedMessage(ctx context.Context, sessionID, messageID, userID string) (*entity.ChatMessage, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	specs := []specification.Specification{specification.ByKey{Key: sessionID}}
	if userID != "" {
		specs = append(specs, specification.ByUserID{UserID: userID})
	}
	session, err := uow.ChatSessionRepository().FindOne(ctx, specs...)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, notFound("Session %s not found", sessionID)
	}

	msg, err := uow.ChatMessageRepository().FindOne(ctx,
		specification.ByKey{Key: messageID},
		specification.ByChatSessionID{ChatSessionID: sessionID},
	)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, notFound("Message %s not found in session %s", messageID, sessionID)
	}
	return msg, nil
}

func (s *sessionHandlerService) addFeedback(ctx context.Context, req sessionstore.Request) (sessionstore.FeedbackRef, error) {
	if _, err := s.findOwnedMessage(ctx, req.SessionID, req.MessageID, req.UserID); err != nil {
		return sessionstore.FeedbackRef{}, err
	}

	data := *req.FeedbackData
	feedback := &entity.MessageFeedback{
		Type:      strings.ToLower(strings.TrimSpace(data.Type)),
		Rank:      data.Rank,
		Category:  strings.TrimSpace(data.Category),
		Message:   data.Message,
		CreatedAt: s.now().UTC(),
	}
	if feedback.Type == "" {
		feedback.Type = defaultFeedbackType
	}
	if feedback.Category == "" {
		feedback.Category = defaultFeedbackCategory
	}

	if err := s.uowFactory.NewUnitOfWork(ctx).ChatMessageRepository().SetFeedback(ctx, req.MessageID, feedback); err != nil {
		return sessionstore.FeedbackRef{}, err
	}
	return sessionstore.FeedbackRef{FeedbackID: req.MessageID, SessionID: req.SessionID}, nil
}

func (s *sessionHandlerService) deleteFeedback(ctx context.Context, req sessionstore.Request) (string, error) {
	if _, err := s.findOwnedMessage(ctx, req.SessionID, req.MessageID, req.UserID); err != nil {
		return "", err
	}
	if err := s.uowFactory.NewUnitOfWork(ctx).ChatMessageRepository().SetFeedback(ctx, req.MessageID, nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("Feedback for message %s deleted.", req.MessageID), nil
}

func topicSpec(topic string) (specification.Specification, error) {
	switch topic {
	case "", "All", "all":
		return nil, nil
	case "Positive", "Negative":
		return specification.ByFeedbackType{Type: strings.ToLower(topic)}, nil
	}
	if _, ok := feedbackCategories[topic]; ok {
		return specification.ByFeedbackCategory{Category: topic}, nil
	}
	return nil, badRequest("Invalid topic: %s", topic)
}

// findFeedback returns rated messages, newest feedback first.
func (s *sessionHandlerService) findFeedback(ctx context.Context, req sessionstore.Request) ([]*entity.ChatMessage, error) {
	start, err := parseBound(req.StartTime, "start_time")
	if err != nil {
		return nil, err
	}
	end, err := parseBound(req.EndTime, "end_time")
	if err != nil {
		return nil, err
	}
	topic, err := topicSpec(req.Topic)
	if err != nil {
		return nil, err
	}

	specs := []specification.Specification{
		specification.WithFeedback{},
		specification.FeedbackCreatedBetween{Start: start, End: end},
	}
	if req.SessionID != "" {
		specs = append(specs, specification.ByChatSessionID{ChatSessionID: req.SessionID})
	}
	if topic != nil {
		specs = append(specs, topic)
	}
	specs = append(specs,
		specification.OrderBy{Field: "feedback_created_at", Desc: true},
		specification.Pagination{Limit: sessionstore.AllSessionsLimit},
	)
	return s.uowFactory.NewUnitOfWork(ctx).ChatMessageRepository().FindAll(ctx, specs...)
}

func feedbackItem(m *entity.ChatMessage) sessionstore.Feedback {
	var chatbot string
	if m.BotResponse != nil {
		chatbot = *m.BotResponse
	}
	return sessionstore.Feedback{
		FeedbackID:       m.Id,
		SessionID:        m.ChatSessionId,
		UserPrompt:       m.UserPrompt,
		FeedbackComments: m.Feedback.Message,
		FeedbackCategory: m.Feedback.Category,
		FeedbackRank:     m.Feedback.Rank,
		FeedbackType:     m.Feedback.Type,
		ChatbotMessage:   chatbot,
		CreatedAt:        m.Feedback.CreatedAt.Format(time.RFC3339),
	}
}

func (s *sessionHandlerService) listFeedback(ctx context.Context, req sessionstore.Request) ([]sessionstore.Feedback, error) {
	messages, err := s.findFeedback(ctx, req)
	if err != nil {
		return nil, err
	}
	out := make([]sessionstore.Feedback, 0, len(messages))
	for _, m := range messages {
		if m.Feedback != nil {
			out = append(out, feedbackItem(m))
		}
	}
	return out, nil
}

func (s *sessionHandlerService) downloadFeedback(ctx context.Context, req sessionstore.Request) (string, error) {
	items, err := s.listFeedback(ctx, req)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(feedbackCSVHeader); err != nil {
		return "", err
	}
	for _, f := range items {
		rank := ""
		if f.FeedbackRank != nil {
			rank = strconv.Itoa(*f.FeedbackRank)
		}
		if err := w.Write([]string{
			f.FeedbackID, f.SessionID, f.UserPrompt, f.FeedbackComments, f.FeedbackCategory, rank, f.FeedbackType, f.ChatbotMessage, f.CreatedAt,
		}); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
