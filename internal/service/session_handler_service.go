package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/repository/specification"
	"rag-chat-be/internal/repository/unitofwork"
	"rag-chat-be/pkg/rag"
	"rag-chat-be/pkg/sessionstore"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ISessionHandlerService answers session-store requests; replies are always an encoded envelope.
type ISessionHandlerService interface {
	Handle(ctx context.Context, data []byte) []byte
}

type sessionHandlerService struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
	now        func() time.Time
}

func NewSessionHandlerService(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) ISessionHandlerService {
	return &sessionHandlerService{uowFactory: uowFactory, logger: log, now: time.Now}
}

// statusError carries a status and a message that is sent as the JSON string body.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return e.message
}

func badRequest(format string, args ...interface{}) error {
	return &statusError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...interface{}) error {
	return &statusError{status: http.StatusNotFound, message: fmt.Sprintf(format, args...)}
}

// NewMessageID yields MESSAGE-<unix seconds>-<8 hex chars>.
func NewMessageID(now time.Time) string {
	u := uuid.New()
	return fmt.Sprintf("MESSAGE-%d-%s", now.Unix(), hex.EncodeToString(u[:4]))
}

func (s *sessionHandlerService) Handle(ctx context.Context, data []byte) []byte {
	req, err := sessionstore.ParseRequest(data)
	if err != nil {
		return sessionstore.EncodeResponse(http.StatusBadRequest, "Invalid request body")
	}

	payload, err := s.dispatch(ctx, req)
	if err != nil {
		status, msg := s.classify(err)
		details := map[string]interface{}{
			"operation":  req.Operation,
			"session_id": req.SessionID,
			"status":     status,
		}
		if status >= http.StatusInternalServerError {
			details["error"] = err
			s.logger.Error("SessionHandler", "Operation failed", details)
		} else {
			details["reason"] = msg
			s.logger.Warn("SessionHandler", "Operation rejected", details)
		}
		return sessionstore.EncodeResponse(status, msg)
	}
	return sessionstore.EncodeResponse(http.StatusOK, payload)
}

func (s *sessionHandlerService) dispatch(ctx context.Context, req sessionstore.Request) (interface{}, error) {
	switch req.Operation {
	case sessionstore.OpGetSession:
		if err := requireField(req.SessionID, "session_id"); err != nil {
			return nil, err
		}
		return s.getSession(ctx, req.SessionID, req.UserID)
	case sessionstore.OpAddNewSessionWithFirstMessage:
		if err := require2(req.SessionID, "session_id", req.UserID, "user_id"); err != nil {
			return nil, err
		}
		if req.NewChatEntry == nil {
			return nil, badRequest("Missing field: new_chat_entry")
		}
		return s.addNewSessionWithFirstMessage(ctx, req.SessionID, req.UserID, req.Title, *req.NewChatEntry)
	case sessionstore.OpAddMessageToExistingSession:
		if err := requireField(req.SessionID, "session_id"); err != nil {
			return nil, err
		}
		if req.NewChatEntry == nil {
			return nil, badRequest("Missing field: new_chat_entry")
		}
		return s.addMessage(ctx, req.SessionID, *req.NewChatEntry, true)
	case sessionstore.OpAddSession:
		if err := require2(req.SessionID, "session_id", req.UserID, "user_id"); err != nil {
			return nil, err
		}
		return s.addSession(ctx, req.SessionID, req.UserID, req.Title)
	case sessionstore.OpUpdateSession:
		if err := requireField(req.SessionID, "session_id"); err != nil {
			return nil, err
		}
		entry := sessionstore.ChatEntry{}
		if req.NewChatEntry != nil {
			entry = sessionstore.ChatEntry{UserPrompt: req.NewChatEntry.UserPrompt}
		}
		ref, err := s.addMessage(ctx, req.SessionID, entry, false)
		if err != nil {
			return nil, err
		}
		return sessionstore.MessageRef{MessageID: ref.MessageID}, nil
	case sessionstore.OpListSessionsByUserID:
		if err := requireField(req.UserID, "user_id"); err != nil {
			return nil, err
		}
		return s.listByUser(ctx, req.UserID, sessionstore.RecentSessionsLimit)
	case sessionstore.OpListAllSessionsByUserID:
		if err := requireField(req.UserID, "user_id"); err != nil {
			return nil, err
		}
		return s.listByUser(ctx, req.UserID, sessionstore.AllSessionsLimit)
	case sessionstore.OpDeleteSession:
		if err := requireField(req.SessionID, "session_id"); err != nil {
			return nil, err
		}
		return s.deleteSession(ctx, req.SessionID, req.UserID)
	case sessionstore.OpListAllSessions:
		return s.listAll(ctx, req)
	case sessionstore.OpUpdateReviewSession:
		if err := require2(req.SessionID, "session_id", req.UserID, "user_id"); err != nil {
			return nil, err
		}
		return s.updateReview(ctx, req.ReviewID, req.SessionID, req.UserID)
	case sessionstore.OpDeleteReviewSession:
		if err := requireField(req.SessionID, "session_id"); err != nil {
			return nil, err
		}
		return s.deleteReview(ctx, req.SessionID)
	case sessionstore.OpAddFeedback:
		if err := require2(req.SessionID, "session_id", req.MessageID, "message_id"); err != nil {
			return nil, err
		}
		if req.FeedbackData == nil {
			return nil, badRequest("Missing field: feedback_data")
		}
		return s.addFeedback(ctx, req)
	case sessionstore.OpGetFeedback:
		return s.listFeedback(ctx, req)
	case sessionstore.OpDownloadFeedback:
		return s.downloadFeedback(ctx, req)
	case sessionstore.OpDeleteFeedback:
		if err := require2(req.SessionID, "session_id", req.MessageID, "message_id"); err != nil {
			return nil, err
		}
		return s.deleteFeedback(ctx, req)
	}
	return nil, badRequest("Invalid operation: %s", req.Operation)
}

func requireField(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return badRequest("Missing field: %s", field)
	}
	return nil
}

func require2(v1, f1, v2, f2 string) error {
	if err := requireField(v1, f1); err != nil {
		return err
	}
	return requireField(v2, f2)
}

func (s *sessionHandlerService) classify(err error) (int, string) {
	var se *statusError
	if errors.As(err, &se) {
		return se.status, se.message
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return http.StatusConflict, "Duplicate record"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return http.StatusConflict, "Duplicate record"
		case "22P02", "22007", "22008":
			return http.StatusBadRequest, "Invalid value: " + pgErr.Message
		}
	}
	return http.StatusInternalServerError, err.Error()
}

func (s *sessionHandlerService) getSession(ctx context.Context, sessionID, userID string) (interface{}, error) {
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
		return map[string]interface{}{}, nil
	}

	messages, err := uow.ChatMessageRepository().FindBySessionId(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	out := sessionstore.Session{
		PKSessionID:  session.Id,
		UserID:       session.UserId,
		Title:        session.Title,
		CreatedAt:    session.CreatedAt.Format(time.RFC3339),
		MessageCount: session.MessageCount,
		ChatHistory:  make([]sessionstore.HistoryItem, 0, len(messages)),
	}
	if session.UpdatedAt != nil {
		out.UpdatedAt = session.UpdatedAt.Format(time.RFC3339)
	}
	for _, m := range messages {
		out.ChatHistory = append(out.ChatHistory, historyItem(m))
	}
	return out, nil
}

func historyItem(m *entity.ChatMessage) sessionstore.HistoryItem {
	sources := make([]rag.Source, 0, len(m.Sources))
	for _, src := range m.Sources {
		sources = append(sources, rag.Source{Title: src.Title, URI: src.URI})
	}
	metadata, _ := json.Marshal(sources)

	var chatbot string
	if m.BotResponse != nil {
		chatbot = *m.BotResponse
	}
	return sessionstore.HistoryItem{
		User:             m.UserPrompt,
		Chatbot:          chatbot,
		Metadata:         string(metadata),
		MessageID:        m.Id,
		SuggestedPrompts: m.SuggestedPrompts,
		ResponseTime:     m.ResponseTime,
	}
}

func (s *sessionHandlerService) messageFromEntry(sessionID string, entry sessionstore.ChatEntry, answered bool) *entity.ChatMessage {
	msg := &entity.ChatMessage{
		Id:               NewMessageID(s.now()),
		ChatSessionId:    sessionID,
		UserPrompt:       entry.UserPrompt,
		SuggestedPrompts: entry.SuggestedPrompts,
		ResponseTime:     entry.ResponseTime,
	}
	if answered {
		bot := entry.BotResponse
		msg.BotResponse = &bot
	}
	for _, src := range entry.Sources {
		msg.Sources = append(msg.Sources, entity.Source{Title: src.Title, URI: src.URI})
	}
	return msg
}

// addNewSessionWithFirstMessage tolerates an existing session: the message is still stored.
func (s *sessionHandlerService) addNewSessionWithFirstMessage(ctx context.Context, sessionID, userID, title string, entry sessionstore.ChatEntry) (sessionstore.MessageRef, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return sessionstore.MessageRef{}, err
	}
	defer uow.Rollback()

	created, err := uow.ChatSessionRepository().CreateIfAbsent(ctx, &entity.ChatSession{
		Id:           sessionID,
		UserId:       userID,
		Title:        strings.TrimSpace(title),
		MessageCount: 1,
	})
	if err != nil {
		return sessionstore.MessageRef{}, err
	}
	if !created {
		if err := uow.ChatSessionRepository().IncrementMessageCount(ctx, sessionID); err != nil {
			return sessionstore.MessageRef{}, err
		}
	}

	msg := s.messageFromEntry(sessionID, entry, true)
	if err := uow.ChatMessageRepository().Create(ctx, msg); err != nil {
		return sessionstore.MessageRef{}, err
	}
	if err := uow.Commit(); err != nil {
		return sessionstore.MessageRef{}, err
	}
	return sessionstore.MessageRef{SessionID: sessionID, MessageID: msg.Id}, nil
}

func (s *sessionHandlerService) addMessage(ctx context.Context, sessionID string, entry sessionstore.ChatEntry, answered bool) (sessionstore.MessageRef, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return sessionstore.MessageRef{}, err
	}
	defer uow.Rollback()

	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByKey{Key: sessionID})
	if err != nil {
		return sessionstore.MessageRef{}, err
	}
	if session == nil {
		return sessionstore.MessageRef{}, notFound("Session %s not found", sessionID)
	}

	msg := s.messageFromEntry(sessionID, entry, answered)
	if err := uow.ChatMessageRepository().Create(ctx, msg); err != nil {
		return sessionstore.MessageRef{}, err
	}
	if err := uow.ChatSessionRepository().IncrementMessageCount(ctx, sessionID); err != nil {
		return sessionstore.MessageRef{}, err
	}
	if err := uow.Commit(); err != nil {
		return sessionstore.MessageRef{}, err
	}
	return sessionstore.MessageRef{SessionID: sessionID, MessageID: msg.Id}, nil
}

func (s *sessionHandlerService) addSession(ctx context.Context, sessionID, userID, title string) (sessionstore.MessageRef, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := uow.ChatSessionRepository().CreateIfAbsent(ctx, &entity.ChatSession{
		Id:     sessionID,
		UserId: userID,
		Title:  strings.TrimSpace(title),
	}); err != nil {
		return sessionstore.MessageRef{}, err
	}
	return sessionstore.MessageRef{SessionID: sessionID}, nil
}

func (s *sessionHandlerService) listByUser(ctx context.Context, userID string, limit int) ([]sessionstore.SessionSummary, error) {
	sessions, err := s.uowFactory.NewUnitOfWork(ctx).ChatSessionRepository().FindAll(ctx,
		specification.ByUserID{UserID: userID},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit},
	)
	if err != nil {
		return nil, err
	}
	out := make([]sessionstore.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionstore.SessionSummary{
			SessionID: sess.Id,
			Title:     strings.TrimSpace(sess.Title),
			TimeStamp: sess.CreatedAt.Format(time.RFC3339),
		})
	}
	return out, nil
}

func (s *sessionHandlerService) deleteSession(ctx context.Context, sessionID, userID string) (string, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return "", err
	}
	defer uow.Rollback()

	specs := []specification.Specification{specification.ByKey{Key: sessionID}}
	if userID != "" {
		specs = append(specs, specification.ByUserID{UserID: userID})
	}
	session, err := uow.ChatSessionRepository().FindOne(ctx, specs...)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", notFound("Session %s not found", sessionID)
	}

	if err := uow.ChatMessageRepository().DeleteBySessionId(ctx, sessionID); err != nil {
		return "", err
	}
	if err := uow.ReviewSessionRepository().DeleteBySessionId(ctx, sessionID); err != nil {
		return "", err
	}
	if err := uow.ChatSessionRepository().Delete(ctx, sessionID); err != nil {
		return "", err
	}
	if err := uow.Commit(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Session %s deleted.", sessionID), nil
}

func parseBound(value, field string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, badRequest("Invalid %s: %s", field, value)
}

func (s *sessionHandlerService) listAll(ctx context.Context, req sessionstore.Request) ([]sessionstore.SessionSummary, error) {
	start, err := parseBound(req.StartTime, "start_time")
	if err != nil {
		return nil, err
	}
	end, err := parseBound(req.EndTime, "end_time")
	if err != nil {
		return nil, err
	}

	specs := []specification.Specification{specification.CreatedBetween{Start: start, End: end}}
	if req.UserID != "" {
		specs = append(specs, specification.ByUserID{UserID: req.UserID})
	}
	switch strings.ToLower(req.HasReview) {
	case "true":
		specs = append(specs, specification.Reviewed{Reviewed: true})
	case "false":
		specs = append(specs, specification.Reviewed{Reviewed: false})
	}
	switch strings.ToLower(req.HasFeedback) {
	case "true":
		specs = append(specs, specification.SessionFeedback{HasFeedback: true})
	case "false":
		specs = append(specs, specification.SessionFeedback{HasFeedback: false})
	}
	specs = append(specs,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: sessionstore.AllSessionsLimit},
	)

	uow := s.uowFactory.NewUnitOfWork(ctx)
	sessions, err := uow.ChatSessionRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(sessions))
	for i, sess := range sessions {
		ids[i] = sess.Id
	}
	reviews, err := uow.ReviewSessionRepository().FindBySessionIds(ctx, ids)
	if err != nil {
		return nil, err
	}
	rated, err := uow.ChatMessageRepository().SessionIdsWithFeedback(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]sessionstore.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		_, reviewed := reviews[sess.Id]
		_, hasFeedback := rated[sess.Id]
		out = append(out, sessionstore.SessionSummary{
			SessionID:   sess.Id,
			UserID:      sess.UserId,
			Title:       strings.TrimSpace(sess.Title),
			TimeStamp:   sess.CreatedAt.Format(time.RFC3339),
			Reviewed:    reviewed,
			HasFeedback: hasFeedback,
		})
	}
	return out, nil
}

func (s *sessionHandlerService) updateReview(ctx context.Context, reviewID, sessionID, reviewerID string) (sessionstore.Review, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByKey{Key: sessionID})
	if err != nil {
		return sessionstore.Review{}, err
	}
	if session == nil {
		return sessionstore.Review{}, notFound("Session %s not found", sessionID)
	}

	review := &entity.ReviewSession{
		ChatSessionId: sessionID,
		ReviewerId:    reviewerID,
		CreatedAt:     s.now(),
	}
	if reviewID != "" {
		id, err := uuid.Parse(reviewID)
		if err != nil {
			return sessionstore.Review{}, badRequest("Invalid review_id: %s", reviewID)
		}
		review.Id = id
	} else {
		review.Id = uuid.New()
	}

	if err := uow.ReviewSessionRepository().Upsert(ctx, review); err != nil {
		return sessionstore.Review{}, err
	}
	return sessionstore.Review{
		ReviewID:   review.Id.String(),
		SessionID:  sessionID,
		UserID:     reviewerID,
		ReviewedAt: review.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *sessionHandlerService) deleteReview(ctx context.Context, sessionID string) (string, error) {
	if err := s.uowFactory.NewUnitOfWork(ctx).ReviewSessionRepository().DeleteBySessionId(ctx, sessionID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Review for session %s deleted.", sessionID), nil
}
