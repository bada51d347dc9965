package service

import (
	"context"
	"errors"
	"time"

	"rag-chat-be/internal/dto"
	"rag-chat-be/pkg/kpi"
	"rag-chat-be/pkg/sessionstore"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrKpiDisabled     = errors.New("kpi recording is not configured")
)

// SessionStore is the subset of the session-store client used by the REST API.
type SessionStore interface {
	GetSession(ctx context.Context, userID, sessionID string) (sessionstore.Session, error)
	AddSession(ctx context.Context, userID, sessionID, title string) (sessionstore.MessageRef, error)
	UpdateSession(ctx context.Context, userID, sessionID, prompt string) (string, error)
	ListSessions(ctx context.Context, userID string, all bool) ([]sessionstore.SessionSummary, error)
	DeleteSession(ctx context.Context, userID, sessionID string) error
	ListAllSessions(ctx context.Context, f sessionstore.ListFilter) ([]sessionstore.SessionSummary, error)
	UpdateReview(ctx context.Context, reviewID, sessionID, userID string) (sessionstore.Review, error)
	DeleteReview(ctx context.Context, reviewID, sessionID, userID string) error
	AddFeedback(ctx context.Context, userID, sessionID, messageID string, data sessionstore.FeedbackData) (sessionstore.FeedbackRef, error)
	ListFeedback(ctx context.Context, f sessionstore.FeedbackFilter) ([]sessionstore.Feedback, error)
	DownloadFeedback(ctx context.Context, f sessionstore.FeedbackFilter) (string, error)
	DeleteFeedback(ctx context.Context, userID, sessionID, messageID string) error
}

type KpiReader interface {
	Daily(ctx context.Context, day time.Time) (kpi.Daily, error)
}

type ISessionService interface {
	List(ctx context.Context, userID string, all bool) ([]sessionstore.SessionSummary, error)
	Get(ctx context.Context, userID, sessionID string) (sessionstore.Session, error)
	Create(ctx context.Context, userID string, req dto.CreateSessionRequest) (sessionstore.MessageRef, error)
	AddPrompt(ctx context.Context, userID, sessionID string, req dto.AddPromptRequest) (sessionstore.MessageRef, error)
	Delete(ctx context.Context, userID, sessionID string) error
	AddFeedback(ctx context.Context, userID, sessionID, messageID string, req dto.FeedbackRequest) (sessionstore.FeedbackRef, error)
	// DeleteFeedback skips the ownership check when userID is empty.
	DeleteFeedback(ctx context.Context, userID, sessionID, messageID string) error

	ListAll(ctx context.Context, q dto.AdminSessionsQuery) ([]sessionstore.SessionSummary, error)
	Review(ctx context.Context, reviewerID, sessionID string, req dto.UpdateReviewRequest) (sessionstore.Review, error)
	DeleteReview(ctx context.Context, reviewerID, sessionID string) error
	ListFeedback(ctx context.Context, q dto.FeedbackQuery) ([]sessionstore.Feedback, error)
	DownloadFeedback(ctx context.Context, q dto.FeedbackQuery) (string, error)
	DailyKpi(ctx context.Context, day time.Time) (kpi.Daily, error)
}

type sessionService struct {
	store SessionStore
	kpi   KpiReader
}

func NewSessionService(store SessionStore, kpi KpiReader) ISessionService {
	return &sessionService{store: store, kpi: kpi}
}

func (s *sessionService) List(ctx context.Context, userID string, all bool) ([]sessionstore.SessionSummary, error) {
	return s.store.ListSessions(ctx, userID, all)
}

// Get returns ErrSessionNotFound instead of the store's empty object.
func (s *sessionService) Get(ctx context.Context, userID, sessionID string) (sessionstore.Session, error) {
	session, err := s.store.GetSession(ctx, userID, sessionID)
	if err != nil {
		return sessionstore.Session{}, err
	}
	if !session.Exists() {
		return sessionstore.Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *sessionService) Create(ctx context.Context, userID string, req dto.CreateSessionRequest) (sessionstore.MessageRef, error) {
	return s.store.AddSession(ctx, userID, req.SessionID, req.Title)
}

func (s *sessionService) AddPrompt(ctx context.Context, userID, sessionID string, req dto.AddPromptRequest) (sessionstore.MessageRef, error) {
	if _, err := s.Get(ctx, userID, sessionID); err != nil {
		return sessionstore.MessageRef{}, err
	}
	id, err := s.store.UpdateSession(ctx, userID, sessionID, req.Prompt)
	if err != nil {
		return sessionstore.MessageRef{}, err
	}
	return sessionstore.MessageRef{SessionID: sessionID, MessageID: id}, nil
}

func (s *sessionService) Delete(ctx context.Context, userID, sessionID string) error {
	return s.store.DeleteSession(ctx, userID, sessionID)
}

func (s *sessionService) ListAll(ctx context.Context, q dto.AdminSessionsQuery) ([]sessionstore.SessionSummary, error) {
	return s.store.ListAllSessions(ctx, sessionstore.ListFilter{
		StartTime:   q.StartTime,
		EndTime:     q.EndTime,
		HasFeedback: q.HasFeedback,
		HasReview:   q.HasReview,
		UserID:      q.UserID,
	})
}

func (s *sessionService) Review(ctx context.Context, reviewerID, sessionID string, req dto.UpdateReviewRequest) (sessionstore.Review, error) {
	return s.store.UpdateReview(ctx, req.ReviewID, sessionID, reviewerID)
}

func (s *sessionService) DeleteReview(ctx context.Context, reviewerID, sessionID string) error {
	return s.store.DeleteReview(ctx, "", sessionID, reviewerID)
}

func (s *sessionService) AddFeedback(ctx context.Context, userID, sessionID, messageID string, req dto.FeedbackRequest) (sessionstore.FeedbackRef, error) {
	return s.store.AddFeedback(ctx, userID, sessionID, messageID, sessionstore.FeedbackData{
		Type:     req.FeedbackType,
		Rank:     req.FeedbackRank,
		Category: req.FeedbackCategory,
		Message:  req.FeedbackMessage,
	})
}

func (s *sessionService) DeleteFeedback(ctx context.Context, userID, sessionID, messageID string) error {
	return s.store.DeleteFeedback(ctx, userID, sessionID, messageID)
}

func feedbackFilter(q dto.FeedbackQuery) sessionstore.FeedbackFilter {
	return sessionstore.FeedbackFilter{StartTime: q.StartTime, EndTime: q.EndTime, Topic: q.Topic, SessionID: q.SessionID}
}

func (s *sessionService) ListFeedback(ctx context.Context, q dto.FeedbackQuery) ([]sessionstore.Feedback, error) {
	return s.store.ListFeedback(ctx, feedbackFilter(q))
}

func (s *sessionService) DownloadFeedback(ctx context.Context, q dto.FeedbackQuery) (string, error) {
	return s.store.DownloadFeedback(ctx, feedbackFilter(q))
}

func (s *sessionService) DailyKpi(ctx context.Context, day time.Time) (kpi.Daily, error) {
	if s.kpi == nil {
		return kpi.Daily{}, ErrKpiDisabled
	}
	return s.kpi.Daily(ctx, day)
}
