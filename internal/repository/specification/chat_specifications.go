package specification

import (
	"time"

	"gorm.io/gorm"
)

type ByUserID struct {
	UserID string
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

// CreatedBetween bounds created_at; a zero bound is open.
type CreatedBetween struct {
	Start time.Time
	End   time.Time
}

func (s CreatedBetween) Apply(db *gorm.DB) *gorm.DB {
	if !s.Start.IsZero() {
		db = db.Where("created_at >= ?", s.Start)
	}
	if !s.End.IsZero() {
		db = db.Where("created_at <= ?", s.End)
	}
	return db
}

// Reviewed keeps sessions with (or without) a review row.
type Reviewed struct {
	Reviewed bool
}

func (s Reviewed) Apply(db *gorm.DB) *gorm.DB {
	sub := "SELECT 1 FROM review_sessions WHERE review_sessions.chat_session_id = chat_sessions.id"
	if s.Reviewed {
		return db.Where("EXISTS (" + sub + ")")
	}
	return db.Where("NOT EXISTS (" + sub + ")")
}

// SessionFeedback keeps sessions where at least one message (or none) carries feedback.
type SessionFeedback struct {
	HasFeedback bool
}

func (s SessionFeedback) Apply(db *gorm.DB) *gorm.DB {
	sub := "SELECT 1 FROM chat_messages WHERE chat_messages.chat_session_id = chat_sessions.id AND chat_messages.feedback_type IS NOT NULL"
	if s.HasFeedback {
		return db.Where("EXISTS (" + sub + ")")
	}
	return db.Where("NOT EXISTS (" + sub + ")")
}

type ByChatSessionID struct {
	ChatSessionID string
}

func (s ByChatSessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_session_id = ?", s.ChatSessionID)
}

// WithFeedback keeps messages that have been rated.
type WithFeedback struct{}

func (s WithFeedback) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("feedback_type IS NOT NULL")
}

// FeedbackCreatedBetween bounds feedback_created_at; a zero bound is open.
type FeedbackCreatedBetween struct {
	Start time.Time
	End   time.Time
}

func (s FeedbackCreatedBetween) Apply(db *gorm.DB) *gorm.DB {
	if !s.Start.IsZero() {
		db = db.Where("feedback_created_at >= ?", s.Start)
	}
	if !s.End.IsZero() {
		db = db.Where("feedback_created_at <= ?", s.End)
	}
	return db
}

type ByFeedbackType struct {
	Type string
}

func (s ByFeedbackType) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("feedback_type = ?", s.Type)
}

type ByFeedbackCategory struct {
	Category string
}

func (s ByFeedbackCategory) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("feedback_category = ?", s.Category)
}
