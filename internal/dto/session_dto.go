package dto

type CreateSessionRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
	Title     string `json:"title" validate:"max=200"`
}

// AddPromptRequest records a prompt before its answer exists.
type AddPromptRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

type ListSessionsQuery struct {
	All bool `query:"all"`
}

type AdminSessionsQuery struct {
	StartTime   string `query:"start_time"`
	EndTime     string `query:"end_time"`
	HasFeedback string `query:"has_feedback" validate:"omitempty,oneof=true false"`
	HasReview   string `query:"has_review" validate:"omitempty,oneof=true false"`
	UserID      string `query:"user_id"`
}

type UpdateReviewRequest struct {
	ReviewID string `json:"review_id" validate:"omitempty,uuid"`
}

type KpiQuery struct {
	Date string `query:"date" validate:"omitempty,datetime=2006-01-02"`
}

type FeedbackRequest struct {
	FeedbackType     string `json:"feedback_type" validate:"omitempty,oneof=positive negative neutral"`
	FeedbackRank     *int   `json:"feedback_rank" validate:"omitempty,min=1,max=5"`
	FeedbackCategory string `json:"feedback_category" validate:"max=100"`
	FeedbackMessage  string `json:"feedback_message" validate:"max=2000"`
}

type FeedbackQuery struct {
	StartTime string `query:"start_time"`
	EndTime   string `query:"end_time"`
	Topic     string `query:"topic"`
	SessionID string `query:"session_id"`
}
