package sessionstore

// Session is the get_session payload. A missing session decodes with an empty PKSessionID.
type Session struct {
	PKSessionID  string        `json:"pk_session_id,omitempty"`
	UserID       string        `json:"user_id,omitempty"`
	Title        string        `json:"title,omitempty"`
	CreatedAt    string        `json:"created_at,omitempty"`
	UpdatedAt    string        `json:"updated_at,omitempty"`
	MessageCount int           `json:"message_count,omitempty"`
	ChatHistory  []HistoryItem `json:"chat_history,omitempty"`
}

func (s Session) Exists() bool {
	return s.PKSessionID != ""
}

// HistoryItem mirrors what the client renders; metadata is the sources array as a JSON string.
type HistoryItem struct {
	User             string   `json:"user"`
	Chatbot          string   `json:"chatbot"`
	Metadata         string   `json:"metadata"`
	MessageID        string   `json:"messageId"`
	SuggestedPrompts []string `json:"suggested_prompts,omitempty"`
	ResponseTime     float64  `json:"response_time,omitempty"`
}

type MessageRef struct {
	SessionID string `json:"session_id,omitempty"`
	MessageID string `json:"message_id"`
}

type SessionSummary struct {
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id,omitempty"`
	Title       string `json:"title"`
	TimeStamp   string `json:"time_stamp"`
	Reviewed    bool   `json:"reviewed,omitempty"`
	HasFeedback bool   `json:"has_feedback,omitempty"`
}

type Review struct {
	ReviewID   string `json:"review_id"`
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
	ReviewedAt string `json:"reviewed_at,omitempty"`
}

// ListFilter narrows list_all_sessions. Empty fields do not filter.
type ListFilter struct {
	StartTime   string
	EndTime     string
	HasFeedback string
	HasReview   string
	UserID      string
}

// FeedbackData is what a user submits for one answer. Empty Type and Category take defaults.
type FeedbackData struct {
	Type     string `json:"feedback_type,omitempty"`
	Rank     *int   `json:"feedback_rank,omitempty"`
	Category string `json:"feedback_category,omitempty"`
	Message  string `json:"feedback_message,omitempty"`
}

type FeedbackRef struct {
	FeedbackID string `json:"feedback_id"`
	SessionID  string `json:"session_id"`
}

// Feedback is one rated answer as listed for administrators.
type Feedback struct {
	FeedbackID       string `json:"feedback_id"`
	SessionID        string `json:"session_id"`
	UserPrompt       string `json:"user_prompt"`
	FeedbackComments string `json:"feedback_comments"`
	FeedbackCategory string `json:"feedback_category"`
	FeedbackRank     *int   `json:"feedback_rank,omitempty"`
	FeedbackType     string `json:"feedback_type"`
	ChatbotMessage   string `json:"chatbot_message"`
	CreatedAt        string `json:"created_at"`
}

// FeedbackFilter narrows get_feedback and download_feedback. Topic is a type
// ("Positive", "Negative") or a category label; "All" and empty do not filter.
type FeedbackFilter struct {
	StartTime string
	EndTime   string
	Topic     string
	SessionID string
}
