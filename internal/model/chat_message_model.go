package model

import (
	"time"

	"gorm.io/datatypes"
)

type ChatMessage struct {
	Id               string         `gorm:"type:text;primaryKey"`
	ChatSessionId    string         `gorm:"type:text;not null;index"`
	UserPrompt       string         `gorm:"type:text;not null"`
	BotResponse      *string        `gorm:"type:text"`
	Sources          datatypes.JSON `gorm:"type:jsonb"`
	SuggestedPrompts datatypes.JSON `gorm:"type:jsonb"`
	ResponseTime     float64        `gorm:"not null;default:0"`
	CreatedAt        time.Time      `gorm:"autoCreateTime;index"`

	FeedbackType      *string    `gorm:"type:text;index"`
	FeedbackRank      *int       `gorm:"type:integer"`
	FeedbackCategory  *string    `gorm:"type:text"`
	FeedbackMessage   *string    `gorm:"type:text"`
	FeedbackCreatedAt *time.Time `gorm:"index"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
