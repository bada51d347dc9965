package model

import (
	"time"

	"github.com/google/uuid"
)

type ReviewSession struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionId string    `gorm:"type:text;not null;uniqueIndex"`
	ReviewerId    string    `gorm:"type:text;not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (ReviewSession) TableName() string {
	return "review_sessions"
}
