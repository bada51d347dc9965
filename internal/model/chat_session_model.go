package model

import (
	"time"

	"gorm.io/gorm"
)

type ChatSession struct {
	Id           string         `gorm:"type:text;primaryKey"`
	UserId       string         `gorm:"type:text;not null;index"` // User ownership for data isolation
	Title        string         `gorm:"type:text;not null"`
	MessageCount int            `gorm:"not null;default:0"`
	CreatedAt    time.Time      `gorm:"autoCreateTime;index"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}
