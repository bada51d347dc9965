package entity

import (
	"time"
)

// ChatSession ids are chosen by the client, so they are free-form strings.
type ChatSession struct {
	Id           string
	UserId       string
	Title        string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    *time.Time
	DeletedAt    *time.Time
	IsDeleted    bool
}
