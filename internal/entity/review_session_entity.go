package entity

import (
	"time"

	"github.com/google/uuid"
)

// ReviewSession marks a session as reviewed by an administrator.
type ReviewSession struct {
	Id            uuid.UUID
	ChatSessionId string
	ReviewerId    string
	CreatedAt     time.Time
}
