package contract

import (
	"context"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/repository/specification"
)

type ChatMessageRepository interface {
	Create(ctx context.Context, message *entity.ChatMessage) error
	DeleteBySessionId(ctx context.Context, sessionId string) error
	// FindBySessionId returns messages oldest first.
	FindBySessionId(ctx context.Context, sessionId string) ([]*entity.ChatMessage, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatMessage, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error)
	// SetFeedback overwrites the message's feedback; nil clears it.
	SetFeedback(ctx context.Context, id string, feedback *entity.MessageFeedback) error
	// SessionIdsWithFeedback returns the subset of sessionIds holding at least one rated message.
	SessionIdsWithFeedback(ctx context.Context, sessionIds []string) (map[string]struct{}, error)
}
