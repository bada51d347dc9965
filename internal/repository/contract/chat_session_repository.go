package contract

import (
	"context"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/repository/specification"
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error
	// CreateIfAbsent reports false when a session with the same id already exists.
	CreateIfAbsent(ctx context.Context, session *entity.ChatSession) (bool, error)
	Update(ctx context.Context, session *entity.ChatSession) error
	Delete(ctx context.Context, id string) error
	IncrementMessageCount(ctx context.Context, id string) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
