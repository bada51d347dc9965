package contract

import (
	"context"

	"rag-chat-be/internal/entity"
)

type ReviewSessionRepository interface {
	// Upsert keeps one review per session.
	Upsert(ctx context.Context, review *entity.ReviewSession) error
	DeleteBySessionId(ctx context.Context, sessionId string) error
	FindBySessionIds(ctx context.Context, sessionIds []string) (map[string]*entity.ReviewSession, error)
}
