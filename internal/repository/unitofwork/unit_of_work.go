package unitofwork

import (
	"context"

	"rag-chat-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatSessionRepository() contract.ChatSessionRepository
	ChatMessageRepository() contract.ChatMessageRepository
	ReviewSessionRepository() contract.ReviewSessionRepository
	KnowledgePassageRepository() contract.KnowledgePassageRepository
}
