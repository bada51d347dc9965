package contract

import (
	"context"

	"rag-chat-be/internal/entity"
)

type KnowledgePassageRepository interface {
	Create(ctx context.Context, passage *entity.KnowledgePassage) error
	// SearchSimilar scores by cosine similarity (1 - distance), best first.
	SearchSimilar(ctx context.Context, indexId string, embedding []float32, limit int) ([]*entity.ScoredPassage, error)
	// SearchKeyword scores by full-text ts_rank, best first.
	SearchKeyword(ctx context.Context, indexId string, query string, limit int) ([]*entity.ScoredPassage, error)
}
