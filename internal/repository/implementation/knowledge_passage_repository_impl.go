package implementation

import (
	"context"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/mapper"
	"rag-chat-be/internal/model"
	"rag-chat-be/internal/repository/contract"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

const defaultSearchLimit = 12

type KnowledgePassageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.KnowledgeMapper
}

func NewKnowledgePassageRepository(db *gorm.DB) contract.KnowledgePassageRepository {
	return &KnowledgePassageRepositoryImpl{
		db:     db,
		mapper: mapper.NewKnowledgeMapper(),
	}
}

func (r *KnowledgePassageRepositoryImpl) Create(ctx context.Context, passage *entity.KnowledgePassage) error {
	m := r.mapper.ToModel(passage)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*passage = *r.mapper.ToEntity(m)
	return nil
}

func (r *KnowledgePassageRepositoryImpl) SearchSimilar(ctx context.Context, indexId string, embedding []float32, limit int) ([]*entity.ScoredPassage, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	vec := pgvector.NewVector(embedding)

	// pgvector cosine distance: embedding <=> vector; similarity = 1 - distance
	var rows []*model.ScoredKnowledgePassage
	err := r.db.WithContext(ctx).
		Table(model.KnowledgePassage{}.TableName()).
		Select("knowledge_passages.*, 1 - (embedding <=> ?) AS score", vec).
		Where("index_id = ?", indexId).
		Order(gorm.Expr("embedding <=> ?", vec)).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.ScoredToEntities(rows), nil
}

func (r *KnowledgePassageRepositoryImpl) SearchKeyword(ctx context.Context, indexId string, query string, limit int) ([]*entity.ScoredPassage, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var rows []*model.ScoredKnowledgePassage
	err := r.db.WithContext(ctx).
		Table(model.KnowledgePassage{}.TableName()).
		Select("knowledge_passages.*, ts_rank(to_tsvector('english', content), plainto_tsquery('english', ?)) AS score", query).
		Where("index_id = ?", indexId).
		Where("to_tsvector('english', content) @@ plainto_tsquery('english', ?)", query).
		Order("score DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.ScoredToEntities(rows), nil
}
