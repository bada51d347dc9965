package mapper

import (
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type KnowledgeMapper struct{}

func NewKnowledgeMapper() *KnowledgeMapper {
	return &KnowledgeMapper{}
}

func (m *KnowledgeMapper) ToEntity(p *model.KnowledgePassage) *entity.KnowledgePassage {
	if p == nil {
		return nil
	}
	return &entity.KnowledgePassage{
		Id:        p.Id,
		IndexId:   p.IndexId,
		Title:     p.Title,
		SourceUri: p.SourceUri,
		Content:   p.Content,
		Embedding: p.Embedding.Slice(),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (m *KnowledgeMapper) ToModel(p *entity.KnowledgePassage) *model.KnowledgePassage {
	if p == nil {
		return nil
	}
	return &model.KnowledgePassage{
		Id:        p.Id,
		IndexId:   p.IndexId,
		Title:     p.Title,
		SourceUri: p.SourceUri,
		Content:   p.Content,
		Embedding: pgvector.NewVector(p.Embedding),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (m *KnowledgeMapper) ScoredToEntities(rows []*model.ScoredKnowledgePassage) []*entity.ScoredPassage {
	out := make([]*entity.ScoredPassage, 0, len(rows))
	for _, r := range rows {
		out = append(out, &entity.ScoredPassage{
			KnowledgePassage: *m.ToEntity(&r.KnowledgePassage),
			Score:            r.Score,
		})
	}
	return out
}
