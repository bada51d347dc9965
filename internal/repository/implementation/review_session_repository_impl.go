package implementation

import (
	"context"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/mapper"
	"rag-chat-be/internal/model"
	"rag-chat-be/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReviewSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewReviewSessionRepository(db *gorm.DB) contract.ReviewSessionRepository {
	return &ReviewSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ReviewSessionRepositoryImpl) Upsert(ctx context.Context, review *entity.ReviewSession) error {
	m := r.mapper.ReviewToModel(review)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"reviewer_id", "created_at"}),
		}).
		Create(m).Error
	if err != nil {
		return err
	}
	*review = *r.mapper.ReviewToEntity(m)
	return nil
}

func (r *ReviewSessionRepositoryImpl) DeleteBySessionId(ctx context.Context, sessionId string) error {
	return r.db.WithContext(ctx).Where("chat_session_id = ?", sessionId).Delete(&model.ReviewSession{}).Error
}

func (r *ReviewSessionRepositoryImpl) FindBySessionIds(ctx context.Context, sessionIds []string) (map[string]*entity.ReviewSession, error) {
	out := make(map[string]*entity.ReviewSession, len(sessionIds))
	if len(sessionIds) == 0 {
		return out, nil
	}
	var models []*model.ReviewSession
	if err := r.db.WithContext(ctx).Where("chat_session_id IN ?", sessionIds).Find(&models).Error; err != nil {
		return nil, err
	}
	for _, m := range models {
		out[m.ChatSessionId] = r.mapper.ReviewToEntity(m)
	}
	return out, nil
}
