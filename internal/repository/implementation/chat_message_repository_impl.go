package implementation

import (
	"context"
	"errors"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/mapper"
	"rag-chat-be/internal/model"
	"rag-chat-be/internal/repository/contract"
	"rag-chat-be/internal/repository/scope"
	"rag-chat-be/internal/repository/specification"

	"gorm.io/gorm"
)

type ChatMessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatMessageRepository(db *gorm.DB) contract.ChatMessageRepository {
	return &ChatMessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatMessageRepositoryImpl) Create(ctx context.Context, message *entity.ChatMessage) error {
	m := r.mapper.ChatMessageToModel(message)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*message = *r.mapper.ChatMessageToEntity(m)
	return nil
}

func (r *ChatMessageRepositoryImpl) DeleteBySessionId(ctx context.Context, sessionId string) error {
	return r.db.WithContext(ctx).Where("chat_session_id = ?", sessionId).Delete(&model.ChatMessage{}).Error
}

func (r *ChatMessageRepositoryImpl) FindBySessionId(ctx context.Context, sessionId string) ([]*entity.ChatMessage, error) {
	var models []*model.ChatMessage
	err := r.db.WithContext(ctx).
		Scopes(scope.OrderByCreatedAsc).
		Where("chat_session_id = ?", sessionId).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.ChatMessagesToEntities(models), nil
}

func (r *ChatMessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&model.ChatMessage{})
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChatMessageRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatMessage, error) {
	var m model.ChatMessage
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ChatMessageToEntity(&m), nil
}

func (r *ChatMessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	var models []*model.ChatMessage
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ChatMessagesToEntities(models), nil
}

func (r *ChatMessageRepositoryImpl) SetFeedback(ctx context.Context, id string, feedback *entity.MessageFeedback) error {
	columns := map[string]interface{}{
		"feedback_type":       nil,
		"feedback_rank":       nil,
		"feedback_category":   nil,
		"feedback_message":    nil,
		"feedback_created_at": nil,
	}
	if feedback != nil {
		columns["feedback_type"] = feedback.Type
		columns["feedback_rank"] = feedback.Rank
		columns["feedback_category"] = feedback.Category
		columns["feedback_message"] = feedback.Message
		columns["feedback_created_at"] = feedback.CreatedAt
	}
	return r.db.WithContext(ctx).
		Model(&model.ChatMessage{}).
		Where("id = ?", id).
		Updates(columns).
		Error
}

func (r *ChatMessageRepositoryImpl) SessionIdsWithFeedback(ctx context.Context, sessionIds []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if len(sessionIds) == 0 {
		return out, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.ChatMessage{}).
		Distinct("chat_session_id").
		Where("chat_session_id IN ?", sessionIds).
		Where("feedback_type IS NOT NULL").
		Pluck("chat_session_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}
