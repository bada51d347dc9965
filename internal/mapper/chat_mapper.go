package mapper

import (
	"encoding/json"
	"time"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Session Mappers

func (m *ChatMapper) ChatSessionToEntity(s *model.ChatSession) *entity.ChatSession {
	if s == nil {
		return nil
	}

	var deletedAt *time.Time
	if s.DeletedAt.Valid {
		t := s.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.ChatSession{
		Id:           s.Id,
		UserId:       s.UserId,
		Title:        s.Title,
		MessageCount: s.MessageCount,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    updatedAt,
		DeletedAt:    deletedAt,
		IsDeleted:    s.DeletedAt.Valid,
	}
}

func (m *ChatMapper) ChatSessionToModel(s *entity.ChatSession) *model.ChatSession {
	if s == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if s.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *s.DeletedAt, Valid: true}
	} else if s.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	return &model.ChatSession{
		Id:           s.Id,
		UserId:       s.UserId,
		Title:        s.Title,
		MessageCount: s.MessageCount,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    updatedAt,
		DeletedAt:    deletedAt,
	}
}

// Message Mappers

type sourceJSON struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

func (m *ChatMapper) ChatMessageToEntity(msg *model.ChatMessage) *entity.ChatMessage {
	if msg == nil {
		return nil
	}

	var sources []sourceJSON
	if len(msg.Sources) > 0 {
		_ = json.Unmarshal(msg.Sources, &sources)
	}
	entitySources := make([]entity.Source, 0, len(sources))
	for _, s := range sources {
		entitySources = append(entitySources, entity.Source{Title: s.Title, URI: s.URI})
	}

	var prompts []string
	if len(msg.SuggestedPrompts) > 0 {
		_ = json.Unmarshal(msg.SuggestedPrompts, &prompts)
	}

	return &entity.ChatMessage{
		Id:               msg.Id,
		ChatSessionId:    msg.ChatSessionId,
		UserPrompt:       msg.UserPrompt,
		BotResponse:      msg.BotResponse,
		Sources:          entitySources,
		SuggestedPrompts: prompts,
		ResponseTime:     msg.ResponseTime,
		CreatedAt:        msg.CreatedAt,
		Feedback:         feedbackToEntity(msg),
	}
}

func feedbackToEntity(msg *model.ChatMessage) *entity.MessageFeedback {
	if msg.FeedbackType == nil {
		return nil
	}
	fb := &entity.MessageFeedback{
		Type: *msg.FeedbackType,
		Rank: msg.FeedbackRank,
	}
	if msg.FeedbackCategory != nil {
		fb.Category = *msg.FeedbackCategory
	}
	if msg.FeedbackMessage != nil {
		fb.Message = *msg.FeedbackMessage
	}
	if msg.FeedbackCreatedAt != nil {
		fb.CreatedAt = *msg.FeedbackCreatedAt
	}
	return fb
}

func (m *ChatMapper) ChatMessageToModel(msg *entity.ChatMessage) *model.ChatMessage {
	if msg == nil {
		return nil
	}

	sources := make([]sourceJSON, 0, len(msg.Sources))
	for _, s := range msg.Sources {
		sources = append(sources, sourceJSON{Title: s.Title, URI: s.URI})
	}
	sourcesJSON, _ := json.Marshal(sources)

	prompts := msg.SuggestedPrompts
	if prompts == nil {
		prompts = []string{}
	}
	promptsJSON, _ := json.Marshal(prompts)

	out := &model.ChatMessage{
		Id:               msg.Id,
		ChatSessionId:    msg.ChatSessionId,
		UserPrompt:       msg.UserPrompt,
		BotResponse:      msg.BotResponse,
		Sources:          datatypes.JSON(sourcesJSON),
		SuggestedPrompts: datatypes.JSON(promptsJSON),
		ResponseTime:     msg.ResponseTime,
		CreatedAt:        msg.CreatedAt,
	}
	if fb := msg.Feedback; fb != nil {
		createdAt := fb.CreatedAt
		out.FeedbackType = &fb.Type
		out.FeedbackRank = fb.Rank
		out.FeedbackCategory = &fb.Category
		out.FeedbackMessage = &fb.Message
		out.FeedbackCreatedAt = &createdAt
	}
	return out
}

func (m *ChatMapper) ChatMessagesToEntities(msgs []*model.ChatMessage) []*entity.ChatMessage {
	out := make([]*entity.ChatMessage, len(msgs))
	for i, msg := range msgs {
		out[i] = m.ChatMessageToEntity(msg)
	}
	return out
}

// Review Mappers

func (m *ChatMapper) ReviewToEntity(r *model.ReviewSession) *entity.ReviewSession {
	if r == nil {
		return nil
	}
	return &entity.ReviewSession{
		Id:            r.Id,
		ChatSessionId: r.ChatSessionId,
		ReviewerId:    r.ReviewerId,
		CreatedAt:     r.CreatedAt,
	}
}

func (m *ChatMapper) ReviewToModel(r *entity.ReviewSession) *model.ReviewSession {
	if r == nil {
		return nil
	}
	return &model.ReviewSession{
		Id:            r.Id,
		ChatSessionId: r.ChatSessionId,
		ReviewerId:    r.ReviewerId,
		CreatedAt:     r.CreatedAt,
	}
}
