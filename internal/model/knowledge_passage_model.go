package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

const EmbeddingDimensions = 768

type KnowledgePassage struct {
	Id        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	IndexId   string          `gorm:"type:text;not null;index"`
	Title     string          `gorm:"type:text"`
	SourceUri string          `gorm:"type:text;not null"`
	Content   string          `gorm:"type:text;not null"`
	Embedding pgvector.Vector `gorm:"type:vector(768)"` // nomic-embed-text uses 768 dimensions
	CreatedAt time.Time       `gorm:"autoCreateTime"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime;index"`
}

func (KnowledgePassage) TableName() string {
	return "knowledge_passages"
}

// ScoredKnowledgePassage receives rows selected with a computed score column.
type ScoredKnowledgePassage struct {
	KnowledgePassage
	Score float64
}
