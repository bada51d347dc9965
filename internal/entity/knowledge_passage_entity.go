package entity

import (
	"time"

	"github.com/google/uuid"
)

type KnowledgePassage struct {
	Id        uuid.UUID
	IndexId   string
	Title     string
	SourceUri string
	Content   string
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScoredPassage is a search hit. Score is similarity for vector search and ts_rank for keyword search.
type ScoredPassage struct {
	KnowledgePassage
	Score float64
}
