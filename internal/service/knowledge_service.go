package service

import (
	"context"
	"fmt"
	"sort"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/repository/unitofwork"
	"rag-chat-be/pkg/embedding"
	"rag-chat-be/pkg/rag/retrieval"
)

const (
	SearchModeVector  = "vector"
	SearchModeKeyword = "keyword"
)

// ts_rank cut-offs for keyword tiers.
const (
	rankVeryHigh = 0.5
	rankHigh     = 0.2
	rankMedium   = 0.1
)

// knowledgeIndex serves retrieval queries from the knowledge_passages table.
type knowledgeIndex struct {
	uowFactory unitofwork.RepositoryFactory
	embedder   embedding.EmbeddingProvider
	mode       string
}

func NewKnowledgeIndex(uowFactory unitofwork.RepositoryFactory, embedder embedding.EmbeddingProvider, mode string) (retrieval.Index, error) {
	switch mode {
	case "", SearchModeVector:
		if embedder == nil {
			return nil, fmt.Errorf("vector search needs an embedding provider")
		}
		mode = SearchModeVector
	case SearchModeKeyword:
	default:
		return nil, fmt.Errorf("unsupported knowledge search mode: %s", mode)
	}
	return &knowledgeIndex{uowFactory: uowFactory, embedder: embedder, mode: mode}, nil
}

func (k *knowledgeIndex) Query(ctx context.Context, q retrieval.Query) ([]retrieval.Passage, error) {
	repo := k.uowFactory.NewUnitOfWork(ctx).KnowledgePassageRepository()

	var (
		hits []*entity.ScoredPassage
		err  error
	)
	if k.mode == SearchModeKeyword {
		hits, err = repo.SearchKeyword(ctx, q.IndexID, q.Text, q.TopK)
	} else {
		var vec []float32
		vec, err = k.embedder.Embed(ctx, q.Text)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		hits, err = repo.SearchSimilar(ctx, q.IndexID, vec, q.TopK)
	}
	if err != nil {
		return nil, fmt.Errorf("search %s index %s: %w", k.mode, q.IndexID, err)
	}

	if q.SortByRecency {
		sort.SliceStable(hits, func(i, j int) bool {
			return hits[i].UpdatedAt.After(hits[j].UpdatedAt)
		})
	}

	passages := make([]retrieval.Passage, 0, len(hits))
	for _, h := range hits {
		p := retrieval.Passage{
			Content:   h.Content,
			SourceURI: h.SourceUri,
			Title:     h.Title,
		}
		if k.mode == SearchModeKeyword {
			p.Tier = rankTier(h.Score)
		} else {
			score := h.Score
			p.Score = &score
		}
		passages = append(passages, p)
	}
	return passages, nil
}

func rankTier(rank float64) string {
	switch {
	case rank >= rankVeryHigh:
		return retrieval.TierVeryHigh
	case rank >= rankHigh:
		return retrieval.TierHigh
	case rank >= rankMedium:
		return retrieval.TierMedium
	}
	return retrieval.TierLow
}
