package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/repository/contract"
	"rag-chat-be/internal/repository/unitofwork"
	"rag-chat-be/pkg/rag/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKnowledgeRepo struct {
	hits       []*entity.ScoredPassage
	err        error
	gotVector  []float32
	gotKeyword string
	gotLimit   int
}

func (f *fakeKnowledgeRepo) Create(ctx context.Context, p *entity.KnowledgePassage) error {
	return nil
}

func (f *fakeKnowledgeRepo) SearchSimilar(ctx context.Context, indexId string, embedding []float32, limit int) ([]*entity.ScoredPassage, error) {
	f.gotVector = embedding
	f.gotLimit = limit
	return f.hits, f.err
}

func (f *fakeKnowledgeRepo) SearchKeyword(ctx context.Context, indexId string, query string, limit int) ([]*entity.ScoredPassage, error) {
	f.gotKeyword = query
	f.gotLimit = limit
	return f.hits, f.err
}

type fakeUow struct {
	knowledge contract.KnowledgePassageRepository
	sessions  contract.ChatSessionRepository
	messages  contract.ChatMessageRepository
	reviews   contract.ReviewSessionRepository
	begun     int
	committed int
	rolled    int
}

func (u *fakeUow) Begin(ctx context.Context) error {
	u.begun++
	return nil
}

func (u *fakeUow) Commit() error {
	u.committed++
	return nil
}

func (u *fakeUow) Rollback() error {
	u.rolled++
	return nil
}

func (u *fakeUow) ChatSessionRepository() contract.ChatSessionRepository     { return u.sessions }
func (u *fakeUow) ChatMessageRepository() contract.ChatMessageRepository     { return u.messages }
func (u *fakeUow) ReviewSessionRepository() contract.ReviewSessionRepository { return u.reviews }
func (u *fakeUow) KnowledgePassageRepository() contract.KnowledgePassageRepository {
	return u.knowledge
}

type fakeFactory struct {
	uow *fakeUow
}

func (f fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return f.uow
}

type fakeEmbedder struct {
	err error
}

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.6, 0.8}, f.err
}

func hit(content, uri string, score float64, updated time.Time) *entity.ScoredPassage {
	return &entity.ScoredPassage{
		KnowledgePassage: entity.KnowledgePassage{Content: content, SourceUri: uri, UpdatedAt: updated},
		Score:            score,
	}
}

func TestKnowledgeIndex_Vector(t *testing.T) {
	repo := &fakeKnowledgeRepo{hits: []*entity.ScoredPassage{hit("a", "u1", 0.9, time.Time{})}}
	idx, err := NewKnowledgeIndex(fakeFactory{&fakeUow{knowledge: repo}}, fakeEmbedder{}, SearchModeVector)
	require.NoError(t, err)

	got, err := idx.Query(context.Background(), retrieval.Query{Text: "q", IndexID: "kb", TopK: 12})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Score)
	assert.Equal(t, 0.9, *got[0].Score)
	assert.Empty(t, got[0].Tier)
	assert.Equal(t, []float32{0.6, 0.8}, repo.gotVector)
	assert.Equal(t, 12, repo.gotLimit)
}

func TestKnowledgeIndex_EmbedFailure(t *testing.T) {
	idx, err := NewKnowledgeIndex(fakeFactory{&fakeUow{knowledge: &fakeKnowledgeRepo{}}}, fakeEmbedder{err: errors.New("down")}, "")
	require.NoError(t, err)

	_, err = idx.Query(context.Background(), retrieval.Query{Text: "q"})
	assert.ErrorContains(t, err, "embed query")
}

func TestKnowledgeIndex_KeywordTiers(t *testing.T) {
	repo := &fakeKnowledgeRepo{hits: []*entity.ScoredPassage{
		hit("a", "u1", 0.7, time.Time{}),
		hit("b", "u2", 0.3, time.Time{}),
		hit("c", "u3", 0.15, time.Time{}),
		hit("d", "u4", 0.01, time.Time{}),
	}}
	idx, err := NewKnowledgeIndex(fakeFactory{&fakeUow{knowledge: repo}}, nil, SearchModeKeyword)
	require.NoError(t, err)

	got, err := idx.Query(context.Background(), retrieval.Query{Text: "deadline"})
	require.NoError(t, err)

	tiers := make([]string, len(got))
	for i, p := range got {
		tiers[i] = p.Tier
		assert.Nil(t, p.Score)
	}
	assert.Equal(t, []string{retrieval.TierVeryHigh, retrieval.TierHigh, retrieval.TierMedium, retrieval.TierLow}, tiers)
	assert.Equal(t, "deadline", repo.gotKeyword)

	res := retrieval.Filter(got, 0.5)
	assert.Len(t, res.Sources, 3)
}

func TestKnowledgeIndex_SortByRecency(t *testing.T) {
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeKnowledgeRepo{hits: []*entity.ScoredPassage{
		hit("old", "u1", 0.9, old),
		hit("new", "u2", 0.8, old.AddDate(1, 0, 0)),
	}}
	idx, _ := NewKnowledgeIndex(fakeFactory{&fakeUow{knowledge: repo}}, fakeEmbedder{}, SearchModeVector)

	got, err := idx.Query(context.Background(), retrieval.Query{Text: "q", SortByRecency: true})
	require.NoError(t, err)
	assert.Equal(t, "new", got[0].Content)
}

func TestNewKnowledgeIndex_Validation(t *testing.T) {
	_, err := NewKnowledgeIndex(fakeFactory{}, nil, SearchModeVector)
	assert.Error(t, err)
	_, err = NewKnowledgeIndex(fakeFactory{}, nil, "fuzzy")
	assert.Error(t, err)
}
