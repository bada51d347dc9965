// Package retrieval queries the knowledge index and keeps only confident, unique passages.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"rag-chat-be/pkg/rag"
	"rag-chat-be/pkg/rag/outcome"
)

const (
	DefaultTopK           = 12
	DefaultThreshold      = 0.5
	DefaultMaxQueryLength = 999

	FallbackContent = "No knowledge available! This query is likely outside the scope of your knowledge.\n" +
		"Please provide a general answer but do not attempt to provide specific details."

	defaultTitle = "Document"
)

var ErrNoKnowledge = errors.New("no passage met the confidence threshold")

// Tiers a keyword index may attach instead of a numeric score.
const (
	TierVeryHigh = "VERY_HIGH"
	TierHigh     = "HIGH"
	TierMedium   = "MEDIUM"
	TierLow      = "LOW"
)

var acceptedTiers = map[string]bool{
	TierVeryHigh: true,
	TierHigh:     true,
	TierMedium:   true,
}

// Passage is one raw index hit. Exactly one of Score or Tier is normally set.
type Passage struct {
	Content   string
	Score     *float64
	Tier      string
	SourceURI string
	Title     string
}

type Query struct {
	Text          string
	IndexID       string
	TopK          int
	SortByRecency bool
}

type Index interface {
	Query(ctx context.Context, q Query) ([]Passage, error)
}

type Result struct {
	Content string
	Sources []rag.Source
}

// Config for a Retriever. A nil Threshold means DefaultThreshold; zero keeps every scored passage.
type Config struct {
	IndexID        string
	TopK           int
	Threshold      *float64
	MaxQueryLength int
	SortByRecency  bool
}

type Retriever struct {
	index     Index
	cfg       Config
	threshold float64
}

func NewRetriever(index Index, cfg Config) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	threshold := DefaultThreshold
	if cfg.Threshold != nil {
		threshold = *cfg.Threshold
	}
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = DefaultMaxQueryLength
	}
	return &Retriever{index: index, cfg: cfg, threshold: threshold}
}

// Retrieve degrades to the fallback content with empty sources on an index error
// or when nothing survives filtering. Both cases look the same to callers.
func (r *Retriever) Retrieve(ctx context.Context, query string) outcome.Result[Result] {
	passages, err := r.index.Query(ctx, Query{
		Text:          truncateRunes(query, r.cfg.MaxQueryLength),
		IndexID:       r.cfg.IndexID,
		TopK:          r.cfg.TopK,
		SortByRecency: r.cfg.SortByRecency,
	})
	if err != nil {
		return outcome.Fallback(fallback(), fmt.Errorf("query index: %w", err))
	}

	res, ok := filter(passages, r.threshold)
	if !ok {
		return outcome.Fallback(res, ErrNoKnowledge)
	}
	return outcome.Ok(res)
}

// filter applies the confidence policy, joins surviving passages and dedups sources by URI.
// ok is false when nothing survived and the fallback was returned.
func filter(passages []Passage, threshold float64) (Result, bool) {
	var contents []string
	sources := make([]rag.Source, 0, len(passages))
	seen := make(map[string]struct{}, len(passages))

	for _, p := range passages {
		if !Qualifies(p, threshold) {
			continue
		}
		contents = append(contents, p.Content)

		if _, dup := seen[p.SourceURI]; dup {
			continue
		}
		seen[p.SourceURI] = struct{}{}
		sources = append(sources, rag.Source{Title: TitleFor(p), URI: p.SourceURI})
	}

	if len(contents) == 0 {
		return fallback(), false
	}
	return Result{Content: strings.Join(contents, "\n"), Sources: sources}, true
}

func Qualifies(p Passage, threshold float64) bool {
	if p.Score != nil {
		return *p.Score >= threshold
	}
	return acceptedTiers[NormalizeTier(p.Tier)]
}

// NormalizeTier maps "very-high", "Very High" and "VERY_HIGH" to the same tier.
func NormalizeTier(tier string) string {
	t := strings.ToUpper(strings.TrimSpace(tier))
	t = strings.NewReplacer("-", "_", " ", "_").Replace(t)
	return t
}

// TitleFor prefers the explicit title, then the URI's last path segment.
func TitleFor(p Passage) string {
	if t := strings.TrimSpace(p.Title); t != "" {
		return t
	}
	uri := p.SourceURI
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	uri = strings.TrimRight(uri, "/")
	if uri == "" {
		return defaultTitle
	}
	base := path.Base(uri)
	if base == "." || base == "/" || base == "" || strings.HasSuffix(base, ":") {
		return defaultTitle
	}
	return base
}

func fallback() Result {
	return Result{Content: FallbackContent, Sources: []rag.Source{}}
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
