// Package rerank implements the optional reranker contract from
// SPEC_FULL §4.5: an abstract rerank(query, candidates, k) interface with
// a built-in local scorer, no model weights shipped or downloaded.
package rerank

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Candidate is one item eligible for reranking.
type Candidate struct {
	ChunkID   string
	Text      string
	Embedding []float64
	Score     float64
}

// Options mirrors the teacher's RerankOptions shape (Documents/Query/TopN/
// OnFinish), narrowed to Candidate plus a QueryEmbedding for the built-in
// scorer's cosine term; with no QueryEmbedding that term is zero.
type Options struct {
	Query          string
	QueryEmbedding []float64
	Candidates     []Candidate
	TopN           *int
	OnFinish       func(result *Result)
}

// Item is one reranked entry, mirroring the teacher's RerankItem
// (OriginalIndex/Score/Document).
type Item struct {
	OriginalIndex int
	Score         float64
	Candidate     Candidate
}

// Result mirrors the teacher's RerankResult (original/reranked/ranking).
type Result struct {
	OriginalCandidates []Candidate
	Ranking            []Item
	RerankedCandidates []Candidate
}

// Reranker is the abstract contract; the caller replaces candidate scores
// with the reranker's score and re-sorts descending.
type Reranker interface {
	Rerank(ctx context.Context, opts Options) (*Result, error)
}

// Rerank validates opts and delegates to r, applying TopN truncation.
func Rerank(ctx context.Context, r Reranker, opts Options) (*Result, error) {
	if opts.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if len(opts.Candidates) == 0 {
		return &Result{OriginalCandidates: opts.Candidates}, nil
	}

	result, err := r.Rerank(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("reranking failed: %w", err)
	}

	if opts.TopN != nil && *opts.TopN > 0 && *opts.TopN < len(result.Ranking) {
		result.Ranking = result.Ranking[:*opts.TopN]
		rerankedDocs := make([]Candidate, len(result.Ranking))
		for i, item := range result.Ranking {
			rerankedDocs[i] = item.Candidate
		}
		result.RerankedCandidates = rerankedDocs
	}

	if opts.OnFinish != nil {
		opts.OnFinish(result)
	}
	return result, nil
}

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

// LocalScorer is the built-in cross-encoder-style reranker: a blend of
// lexical term overlap (Jaccard over lowercased tokens) and embedding
// cosine similarity. No model weights are shipped or downloaded.
type LocalScorer struct {
	// LexicalWeight and EmbeddingWeight control the blend; they need not
	// sum to 1. Zero values default to an even 0.5/0.5 split.
	LexicalWeight   float64
	EmbeddingWeight float64
}

func (s LocalScorer) weights() (float64, float64) {
	lw, ew := s.LexicalWeight, s.EmbeddingWeight
	if lw == 0 && ew == 0 {
		return 0.5, 0.5
	}
	return lw, ew
}

// Rerank scores every candidate against opts.Query and sorts descending.
func (s LocalScorer) Rerank(_ context.Context, opts Options) (*Result, error) {
	queryTokens := tokenSet(opts.Query)
	lw, ew := s.weights()

	ranking := make([]Item, len(opts.Candidates))
	for i, c := range opts.Candidates {
		lexical := jaccard(queryTokens, tokenSet(c.Text))
		embedding := 0.0
		if len(opts.QueryEmbedding) > 0 && len(c.Embedding) > 0 {
			embedding = cosineSimilarity(opts.QueryEmbedding, c.Embedding)
		}
		ranking[i] = Item{
			OriginalIndex: i,
			Score:         lw*lexical + ew*embedding,
			Candidate:     c,
		}
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Score > ranking[j].Score
	})

	reranked := make([]Candidate, len(ranking))
	for i, item := range ranking {
		reranked[i] = item.Candidate
	}

	return &Result{
		OriginalCandidates: opts.Candidates,
		Ranking:            ranking,
		RerankedCandidates: reranked,
	}, nil
}

func tokenSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		set[tok] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}
