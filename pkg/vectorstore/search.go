package vectorstore

import (
	"context"
	"fmt"

	"github.com/masaic-ai-platform/gateway/pkg/hybridsearch"
	"github.com/masaic-ai-platform/gateway/pkg/rerank"
	"github.com/masaic-ai-platform/gateway/pkg/responsetypes"
	"github.com/masaic-ai-platform/gateway/pkg/vectorsearch"
)

// QueryRewriter produces a search-optimized query, per SPEC_FULL §4.6 step
// 1 ("ask the configured model to produce a search-optimized query").
type QueryRewriter interface {
	Rewrite(ctx context.Context, query string) (string, error)
}

// SearchParams configures Service.Search.
type SearchParams struct {
	Query          string
	VectorStoreIDs []string
	MaxNumResults  int
	Ranking        responsetypes.RankingOptions
	Filter         *responsetypes.Filter
	RewriteQuery   bool
	Rewriter       QueryRewriter
	Reranker       rerank.Reranker
}

// SearchResult is one mapped record from Service.Search.
type SearchResult struct {
	FileID      string
	Filename    string
	ChunkIndex  int
	Score       float64
	Content     string
	Attributes  map[string]interface{}
	Annotation  responsetypes.Annotation
}

// SearchOutcome wraps the ranked results plus the rewritten query, if any.
type SearchOutcome struct {
	Results     []SearchResult
	SearchQuery string
}

// Search implements the search pipeline from SPEC_FULL §4.6: optional query
// rewrite, combined filter, semantic search, optional hybrid fusion,
// optional rerank, then truncate to MaxNumResults.
func (s *Service) Search(ctx context.Context, params SearchParams) (*SearchOutcome, error) {
	if err := s.checkStoresSearchable(params.VectorStoreIDs); err != nil {
		return nil, err
	}

	query := params.Query
	if params.RewriteQuery && params.Rewriter != nil {
		rewritten, err := params.Rewriter.Rewrite(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("rewriting query: %w", err)
		}
		query = rewritten
	}

	combinedFilter := s.combinedFilter(params.VectorStoreIDs, params.Filter)

	semanticResults, err := s.semantic.Search(ctx, vectorsearch.SearchParams{
		Query: query, MaxResults: 0, Ranking: params.Ranking,
		Filter: combinedFilter, VectorStoreIDs: params.VectorStoreIDs,
	})
	if err != nil {
		return nil, err
	}

	var merged []vectorsearch.Result
	if s.fulltext != nil && params.Ranking.UsesHybrid() {
		lexical := s.fulltext.Search(query, 0, params.VectorStoreIDs)
		merged = s.fuse(semanticResults, lexical)
		if params.Filter != nil {
			merged = s.filterByMergedAttributes(merged, params.Filter, params.VectorStoreIDs)
		}
	} else {
		merged = semanticResults
	}

	if params.Ranking.ScoreThreshold > 0 {
		filtered := merged[:0]
		for _, r := range merged {
			if r.Score >= params.Ranking.ScoreThreshold {
				filtered = append(filtered, r)
			}
		}
		merged = filtered
	}

	if params.Reranker != nil {
		merged, err = s.applyRerank(ctx, query, merged, params.Reranker)
		if err != nil {
			return nil, err
		}
	}

	if params.MaxNumResults > 0 && len(merged) > params.MaxNumResults {
		merged = merged[:params.MaxNumResults]
	}

	results := make([]SearchResult, len(merged))
	for i, r := range merged {
		chunkIndex := chunkIndexFromID(r.ChunkID)
		attrs := mergeFileAttributes(s.fileAttributes(r.FileID, params.VectorStoreIDs), r.Attributes)
		results[i] = SearchResult{
			FileID: r.FileID, Filename: r.Filename, ChunkIndex: chunkIndex,
			Score: r.Score, Content: r.Content, Attributes: attrs,
			Annotation: responsetypes.Annotation{
				Type: "file_citation", FileID: r.FileID, Filename: r.Filename, Index: chunkIndex,
			},
		}
	}

	return &SearchOutcome{Results: results, SearchQuery: query}, nil
}

// combinedFilter ANDs the vector-store restriction with the caller's
// filter tree, per SPEC_FULL §4.6 step 2. Vector-store scoping is already
// enforced natively by Search's VectorStoreIDs parameter, so this only
// needs to carry the caller's filter through unchanged; it exists as its
// own step to keep the AND semantics explicit and extensible (e.g. a
// future file_id allow-list could be ANDed in here too).
func (s *Service) combinedFilter(vectorStoreIDs []string, userFilter *responsetypes.Filter) *responsetypes.Filter {
	return userFilter
}

// checkStoresSearchable sweeps expiration for every requested store and
// refuses the search with a validation_error if any of them has expired,
// per SPEC_FULL §5's "a subsequent search returns validation_error" and
// §4.6's "once expired, writes are refused" (search is read-only but the
// same expired-store refusal applies).
func (s *Service) checkStoresSearchable(vectorStoreIDs []string) error {
	if len(vectorStoreIDs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range vectorStoreIDs {
		store, ok := s.stores[id]
		if !ok {
			return ErrVectorStoreNotFound(id)
		}
		s.sweepExpirationLocked(store)
		if store.Status == StoreStatusExpired {
			return ErrVectorStoreExpired(id)
		}
	}
	return nil
}

// filterByMergedAttributes re-applies the caller's filter over each fused
// result's merged (file-attributes-over-chunk-attributes) view, per
// invariant 4 ("search never returns C unless F evaluates true on C's
// merged attributes"). The semantic path already filters on chunk
// attributes inside vectorsearch.Index.Search, but lexical-only chunks
// (present only in the full-text index, never scored by the semantic
// path) are never checked against the filter before this point.
func (s *Service) filterByMergedAttributes(results []vectorsearch.Result, filter *responsetypes.Filter, vectorStoreIDs []string) []vectorsearch.Result {
	out := results[:0]
	for _, r := range results {
		merged := mergeFileAttributes(s.fileAttributes(r.FileID, vectorStoreIDs), r.Attributes)
		if vectorsearch.MatchesFilter(*filter, merged) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Service) fuse(semantic []vectorsearch.Result, lexical []hybridsearch.ScoredChunk) []vectorsearch.Result {
	semanticItems := make([]hybridsearch.RankedItem, len(semantic))
	byChunk := map[string]vectorsearch.Result{}
	for i, r := range semantic {
		semanticItems[i] = hybridsearch.RankedItem{ChunkID: r.ChunkID, FileID: r.FileID, Filename: r.Filename, Text: r.Content, Attributes: r.Attributes}
		byChunk[r.ChunkID] = r
	}
	lexicalItems := make([]hybridsearch.RankedItem, len(lexical))
	for i, l := range lexical {
		lexicalItems[i] = hybridsearch.RankedItem{ChunkID: l.ChunkID, FileID: l.FileID, Filename: l.Filename, Text: l.Text, Attributes: l.Attributes}
		if _, ok := byChunk[l.ChunkID]; !ok {
			byChunk[l.ChunkID] = vectorsearch.Result{FileID: l.FileID, Filename: l.Filename, Content: l.Text, ChunkID: l.ChunkID, Attributes: l.Attributes}
		}
	}

	fused := hybridsearch.Fuse(semanticItems, lexicalItems, 0)
	out := make([]vectorsearch.Result, len(fused))
	for i, f := range fused {
		base := byChunk[f.ChunkID]
		out[i] = vectorsearch.Result{
			FileID: base.FileID, Filename: base.Filename, Content: base.Content,
			ChunkID: f.ChunkID, Attributes: base.Attributes, Score: f.Score,
		}
	}
	return out
}

func (s *Service) applyRerank(ctx context.Context, query string, results []vectorsearch.Result, reranker rerank.Reranker) ([]vectorsearch.Result, error) {
	candidates := make([]rerank.Candidate, len(results))
	for i, r := range results {
		candidates[i] = rerank.Candidate{ChunkID: r.ChunkID, Text: r.Content, Score: r.Score}
	}
	out, err := rerank.Rerank(ctx, reranker, rerank.Options{Query: query, Candidates: candidates})
	if err != nil {
		return nil, err
	}
	byChunk := map[string]vectorsearch.Result{}
	for _, r := range results {
		byChunk[r.ChunkID] = r
	}
	reranked := make([]vectorsearch.Result, len(out.Ranking))
	for i, item := range out.Ranking {
		base := byChunk[item.Candidate.ChunkID]
		base.Score = item.Score
		reranked[i] = base
	}
	return reranked, nil
}

func (s *Service) fileAttributes(fileID string, vectorStoreIDs []string) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := vectorStoreIDs
	if len(ids) == 0 {
		for id := range s.stores {
			ids = append(ids, id)
		}
	}
	for _, storeID := range ids {
		store, ok := s.stores[storeID]
		if !ok {
			continue
		}
		if f, ok := store.Files[fileID]; ok {
			return f.Attributes
		}
	}
	return nil
}

// mergeFileAttributes merges the file's attributes over the chunk's own,
// per SPEC_FULL §4.6 step 6: "includes the originating file's attributes
// merged over the chunk's own attributes".
func mergeFileAttributes(fileAttrs, chunkAttrs map[string]interface{}) map[string]interface{} {
	merged := map[string]interface{}{}
	for k, v := range chunkAttrs {
		merged[k] = v
	}
	for k, v := range fileAttrs {
		merged[k] = v
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

func chunkIndexFromID(chunkID string) int {
	idx := 0
	for i := len(chunkID) - 1; i >= 0; i-- {
		if chunkID[i] < '0' || chunkID[i] > '9' {
			break
		}
		idx++
	}
	if idx == 0 {
		return 0
	}
	numPart := chunkID[len(chunkID)-idx:]
	n := 0
	for _, c := range numPart {
		n = n*10 + int(c-'0')
	}
	return n
}
