package vectorstore

import (
	"context"
	"fmt"

	"github.com/masaic-ai-platform/gateway/pkg/responsetypes"
)

const (
	defaultMaxIterations  = 5
	defaultMaxNumResults  = 10
)

// QueryPlanner refines the next search query from the running reasoning
// log, and judges whether the search is already satisfied.
type QueryPlanner interface {
	NextQuery(ctx context.Context, originalQuery string, reasoningLog []string) (query string, satisfied bool, err error)
}

// AgenticSearchParams configures RunAgenticSearch.
type AgenticSearchParams struct {
	Query          string
	VectorStoreIDs []string
	MaxIterations  int
	MaxNumResults  int
	Ranking        responsetypes.RankingOptions
	Filter         *responsetypes.Filter
	Planner        QueryPlanner
}

// AgenticSearchOutcome is the accumulated result of the iterative loop.
type AgenticSearchOutcome struct {
	Results      []SearchResult
	ReasoningLog []string
	Iterations   int
}

// RunAgenticSearch implements SPEC_FULL §4.6's agentic_search loop: bounded
// by max_iterations (default 5) and max_num_results, each iteration calls
// file_search with a query refined from the running reasoning_log, merges
// newly seen chunk_ids (dedup across iterations), and stops early when an
// iteration yields zero new chunks or the planner declares satisfaction.
// Grounded on the RAG service example's staged Retrieve pipeline
// (ParallelCandidates -> FuseAndDiversify -> AssembleResults), adapted from
// a single pass into a loop.
func (s *Service) RunAgenticSearch(ctx context.Context, params AgenticSearchParams) (*AgenticSearchOutcome, error) {
	maxIterations := params.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	maxResults := params.MaxNumResults
	if maxResults <= 0 {
		maxResults = defaultMaxNumResults
	}

	seenChunkIDs := map[string]bool{}
	var allResults []SearchResult
	var reasoningLog []string
	query := params.Query

	for iteration := 0; iteration < maxIterations; iteration++ {
		outcome, err := s.Search(ctx, SearchParams{
			Query: query, VectorStoreIDs: params.VectorStoreIDs,
			MaxNumResults: maxResults, Ranking: params.Ranking, Filter: params.Filter,
		})
		if err != nil {
			return nil, fmt.Errorf("agentic search iteration %d: %w", iteration, err)
		}

		newCount := 0
		for _, r := range outcome.Results {
			key := r.FileID + "#" + fmt.Sprint(r.ChunkIndex)
			if seenChunkIDs[key] {
				continue
			}
			seenChunkIDs[key] = true
			allResults = append(allResults, r)
			newCount++
			if len(allResults) >= maxResults {
				break
			}
		}
		reasoningLog = append(reasoningLog, fmt.Sprintf("iteration %d: query=%q new_chunks=%d", iteration, query, newCount))

		if newCount == 0 || len(allResults) >= maxResults {
			break
		}
		if params.Planner == nil {
			break
		}
		nextQuery, satisfied, err := params.Planner.NextQuery(ctx, params.Query, reasoningLog)
		if err != nil {
			return nil, fmt.Errorf("planning next query: %w", err)
		}
		if satisfied {
			break
		}
		query = nextQuery
	}

	if len(allResults) > maxResults {
		allResults = allResults[:maxResults]
	}
	return &AgenticSearchOutcome{Results: allResults, ReasoningLog: reasoningLog, Iterations: len(reasoningLog)}, nil
}
