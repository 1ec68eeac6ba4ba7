package hybridsearch

import "sort"

const defaultK = 60

// RankedItem is one entry in a ranked candidate list fed into Fuse:
// either the semantic list (ordered by cosine similarity) or the lexical
// list (ordered by Index.Search's score).
type RankedItem struct {
	ChunkID       string
	FileID        string
	Filename      string
	Text          string
	Attributes    map[string]interface{}
}

// FusedResult is one entry of Fuse's output.
type FusedResult struct {
	ChunkID    string
	FileID     string
	Filename   string
	Text       string
	Attributes map[string]interface{}
	Score      float64
	SemanticRank int // 0 = not present, else 1-based rank
	LexicalRank  int
}

// Fuse combines a semantic-ranked list and a lexical-ranked list via
// Reciprocal Rank Fusion: score(c) = sum over lists containing c of
// 1/(k+rank_in_list(c)). Ties break by lower semantic rank, then lower
// lexical rank, then lexicographic chunk_id, per SPEC_FULL §4.4.
//
// Worked example (k=60): semantic=[a,b,c], lexical=[b,c,a] fuses to
// [b,a,c] — see fusion_test.go for the exact assertion.
func Fuse(semantic, lexical []RankedItem, k int) []FusedResult {
	if k <= 0 {
		k = defaultK
	}

	byID := map[string]*FusedResult{}
	order := []string{}

	ensure := func(item RankedItem) *FusedResult {
		r, ok := byID[item.ChunkID]
		if !ok {
			r = &FusedResult{
				ChunkID: item.ChunkID, FileID: item.FileID,
				Filename: item.Filename, Text: item.Text, Attributes: item.Attributes,
			}
			byID[item.ChunkID] = r
			order = append(order, item.ChunkID)
		}
		return r
	}

	for i, item := range semantic {
		r := ensure(item)
		rank := i + 1
		r.SemanticRank = rank
		r.Score += 1.0 / float64(k+rank)
	}
	for i, item := range lexical {
		r := ensure(item)
		rank := i + 1
		r.LexicalRank = rank
		r.Score += 1.0 / float64(k+rank)
	}

	results := make([]FusedResult, 0, len(order))
	for _, id := range order {
		results = append(results, *byID[id])
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.SemanticRank != b.SemanticRank {
			return rankLess(a.SemanticRank, b.SemanticRank)
		}
		if a.LexicalRank != b.LexicalRank {
			return rankLess(a.LexicalRank, b.LexicalRank)
		}
		return a.ChunkID < b.ChunkID
	})
	return results
}

// rankLess treats 0 (absent from that list) as worse than any real rank.
func rankLess(a, b int) bool {
	if a == 0 {
		return false
	}
	if b == 0 {
		return true
	}
	return a < b
}
