// Package vectorsearch implements the Vector Search Provider (semantic
// index): chunking, embedding, cosine ranking, and a JSON-snapshot
// persistence backend, per SPEC_FULL §4.3.
package vectorsearch

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const (
	defaultChunkTokens   = 1000
	defaultOverlapTokens = 200
	encodingName         = "cl100k_base"
)

// ChunkingStrategy mirrors the caller-supplied chunking_strategy.static
// descriptor; zero values fall back to the defaults (1000/200).
type ChunkingStrategy struct {
	MaxTokens         int
	ChunkOverlapTokens int
}

func (s ChunkingStrategy) withDefaults() ChunkingStrategy {
	if s.MaxTokens <= 0 {
		s.MaxTokens = defaultChunkTokens
		if s.ChunkOverlapTokens == 0 {
			s.ChunkOverlapTokens = defaultOverlapTokens
		}
	}
	if s.ChunkOverlapTokens < 0 || s.ChunkOverlapTokens >= s.MaxTokens {
		s.ChunkOverlapTokens = defaultOverlapTokens
	}
	return s
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(encodingName)
	})
	return enc, encErr
}

// SplitIntoChunks splits text into overlapping token windows using the
// cl100k_base BPE table, so chunk boundaries are deterministic for a given
// input regardless of how the caller's runes are grouped.
func SplitIntoChunks(text string, strategy ChunkingStrategy) ([]string, error) {
	strategy = strategy.withDefaults()
	if text == "" {
		return nil, nil
	}

	tke, err := encoding()
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer: %w", err)
	}

	tokens := tke.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil, nil
	}

	step := strategy.MaxTokens - strategy.ChunkOverlapTokens
	if step <= 0 {
		step = strategy.MaxTokens
	}

	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + strategy.MaxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, tke.Decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
	}
	return chunks, nil
}

// CountTokens returns text's token count under the same cl100k_base table
// used for chunk sizing, for the embeddings proxy's usage accounting.
func CountTokens(text string) (int, error) {
	tke, err := encoding()
	if err != nil {
		return 0, fmt.Errorf("loading tokenizer: %w", err)
	}
	return len(tke.Encode(text, nil, nil)), nil
}
