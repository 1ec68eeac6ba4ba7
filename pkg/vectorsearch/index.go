package vectorsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/masaic-ai-platform/gateway/pkg/internal/retry"
	"github.com/masaic-ai-platform/gateway/pkg/responsetypes"
)

// Chunk is the persisted unit of the semantic index.
type Chunk struct {
	ChunkID       string                 `json:"chunk_id"`
	FileID        string                 `json:"file_id"`
	VectorStoreID string                 `json:"vector_store_id"`
	Filename      string                 `json:"filename"`
	ChunkIndex    int                    `json:"chunk_index"`
	Text          string                 `json:"text"`
	Embedding     []float64              `json:"embedding"`
	Attributes    map[string]interface{} `json:"attributes"`
}

// Result is one scored match from Search.
type Result struct {
	FileID     string
	Filename   string
	Score      float64
	Content    string
	ChunkID    string
	Attributes map[string]interface{}
}

// Index is the in-memory semantic index with JSON-per-file snapshot
// persistence, grounded on SPEC_FULL §4.3's "persistence of in-memory
// variant" note. One Index serves many vector stores; chunks carry their
// own vector_store_id.
type Index struct {
	dir      string
	embedder Embedder

	mu         sync.RWMutex // guards chunksByFile
	chunksByFile map[string][]Chunk

	fileLocks sync.Map // file_id -> *sync.Mutex, per-file writer serialization
	dimension int
}

// NewIndex builds an Index persisting JSON snapshots under dir (one file
// per file_id). Pass an empty dir for a pure in-memory index (tests).
func NewIndex(dir string, embedder Embedder) (*Index, error) {
	idx := &Index{dir: dir, embedder: embedder, chunksByFile: map[string][]Chunk{}}
	if dir != "" {
		if err := idx.load(); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (idx *Index) load() error {
	entries, err := os.ReadDir(idx.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading snapshot dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(idx.dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("reading snapshot %s: %w", entry.Name(), err)
		}
		var chunks []Chunk
		if err := json.Unmarshal(data, &chunks); err != nil {
			return fmt.Errorf("decoding snapshot %s: %w", entry.Name(), err)
		}
		if len(chunks) > 0 {
			idx.chunksByFile[chunks[0].FileID] = chunks
		}
	}
	return nil
}

func (idx *Index) fileLock(fileID string) *sync.Mutex {
	actual, _ := idx.fileLocks.LoadOrStore(fileID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// lockRetryConfig retries a failed snapshot write (e.g. transient disk
// contention) with exponential backoff, per SPEC_FULL §4.3's "per-file
// locking with exponential-backoff retry on lock failure".
func lockRetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = 5
	cfg.InitialDelay = 10 * time.Millisecond
	cfg.MaxDelay = 500 * time.Millisecond
	return cfg
}

// Index embeds and stores content as chunks for fileID, replacing any
// prior chunks for that file atomically from the caller's perspective
// (SPEC_FULL §4.3's re-indexing invariant).
func (idx *Index) Index(ctx context.Context, fileID, vectorStoreID, filename, content string, strategy ChunkingStrategy, attributes map[string]interface{}) error {
	texts, err := SplitIntoChunks(content, strategy)
	if err != nil {
		return err
	}

	chunks := make([]Chunk, 0, len(texts))
	for i, text := range texts {
		vec, err := idx.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("embedding chunk %d of file %s: %w", i, fileID, err)
		}
		if idx.dimension == 0 {
			idx.dimension = len(vec)
		} else if len(vec) != idx.dimension {
			return &ErrDimensionMismatch{Expected: idx.dimension, Got: len(vec)}
		}
		chunks = append(chunks, Chunk{
			ChunkID:       fmt.Sprintf("%s_%d", fileID, i),
			FileID:        fileID,
			VectorStoreID: vectorStoreID,
			Filename:      filename,
			ChunkIndex:    i,
			Text:          text,
			Embedding:     vec,
			Attributes:    attributes,
		})
	}

	lock := idx.fileLock(fileID)
	lock.Lock()
	defer lock.Unlock()

	idx.mu.Lock()
	idx.chunksByFile[fileID] = chunks
	idx.mu.Unlock()

	if idx.dir == "" {
		return nil
	}
	return retry.Do(ctx, lockRetryConfig(), func(ctx context.Context) error {
		return idx.writeSnapshot(fileID, chunks)
	})
}

func (idx *Index) writeSnapshot(fileID string, chunks []Chunk) error {
	if err := os.MkdirAll(idx.dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}
	data, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	path := filepath.Join(idx.dir, fileID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// UpdateAttributes overwrites every chunk's attribute copy for fileID and
// rewrites its persisted snapshot, keeping the semantic index consistent
// with the attributes-update operation on the owning VectorStoreFile.
func (idx *Index) UpdateAttributes(fileID string, attributes map[string]interface{}) {
	lock := idx.fileLock(fileID)
	lock.Lock()
	defer lock.Unlock()

	idx.mu.Lock()
	chunks, ok := idx.chunksByFile[fileID]
	if ok {
		for i := range chunks {
			chunks[i].Attributes = attributes
		}
		idx.chunksByFile[fileID] = chunks
	}
	idx.mu.Unlock()

	if !ok || idx.dir == "" {
		return
	}
	_ = retry.Do(context.Background(), lockRetryConfig(), func(ctx context.Context) error {
		return idx.writeSnapshot(fileID, chunks)
	})
}

// Delete removes every chunk belonging to fileID from the index and its
// persisted snapshot.
func (idx *Index) Delete(ctx context.Context, fileID string) error {
	lock := idx.fileLock(fileID)
	lock.Lock()
	defer lock.Unlock()

	idx.mu.Lock()
	_, existed := idx.chunksByFile[fileID]
	delete(idx.chunksByFile, fileID)
	idx.mu.Unlock()

	if !existed || idx.dir == "" {
		return nil
	}
	path := filepath.Join(idx.dir, fileID+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing snapshot: %w", err)
	}
	return nil
}

// GetMetadata returns fileID's attribute map, or nil if the file has no
// chunks.
func (idx *Index) GetMetadata(fileID string) map[string]interface{} {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	chunks := idx.chunksByFile[fileID]
	if len(chunks) == 0 {
		return nil
	}
	return chunks[0].Attributes
}

// SearchParams configures Search.
type SearchParams struct {
	Query          string
	MaxResults     int
	Ranking        responsetypes.RankingOptions
	Filter         *responsetypes.Filter
	VectorStoreIDs []string
}

// Search embeds the query and ranks every eligible chunk by cosine
// similarity, applying the filter tree (ANDed with the store-id
// restriction) and the score threshold before truncating to MaxResults.
func (idx *Index) Search(ctx context.Context, params SearchParams) ([]Result, error) {
	queryVec, err := idx.embedder.Embed(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	storeSet := map[string]bool{}
	for _, id := range params.VectorStoreIDs {
		storeSet[id] = true
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var scored []Result
	for _, chunks := range idx.chunksByFile {
		for _, c := range chunks {
			if len(storeSet) > 0 && !storeSet[c.VectorStoreID] {
				continue
			}
			if params.Filter != nil && !MatchesFilter(*params.Filter, c.Attributes) {
				continue
			}
			score := CosineSimilarity(queryVec, c.Embedding)
			if params.Ranking.ScoreThreshold > 0 && score < params.Ranking.ScoreThreshold {
				continue
			}
			scored = append(scored, Result{
				FileID: c.FileID, Filename: c.Filename, Score: score,
				Content: c.Text, ChunkID: c.ChunkID, Attributes: c.Attributes,
			})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ChunkID < scored[j].ChunkID
	})

	max := params.MaxResults
	if max <= 0 || max > len(scored) {
		max = len(scored)
	}
	return scored[:max], nil
}

// MatchesFilter evaluates the Filter tagged variant against attributes.
func MatchesFilter(f responsetypes.Filter, attributes map[string]interface{}) bool {
	if f.IsCompound() {
		switch f.BoolOp {
		case "and":
			for _, child := range f.Children {
				if !MatchesFilter(child, attributes) {
					return false
				}
			}
			return true
		case "or":
			for _, child := range f.Children {
				if MatchesFilter(child, attributes) {
					return true
				}
			}
			return false
		default:
			return false
		}
	}
	return compare(attributes[f.Key], f.Op, f.Value)
}

func compare(actual interface{}, op string, expected interface{}) bool {
	af, aok := toFloat(actual)
	ef, eok := toFloat(expected)
	if aok && eok {
		switch op {
		case "eq":
			return af == ef
		case "ne":
			return af != ef
		case "gt":
			return af > ef
		case "gte":
			return af >= ef
		case "lt":
			return af < ef
		case "lte":
			return af <= ef
		}
		return false
	}
	as := fmt.Sprintf("%v", actual)
	es := fmt.Sprintf("%v", expected)
	switch op {
	case "eq":
		return as == es
	case "ne":
		return as != es
	default:
		return false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
