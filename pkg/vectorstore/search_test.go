package vectorstore

import (
	"context"
	"testing"

	"github.com/masaic-ai-platform/gateway/pkg/responsetypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchReturnsSemanticResultsWithMergedAttributes(t *testing.T) {
	svc := newTestService()
	defer svc.Close()

	files := &memFiles{
		content: map[string]string{"f1": "a story about cats"},
		names:   map[string]string{"f1": "cats.txt"},
	}
	store, err := svc.Create(CreateParams{Name: "s", FileIDs: []string{"f1"}}, files)
	require.NoError(t, err)
	waitForStatus(t, svc, store.ID, StoreStatusCompleted)

	outcome, err := svc.Search(context.Background(), SearchParams{
		Query: "tell me about cat", VectorStoreIDs: []string{store.ID}, MaxNumResults: 5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, outcome.Results)
	assert.Equal(t, "f1", outcome.Results[0].FileID)
	assert.Equal(t, "cats.txt", outcome.Results[0].Filename)
}

type fixedRewriter struct{ rewritten string }

func (f fixedRewriter) Rewrite(_ context.Context, _ string) (string, error) {
	return f.rewritten, nil
}

func TestSearchAppliesQueryRewrite(t *testing.T) {
	svc := newTestService()
	defer svc.Close()

	files := &memFiles{content: map[string]string{"f1": "a story about cats"}, names: map[string]string{"f1": "cats.txt"}}
	store, err := svc.Create(CreateParams{Name: "s", FileIDs: []string{"f1"}}, files)
	require.NoError(t, err)
	waitForStatus(t, svc, store.ID, StoreStatusCompleted)

	outcome, err := svc.Search(context.Background(), SearchParams{
		Query: "irrelevant", RewriteQuery: true, Rewriter: fixedRewriter{rewritten: "cat"},
		VectorStoreIDs: []string{store.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "cat", outcome.SearchQuery)
}

func TestSearchHybridFusionCombinesLexicalAndSemantic(t *testing.T) {
	svc := newTestService()
	defer svc.Close()

	files := &memFiles{
		content: map[string]string{
			"f1": "cats and dogs living together",
			"f2": "a fast red car speeding down the ocean highway",
		},
		names: map[string]string{"f1": "a.txt", "f2": "b.txt"},
	}
	store, err := svc.Create(CreateParams{Name: "s", FileIDs: []string{"f1", "f2"}}, files)
	require.NoError(t, err)
	waitForStatus(t, svc, store.ID, StoreStatusCompleted)

	outcome, err := svc.Search(context.Background(), SearchParams{
		Query: "cat", VectorStoreIDs: []string{store.ID},
		Ranking: responsetypes.RankingOptions{Ranker: "auto"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, outcome.Results)
	assert.Equal(t, "f1", outcome.Results[0].FileID)
}

func TestSearchAppliesScoreThreshold(t *testing.T) {
	svc := newTestService()
	defer svc.Close()

	files := &memFiles{content: map[string]string{"f1": "ocean waves"}, names: map[string]string{"f1": "a.txt"}}
	store, err := svc.Create(CreateParams{Name: "s", FileIDs: []string{"f1"}}, files)
	require.NoError(t, err)
	waitForStatus(t, svc, store.ID, StoreStatusCompleted)

	outcome, err := svc.Search(context.Background(), SearchParams{
		Query: "dog", VectorStoreIDs: []string{store.ID},
		Ranking: responsetypes.RankingOptions{ScoreThreshold: 0.99},
	})
	require.NoError(t, err)
	assert.Empty(t, outcome.Results)
}

func TestSearchRefusesExpiredStore(t *testing.T) {
	svc := newTestService()
	defer svc.Close()

	store, err := svc.Create(CreateParams{Name: "s"}, nil)
	require.NoError(t, err)

	svc.mu.Lock()
	store.ExpiresAt = svc.now() - 10
	svc.mu.Unlock()

	_, err = svc.Search(context.Background(), SearchParams{
		Query: "cat", VectorStoreIDs: []string{store.ID},
	})
	assert.Error(t, err)
}

func TestSearchHybridFilterExcludesLexicalOnlyChunksFailingFilter(t *testing.T) {
	svc := newTestService()
	defer svc.Close()

	files := &memFiles{
		content: map[string]string{
			// "dog" is in the semantic embedder's vocabulary, so f1 matches
			// in both indexes; its chunk attributes fail the filter on the
			// semantic side, so it reaches the fused list only through the
			// lexical index.
			"f1": "a dog of a different color",
			"f2": "cats and dogs living together",
		},
		names: map[string]string{"f1": "a.txt", "f2": "b.txt"},
	}
	store, err := svc.Create(CreateParams{Name: "s", FileIDs: []string{"f1", "f2"}}, files)
	require.NoError(t, err)
	waitForStatus(t, svc, store.ID, StoreStatusCompleted)

	require.NoError(t, svc.DetachFile(store.ID, "f1"))
	err = svc.AttachFile(store.ID, "f1", files, map[string]interface{}{"owner": "alice"})
	require.NoError(t, err)
	waitForStatus(t, svc, store.ID, StoreStatusCompleted)

	filter := &responsetypes.Filter{Key: "owner", Op: "eq", Value: "bob"}
	outcome, err := svc.Search(context.Background(), SearchParams{
		Query: "dog", VectorStoreIDs: []string{store.ID},
		Ranking: responsetypes.RankingOptions{Ranker: "auto"},
		Filter:  filter,
	})
	require.NoError(t, err)
	for _, r := range outcome.Results {
		assert.NotEqual(t, "f1", r.FileID)
	}
}

func TestMergeFileAttributesPrefersFileOverChunk(t *testing.T) {
	merged := mergeFileAttributes(
		map[string]interface{}{"owner": "file-owner", "tier": "gold"},
		map[string]interface{}{"owner": "chunk-owner"},
	)
	assert.Equal(t, "file-owner", merged["owner"])
	assert.Equal(t, "gold", merged["tier"])
}

func TestChunkIndexFromID(t *testing.T) {
	assert.Equal(t, 3, chunkIndexFromID("file1_3"))
	assert.Equal(t, 0, chunkIndexFromID("file1"))
}
