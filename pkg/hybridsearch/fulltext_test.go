package hybridsearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchFindsMatchingChunk(t *testing.T) {
	idx := NewIndex()
	idx.Add(Document{ChunkID: "c1", FileID: "f1", VectorStoreID: "vs1", Text: "the quick brown fox"})
	idx.Add(Document{ChunkID: "c2", FileID: "f2", VectorStoreID: "vs1", Text: "lazy dogs sleep all day"})

	results := idx.Search("fox", 10, nil)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)
}

func TestSearchRestrictsToVectorStoreIDs(t *testing.T) {
	idx := NewIndex()
	idx.Add(Document{ChunkID: "c1", FileID: "f1", VectorStoreID: "vs1", Text: "fox"})
	idx.Add(Document{ChunkID: "c2", FileID: "f2", VectorStoreID: "vs2", Text: "fox"})

	results := idx.Search("fox", 10, []string{"vs2"})
	require.Len(t, results, 1)
	assert.Equal(t, "c2", results[0].ChunkID)
}

func TestSearchTruncatesToK(t *testing.T) {
	idx := NewIndex()
	for i := 0; i < 5; i++ {
		idx.Add(Document{ChunkID: string(rune('a' + i)), FileID: "f", VectorStoreID: "vs1", Text: "fox fox fox"})
	}
	results := idx.Search("fox", 2, nil)
	assert.Len(t, results, 2)
}

func TestAddReplacesExistingChunk(t *testing.T) {
	idx := NewIndex()
	idx.Add(Document{ChunkID: "c1", FileID: "f1", VectorStoreID: "vs1", Text: "fox"})
	idx.Add(Document{ChunkID: "c1", FileID: "f1", VectorStoreID: "vs1", Text: "dog"})

	assert.Empty(t, idx.Search("fox", 10, nil))
	assert.Len(t, idx.Search("dog", 10, nil), 1)
}

func TestRemoveDeletesChunk(t *testing.T) {
	idx := NewIndex()
	idx.Add(Document{ChunkID: "c1", FileID: "f1", VectorStoreID: "vs1", Text: "fox"})
	idx.Remove("c1")
	assert.Empty(t, idx.Search("fox", 10, nil))
}

func TestRemoveFileDeletesAllItsChunks(t *testing.T) {
	idx := NewIndex()
	idx.Add(Document{ChunkID: "c1", FileID: "f1", VectorStoreID: "vs1", Text: "fox one"})
	idx.Add(Document{ChunkID: "c2", FileID: "f1", VectorStoreID: "vs1", Text: "fox two"})
	idx.Add(Document{ChunkID: "c3", FileID: "f2", VectorStoreID: "vs1", Text: "fox three"})

	idx.RemoveFile("f1")
	results := idx.Search("fox", 10, nil)
	require.Len(t, results, 1)
	assert.Equal(t, "c3", results[0].ChunkID)
}

func TestSearchNoMatchesReturnsEmpty(t *testing.T) {
	idx := NewIndex()
	idx.Add(Document{ChunkID: "c1", FileID: "f1", VectorStoreID: "vs1", Text: "fox"})
	assert.Empty(t, idx.Search("nonexistentword", 10, nil))
}
