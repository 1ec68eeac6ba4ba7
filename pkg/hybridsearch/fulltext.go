// Package hybridsearch implements the full-text inverted index and
// Reciprocal Rank Fusion described in SPEC_FULL §4.4.
package hybridsearch

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// Document is one indexed chunk, mirroring the semantic index's Chunk shape
// so both providers can be populated from the same ingestion path.
type Document struct {
	ChunkID       string
	FileID        string
	Filename      string
	VectorStoreID string
	ChunkIndex    int
	Text          string
	Attributes    map[string]interface{}
}

type posting struct {
	chunkID string
	termFreq int
}

// Index is a hand-rolled inverted index: term -> postings. No mature
// pure-Go BM25/full-text library appears anywhere in the retrieved pack's
// dependency surface, so this component is stdlib-only by necessity
// rather than choice.
type Index struct {
	mu        sync.RWMutex
	postings  map[string][]posting
	docs      map[string]Document
	docLength map[string]int
}

// NewIndex builds an empty full-text index.
func NewIndex() *Index {
	return &Index{
		postings:  map[string][]posting{},
		docs:      map[string]Document{},
		docLength: map[string]int{},
	}
}

// Add indexes (or re-indexes) a document's text under its chunk_id.
func (idx *Index) Add(doc Document) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeLocked(doc.ChunkID)

	terms := tokenize(doc.Text)
	counts := map[string]int{}
	for _, t := range terms {
		counts[t]++
	}
	for term, freq := range counts {
		idx.postings[term] = append(idx.postings[term], posting{chunkID: doc.ChunkID, termFreq: freq})
	}
	idx.docs[doc.ChunkID] = doc
	idx.docLength[doc.ChunkID] = len(terms)
}

// Remove deletes a chunk from the index.
func (idx *Index) Remove(chunkID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(chunkID)
}

func (idx *Index) removeLocked(chunkID string) {
	if _, ok := idx.docs[chunkID]; !ok {
		return
	}
	for term, list := range idx.postings {
		filtered := list[:0]
		for _, p := range list {
			if p.chunkID != chunkID {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			delete(idx.postings, term)
		} else {
			idx.postings[term] = filtered
		}
	}
	delete(idx.docs, chunkID)
	delete(idx.docLength, chunkID)
}

// UpdateAttributes overwrites every indexed chunk's attribute copy for
// fileID, keeping the lexical index consistent with the attributes-update
// operation on the owning VectorStoreFile.
func (idx *Index) UpdateAttributes(fileID string, attributes map[string]interface{}) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for id, doc := range idx.docs {
		if doc.FileID == fileID {
			doc.Attributes = attributes
			idx.docs[id] = doc
		}
	}
}

// RemoveFile deletes every chunk belonging to fileID.
func (idx *Index) RemoveFile(fileID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	var toRemove []string
	for id, doc := range idx.docs {
		if doc.FileID == fileID {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		idx.removeLocked(id)
	}
}

// ScoredChunk is one ranked match, used by both lexical search and fusion.
type ScoredChunk struct {
	ChunkID       string
	FileID        string
	Filename      string
	VectorStoreID string
	Text          string
	Score         float64
	Attributes    map[string]interface{}
}

// Search returns the top-k chunks by a simple TF-IDF-style score: term
// frequency in the chunk divided by chunk length, summed over query terms
// and weighted by inverse document frequency. Restricts to vectorStoreIDs
// when non-empty.
func (idx *Index) Search(query string, k int, vectorStoreIDs []string) []ScoredChunk {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	storeSet := map[string]bool{}
	for _, id := range vectorStoreIDs {
		storeSet[id] = true
	}

	queryTerms := tokenize(query)
	scores := map[string]float64{}
	totalDocs := len(idx.docs)

	for _, term := range queryTerms {
		list := idx.postings[term]
		if len(list) == 0 {
			continue
		}
		idf := 1.0
		if totalDocs > 0 {
			idf = logIDF(totalDocs, len(list))
		}
		for _, p := range list {
			doc := idx.docs[p.chunkID]
			if len(storeSet) > 0 && !storeSet[doc.VectorStoreID] {
				continue
			}
			length := idx.docLength[p.chunkID]
			if length == 0 {
				length = 1
			}
			scores[p.chunkID] += (float64(p.termFreq) / float64(length)) * idf
		}
	}

	results := make([]ScoredChunk, 0, len(scores))
	for chunkID, score := range scores {
		doc := idx.docs[chunkID]
		results = append(results, ScoredChunk{
			ChunkID: chunkID, FileID: doc.FileID, Filename: doc.Filename,
			VectorStoreID: doc.VectorStoreID, Text: doc.Text, Score: score,
			Attributes: doc.Attributes,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

func logIDF(totalDocs, docFreq int) float64 {
	if docFreq <= 0 {
		return 0
	}
	ratio := float64(totalDocs) / float64(docFreq)
	return math.Log(ratio) + 1
}
