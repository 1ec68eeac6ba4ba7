// Package vectorstore implements the Vector Store Service (SPEC_FULL
// §4.6): logical stores grouping files, asynchronous indexing, expiration,
// and the multi-stage search pipeline over the semantic and full-text
// providers.
package vectorstore

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/masaic-ai-platform/gateway/pkg/hybridsearch"
	"github.com/masaic-ai-platform/gateway/pkg/vectorsearch"
)

// FileStatus mirrors a VectorStoreFile's indexing lifecycle.
type FileStatus string

const (
	FileStatusInProgress FileStatus = "in_progress"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
)

// StoreStatus mirrors a VectorStore's aggregate lifecycle.
type StoreStatus string

const (
	StoreStatusInProgress StoreStatus = "in_progress"
	StoreStatusCompleted  StoreStatus = "completed"
	StoreStatusExpired    StoreStatus = "expired"
)

// File is one member of a VectorStore.
type File struct {
	ID         string
	Filename   string
	Status     FileStatus
	LastError  string
	Attributes map[string]interface{}
	CreatedAt  int64
}

// VectorStore is a logical grouping of indexed files.
type VectorStore struct {
	ID        string
	Name      string
	Metadata  map[string]string
	Status    StoreStatus
	Strategy  vectorsearch.ChunkingStrategy
	Files     map[string]*File
	CreatedAt int64
	ExpiresAt int64 // unix seconds, 0 = never
}

func (s *VectorStore) fileCounts() (inProgress, completed, failed int) {
	for _, f := range s.Files {
		switch f.Status {
		case FileStatusInProgress:
			inProgress++
		case FileStatusCompleted:
			completed++
		case FileStatusFailed:
			failed++
		}
	}
	return
}

// Service owns the VectorStore registry plus the semantic/full-text
// indexes files are ingested into, and the async indexing worker pool.
type Service struct {
	mu     sync.RWMutex
	stores map[string]*VectorStore

	semantic *vectorsearch.Index
	fulltext *hybridsearch.Index // nil runs semantic-only

	jobs     chan indexJob
	workerWG sync.WaitGroup

	now func() int64
}

type indexJob struct {
	storeID    string
	fileID     string
	filename   string
	content    string
	attributes map[string]interface{}
	strategy   vectorsearch.ChunkingStrategy
}

const defaultWorkerCount = 4

// NewService starts the async indexing worker pool. Pass a nil fulltext
// index to run semantic-only (hybrid search then degrades to semantic
// results for that service instance).
func NewService(semantic *vectorsearch.Index, fulltext *hybridsearch.Index) *Service {
	s := &Service{
		stores:   map[string]*VectorStore{},
		semantic: semantic,
		fulltext: fulltext,
		jobs:     make(chan indexJob, 256),
		now:      func() int64 { return time.Now().Unix() },
	}
	for i := 0; i < defaultWorkerCount; i++ {
		s.workerWG.Add(1)
		go s.worker()
	}
	return s
}

// worker drains index jobs, grounded on the teacher's pkg/agent/toolloop.go
// bounded-concurrency pattern generalized from per-tool-call to
// per-file-index-job: a failed job records last_error without crashing the
// pool goroutine.
func (s *Service) worker() {
	defer s.workerWG.Done()
	for job := range s.jobs {
		s.runIndexJob(job)
	}
}

func (s *Service) runIndexJob(job indexJob) {
	err := s.semantic.Index(context.Background(), job.fileID, job.storeID, job.filename, job.content, job.strategy, job.attributes)

	s.mu.Lock()
	defer s.mu.Unlock()
	store, ok := s.stores[job.storeID]
	if !ok {
		return
	}
	file, ok := store.Files[job.fileID]
	if !ok {
		return
	}
	if err != nil {
		file.Status = FileStatusFailed
		file.LastError = err.Error()
		s.recomputeStoreStatusLocked(store)
		return
	}

	file.Status = FileStatusCompleted
	if s.fulltext != nil {
		chunks, chunkErr := vectorsearch.SplitIntoChunks(job.content, job.strategy)
		if chunkErr == nil {
			for i, chunk := range chunks {
				s.fulltext.Add(hybridsearch.Document{
					ChunkID:       job.fileID + "_" + strconv.Itoa(i),
					FileID:        job.fileID,
					Filename:      job.filename,
					VectorStoreID: job.storeID,
					ChunkIndex:    i,
					Text:          chunk,
					Attributes:    job.attributes,
				})
			}
		}
	}
	s.recomputeStoreStatusLocked(store)
}

func (s *Service) recomputeStoreStatusLocked(store *VectorStore) {
	inProgress, _, _ := store.fileCounts()
	if inProgress == 0 && store.Status == StoreStatusInProgress {
		store.Status = StoreStatusCompleted
	}
}

// Close stops accepting new jobs and waits for in-flight ones to finish.
func (s *Service) Close() {
	close(s.jobs)
	s.workerWG.Wait()
}
