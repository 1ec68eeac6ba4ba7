package vectorstore

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/masaic-ai-platform/gateway/pkg/vectorsearch"
)

// CreateParams mirrors the caller-supplied vector store creation body.
type CreateParams struct {
	Name            string
	Metadata        map[string]string
	FileIDs         []string
	ChunkingStrategy vectorsearch.ChunkingStrategy
	ExpiresAfterSecs int64 // 0 = never
}

// FileSource resolves a file_id to its raw content and display name; the
// caller (e.g. the file-upload surface) owns actual byte storage.
type FileSource interface {
	ReadFile(fileID string) (content, filename string, err error)
}

// Create persists a new store with status=in_progress and schedules
// asynchronous indexing for every supplied file_id.
func (s *Service) Create(params CreateParams, files FileSource) (*VectorStore, error) {
	if err := ValidateChunkingStrategy(params.ChunkingStrategy); err != nil {
		return nil, err
	}

	now := s.now()
	store := &VectorStore{
		ID:        "vs_" + newID(),
		Name:      params.Name,
		Metadata:  params.Metadata,
		Status:    StoreStatusInProgress,
		Strategy:  params.ChunkingStrategy,
		Files:     map[string]*File{},
		CreatedAt: now,
	}
	if params.ExpiresAfterSecs > 0 {
		store.ExpiresAt = now + params.ExpiresAfterSecs
	}

	s.mu.Lock()
	s.stores[store.ID] = store
	s.mu.Unlock()

	if len(params.FileIDs) == 0 {
		s.mu.Lock()
		store.Status = StoreStatusCompleted
		s.mu.Unlock()
		return store, nil
	}

	for _, fileID := range params.FileIDs {
		if err := s.AttachFile(store.ID, fileID, files, nil); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func newID() string {
	return uuid.New().String()
}

// Get returns a store by id, sweeping expiration first.
func (s *Service) Get(storeID string) (*VectorStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	store, ok := s.stores[storeID]
	if !ok {
		return nil, ErrVectorStoreNotFound(storeID)
	}
	s.sweepExpirationLocked(store)
	return store, nil
}

// List returns every store, sweeping expiration for each.
func (s *Service) List() []*VectorStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*VectorStore, 0, len(s.stores))
	for _, store := range s.stores {
		s.sweepExpirationLocked(store)
		out = append(out, store)
	}
	return out
}

// Update changes a store's name/metadata/expiration.
func (s *Service) Update(storeID string, name *string, metadata map[string]string, expiresAfterSecs *int64) (*VectorStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	store, ok := s.stores[storeID]
	if !ok {
		return nil, ErrVectorStoreNotFound(storeID)
	}
	if name != nil {
		store.Name = *name
	}
	if metadata != nil {
		store.Metadata = metadata
	}
	if expiresAfterSecs != nil {
		if *expiresAfterSecs > 0 {
			store.ExpiresAt = s.now() + *expiresAfterSecs
		} else {
			store.ExpiresAt = 0
		}
	}
	s.sweepExpirationLocked(store)
	return store, nil
}

// Delete removes a store and its full-text entries. Indexed semantic
// chunks for its files are left to natural overwrite/delete by file_id
// (a store never owns the semantic index exclusively — other stores may
// reference the same underlying file).
func (s *Service) Delete(storeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	store, ok := s.stores[storeID]
	if !ok {
		return ErrVectorStoreNotFound(storeID)
	}
	delete(s.stores, storeID)
	for fileID := range store.Files {
		if s.fulltext != nil {
			s.fulltext.RemoveFile(fileID)
		}
	}
	return nil
}

// AttachFile reads fileID's content via files, schedules async indexing,
// and records the file under storeID with status=in_progress.
func (s *Service) AttachFile(storeID, fileID string, files FileSource, attributes map[string]interface{}) error {
	s.mu.Lock()
	store, ok := s.stores[storeID]
	if !ok {
		s.mu.Unlock()
		return ErrVectorStoreNotFound(storeID)
	}
	s.sweepExpirationLocked(store)
	if store.Status == StoreStatusExpired {
		s.mu.Unlock()
		return ErrVectorStoreExpired(storeID)
	}
	store.Files[fileID] = &File{
		ID: fileID, Status: FileStatusInProgress,
		Attributes: attributes, CreatedAt: s.now(),
	}
	store.Status = StoreStatusInProgress
	strategy := store.Strategy
	s.mu.Unlock()

	content, filename, err := files.ReadFile(fileID)
	if err != nil {
		s.mu.Lock()
		store.Files[fileID].Status = FileStatusFailed
		store.Files[fileID].LastError = err.Error()
		s.recomputeStoreStatusLocked(store)
		s.mu.Unlock()
		return ErrFileNotFound(fileID)
	}
	store.Files[fileID].Filename = filename

	s.jobs <- indexJob{
		storeID: storeID, fileID: fileID, filename: filename,
		content: content, attributes: attributes, strategy: strategy,
	}
	return nil
}

// DetachFile removes a file from a store's membership (and the store's
// full-text entries for it) without touching other stores' references.
func (s *Service) DetachFile(storeID, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	store, ok := s.stores[storeID]
	if !ok {
		return ErrVectorStoreNotFound(storeID)
	}
	if _, ok := store.Files[fileID]; !ok {
		return ErrVectorStoreFileNotFound(storeID, fileID)
	}
	delete(store.Files, fileID)
	if s.fulltext != nil {
		s.fulltext.RemoveFile(fileID)
	}
	s.recomputeStoreStatusLocked(store)
	return nil
}

// ListFiles returns every File attached to storeID.
func (s *Service) ListFiles(storeID string) ([]*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	store, ok := s.stores[storeID]
	if !ok {
		return nil, ErrVectorStoreNotFound(storeID)
	}
	out := make([]*File, 0, len(store.Files))
	for _, f := range store.Files {
		out = append(out, f)
	}
	return out, nil
}

// GetFileAttributes returns one file's attribute map.
func (s *Service) GetFileAttributes(storeID, fileID string) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	store, ok := s.stores[storeID]
	if !ok {
		return nil, ErrVectorStoreNotFound(storeID)
	}
	file, ok := store.Files[fileID]
	if !ok {
		return nil, ErrVectorStoreFileNotFound(storeID, fileID)
	}
	return file.Attributes, nil
}

// UpdateFileAttributes replaces a file's attribute map — the only mutation
// path for VectorStoreFile.Attributes, per SPEC_FULL §3 — and refreshes the
// semantic and full-text indexes' chunk-level copies so filter evaluation
// against either index stays consistent with the merged result.
func (s *Service) UpdateFileAttributes(storeID, fileID string, attributes map[string]interface{}) (*File, error) {
	s.mu.Lock()
	store, ok := s.stores[storeID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrVectorStoreNotFound(storeID)
	}
	s.sweepExpirationLocked(store)
	if store.Status == StoreStatusExpired {
		s.mu.Unlock()
		return nil, ErrVectorStoreExpired(storeID)
	}
	file, ok := store.Files[fileID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrVectorStoreFileNotFound(storeID, fileID)
	}
	file.Attributes = attributes
	s.mu.Unlock()

	s.semantic.UpdateAttributes(fileID, attributes)
	if s.fulltext != nil {
		s.fulltext.UpdateAttributes(fileID, attributes)
	}
	return file, nil
}

// sweepExpirationLocked flips status to expired when ExpiresAt has
// passed, per SPEC_FULL §4.6: "on every read or list ... flip status".
// Caller must hold s.mu.
func (s *Service) sweepExpirationLocked(store *VectorStore) {
	if store.ExpiresAt == 0 {
		return
	}
	if s.now() >= store.ExpiresAt && store.Status != StoreStatusExpired {
		store.Status = StoreStatusExpired
	}
}

// SweepAllExpired is invoked by a background ticker to flip expiration
// for stores not currently being read, per SPEC_FULL §4.6.
func (s *Service) SweepAllExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, store := range s.stores {
		s.sweepExpirationLocked(store)
	}
}

var errInvalidChunkingStrategyFmt = "max_tokens must be > 0 and overlap must be < max_tokens, got max=%d overlap=%d"

// ValidateChunkingStrategy rejects a strategy whose overlap would consume
// the entire window, per SPEC_FULL's InvalidChunkingStrategy error.
func ValidateChunkingStrategy(s vectorsearch.ChunkingStrategy) error {
	if s.MaxTokens == 0 && s.ChunkOverlapTokens == 0 {
		return nil // zero value means "use defaults"
	}
	if s.MaxTokens <= 0 || s.ChunkOverlapTokens < 0 || s.ChunkOverlapTokens >= s.MaxTokens {
		return ErrInvalidChunkingStrategy(fmt.Sprintf(errInvalidChunkingStrategyFmt, s.MaxTokens, s.ChunkOverlapTokens))
	}
	return nil
}
