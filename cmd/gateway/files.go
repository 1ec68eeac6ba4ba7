package main

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/masaic-ai-platform/gateway/pkg/gatewayerr"
)

// fileRecord is one uploaded file's bytes and metadata.
type fileRecord struct {
	ID        string
	Filename  string
	Purpose   string
	Bytes     int
	Content   []byte
	CreatedAt int64
}

// fileStore is the in-memory backing for /v1/files, and satisfies
// vectorstore.FileSource so vector store file attachment can resolve a
// file_id to its bytes without the vectorstore package knowing anything
// about HTTP multipart upload (SPEC_FULL §1 treats multipart storage as an
// external concern the Vector Store Service only consumes through an
// interface).
type fileStore struct {
	mu    sync.RWMutex
	files map[string]*fileRecord
}

func newFileStore() *fileStore {
	return &fileStore{files: map[string]*fileRecord{}}
}

func (fs *fileStore) ReadFile(fileID string) (content, filename string, err error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	rec, ok := fs.files[fileID]
	if !ok {
		return "", "", gatewayerr.NewNotFoundError("file", fileID)
	}
	return string(rec.Content), rec.Filename, nil
}

type filesHandler struct {
	store *fileStore
}

func (h *filesHandler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, gatewayerr.NewValidationError("invalid_multipart_body", err.Error()))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, gatewayerr.NewValidationError("missing_file", "a \"file\" multipart field is required"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, gatewayerr.NewInternalError("reading uploaded file", err))
		return
	}

	rec := &fileRecord{
		ID:        "file_" + uuid.NewString(),
		Filename:  header.Filename,
		Purpose:   r.FormValue("purpose"),
		Bytes:     len(content),
		Content:   content,
		CreatedAt: time.Now().Unix(),
	}

	h.store.mu.Lock()
	h.store.files[rec.ID] = rec
	h.store.mu.Unlock()

	writeJSON(w, http.StatusOK, fileToWire(rec))
}

func (h *filesHandler) get(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, gatewayerr.NewNotFoundError("file", chi.URLParam(r, "id")))
		return
	}
	writeJSON(w, http.StatusOK, fileToWire(rec))
}

func (h *filesHandler) content(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, gatewayerr.NewNotFoundError("file", chi.URLParam(r, "id")))
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(rec.Content)
}

func (h *filesHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.store.mu.Lock()
	_, ok := h.store.files[id]
	delete(h.store.files, id)
	h.store.mu.Unlock()
	if !ok {
		writeError(w, gatewayerr.NewNotFoundError("file", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "object": "file", "deleted": true})
}

func (h *filesHandler) lookup(id string) (*fileRecord, bool) {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()
	rec, ok := h.store.files[id]
	return rec, ok
}

func fileToWire(rec *fileRecord) map[string]interface{} {
	return map[string]interface{}{
		"id":         rec.ID,
		"object":     "file",
		"bytes":      rec.Bytes,
		"filename":   rec.Filename,
		"purpose":    rec.Purpose,
		"created_at": rec.CreatedAt,
	}
}
