package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/masaic-ai-platform/gateway/pkg/gatewayerr"
	"github.com/masaic-ai-platform/gateway/pkg/rerank"
	"github.com/masaic-ai-platform/gateway/pkg/responsetypes"
	"github.com/masaic-ai-platform/gateway/pkg/vectorsearch"
	"github.com/masaic-ai-platform/gateway/pkg/vectorstore"
)

// vectorstore.VectorStore and vectorstore.File carry no JSON tags by
// design (the package stays HTTP-agnostic); these DTOs are the wire shape,
// the same split pkg/responsetypes already draws from every other
// in-memory domain type in this codebase.
type vectorStoreDTO struct {
	ID        string            `json:"id"`
	Object    string            `json:"object"`
	Name      string            `json:"name"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Status    string            `json:"status"`
	FileCount int               `json:"file_count"`
	CreatedAt int64             `json:"created_at"`
	ExpiresAt int64             `json:"expires_at,omitempty"`
}

type vectorStoreFileDTO struct {
	ID        string                 `json:"id"`
	Object    string                 `json:"object"`
	Filename  string                 `json:"filename,omitempty"`
	Status    string                 `json:"status"`
	LastError string                 `json:"last_error,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	CreatedAt int64                  `json:"created_at"`
}

func vectorStoreToWire(vs *vectorstore.VectorStore) vectorStoreDTO {
	return vectorStoreDTO{
		ID: vs.ID, Object: "vector_store", Name: vs.Name, Metadata: vs.Metadata,
		Status: string(vs.Status), FileCount: len(vs.Files),
		CreatedAt: vs.CreatedAt, ExpiresAt: vs.ExpiresAt,
	}
}

func vectorStoreFileToWire(f *vectorstore.File) vectorStoreFileDTO {
	return vectorStoreFileDTO{
		ID: f.ID, Object: "vector_store.file", Filename: f.Filename,
		Status: string(f.Status), LastError: f.LastError,
		Attributes: f.Attributes, CreatedAt: f.CreatedAt,
	}
}

type vectorStoresHandler struct {
	stores *vectorstore.Service
	files  *fileStore
}

type createVectorStoreRequest struct {
	Name             string                       `json:"name"`
	Metadata         map[string]string            `json:"metadata,omitempty"`
	FileIDs          []string                     `json:"file_ids,omitempty"`
	ChunkingStrategy *vectorsearch.ChunkingStrategy `json:"chunking_strategy,omitempty"`
	ExpiresAfterSecs int64                        `json:"expires_after_seconds,omitempty"`
}

func (h *vectorStoresHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createVectorStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gatewayerr.NewValidationError("invalid_request_body", err.Error()))
		return
	}
	var strategy vectorsearch.ChunkingStrategy
	if req.ChunkingStrategy != nil {
		strategy = *req.ChunkingStrategy
	}
	vs, err := h.stores.Create(vectorstore.CreateParams{
		Name: req.Name, Metadata: req.Metadata, FileIDs: req.FileIDs,
		ChunkingStrategy: strategy, ExpiresAfterSecs: req.ExpiresAfterSecs,
	}, h.files)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vectorStoreToWire(vs))
}

func (h *vectorStoresHandler) list(w http.ResponseWriter, r *http.Request) {
	stores := h.stores.List()
	out := make([]vectorStoreDTO, len(stores))
	for i, vs := range stores {
		out[i] = vectorStoreToWire(vs)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"object": "list", "data": out})
}

func (h *vectorStoresHandler) get(w http.ResponseWriter, r *http.Request) {
	vs, err := h.stores.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vectorStoreToWire(vs))
}

type updateVectorStoreRequest struct {
	Name             *string           `json:"name,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	ExpiresAfterSecs *int64            `json:"expires_after_seconds,omitempty"`
}

func (h *vectorStoresHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateVectorStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gatewayerr.NewValidationError("invalid_request_body", err.Error()))
		return
	}
	vs, err := h.stores.Update(chi.URLParam(r, "id"), req.Name, req.Metadata, req.ExpiresAfterSecs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vectorStoreToWire(vs))
}

func (h *vectorStoresHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.stores.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "object": "vector_store", "deleted": true})
}

type searchVectorStoreRequest struct {
	Query         string                       `json:"query"`
	MaxNumResults int                          `json:"max_num_results,omitempty"`
	Ranking       responsetypes.RankingOptions `json:"ranking_options,omitempty"`
	Filters       *responsetypes.Filter        `json:"filters,omitempty"`
	RewriteQuery  bool                         `json:"rewrite_query,omitempty"`
}

func (h *vectorStoresHandler) search(w http.ResponseWriter, r *http.Request) {
	var req searchVectorStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gatewayerr.NewValidationError("invalid_request_body", err.Error()))
		return
	}

	var reranker rerank.Reranker
	if req.Ranking.Ranker != "" && req.Ranking.Ranker != "none" {
		reranker = rerank.LocalScorer{}
	}

	outcome, err := h.stores.Search(r.Context(), vectorstore.SearchParams{
		Query:          req.Query,
		VectorStoreIDs: []string{chi.URLParam(r, "id")},
		MaxNumResults:  req.MaxNumResults,
		Ranking:        req.Ranking,
		Filter:         req.Filters,
		RewriteQuery:   req.RewriteQuery,
		Reranker:       reranker,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"object":       "list",
		"data":         outcome.Results,
		"search_query": outcome.SearchQuery,
	})
}

type attachFileRequest struct {
	FileID     string                 `json:"file_id"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

func (h *vectorStoresHandler) attachFile(w http.ResponseWriter, r *http.Request) {
	var req attachFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gatewayerr.NewValidationError("invalid_request_body", err.Error()))
		return
	}
	storeID := chi.URLParam(r, "id")
	if err := h.stores.AttachFile(storeID, req.FileID, h.files, req.Attributes); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id": req.FileID, "object": "vector_store.file", "status": "in_progress",
	})
}

func (h *vectorStoresHandler) listFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.stores.ListFiles(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]vectorStoreFileDTO, len(files))
	for i, f := range files {
		out[i] = vectorStoreFileToWire(f)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"object": "list", "data": out})
}

type updateFileAttributesRequest struct {
	Attributes map[string]interface{} `json:"attributes"`
}

func (h *vectorStoresHandler) updateFileAttributes(w http.ResponseWriter, r *http.Request) {
	var req updateFileAttributesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gatewayerr.NewValidationError("invalid_request_body", err.Error()))
		return
	}
	storeID := chi.URLParam(r, "id")
	fileID := chi.URLParam(r, "fileId")
	f, err := h.stores.UpdateFileAttributes(storeID, fileID, req.Attributes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vectorStoreFileToWire(f))
}

func (h *vectorStoresHandler) detachFile(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "id")
	fileID := chi.URLParam(r, "fileId")
	if err := h.stores.DetachFile(storeID, fileID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": fileID, "object": "vector_store.file", "deleted": true})
}
