package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/masaic-ai-platform/gateway/pkg/gatewayerr"
	"github.com/masaic-ai-platform/gateway/pkg/orchestrator"
	"github.com/masaic-ai-platform/gateway/pkg/responsestore"
	"github.com/masaic-ai-platform/gateway/pkg/responsetypes"
	"github.com/masaic-ai-platform/gateway/pkg/streaming"
)

type responsesHandler struct {
	orch  *orchestrator.Orchestrator
	store *responsestore.Store
}

func (h *responsesHandler) create(w http.ResponseWriter, r *http.Request) {
	var req responsetypes.ResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gatewayerr.NewValidationError("invalid_request_body", err.Error()))
		return
	}
	rctx, err := requestContext(r)
	if err != nil {
		writeError(w, err)
		return
	}

	wantsStream := req.Stream || r.Header.Get("Accept") == "text/event-stream"
	if !wantsStream {
		resp, err := h.orch.Generate(r.Context(), req, rctx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	h.stream(w, r, req, rctx)
}

func (h *responsesHandler) stream(w http.ResponseWriter, r *http.Request, req responsetypes.ResponseRequest, rctx orchestrator.RequestContext) {
	events, err := h.orch.GenerateStream(r.Context(), req, rctx)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sseWriter := streaming.NewSSEWriter(w)
	for envelope := range events {
		payload, err := json.Marshal(envelope)
		if err != nil {
			continue
		}
		if err := sseWriter.WriteNamedEvent(envelope.Type, string(payload)); err != nil {
			return
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func (h *responsesHandler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, ok := h.store.Get(id)
	if !ok {
		writeError(w, gatewayerr.NewNotFoundError("response", id))
		return
	}
	writeJSON(w, http.StatusOK, rec.Response)
}

func (h *responsesHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.store.Get(id); !ok {
		writeError(w, gatewayerr.NewNotFoundError("response", id))
		return
	}
	h.store.Delete(id)
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "object": "response", "deleted": true})
}

func (h *responsesHandler) inputItems(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()

	params := responsestore.ListInputItemsParams{
		Order:  q.Get("order"),
		After:  q.Get("after"),
		Before: q.Get("before"),
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			params.Limit = n
		}
	}

	result, err := h.store.ListInputItems(id, params)
	if err != nil {
		writeError(w, gatewayerr.NewNotFoundError("response", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"object":   "list",
		"data":     result.Items,
		"has_more": result.HasMore,
	})
}
