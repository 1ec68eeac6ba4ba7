package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/masaic-ai-platform/gateway/pkg/gatewayerr"
	"github.com/masaic-ai-platform/gateway/pkg/providerrouter"
)

type chatHandler struct {
	router *providerrouter.Router
	http   *http.Client
}

// chatCompletions implements the pass-through POST /v1/chat/completions
// route (SPEC_FULL §6): the body is forwarded to the Provider-Router
// resolved upstream verbatim, including a streaming response body, since
// callers of this route already speak the upstream dialect directly.
func (h *chatHandler) chatCompletions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gatewayerr.NewValidationError("invalid_request_body", err.Error()))
		return
	}

	var probe struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		writeError(w, gatewayerr.NewValidationError("invalid_request_body", err.Error()))
		return
	}

	headers := map[string]string{}
	if v := r.Header.Get("x-model-provider"); v != "" {
		headers["x-model-provider"] = v
	}
	resolution, ok := h.router.Resolve(probe.Model, headers)
	if !ok {
		writeError(w, gatewayerr.NewValidationError("invalid_model", "could not resolve a provider for model "+probe.Model))
		return
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, resolution.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		writeError(w, gatewayerr.NewInternalError("building upstream request", err))
		return
	}
	upstreamReq.Header.Set("Content-Type", "application/json")
	if auth := r.Header.Get("Authorization"); auth != "" {
		upstreamReq.Header.Set("Authorization", auth)
	}

	resp, err := h.http.Do(upstreamReq)
	if err != nil {
		writeError(w, gatewayerr.NewUpstreamError("upstream request failed", err))
		return
	}
	defer resp.Body.Close()

	for k, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}
