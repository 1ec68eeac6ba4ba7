package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/masaic-ai-platform/gateway/pkg/config"
	"github.com/masaic-ai-platform/gateway/pkg/embedclient"
	"github.com/masaic-ai-platform/gateway/pkg/gatewayerr"
	"github.com/masaic-ai-platform/gateway/pkg/providerrouter"
	"github.com/masaic-ai-platform/gateway/pkg/vectorsearch"
)

type embeddingsHandler struct {
	router *providerrouter.Router
	cfg    *config.AppConfig
}

type embeddingsRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingsResponse struct {
	Object string            `json:"object"`
	Data   []embeddingRecord `json:"data"`
	Model  string            `json:"model"`
	Usage  embeddingsUsage   `json:"usage"`
}

type embeddingRecord struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

type embeddingsUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// embeddings implements POST /v1/embeddings: proxies to the resolved
// upstream via embedclient and reports token-count accounting in usage,
// per SPEC_FULL §6.
func (h *embeddingsHandler) embeddings(w http.ResponseWriter, r *http.Request) {
	var req embeddingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gatewayerr.NewValidationError("invalid_request_body", err.Error()))
		return
	}
	model := req.Model
	if model == "" {
		model = h.cfg.EmbeddingModel
	}

	headers := map[string]string{}
	if v := r.Header.Get("x-model-provider"); v != "" {
		headers["x-model-provider"] = v
	}
	resolution, ok := h.router.Resolve(model, headers)
	if !ok {
		resolution = providerrouter.Resolution{BaseURL: h.cfg.OpenAIBaseURL, ModelName: model}
	}

	apiKey := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	client := embedclient.New(embedclient.Config{
		BaseURL:   resolution.BaseURL,
		APIKey:    apiKey,
		Model:     resolution.ModelName,
		Dimension: h.cfg.EmbeddingDimension,
	})

	vector, err := client.Embed(r.Context(), req.Input)
	if err != nil {
		writeError(w, gatewayerr.NewUpstreamError("embedding request failed", err))
		return
	}

	tokenCount, err := vectorsearch.CountTokens(req.Input)
	if err != nil {
		writeError(w, gatewayerr.NewInternalError("counting tokens", err))
		return
	}

	writeJSON(w, http.StatusOK, embeddingsResponse{
		Object: "list",
		Data:   []embeddingRecord{{Object: "embedding", Index: 0, Embedding: vector}},
		Model:  model,
		Usage:  embeddingsUsage{PromptTokens: tokenCount, TotalTokens: tokenCount},
	})
}
