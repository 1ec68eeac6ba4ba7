package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaic-ai-platform/gateway/pkg/config"
	"github.com/masaic-ai-platform/gateway/pkg/providerrouter"
)

func TestEmbeddingsProxiesAndAccountsTokens(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"embedding": []float64{0.1, 0.2}}},
		})
	}))
	defer upstream.Close()

	h := &embeddingsHandler{
		router: providerrouter.New(map[string]string{}, upstream.URL),
		cfg:    &config.AppConfig{OpenAIBaseURL: upstream.URL, EmbeddingModel: "text-embedding-3-small", EmbeddingDimension: 2},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/embeddings", strings.NewReader(`{"input":"hello world"}`))
	req.Header.Set("Authorization", "Bearer sk-test")
	rec := httptest.NewRecorder()
	h.embeddings(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp embeddingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []float64{0.1, 0.2}, resp.Data[0].Embedding)
	assert.Greater(t, resp.Usage.TotalTokens, 0)
}
