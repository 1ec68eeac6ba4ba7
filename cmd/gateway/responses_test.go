package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaic-ai-platform/gateway/pkg/orchestrator"
	"github.com/masaic-ai-platform/gateway/pkg/providerrouter"
	"github.com/masaic-ai-platform/gateway/pkg/responsestore"
	"github.com/masaic-ai-platform/gateway/pkg/responsetypes"
	"github.com/masaic-ai-platform/gateway/pkg/toolregistry"
	"github.com/masaic-ai-platform/gateway/pkg/upstream"
)

type fakeUpstreamClient struct{}

func (fakeUpstreamClient) Generate(ctx context.Context, bearerToken string, req upstream.ChatRequest) (*upstream.ChatResponse, error) {
	return &upstream.ChatResponse{
		ID: "chatcmpl-1",
		Choices: []upstream.Choice{{
			Message:      upstream.Message{Role: "assistant", Content: "hi there"},
			FinishReason: "stop",
		}},
	}, nil
}

func (fakeUpstreamClient) GenerateStream(ctx context.Context, bearerToken string, req upstream.ChatRequest) (<-chan upstream.StreamEvent, func() error, error) {
	ch := make(chan upstream.StreamEvent)
	close(ch)
	return ch, func() error { return nil }, nil
}

func newTestResponsesHandler(t *testing.T) *responsesHandler {
	t.Helper()
	router := providerrouter.New(providerrouter.DefaultProviders(), "https://api.openai.com/v1")
	store := responsestore.New()
	orch := orchestrator.New(router, toolregistry.New(), store, func(string) orchestrator.UpstreamClient { return fakeUpstreamClient{} }, 10)
	return &responsesHandler{orch: orch, store: store}
}

func TestResponsesCreateNonStreaming(t *testing.T) {
	h := newTestResponsesHandler(t)

	body := `{"model":"openai@gpt-4o","input":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/responses", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer sk-test")
	rec := httptest.NewRecorder()
	h.create(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp responsetypes.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, responsetypes.StatusCompleted, resp.Status)
}

func TestResponsesCreateRejectsMissingAuth(t *testing.T) {
	h := newTestResponsesHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/responses", strings.NewReader(`{"model":"openai@gpt-4o","input":"hello"}`))
	rec := httptest.NewRecorder()
	h.create(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResponsesGetAndDelete(t *testing.T) {
	h := newTestResponsesHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/responses", strings.NewReader(`{"model":"openai@gpt-4o","input":"hello","store":true}`))
	req.Header.Set("Authorization", "Bearer sk-test")
	createRec := httptest.NewRecorder()
	h.create(createRec, req)
	require.Equal(t, http.StatusOK, createRec.Code)

	var resp responsetypes.Response
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &resp))

	router := chi.NewRouter()
	router.Get("/{id}", h.get)
	router.Delete("/{id}", h.delete)

	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/"+resp.ID, nil))
	assert.Equal(t, http.StatusOK, getRec.Code)

	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, httptest.NewRequest(http.MethodDelete, "/"+resp.ID, nil))
	assert.Equal(t, http.StatusOK, delRec.Code)
}
