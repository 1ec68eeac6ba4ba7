package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/masaic-ai-platform/gateway/pkg/providerrouter"
)

func TestChatCompletionsForwardsToResolvedUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Write([]byte(`{"id":"chatcmpl-1","choices":[]}`))
	}))
	defer upstream.Close()

	h := &chatHandler{router: providerrouter.New(map[string]string{}, upstream.URL), http: http.DefaultClient}

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"openai@gpt-4o","messages":[]}`))
	rec := httptest.NewRecorder()
	h.chatCompletions(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chatcmpl-1")
}
