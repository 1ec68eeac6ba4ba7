package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateForwardsBearerAndReturnsChoices(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"choices": [{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],
			"usage": {"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}
		}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	resp, err := client.Generate(context.Background(), "secret-token", ChatRequest{
		Model:    "gpt-test",
		Messages: []map[string]interface{}{{"role": "user", "content": "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "gpt-test", gotBody["model"])
	assert.Equal(t, false, gotBody["stream"])
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hi", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
}

func TestGenerateDoesNotRetryOn400(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	_, err := client.Generate(context.Background(), "tok", ChatRequest{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestGenerateRetriesOn429(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	cfg := DefaultRetryConfig()
	cfg.InitialDelay = 0
	client := New(Config{BaseURL: server.URL, Retry: cfg})
	resp, err := client.Generate(context.Background(), "tok", ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, attempts, 2)
	assert.Equal(t, "ok", resp.Choices[0].Message.Content)
}

func TestGenerateStreamEmitsRawPayloadsUntilDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		_, _ = w.Write([]byte("data: {\"delta\":\"a\"}\n\n"))
		if flusher != nil {
			flusher.Flush()
		}
		_, _ = w.Write([]byte("data: {\"delta\":\"b\"}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	events, _, err := client.GenerateStream(context.Background(), "tok", ChatRequest{Model: "m"})
	require.NoError(t, err)

	var payloads []string
	done := false
	for ev := range events {
		if ev.Done {
			done = true
			continue
		}
		payloads = append(payloads, ev.Data)
	}
	assert.True(t, done)
	assert.Equal(t, []string{`{"delta":"a"}`, `{"delta":"b"}`}, payloads)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.True(t, IsRetryableError(&httpStatusError{status: 500}))
	assert.True(t, IsRetryableError(&httpStatusError{status: 429}))
	assert.False(t, IsRetryableError(&httpStatusError{status: 400}))
	assert.False(t, IsRetryableError(&httpStatusError{status: 401}))
}
