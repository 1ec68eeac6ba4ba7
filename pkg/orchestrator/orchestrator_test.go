package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaic-ai-platform/gateway/pkg/providerrouter"
	"github.com/masaic-ai-platform/gateway/pkg/responsestore"
	"github.com/masaic-ai-platform/gateway/pkg/responsetypes"
	"github.com/masaic-ai-platform/gateway/pkg/streaming"
	"github.com/masaic-ai-platform/gateway/pkg/toolregistry"
	"github.com/masaic-ai-platform/gateway/pkg/upstream"
)

var errNotStreaming = errors.New("scriptedClient does not support streaming")

type scriptedClient struct {
	responses []*upstream.ChatResponse
	calls     int
}

func (s *scriptedClient) Generate(ctx context.Context, bearerToken string, req upstream.ChatRequest) (*upstream.ChatResponse, error) {
	resp := s.responses[s.calls]
	if s.calls < len(s.responses)-1 {
		s.calls++
	}
	return resp, nil
}

func (s *scriptedClient) GenerateStream(ctx context.Context, bearerToken string, req upstream.ChatRequest) (<-chan upstream.StreamEvent, func() error, error) {
	return nil, nil, errNotStreaming
}

func newTestOrchestrator(client UpstreamClient, tools *toolregistry.Registry, maxTurns int) (*Orchestrator, *responsestore.Store) {
	router := providerrouter.New(providerrouter.DefaultProviders(), "https://api.openai.com/v1")
	store := responsestore.New()
	if tools == nil {
		tools = toolregistry.New()
	}
	o := New(router, tools, store, func(string) UpstreamClient { return client }, maxTurns)
	return o, store
}

func TestGenerateSimpleTextResponse(t *testing.T) {
	client := &scriptedClient{responses: []*upstream.ChatResponse{
		{Choices: []upstream.Choice{{Message: upstream.Message{Role: "assistant", Content: "hello there"}, FinishReason: "stop"}}},
	}}
	o, _ := newTestOrchestrator(client, nil, 10)

	resp, err := o.Generate(context.Background(), responsetypes.ResponseRequest{
		Model: "openai@gpt-4o",
		Input: responsetypes.Input{Text: "hi"},
	}, RequestContext{BearerToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, responsetypes.StatusCompleted, resp.Status)
	require.Len(t, resp.Output, 1)
	assert.Equal(t, "hello there", resp.Output[0].Text)
}

func TestGenerateExtractsReasoning(t *testing.T) {
	client := &scriptedClient{responses: []*upstream.ChatResponse{
		{Choices: []upstream.Choice{{Message: upstream.Message{Content: "<think>pondering</think>the answer"}, FinishReason: "stop"}}},
	}}
	o, _ := newTestOrchestrator(client, nil, 10)

	resp, err := o.Generate(context.Background(), responsetypes.ResponseRequest{
		Model: "openai@gpt-4o",
		Input: responsetypes.Input{Text: "hi"},
	}, RequestContext{})
	require.NoError(t, err)
	require.Len(t, resp.Output, 2)
	assert.Equal(t, responsetypes.ItemTypeReasoning, resp.Output[0].Type)
	assert.Equal(t, "pondering", resp.Output[0].Summary)
	assert.Equal(t, "the answer", resp.Output[1].Text)
}

func TestGenerateExecutesNativeToolThenFinishes(t *testing.T) {
	tools := toolregistry.New()
	tools.RegisterNative("get_weather", "", nil, func(ctx context.Context, argumentsJSON string, ectx toolregistry.ExecutionContext) (string, error) {
		return `{"temp":72}`, nil
	})

	client := &scriptedClient{responses: []*upstream.ChatResponse{
		{Choices: []upstream.Choice{{Message: upstream.Message{ToolCalls: []upstream.ToolCall{
			{ID: "call_1", Function: upstream.ToolCallFunction{Name: "get_weather", Arguments: `{"loc":"NYC"}`}},
		}}, FinishReason: "tool_calls"}}},
		{Choices: []upstream.Choice{{Message: upstream.Message{Content: "it's 72 degrees"}, FinishReason: "stop"}}},
	}}
	o, _ := newTestOrchestrator(client, tools, 10)

	resp, err := o.Generate(context.Background(), responsetypes.ResponseRequest{
		Model:      "openai@gpt-4o",
		Input:      responsetypes.Input{Text: "weather?"},
		ToolChoice: responsetypes.ToolChoice{Mode: "auto"},
	}, RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, responsetypes.StatusCompleted, resp.Status)

	var sawFunctionCall, sawFunctionOutput, sawMessage bool
	for _, item := range resp.Output {
		switch item.Type {
		case responsetypes.ItemTypeFunctionCall:
			sawFunctionCall = true
		case responsetypes.ItemTypeFunctionCallOutput:
			sawFunctionOutput = true
			assert.Equal(t, `{"temp":72}`, item.Output)
		case responsetypes.ItemTypeMessage:
			sawMessage = true
		}
	}
	assert.True(t, sawFunctionCall)
	assert.True(t, sawFunctionOutput)
	assert.True(t, sawMessage)
}

func TestGenerateMaxTurnsYieldsIncomplete(t *testing.T) {
	tools := toolregistry.New()
	tools.RegisterNative("loop_tool", "", nil, func(ctx context.Context, argumentsJSON string, ectx toolregistry.ExecutionContext) (string, error) {
		return `{}`, nil
	})
	resp := &upstream.ChatResponse{Choices: []upstream.Choice{{Message: upstream.Message{ToolCalls: []upstream.ToolCall{
		{ID: "call_x", Function: upstream.ToolCallFunction{Name: "loop_tool", Arguments: `{}`}},
	}}, FinishReason: "tool_calls"}}}
	client := &scriptedClient{responses: []*upstream.ChatResponse{resp}}
	o, _ := newTestOrchestrator(client, tools, 2)

	out, err := o.Generate(context.Background(), responsetypes.ResponseRequest{
		Model:      "openai@gpt-4o",
		Input:      responsetypes.Input{Text: "loop"},
		ToolChoice: responsetypes.ToolChoice{Mode: "auto"},
	}, RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, responsetypes.StatusIncomplete, out.Status)
	require.NotNil(t, out.IncompleteDetails)
	assert.Equal(t, "max_turns", out.IncompleteDetails.Reason)
}

func TestGenerateRejectsMetadataWithoutStore(t *testing.T) {
	client := &scriptedClient{responses: []*upstream.ChatResponse{{}}}
	o, _ := newTestOrchestrator(client, nil, 10)

	_, err := o.Generate(context.Background(), responsetypes.ResponseRequest{
		Model:    "openai@gpt-4o",
		Input:    responsetypes.Input{Text: "hi"},
		Metadata: map[string]string{"k": "v"},
		Store:    false,
	}, RequestContext{})
	assert.Error(t, err)
}

func TestGenerateRejectsUnresolvedPreviousResponseID(t *testing.T) {
	client := &scriptedClient{responses: []*upstream.ChatResponse{{}}}
	o, _ := newTestOrchestrator(client, nil, 10)

	_, err := o.Generate(context.Background(), responsetypes.ResponseRequest{
		Model:              "openai@gpt-4o",
		Input:              responsetypes.Input{Text: "hi"},
		PreviousResponseID: "resp_does_not_exist",
	}, RequestContext{})
	assert.Error(t, err)
}

func TestGenerateStoresResponseWhenRequested(t *testing.T) {
	client := &scriptedClient{responses: []*upstream.ChatResponse{
		{Choices: []upstream.Choice{{Message: upstream.Message{Content: "ok"}, FinishReason: "stop"}}},
	}}
	o, store := newTestOrchestrator(client, nil, 10)

	resp, err := o.Generate(context.Background(), responsetypes.ResponseRequest{
		Model: "openai@gpt-4o",
		Input: responsetypes.Input{Text: "hi"},
		Store: true,
	}, RequestContext{})
	require.NoError(t, err)

	rec, ok := store.Get(resp.ID)
	require.True(t, ok)
	assert.Equal(t, responsetypes.StatusCompleted, rec.Response.Status)
}

func TestGenerateParallelToolCallsOrderedByCallID(t *testing.T) {
	tools := toolregistry.New()
	tools.RegisterNative("tool_a", "", nil, func(ctx context.Context, argumentsJSON string, ectx toolregistry.ExecutionContext) (string, error) {
		return `"a"`, nil
	})
	tools.RegisterNative("tool_b", "", nil, func(ctx context.Context, argumentsJSON string, ectx toolregistry.ExecutionContext) (string, error) {
		return `"b"`, nil
	})

	client := &scriptedClient{responses: []*upstream.ChatResponse{
		{Choices: []upstream.Choice{{Message: upstream.Message{ToolCalls: []upstream.ToolCall{
			{ID: "call_z", Function: upstream.ToolCallFunction{Name: "tool_b", Arguments: "{}"}},
			{ID: "call_a", Function: upstream.ToolCallFunction{Name: "tool_a", Arguments: "{}"}},
		}}, FinishReason: "tool_calls"}}},
		{Choices: []upstream.Choice{{Message: upstream.Message{Content: "done"}, FinishReason: "stop"}}},
	}}
	o, _ := newTestOrchestrator(client, tools, 10)

	resp, err := o.Generate(context.Background(), responsetypes.ResponseRequest{
		Model:             "openai@gpt-4o",
		Input:             responsetypes.Input{Text: "go"},
		ToolChoice:        responsetypes.ToolChoice{Mode: "auto"},
		ParallelToolCalls: true,
	}, RequestContext{})
	require.NoError(t, err)

	var outputCallIDs []string
	for _, item := range resp.Output {
		if item.Type == responsetypes.ItemTypeFunctionCallOutput {
			outputCallIDs = append(outputCallIDs, item.CallID)
		}
	}
	assert.Equal(t, []string{"call_a", "call_z"}, outputCallIDs)
}

// scriptedStreamClient answers GenerateStream with one pre-scripted sequence
// of raw chat-completions stream chunks per call, replaying the next script
// on each subsequent turn (mirroring scriptedClient's non-streaming sibling).
type scriptedStreamClient struct {
	turns [][]string // turns[i] is the list of raw chunk JSON payloads for turn i
	calls int
}

func (s *scriptedStreamClient) Generate(ctx context.Context, bearerToken string, req upstream.ChatRequest) (*upstream.ChatResponse, error) {
	return nil, errNotStreaming
}

func (s *scriptedStreamClient) GenerateStream(ctx context.Context, bearerToken string, req upstream.ChatRequest) (<-chan upstream.StreamEvent, func() error, error) {
	turn := s.turns[s.calls]
	if s.calls < len(s.turns)-1 {
		s.calls++
	}
	ch := make(chan upstream.StreamEvent, len(turn)+1)
	for _, payload := range turn {
		ch <- upstream.StreamEvent{Data: payload}
	}
	ch <- upstream.StreamEvent{Done: true}
	close(ch)
	return ch, func() error { return nil }, nil
}

func rawChunk(t *testing.T, content, finishReason string) string {
	t.Helper()
	chunk := map[string]interface{}{
		"id": "chatcmpl-1",
		"choices": []map[string]interface{}{
			{"index": 0, "delta": map[string]interface{}{"content": content}, "finish_reason": finishReason},
		},
	}
	b, err := json.Marshal(chunk)
	require.NoError(t, err)
	return string(b)
}

func drainEvents(events <-chan streaming.Envelope) []streaming.Envelope {
	var out []streaming.Envelope
	for e := range events {
		out = append(out, e)
	}
	return out
}

func TestGenerateStreamEmitsTextDeltasThenCompleted(t *testing.T) {
	client := &scriptedStreamClient{turns: [][]string{{
		rawChunk(t, "hello ", ""),
		rawChunk(t, "world", "stop"),
	}}}
	o, store := newTestOrchestrator(client, nil, 10)

	events, err := o.GenerateStream(context.Background(), responsetypes.ResponseRequest{
		Model: "openai@gpt-4o",
		Input: responsetypes.Input{Text: "hi"},
		Store: true,
	}, RequestContext{})
	require.NoError(t, err)

	all := drainEvents(events)
	require.NotEmpty(t, all)
	assert.Equal(t, streaming.EventResponseCreated, all[0].Type)

	var deltas []string
	for _, e := range all {
		if e.Type == streaming.EventOutputTextDelta {
			deltas = append(deltas, e.Delta)
		}
	}
	assert.Equal(t, []string{"hello ", "world"}, deltas)

	last := all[len(all)-1]
	require.Equal(t, streaming.EventResponseCompleted, last.Type)
	require.NotNil(t, last.Response)
	assert.Equal(t, responsetypes.StatusCompleted, last.Response.Status)

	_, ok := store.Get(last.Response.ID)
	assert.True(t, ok)
}

func TestGenerateStreamExecutesToolCallsAcrossTurns(t *testing.T) {
	tools := toolregistry.New()
	tools.RegisterNative("lookup", "", nil, func(ctx context.Context, argumentsJSON string, ectx toolregistry.ExecutionContext) (string, error) {
		return `"42"`, nil
	})

	toolCallChunk := map[string]interface{}{
		"id": "chatcmpl-1",
		"choices": []map[string]interface{}{
			{"index": 0, "delta": map[string]interface{}{
				"tool_calls": []map[string]interface{}{
					{"index": 0, "id": "call_1", "type": "function", "function": map[string]interface{}{"name": "lookup", "arguments": "{}"}},
				},
			}, "finish_reason": "tool_calls"},
		},
	}
	b, err := json.Marshal(toolCallChunk)
	require.NoError(t, err)

	client := &scriptedStreamClient{turns: [][]string{
		{string(b)},
		{rawChunk(t, "the answer is 42", "stop")},
	}}
	o, _ := newTestOrchestrator(client, tools, 10)

	events, err := o.GenerateStream(context.Background(), responsetypes.ResponseRequest{
		Model:      "openai@gpt-4o",
		Input:      responsetypes.Input{Text: "lookup something"},
		ToolChoice: responsetypes.ToolChoice{Mode: "auto"},
	}, RequestContext{})
	require.NoError(t, err)

	var sawStarted, sawCompleted bool
	all := drainEvents(events)
	for _, e := range all {
		if e.Type == streaming.EventToolCallStarted && e.CallID == "call_1" {
			sawStarted = true
		}
		if e.Type == streaming.EventToolCallCompleted && e.CallID == "call_1" {
			sawCompleted = true
		}
	}
	assert.True(t, sawStarted)
	assert.True(t, sawCompleted)

	last := all[len(all)-1]
	require.Equal(t, streaming.EventResponseCompleted, last.Type)
	assert.Equal(t, responsetypes.StatusCompleted, last.Response.Status)
}
