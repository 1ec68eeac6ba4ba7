// Package orchestrator implements the Response Orchestrator: the turn loop
// that turns a ResponseRequest into a completed Response (or, through
// GenerateStream, an ordered stream of SSE events), per
// SPEC_FULL §4.7.
//
// The loop shape — step, classify continuation, execute tools, repeat — is
// grounded on the teacher's pkg/agent/toolloop.go (ToolLoopAgent.Execute /
// executeStep / executeTools), generalized from the teacher's
// StopWhen/MaxSteps abstraction down to this gateway's narrower max_turns
// (default 10) and finish-reason-driven termination. The call_id
// lexicographic ordering of parallel tool outputs has no teacher precedent
// (the teacher appends tool results in completion order) and is built fresh
// to satisfy the determinism invariant.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/masaic-ai-platform/gateway/pkg/gatewayerr"
	"github.com/masaic-ai-platform/gateway/pkg/providerrouter"
	"github.com/masaic-ai-platform/gateway/pkg/reasoning"
	"github.com/masaic-ai-platform/gateway/pkg/responsestore"
	"github.com/masaic-ai-platform/gateway/pkg/responsetypes"
	"github.com/masaic-ai-platform/gateway/pkg/streaming"
	"github.com/masaic-ai-platform/gateway/pkg/toolregistry"
	"github.com/masaic-ai-platform/gateway/pkg/upstream"
)

const defaultMaxTurns = 10

// UpstreamFactory builds an upstream.Client for one resolved base URL. A
// function type rather than a bare struct field so tests can substitute a
// fake client without standing up an HTTP server.
type UpstreamFactory func(baseURL string) UpstreamClient

// UpstreamClient is the subset of *upstream.Client the orchestrator calls.
type UpstreamClient interface {
	Generate(ctx context.Context, bearerToken string, req upstream.ChatRequest) (*upstream.ChatResponse, error)
	GenerateStream(ctx context.Context, bearerToken string, req upstream.ChatRequest) (<-chan upstream.StreamEvent, func() error, error)
}

// Orchestrator wires the Provider Router, Tool Registry, and Response Store
// into the turn loop.
type Orchestrator struct {
	Router      *providerrouter.Router
	Tools       *toolregistry.Registry
	Store       *responsestore.Store
	NewUpstream UpstreamFactory
	MaxTurns    int
}

// New builds an Orchestrator. maxTurns<=0 falls back to the default (10).
func New(router *providerrouter.Router, tools *toolregistry.Registry, store *responsestore.Store, newUpstream UpstreamFactory, maxTurns int) *Orchestrator {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &Orchestrator{Router: router, Tools: tools, Store: store, NewUpstream: newUpstream, MaxTurns: maxTurns}
}

// RequestContext carries per-call transport details the orchestrator needs
// beyond the ResponseRequest body itself.
type RequestContext struct {
	BearerToken string
	Headers     map[string]string
}

// Generate runs the non-streaming turn loop to completion.
func (o *Orchestrator) Generate(ctx context.Context, req responsetypes.ResponseRequest, rctx RequestContext) (*responsetypes.Response, error) {
	if err := validateRequest(req, o.Store); err != nil {
		return nil, err
	}

	resolution, ok := o.Router.Resolve(req.Model, rctx.Headers)
	if !ok {
		return nil, gatewayerr.NewValidationError("invalid_model", fmt.Sprintf("cannot resolve model %q", req.Model))
	}
	client := o.NewUpstream(resolution.BaseURL)

	messages, inputItems := o.buildInitialMessages(req)
	responseID := "resp_" + uuid.New().String()
	createdAt := time.Now().Unix()

	var completedOutputs []responsetypes.OutputItem
	var lastToolOutput *responsetypes.OutputItem
	var lastToolType string

	for turn := 1; turn <= o.MaxTurns; turn++ {
		chatReq := buildChatRequest(resolution.ModelName, messages, req)
		resp, err := client.Generate(ctx, rctx.BearerToken, chatReq)
		if err != nil {
			return o.fail(responseID, createdAt, req, completedOutputs, err), nil
		}
		if len(resp.Choices) == 0 {
			return o.fail(responseID, createdAt, req, completedOutputs, fmt.Errorf("upstream returned no choices")), nil
		}
		choice := resp.Choices[0]

		if choice.FinishReason == "content_filter" {
			return o.fail(responseID, createdAt, req, completedOutputs,
				fmt.Errorf("content filtered by upstream")), nil
		}

		extracted := reasoning.ExtractBatch(choice.Message.Content, "", "")
		var turnItems []responsetypes.OutputItem
		if extracted.Reasoning != "" {
			turnItems = append(turnItems, responsetypes.NewReasoning(newItemID(), extracted.Reasoning))
		}
		if extracted.Text != "" {
			msg := responsetypes.NewMessage(newItemID(), extracted.Text, nil)
			if lastToolOutput != nil && isSearchTool(lastToolType) {
				msg.Annotations = backfillAnnotations(*lastToolOutput)
			}
			turnItems = append(turnItems, msg)
		}

		executable, passthrough := o.classifyToolCalls(choice)
		for _, fc := range append(append([]responsetypes.OutputItem{}, executable...), passthrough...) {
			turnItems = append(turnItems, fc)
		}
		completedOutputs = append(completedOutputs, turnItems...)

		assistantMsg := map[string]interface{}{"role": "assistant"}
		if choice.Message.Content != "" {
			assistantMsg["content"] = choice.Message.Content
		} else {
			assistantMsg["content"] = nil
		}
		if len(choice.Message.ToolCalls) > 0 {
			assistantMsg["tool_calls"] = wireToolCalls(choice.Message.ToolCalls)
		}
		messages = append(messages, assistantMsg)

		if len(passthrough) > 0 {
			// Function tools are passthrough: finalize and wait for the
			// caller to supply FunctionCallOutput on the next request.
			return o.finalizeIncompleteOrDone(responseID, createdAt, req, completedOutputs, inputItems, "", choice.FinishReason), nil
		}

		if len(executable) == 0 {
			if choice.FinishReason == "length" {
				return o.finalizeIncompleteOrDone(responseID, createdAt, req, completedOutputs, inputItems, "max_output_tokens", choice.FinishReason), nil
			}
			return o.finalizeIncompleteOrDone(responseID, createdAt, req, completedOutputs, inputItems, "", choice.FinishReason), nil
		}

		if !req.ToolChoice.AllowsToolCalls() {
			return o.finalizeIncompleteOrDone(responseID, createdAt, req, completedOutputs, inputItems, "", choice.FinishReason), nil
		}

		outputs := o.executeTools(ctx, executable, req, rctx)
		sort.Slice(outputs, func(i, j int) bool { return outputs[i].CallID < outputs[j].CallID })
		for _, out := range outputs {
			completedOutputs = append(completedOutputs, out)
			messages = append(messages, map[string]interface{}{
				"role":         "tool",
				"tool_call_id": out.CallID,
				"content":      out.Output,
			})
			lastToolOutput = &out
		}
		if len(executable) > 0 {
			lastToolType = executable[0].Name
		}
	}

	return o.finalize(responseID, createdAt, req, completedOutputs, inputItems, responsetypes.StatusIncomplete,
		&responsetypes.IncompleteDetails{Reason: "max_turns"}), nil
}

// GenerateStream runs the same turn loop as Generate but emits the SPEC_FULL
// §4.8 SSE lifecycle events as it goes, assembling each turn's chunks with a
// fresh streaming.Assembler and stripping reasoning tags from the live text
// delta stream via reasoning.StreamExtractor. The returned channel is closed
// when the response reaches a terminal status or ctx is cancelled.
func (o *Orchestrator) GenerateStream(ctx context.Context, req responsetypes.ResponseRequest, rctx RequestContext) (<-chan streaming.Envelope, error) {
	if err := validateRequest(req, o.Store); err != nil {
		return nil, err
	}
	resolution, ok := o.Router.Resolve(req.Model, rctx.Headers)
	if !ok {
		return nil, gatewayerr.NewValidationError("invalid_model", fmt.Sprintf("cannot resolve model %q", req.Model))
	}
	client := o.NewUpstream(resolution.BaseURL)

	messages, inputItems := o.buildInitialMessages(req)
	responseID := "resp_" + uuid.New().String()
	createdAt := time.Now().Unix()

	events := make(chan streaming.Envelope)
	go func() {
		defer close(events)
		emit := func(e streaming.Envelope) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		}
		finish := func(resp *responsetypes.Response) {
			emit(streaming.Completed(*resp))
		}

		emit(streaming.Created(responsetypes.Response{ID: responseID, CreatedAt: createdAt, Model: req.Model}))

		var completedOutputs []responsetypes.OutputItem
		var lastToolOutput *responsetypes.OutputItem
		var lastToolType string
		outputIndex := 0

		for turn := 1; turn <= o.MaxTurns; turn++ {
			chatReq := buildChatRequest(resolution.ModelName, messages, req)
			chunks, closeStream, err := client.GenerateStream(ctx, rctx.BearerToken, chatReq)
			if err != nil {
				finish(o.fail(responseID, createdAt, req, completedOutputs, err))
				return
			}

			assembler := streaming.NewAssembler()
			extractor := reasoning.NewStreamExtractor("", false)
			messageItemID := newItemID()
			var textOut, reasoningOut strings.Builder

			applyDelta := func(d reasoning.Delta) {
				switch d.Kind {
				case reasoning.DeltaText:
					textOut.WriteString(d.Text)
					emit(streaming.OutputTextDelta(messageItemID, outputIndex, d.Text))
				case reasoning.DeltaReasoning:
					reasoningOut.WriteString(d.Text)
				}
			}

			for ev := range chunks {
				if ev.Done {
					break
				}
				textDelta, toolDeltas, pushErr := assembler.Push(ev.Data)
				if pushErr != nil {
					continue
				}
				if textDelta != "" {
					for _, d := range extractor.Push(textDelta) {
						applyDelta(d)
					}
				}
				for _, td := range toolDeltas {
					emit(streaming.FunctionCallArgumentsDelta(td.CallID, outputIndex, td.ArgumentsDelta))
				}
			}
			if flushed := extractor.Flush(); flushed != nil {
				applyDelta(*flushed)
			}
			_ = closeStream()

			var turnItems []responsetypes.OutputItem
			if reasoningOut.Len() > 0 {
				item := responsetypes.NewReasoning(newItemID(), reasoningOut.String())
				turnItems = append(turnItems, item)
				emit(streaming.OutputItemDone(outputIndex, item))
				outputIndex++
			}
			if textOut.Len() > 0 {
				msg := responsetypes.NewMessage(messageItemID, textOut.String(), nil)
				if lastToolOutput != nil && isSearchTool(lastToolType) {
					msg.Annotations = backfillAnnotations(*lastToolOutput)
				}
				turnItems = append(turnItems, msg)
				emit(streaming.OutputItemDone(outputIndex, msg))
				outputIndex++
			}

			toolCallItems := assembler.ToolCallItems(newItemID)
			executable, passthrough := o.classifyFunctionCallItems(toolCallItems)
			for _, item := range append(append([]responsetypes.OutputItem{}, executable...), passthrough...) {
				turnItems = append(turnItems, item)
				emit(streaming.OutputItemDone(outputIndex, item))
				outputIndex++
			}
			completedOutputs = append(completedOutputs, turnItems...)

			assistantMsg := map[string]interface{}{"role": "assistant"}
			if textOut.Len() > 0 {
				assistantMsg["content"] = textOut.String()
			} else {
				assistantMsg["content"] = nil
			}
			if len(toolCallItems) > 0 {
				assistantMsg["tool_calls"] = wireFunctionCallItems(toolCallItems)
			}
			messages = append(messages, assistantMsg)

			finishReason := assembler.FinishReason()

			if len(passthrough) > 0 {
				finish(o.finalizeIncompleteOrDone(responseID, createdAt, req, completedOutputs, inputItems, "", finishReason))
				return
			}
			if len(executable) == 0 {
				if finishReason == "length" {
					finish(o.finalizeIncompleteOrDone(responseID, createdAt, req, completedOutputs, inputItems, "max_output_tokens", finishReason))
					return
				}
				finish(o.finalizeIncompleteOrDone(responseID, createdAt, req, completedOutputs, inputItems, "", finishReason))
				return
			}
			if !req.ToolChoice.AllowsToolCalls() {
				finish(o.finalizeIncompleteOrDone(responseID, createdAt, req, completedOutputs, inputItems, "", finishReason))
				return
			}

			nameByCallID := map[string]string{}
			for _, call := range executable {
				nameByCallID[call.CallID] = call.Name
				emit(streaming.ToolCallStarted(call.CallID, call.Name))
			}
			outputs := o.executeTools(ctx, executable, req, rctx)
			sort.Slice(outputs, func(i, j int) bool { return outputs[i].CallID < outputs[j].CallID })
			for _, out := range outputs {
				emit(streaming.ToolCallCompleted(out.CallID, nameByCallID[out.CallID], nil))
				completedOutputs = append(completedOutputs, out)
				messages = append(messages, map[string]interface{}{
					"role":         "tool",
					"tool_call_id": out.CallID,
					"content":      out.Output,
				})
				lastToolOutput = &out
			}
			if len(executable) > 0 {
				lastToolType = executable[0].Name
			}
		}

		finish(o.finalize(responseID, createdAt, req, completedOutputs, inputItems, responsetypes.StatusIncomplete,
			&responsetypes.IncompleteDetails{Reason: "max_turns"}))
	}()

	return events, nil
}

func (o *Orchestrator) fail(responseID string, createdAt int64, req responsetypes.ResponseRequest, outputs []responsetypes.OutputItem, err error) *responsetypes.Response {
	return &responsetypes.Response{
		ID:        responseID,
		CreatedAt: createdAt,
		Status:    responsetypes.StatusFailed,
		Output:    outputs,
		Model:     req.Model,
		Error:     &responsetypes.ResponseError{Code: "server_error", Message: err.Error()},
	}
}

func (o *Orchestrator) finalizeIncompleteOrDone(responseID string, createdAt int64, req responsetypes.ResponseRequest, outputs []responsetypes.OutputItem, inputItems []responsetypes.InputItem, incompleteReason, finishReason string) *responsetypes.Response {
	if incompleteReason != "" {
		return o.finalize(responseID, createdAt, req, outputs, inputItems, responsetypes.StatusIncomplete,
			&responsetypes.IncompleteDetails{Reason: incompleteReason})
	}
	return o.finalize(responseID, createdAt, req, outputs, inputItems, responsetypes.StatusCompleted, nil)
}

func (o *Orchestrator) finalize(responseID string, createdAt int64, req responsetypes.ResponseRequest, outputs []responsetypes.OutputItem, inputItems []responsetypes.InputItem, status string, incomplete *responsetypes.IncompleteDetails) *responsetypes.Response {
	resp := responsetypes.Response{
		ID:                 responseID,
		CreatedAt:          createdAt,
		Status:             status,
		IncompleteDetails:  incomplete,
		Output:             outputs,
		Model:              req.Model,
		ToolChoice:         req.ToolChoice,
		Tools:              req.Tools,
		Metadata:           req.Metadata,
		PreviousResponseID: req.PreviousResponseID,
	}
	if req.Store {
		allInputItems := append(append([]responsetypes.InputItem{}, inputItems...), outputs...)
		o.Store.Put(responsestore.Record{Response: resp, InputItems: allInputItems, CreatedAt: createdAt})
	}
	return &resp
}

func validateRequest(req responsetypes.ResponseRequest, store *responsestore.Store) error {
	if len(req.Metadata) > 0 && !req.Store {
		return gatewayerr.NewValidationError("metadata_requires_store", "metadata is set but store is false")
	}
	if req.PreviousResponseID != "" {
		if _, ok := store.Get(req.PreviousResponseID); !ok {
			return gatewayerr.NewValidationError("invalid_previous_response_id", "previous_response_id not found: "+req.PreviousResponseID)
		}
	}
	return nil
}

func (o *Orchestrator) buildInitialMessages(req responsetypes.ResponseRequest) ([]map[string]interface{}, []responsetypes.InputItem) {
	var messages []map[string]interface{}
	var inputItems []responsetypes.InputItem

	if req.PreviousResponseID != "" {
		if rec, ok := o.Store.Get(req.PreviousResponseID); ok {
			inputItems = append(inputItems, rec.InputItems...)
			messages = append(messages, itemsToMessages(rec.InputItems)...)
		}
	}

	if req.Instructions != "" {
		messages = append(messages, map[string]interface{}{"role": "system", "content": req.Instructions})
	}

	if req.Input.IsText() {
		item := responsetypes.OutputItem{Type: responsetypes.ItemTypeMessage, Role: "user", Text: req.Input.Text}
		inputItems = append(inputItems, item)
		messages = append(messages, map[string]interface{}{"role": "user", "content": req.Input.Text})
	} else {
		inputItems = append(inputItems, req.Input.Items...)
		messages = append(messages, itemsToMessages(req.Input.Items)...)
	}

	return messages, inputItems
}

func itemsToMessages(items []responsetypes.InputItem) []map[string]interface{} {
	var out []map[string]interface{}
	for _, it := range items {
		switch it.Type {
		case responsetypes.ItemTypeMessage:
			role := it.Role
			if role == "" {
				role = "user"
			}
			out = append(out, map[string]interface{}{"role": role, "content": it.Text})
		case responsetypes.ItemTypeFunctionCall:
			out = append(out, map[string]interface{}{
				"role": "assistant",
				"tool_calls": []map[string]interface{}{{
					"id":   it.CallID,
					"type": "function",
					"function": map[string]interface{}{
						"name":      it.Name,
						"arguments": it.Arguments,
					},
				}},
			})
		case responsetypes.ItemTypeFunctionCallOutput:
			out = append(out, map[string]interface{}{
				"role":         "tool",
				"tool_call_id": it.CallID,
				"content":      it.Output,
			})
		}
	}
	return out
}

func buildChatRequest(modelName string, messages []map[string]interface{}, req responsetypes.ResponseRequest) upstream.ChatRequest {
	extra := map[string]interface{}{}
	if req.Temperature != nil {
		extra["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		extra["top_p"] = *req.TopP
	}
	if req.MaxOutputTokens != nil {
		extra["max_tokens"] = *req.MaxOutputTokens
	}
	if len(req.Tools) > 0 {
		extra["tools"] = toolSpecsToWire(req.Tools)
		extra["tool_choice"] = req.ToolChoice.Mode
	}
	return upstream.ChatRequest{Model: modelName, Messages: messages, Extra: extra}
}

func wireToolCalls(calls []upstream.ToolCall) []map[string]interface{} {
	out := make([]map[string]interface{}, len(calls))
	for i, tc := range calls {
		out[i] = map[string]interface{}{
			"id":   tc.ID,
			"type": "function",
			"function": map[string]interface{}{
				"name":      tc.Function.Name,
				"arguments": tc.Function.Arguments,
			},
		}
	}
	return out
}

// wireFunctionCallItems converts assembler-reconstructed FunctionCall items
// back into the chat-completions tool_calls wire shape, for the assistant
// message the streaming turn loop appends to history.
func wireFunctionCallItems(items []responsetypes.OutputItem) []map[string]interface{} {
	out := make([]map[string]interface{}, len(items))
	for i, item := range items {
		out[i] = map[string]interface{}{
			"id":   item.CallID,
			"type": "function",
			"function": map[string]interface{}{
				"name":      item.Name,
				"arguments": item.Arguments,
			},
		}
	}
	return out
}

func toolSpecsToWire(specs []responsetypes.ToolSpec) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(specs))
	for _, s := range specs {
		function := map[string]interface{}{"name": s.Name, "description": s.Description}
		if s.Parameters != nil {
			function["parameters"] = s.Parameters
		}
		if s.Strict {
			function["strict"] = true
		}
		out = append(out, map[string]interface{}{"type": "function", "function": function})
	}
	return out
}

// classifyToolCalls splits the upstream's tool calls into ones the
// registry can execute server-side (native/mcp) and ones that are
// passthrough (declared as "function" tools, or unknown to the registry).
func (o *Orchestrator) classifyToolCalls(choice upstream.Choice) (executable, passthrough []responsetypes.OutputItem) {
	var items []responsetypes.OutputItem
	for _, tc := range choice.Message.ToolCalls {
		items = append(items, responsetypes.NewFunctionCall(newItemID(), tc.ID, tc.Function.Name, tc.Function.Arguments, responsetypes.CallStatusCompleted))
	}
	return o.classifyFunctionCallItems(items)
}

// classifyFunctionCallItems splits already-built FunctionCall items into ones
// the registry can execute server-side (native/mcp) and ones that are
// passthrough (declared as "function" tools, or unknown to the registry).
// Shared by the non-streaming and streaming turn loops.
func (o *Orchestrator) classifyFunctionCallItems(items []responsetypes.OutputItem) (executable, passthrough []responsetypes.OutputItem) {
	for _, item := range items {
		if def, ok := o.Tools.GetDefinition(item.Name); ok && def.Kind != toolregistry.KindFunction {
			executable = append(executable, item)
		} else {
			passthrough = append(passthrough, item)
		}
	}
	return executable, passthrough
}

func (o *Orchestrator) executeTools(ctx context.Context, calls []responsetypes.OutputItem, req responsetypes.ResponseRequest, rctx RequestContext) []responsetypes.OutputItem {
	outputs := make([]responsetypes.OutputItem, len(calls))

	run := func(i int) {
		call := calls[i]
		ectx := toolregistry.ExecutionContext{
			Context:     ctx,
			BearerToken: rctx.BearerToken,
			Model:       req.Model,
			Temperature: req.Temperature,
		}
		result, err := o.Tools.Execute(call.Name, call.Arguments, ectx)
		if err != nil {
			result = toErrorJSON(err)
		}
		outputs[i] = responsetypes.NewFunctionCallOutput(newItemID(), call.CallID, result)
	}

	if req.ParallelToolCalls && len(calls) > 1 {
		var wg sync.WaitGroup
		for i := range calls {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				run(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range calls {
			run(i)
		}
	}

	return outputs
}

func toErrorJSON(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}

func isSearchTool(name string) bool {
	return name == "file_search" || name == "agentic_search"
}

// backfillAnnotations parses a file_search/agentic_search FunctionCallOutput
// and lifts its data[*].annotations onto the subsequent final message, per
// SPEC_FULL §4.7's annotation back-fill rule.
func backfillAnnotations(toolOutput responsetypes.OutputItem) []responsetypes.Annotation {
	var payload struct {
		Data []struct {
			FileID      string `json:"file_id"`
			Filename    string `json:"filename"`
			Annotations []responsetypes.Annotation `json:"annotations"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(toolOutput.Output), &payload); err != nil {
		return nil
	}
	var out []responsetypes.Annotation
	for _, d := range payload.Data {
		out = append(out, d.Annotations...)
	}
	return out
}

func newItemID() string {
	return "item_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:20]
}
