// Package streaming implements the Streaming Assembler: it reconstructs a
// logical Response from an upstream chunk stream and, when asked, emits the
// SSE lifecycle events a stream=true caller observes, per SPEC_FULL §4.8.
//
// Grounded on the teacher's pkg/providerutils/streaming/sse.go for SSE
// framing (reused directly for writing events) and on
// pkg/providers/openai/language_model.go's stream-decoding shape for the
// per-chunk delta fields; the bucket-by-index tool-call reconstruction rule
// has no teacher precedent and is built fresh from SPEC_FULL §4.8.
package streaming

import (
	"encoding/json"
	"io"

	"github.com/masaic-ai-platform/gateway/pkg/providerutils/streaming"
	"github.com/masaic-ai-platform/gateway/pkg/responsetypes"
)

// RawChunk is the subset of one upstream chat-completions stream chunk the
// assembler reads.
type RawChunk struct {
	ID      string `json:"id"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// pendingToolCall accumulates one tool call's deltas, bucketed by its
// position index in the upstream's tool_calls array.
type pendingToolCall struct {
	id        string
	name      string
	arguments string
}

// Assembler accumulates chunks for a single in-progress turn and
// reconstructs the completed message/tool-call output items, applying the
// chunk reconstruction rule from SPEC_FULL §4.8: concatenate text across
// chunks; bucket tool-call deltas by position index; first non-empty id/name
// wins; arguments concatenate in arrival order.
type Assembler struct {
	text         string
	toolCalls    map[int]*pendingToolCall
	order        []int
	finishReason string
}

// NewAssembler builds an empty Assembler for one turn.
func NewAssembler() *Assembler {
	return &Assembler{toolCalls: map[int]*pendingToolCall{}}
}

// Push folds one raw upstream chunk payload into the assembler's state and
// returns the text/tool-call-argument deltas to forward as SSE events.
func (a *Assembler) Push(payload string) (textDelta string, toolDeltas []ToolArgumentDelta, err error) {
	var chunk RawChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", nil, err
	}
	if len(chunk.Choices) == 0 {
		return "", nil, nil
	}
	choice := chunk.Choices[0]

	if choice.Delta.Content != "" {
		a.text += choice.Delta.Content
		textDelta = choice.Delta.Content
	}

	for _, tc := range choice.Delta.ToolCalls {
		pending, ok := a.toolCalls[tc.Index]
		if !ok {
			pending = &pendingToolCall{}
			a.toolCalls[tc.Index] = pending
			a.order = append(a.order, tc.Index)
		}
		if pending.id == "" && tc.ID != "" {
			pending.id = tc.ID
		}
		if pending.name == "" && tc.Function.Name != "" {
			pending.name = tc.Function.Name
		}
		if tc.Function.Arguments != "" {
			pending.arguments += tc.Function.Arguments
			toolDeltas = append(toolDeltas, ToolArgumentDelta{
				Index:          tc.Index,
				CallID:         pending.id,
				ArgumentsDelta: tc.Function.Arguments,
			})
		}
	}

	if choice.FinishReason != "" {
		a.finishReason = choice.FinishReason
	}
	return textDelta, toolDeltas, nil
}

// ToolArgumentDelta is one incremental tool-call-arguments chunk, surfaced
// so the caller can emit response.function_call_arguments.delta.
type ToolArgumentDelta struct {
	Index          int
	CallID         string
	ArgumentsDelta string
}

// FinishReason returns the last non-empty finish_reason seen, or "" if the
// stream has not finished a choice yet.
func (a *Assembler) FinishReason() string { return a.finishReason }

// OutputItems converts the accumulated state into OutputItems exactly as
// the non-streaming orchestrator path does in §4.7: a Message item (if any
// text was produced) followed by FunctionCall items in tool-call index
// order.
func (a *Assembler) OutputItems(messageID string, nextItemID func() string) []responsetypes.OutputItem {
	var items []responsetypes.OutputItem
	if a.text != "" {
		items = append(items, responsetypes.NewMessage(messageID, a.text, nil))
	}
	for _, idx := range a.order {
		tc := a.toolCalls[idx]
		items = append(items, responsetypes.NewFunctionCall(
			nextItemID(), tc.id, tc.name, tc.arguments, responsetypes.CallStatusCompleted,
		))
	}
	return items
}

// ToolCallItems converts only the accumulated tool-call state into
// FunctionCall output items, in index order, without the text Message item
// OutputItems also builds. Streaming callers that reconstruct message text
// themselves (after reasoning-tag stripping) use this instead of OutputItems.
func (a *Assembler) ToolCallItems(nextItemID func() string) []responsetypes.OutputItem {
	var items []responsetypes.OutputItem
	for _, idx := range a.order {
		tc := a.toolCalls[idx]
		items = append(items, responsetypes.NewFunctionCall(
			nextItemID(), tc.id, tc.name, tc.arguments, responsetypes.CallStatusCompleted,
		))
	}
	return items
}

// HasToolCalls reports whether any tool call was accumulated this turn.
func (a *Assembler) HasToolCalls() bool { return len(a.order) > 0 }

// Text returns the accumulated assistant text.
func (a *Assembler) Text() string { return a.text }

// Re-export the SSE writer/event types so callers of this package don't
// need a second import for wire framing.
type SSEEvent = streaming.SSEEvent
type SSEWriter = streaming.SSEWriter

func NewSSEWriter(w io.Writer) *SSEWriter {
	return streaming.NewSSEWriter(w)
}
