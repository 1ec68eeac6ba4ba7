package streaming

import "github.com/masaic-ai-platform/gateway/pkg/responsetypes"

// Event names for the SPEC_FULL §4.8 lifecycle sequence. Kept as plain
// string constants, matching the teacher's convention in
// pkg/providerutils/streaming/sse.go of typing events by a free-form name
// field rather than a closed Go type.
const (
	EventResponseCreated            = "response.created"
	EventOutputTextDelta            = "response.output_text.delta"
	EventFunctionCallArgumentsDelta = "response.function_call_arguments.delta"
	EventOutputItemDone             = "response.output_item.done"
	EventToolCallStarted            = "response.tool_call.started"
	EventToolCallCompleted          = "response.tool_call.completed"
	EventResponseCompleted          = "response.completed"
	EventResponseFailed             = "response.failed"
	EventResponseIncomplete         = "response.incomplete"
)

// Envelope is the JSON payload carried as the "data" field of each SSE
// event. Fields are populated selectively per event type; omitted ones
// marshal away thanks to omitempty.
type Envelope struct {
	Type         string                    `json:"type"`
	Response     *responsetypes.Response   `json:"response,omitempty"`
	Delta        string                    `json:"delta,omitempty"`
	ItemID       string                    `json:"item_id,omitempty"`
	OutputIndex  int                       `json:"output_index,omitempty"`
	Item         *responsetypes.OutputItem `json:"item,omitempty"`
	CallID       string                    `json:"call_id,omitempty"`
	Name         string                    `json:"name,omitempty"`
	Error        string                    `json:"error,omitempty"`
}

// Created builds the response.created envelope.
func Created(resp responsetypes.Response) Envelope {
	resp.Status = responsetypes.StatusInProgress
	return Envelope{Type: EventResponseCreated, Response: &resp}
}

// OutputTextDelta builds a response.output_text.delta envelope.
func OutputTextDelta(itemID string, outputIndex int, delta string) Envelope {
	return Envelope{Type: EventOutputTextDelta, ItemID: itemID, OutputIndex: outputIndex, Delta: delta}
}

// FunctionCallArgumentsDelta builds a response.function_call_arguments.delta envelope.
func FunctionCallArgumentsDelta(itemID string, outputIndex int, delta string) Envelope {
	return Envelope{Type: EventFunctionCallArgumentsDelta, ItemID: itemID, OutputIndex: outputIndex, Delta: delta}
}

// OutputItemDone builds a response.output_item.done envelope.
func OutputItemDone(outputIndex int, item responsetypes.OutputItem) Envelope {
	return Envelope{Type: EventOutputItemDone, OutputIndex: outputIndex, Item: &item}
}

// ToolCallStarted builds a response.tool_call.started envelope.
func ToolCallStarted(callID, name string) Envelope {
	return Envelope{Type: EventToolCallStarted, CallID: callID, Name: name}
}

// ToolCallCompleted builds a response.tool_call.completed envelope.
func ToolCallCompleted(callID, name string, err error) Envelope {
	e := Envelope{Type: EventToolCallCompleted, CallID: callID, Name: name}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Completed builds the terminal envelope, selecting response.completed,
// response.failed, or response.incomplete from resp.Status.
func Completed(resp responsetypes.Response) Envelope {
	e := Envelope{Response: &resp}
	switch resp.Status {
	case responsetypes.StatusFailed:
		e.Type = EventResponseFailed
	case responsetypes.StatusIncomplete:
		e.Type = EventResponseIncomplete
	default:
		e.Type = EventResponseCompleted
	}
	return e
}
