// Package responsetypes defines the wire and in-memory shapes of the
// Responses API: ResponseRequest, Response, OutputItem, InputItem, and the
// search-side Filter/RankingOptions types.
package responsetypes

import (
	"encoding/json"
	"fmt"
)

// Status values for Response.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusIncomplete = "incomplete"
	StatusFailed     = "failed"
)

// OutputItem type discriminators.
const (
	ItemTypeMessage            = "message"
	ItemTypeFunctionCall       = "function_call"
	ItemTypeFunctionCallOutput = "function_call_output"
	ItemTypeReasoning          = "reasoning"
)

// FunctionCall status values.
const (
	CallStatusInProgress = "in_progress"
	CallStatusCompleted  = "completed"
)

// Input is the tagged variant for ResponseRequest.Input: either a plain
// string or an ordered list of InputItem.
type Input struct {
	Text  string
	Items []InputItem
}

// IsText reports whether this Input was supplied as a plain string.
func (i Input) IsText() bool { return i.Items == nil }

func (i Input) MarshalJSON() ([]byte, error) {
	if i.Items == nil {
		return json.Marshal(i.Text)
	}
	return json.Marshal(i.Items)
}

func (i *Input) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		i.Text = s
		i.Items = nil
		return nil
	}
	var items []InputItem
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("input must be a string or an array of items: %w", err)
	}
	i.Items = items
	return nil
}

// ToolChoice mirrors the upstream tool_choice union: "auto" | "none" |
// "required" | {type:"function", name}.
type ToolChoice struct {
	Mode string `json:"-"` // "auto" | "none" | "required" | "function"
	Name string `json:"-"`
}

func (t ToolChoice) MarshalJSON() ([]byte, error) {
	if t.Mode == "" || t.Mode == "auto" || t.Mode == "none" || t.Mode == "required" {
		mode := t.Mode
		if mode == "" {
			mode = "auto"
		}
		return json.Marshal(mode)
	}
	return json.Marshal(map[string]string{"type": "function", "name": t.Name})
}

func (t *ToolChoice) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.Mode = s
		return nil
	}
	var obj struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	t.Mode = obj.Type
	t.Name = obj.Name
	return nil
}

// AllowsToolCalls reports whether this choice permits the model to call
// tools at all (§4.7 step 3: "tool_choice allows tool execution").
func (t ToolChoice) AllowsToolCalls() bool {
	return t.Mode != "none"
}

// ResponseRequest is the POST /v1/responses request body.
type ResponseRequest struct {
	Model              string            `json:"model"`
	Input              Input             `json:"input"`
	Instructions       string            `json:"instructions,omitempty"`
	Tools              []ToolSpec        `json:"tools,omitempty"`
	ToolChoice         ToolChoice        `json:"tool_choice,omitempty"`
	Temperature        *float64          `json:"temperature,omitempty"`
	TopP               *float64          `json:"top_p,omitempty"`
	MaxOutputTokens    *int              `json:"max_output_tokens,omitempty"`
	ParallelToolCalls  bool              `json:"parallel_tool_calls"`
	PreviousResponseID string            `json:"previous_response_id,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	Store              bool              `json:"store"`
	Stream             bool              `json:"stream"`
}

// ToolSpec is the caller-declared tool shape inside a ResponseRequest.
type ToolSpec struct {
	Type        string                 `json:"type"` // "function" | "file_search" | "agentic_search" | "image_generation" | "mcp" | "python" | "code_interpreter"
	Name        string                 `json:"name,omitempty"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Strict      bool                  `json:"strict,omitempty"`
	VectorStoreIDs []string           `json:"vector_store_ids,omitempty"`
	ServerLabel    string             `json:"server_label,omitempty"`
}

// Usage carries token accounting, mirroring the upstream usage shape.
type Usage struct {
	InputTokens         int                  `json:"input_tokens"`
	OutputTokens        int                  `json:"output_tokens"`
	TotalTokens         int                  `json:"total_tokens"`
	InputTokensDetails  *InputTokensDetails  `json:"input_tokens_details,omitempty"`
	OutputTokensDetails *OutputTokensDetails `json:"output_tokens_details,omitempty"`
}

type InputTokensDetails struct {
	CachedTokens int `json:"cached_tokens,omitempty"`
}

type OutputTokensDetails struct {
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`
}

// IncompleteDetails explains why a Response is incomplete.
type IncompleteDetails struct {
	Reason string `json:"reason"` // "max_turns" | "max_output_tokens"
}

// Annotation is a structured citation attached to a Message's text.
type Annotation struct {
	Type       string `json:"type"` // "file_citation" | "url_citation"
	FileID     string `json:"file_id,omitempty"`
	Filename   string `json:"filename,omitempty"`
	Index      int    `json:"index"`
	URL        string `json:"url,omitempty"`
	StartIndex int    `json:"start_index,omitempty"`
	EndIndex   int    `json:"end_index,omitempty"`
	Title      string `json:"title,omitempty"`
}

// OutputItem is the tagged variant described in SPEC_FULL §3. Exactly one
// of the type-specific field groups is populated, selected by Type.
type OutputItem struct {
	Type string `json:"type"`

	// Message fields.
	ID          string       `json:"id,omitempty"`
	Role        string       `json:"role,omitempty"`
	Text        string       `json:"text,omitempty"`
	IsImage     bool         `json:"-"`
	Annotations []Annotation `json:"annotations,omitempty"`

	// FunctionCall / FunctionCallOutput fields.
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`
	Status    string `json:"status,omitempty"`

	// Reasoning fields.
	Summary string `json:"summary,omitempty"`
}

// NewMessage builds an assistant text output item.
func NewMessage(id, text string, annotations []Annotation) OutputItem {
	return OutputItem{Type: ItemTypeMessage, ID: id, Role: "assistant", Text: text, Annotations: annotations}
}

// NewFunctionCall builds a FunctionCall output item.
func NewFunctionCall(id, callID, name, arguments, status string) OutputItem {
	return OutputItem{Type: ItemTypeFunctionCall, ID: id, CallID: callID, Name: name, Arguments: arguments, Status: status}
}

// NewFunctionCallOutput builds a FunctionCallOutput output item.
func NewFunctionCallOutput(id, callID, output string) OutputItem {
	return OutputItem{Type: ItemTypeFunctionCallOutput, ID: id, CallID: callID, Output: output}
}

// NewReasoning builds a Reasoning output item.
func NewReasoning(id, summary string) OutputItem {
	return OutputItem{Type: ItemTypeReasoning, ID: id, Summary: summary}
}

// InputItem shares OutputItem's variant set plus a plain user/developer
// message shape (no call_id semantics beyond linking to a later
// FunctionCallOutput).
type InputItem = OutputItem

// Response is the immutable result record returned by the orchestrator.
type Response struct {
	ID                 string             `json:"id"`
	CreatedAt           int64             `json:"created_at"`
	Status              string            `json:"status"`
	IncompleteDetails   *IncompleteDetails `json:"incomplete_details,omitempty"`
	Output              []OutputItem       `json:"output"`
	Model               string             `json:"model"`
	Usage               *Usage             `json:"usage,omitempty"`
	ToolChoice          ToolChoice         `json:"tool_choice,omitempty"`
	Tools               []ToolSpec         `json:"tools,omitempty"`
	Metadata            map[string]string  `json:"metadata,omitempty"`
	PreviousResponseID  string             `json:"previous_response_id,omitempty"`
	Error               *ResponseError     `json:"error,omitempty"`
}

// ResponseError appears when Status == failed.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Filter is the tagged variant used for attribute filtering during search.
type Filter struct {
	// Comparison fields.
	Key   string      `json:"key,omitempty"`
	Op    string      `json:"type,omitempty"` // eq|ne|gt|gte|lt|lte when this is a Comparison
	Value interface{} `json:"value,omitempty"`

	// Compound fields.
	BoolOp   string   `json:"-"` // "and" | "or"
	Children []Filter `json:"-"`
}

func (f Filter) IsCompound() bool { return f.BoolOp != "" }

func (f Filter) MarshalJSON() ([]byte, error) {
	if f.IsCompound() {
		return json.Marshal(map[string]interface{}{"type": f.BoolOp, "filters": f.Children})
	}
	return json.Marshal(map[string]interface{}{"type": f.Op, "key": f.Key, "value": f.Value})
}

func (f *Filter) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type    string          `json:"type"`
		Key     string          `json:"key"`
		Value   interface{}     `json:"value"`
		Filters json.RawMessage `json:"filters"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Type == "and" || probe.Type == "or" {
		var children []Filter
		if len(probe.Filters) > 0 {
			if err := json.Unmarshal(probe.Filters, &children); err != nil {
				return err
			}
		}
		f.BoolOp = probe.Type
		f.Children = children
		return nil
	}
	f.Op = probe.Type
	f.Key = probe.Key
	f.Value = probe.Value
	return nil
}

// RankingOptions controls reranking and thresholding during search.
type RankingOptions struct {
	Ranker         string  `json:"ranker,omitempty"` // auto|default|none|custom name
	ScoreThreshold float64 `json:"score_threshold,omitempty"`
}

// UsesHybrid reports whether hybrid (lexical+semantic) search applies,
// per SPEC_FULL §4.4: "whenever ranker is not default or none".
func (r RankingOptions) UsesHybrid() bool {
	return r.Ranker != "" && r.Ranker != "default" && r.Ranker != "none"
}
