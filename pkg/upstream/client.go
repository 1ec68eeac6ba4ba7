// Package upstream implements the Upstream Client: a single generic HTTP
// client speaking the OpenAI chat-completions wire format, used against
// whatever base URL the Provider Router resolves for a request, per
// SPEC_FULL §4.10.
//
// Grounded on the teacher's pkg/providers/openai/language_model.go for the
// request/response shape and pkg/internal/http/client.go for the transport
// wrapper; retry/backoff is grounded on pkg/internal/retry/retry.go. Unlike
// the teacher, there is no per-vendor Provider/LanguageModel split here —
// every upstream speaks the same chat-completions dialect, so one client
// replaces the teacher's pkg/providers/{openai,openresponses,...} adapters.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/masaic-ai-platform/gateway/pkg/gatewayerr"
	"github.com/masaic-ai-platform/gateway/pkg/internal/retry"
	"github.com/masaic-ai-platform/gateway/pkg/providerutils/streaming"
	"github.com/masaic-ai-platform/gateway/pkg/telemetry"
)

// DefaultHTTPClient mirrors the teacher's transport tuning: bounded idle
// connections, reused across upstreams.
var DefaultHTTPClient = &http.Client{
	Timeout: 60 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// Client talks to one resolved base URL in the OpenAI chat-completions
// dialect. One Client is constructed per request, pointed at whatever
// Resolution the Provider Router produced.
type Client struct {
	http    *http.Client
	baseURL string
	tracer  trace.Tracer
	retry   retry.Config
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Tracer     trace.Tracer
	Retry      retry.Config // zero value falls back to DefaultRetryConfig
}

// DefaultRetryConfig retries connection failures, 429, and 5xx up to 3
// times with exponential backoff and jitter; it never retries other 4xx.
func DefaultRetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.ShouldRetry = IsRetryableError
	return cfg
}

// New builds a Client for one resolved base URL.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = DefaultHTTPClient
	}
	retryCfg := cfg.Retry
	if retryCfg.MaxRetries == 0 {
		retryCfg = DefaultRetryConfig()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.GetTracer(&telemetry.Settings{IsEnabled: true})
	}
	return &Client{http: httpClient, baseURL: cfg.BaseURL, tracer: tracer, retry: retryCfg}
}

// ChatRequest is the subset of the OpenAI chat-completions request body the
// gateway needs to set. Extra carries any remaining caller-supplied fields
// (temperature, top_p, tool definitions, ...) verbatim.
type ChatRequest struct {
	Model    string                   `json:"model"`
	Messages []map[string]interface{} `json:"messages"`
	Stream   bool                     `json:"stream"`
	Extra    map[string]interface{}   `json:"-"`
}

// MarshalJSON merges Extra into the flat request body so unknown
// caller-supplied fields pass through untouched.
func (r ChatRequest) MarshalJSON() ([]byte, error) {
	body := map[string]interface{}{
		"model":    r.Model,
		"messages": r.Messages,
		"stream":   r.Stream,
	}
	for k, v := range r.Extra {
		body[k] = v
	}
	return json.Marshal(body)
}

// ToolCallFunction is the name/arguments pair inside a ToolCall.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is one tool call attached to a chat-completions message.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// Message is an OpenAI chat-completions response message.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls"`
}

// Choice is one entry in a ChatResponse's choices array.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatUsage is the token accounting block of a ChatResponse.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the subset of an OpenAI chat-completions response the
// orchestrator reads directly; anything else is left in Raw for callers
// that need fields this gateway doesn't interpret.
type ChatResponse struct {
	ID      string    `json:"id"`
	Choices []Choice  `json:"choices"`
	Usage   ChatUsage `json:"usage"`
	Raw     map[string]interface{} `json:"-"`
}

// Generate issues a non-streaming chat-completions call, forwarding
// bearerToken verbatim in the Authorization header. It retries transient
// failures per the configured retry.Config and records a span per attempt
// group, never recording the token itself.
func (c *Client) Generate(ctx context.Context, bearerToken string, req ChatRequest) (*ChatResponse, error) {
	return telemetry.RecordSpan(ctx, c.tracer, telemetry.SpanOptions{
		Name: "upstream.generate",
		Attributes: []attribute.KeyValue{
			attribute.String("upstream.model", req.Model),
			attribute.String("upstream.base_url", c.baseURL),
		},
		EndWhenDone: true,
	}, func(ctx context.Context, span trace.Span) (*ChatResponse, error) {
		req.Stream = false
		var resp *ChatResponse
		err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
			r, err := c.doOnce(ctx, bearerToken, req)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
		if err != nil {
			return nil, classifyError(err)
		}
		return resp, nil
	})
}

// StreamEvent is one raw SSE payload line from an upstream streaming
// response, handed to the Streaming Assembler for reconstruction.
type StreamEvent struct {
	Data string // the text after "data: ", before the trailing "[DONE]" sentinel
	Done bool
}

// GenerateStream issues a streaming chat-completions call and returns a
// channel of raw SSE data payloads plus a function to release the
// underlying connection. The caller (the Streaming Assembler) is
// responsible for parsing each payload into output deltas.
func (c *Client) GenerateStream(ctx context.Context, bearerToken string, req ChatRequest) (<-chan StreamEvent, func() error, error) {
	req.Stream = true

	ctx, span := c.tracer.Start(ctx, "upstream.generate_stream",
		trace.WithAttributes(
			attribute.String("upstream.model", req.Model),
			attribute.String("upstream.base_url", c.baseURL),
		))

	httpResp, err := c.doRequest(ctx, bearerToken, req)
	if err != nil {
		telemetry.RecordErrorOnSpan(span, err)
		span.End()
		return nil, nil, classifyError(err)
	}

	events := make(chan StreamEvent)
	go func() {
		defer span.End()
		defer close(events)
		defer httpResp.Body.Close()
		scanSSE(httpResp.Body, events)
	}()

	return events, httpResp.Body.Close, nil
}

func scanSSE(body io.Reader, out chan<- StreamEvent) {
	parser := streaming.NewSSEParser(body)
	for {
		event, err := parser.Next()
		if err != nil {
			return
		}
		if streaming.IsStreamDone(event) {
			out <- StreamEvent{Done: true}
			return
		}
		if event.Data == "" {
			continue
		}
		out <- StreamEvent{Data: event.Data}
	}
}

func (c *Client) doOnce(ctx context.Context, bearerToken string, req ChatRequest) (*ChatResponse, error) {
	httpResp, err := c.doRequest(ctx, bearerToken, req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upstream response body: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return nil, &httpStatusError{status: httpResp.StatusCode, body: body}
	}

	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding upstream response: %w", err)
	}
	_ = json.Unmarshal(body, &resp.Raw)
	return &resp, nil
}

func (c *Client) doRequest(ctx context.Context, bearerToken string, req ChatRequest) (*http.Response, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling upstream request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if bearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearerToken)
	}
	traceHeaders := map[string]string{}
	telemetry.InjectB3TraceID(ctx, traceHeaders)
	if traceID, ok := traceHeaders[telemetry.B3TraceIDHeader]; ok {
		httpReq.Header.Set(telemetry.B3TraceIDHeader, traceID)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	return httpResp, nil
}

// httpStatusError carries a non-2xx upstream response through the retry
// loop so IsRetryableError can inspect the status code.
type httpStatusError struct {
	status int
	body   []byte
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("upstream HTTP %d: %s", e.status, string(e.body))
}

// IsRetryableError reports whether err should trigger another attempt:
// connection failures, 429, and 5xx. Any other 4xx is terminal.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *httpStatusError
	if asHTTPStatusError(err, &statusErr) {
		if statusErr.status == http.StatusTooManyRequests || statusErr.status >= 500 {
			return true
		}
		return false
	}
	return true
}

func asHTTPStatusError(err error, target **httpStatusError) bool {
	if se, ok := err.(*httpStatusError); ok {
		*target = se
		return true
	}
	return false
}

// classifyError maps a transport/status error into the gateway's error
// taxonomy (SPEC_FULL §7) after retries are exhausted.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var statusErr *httpStatusError
	if asHTTPStatusError(err, &statusErr) {
		switch {
		case statusErr.status == http.StatusUnauthorized:
			return gatewayerr.NewAuthenticationError(statusErr.Error())
		case statusErr.status == http.StatusNotFound:
			return gatewayerr.NewNotFoundError("upstream_resource", "")
		default:
			return gatewayerr.NewUpstreamError(statusErr.Error(), err)
		}
	}
	if err == context.DeadlineExceeded {
		return gatewayerr.NewTimeoutError(err.Error())
	}
	return gatewayerr.NewUpstreamError(err.Error(), err)
}
