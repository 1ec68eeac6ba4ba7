package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenContentJoinsTextBlocks(t *testing.T) {
	content := []ToolResultContent{
		{Type: "text", Text: "first"},
		{Type: "text", Text: "second"},
	}
	assert.Equal(t, "first\nsecond", flattenContent(content))
}

func TestFlattenContentDescribesNonTextBlocks(t *testing.T) {
	content := []ToolResultContent{
		{Type: "image", MimeType: "image/png", Data: "YWJj"},
	}
	out := flattenContent(content)
	assert.Contains(t, out, `"type":"image"`)
	assert.Contains(t, out, `"mimeType":"image/png"`)
	assert.NotContains(t, out, "YWJj")
}

func TestFlattenContentIncludesResourceURI(t *testing.T) {
	content := []ToolResultContent{
		{Type: "resource", URI: "file:///tmp/a.txt", MimeType: "text/plain"},
	}
	out := flattenContent(content)
	assert.Contains(t, out, `"uri":"file:///tmp/a.txt"`)
}

// fakeTransport lets CallerAdapter be exercised without a live server: Send
// discards every message and Receive blocks until the context is done, so no
// request is ever answered.
type fakeTransport struct {
	connected bool
}

func (f *fakeTransport) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeTransport) Close() error                      { return nil }
func (f *fakeTransport) IsConnected() bool                 { return f.connected }
func (f *fakeTransport) Send(ctx context.Context, msg *MCPMessage) error {
	return nil
}
func (f *fakeTransport) Receive(ctx context.Context) (*MCPMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCallerAdapterPropagatesClientError(t *testing.T) {
	client := NewMCPClient(&fakeTransport{}, MCPClientConfig{})
	adapter := NewCallerAdapter(client)

	_, err := adapter.CallTool(context.Background(), "some_tool", nil)
	require.Error(t, err)
}
