package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CallerAdapter wraps an MCPClient so it satisfies toolregistry.MCPCaller,
// whose CallTool returns a flat string (the tool-output contract every
// registry.Kind shares), rather than the protocol-level CallToolResult.
type CallerAdapter struct {
	Client *MCPClient
}

// NewCallerAdapter wraps client for registration with the tool registry.
func NewCallerAdapter(client *MCPClient) *CallerAdapter {
	return &CallerAdapter{Client: client}
}

// CallTool invokes the wrapped tool and flattens its content blocks into a
// single string: text blocks are concatenated, non-text blocks (image,
// resource) are rendered as a compact JSON descriptor so no content is
// silently dropped. An IsError result still returns a string, not an error,
// matching how the registry surfaces tool-level failures to the model.
func (a *CallerAdapter) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (string, error) {
	result, err := a.Client.CallTool(ctx, name, arguments)
	if err != nil {
		return "", err
	}
	return flattenContent(result.Content), nil
}

func flattenContent(content []ToolResultContent) string {
	var parts []string
	for _, item := range content {
		switch item.Type {
		case "text":
			parts = append(parts, item.Text)
		default:
			parts = append(parts, describeNonTextContent(item))
		}
	}
	return strings.Join(parts, "\n")
}

func describeNonTextContent(item ToolResultContent) string {
	descriptor := map[string]interface{}{
		"type":     item.Type,
		"mimeType": item.MimeType,
	}
	if item.URI != "" {
		descriptor["uri"] = item.URI
	}
	if item.Data != "" {
		descriptor["dataLength"] = len(item.Data)
	}
	encoded, err := json.Marshal(descriptor)
	if err != nil {
		return fmt.Sprintf("[%s content omitted]", item.Type)
	}
	return string(encoded)
}
