package mcp

import (
	"context"
	"fmt"

	"github.com/masaic-ai-platform/gateway/pkg/toolregistry"
)

// DiscoverAndRegister lists every tool exposed by a connected MCP server and
// registers it in the tool registry under serverLabel, wrapping client in a
// CallerAdapter so the registry's flat-string CallTool contract is satisfied.
func DiscoverAndRegister(ctx context.Context, registry *toolregistry.Registry, serverLabel string, client *MCPClient) error {
	mcpTools, err := client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("failed to list MCP tools for %s: %w", serverLabel, err)
	}

	descriptors := make([]toolregistry.MCPToolDescriptor, len(mcpTools))
	for i, tool := range mcpTools {
		descriptors[i] = toolregistry.MCPToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.InputSchema,
		}
	}

	registry.RegisterMCPTools(serverLabel, NewCallerAdapter(client), descriptors)
	return nil
}

// CreateMCPClient creates an MCP client with the specified configuration.
// This is a convenience function for quickly setting up MCP connections.
func CreateMCPClient(config MCPClientConfig, transport Transport) (*MCPClient, error) {
	client := NewMCPClient(transport, config)
	return client, nil
}

// CreateStdioMCPClient creates an MCP client with stdio transport, useful
// for connecting to local MCP servers launched as a subprocess.
func CreateStdioMCPClient(command string, args []string) (*MCPClient, error) {
	transport := NewStdioTransport(StdioTransportConfig{
		Command: command,
		Args:    args,
		Config: TransportConfig{
			EnableLogging: false,
		},
	})

	config := MCPClientConfig{
		ClientName:       "masaic-gateway-mcp-client",
		ClientVersion:    "1.0.0",
		RequestTimeoutMS: 30000,
		EnableLogging:    false,
	}

	return CreateMCPClient(config, transport)
}

// CreateHTTPMCPClient creates an MCP client with HTTP transport, useful for
// connecting to remote MCP servers.
func CreateHTTPMCPClient(url string, oauth *OAuthConfig) (*MCPClient, error) {
	transport := NewHTTPTransport(HTTPTransportConfig{
		URL:       url,
		TimeoutMS: 30000,
		OAuth:     oauth,
		Config: TransportConfig{
			EnableLogging: false,
		},
	})

	config := MCPClientConfig{
		ClientName:       "masaic-gateway-mcp-client",
		ClientVersion:    "1.0.0",
		RequestTimeoutMS: 30000,
		EnableLogging:    false,
	}

	return CreateMCPClient(config, transport)
}
