package main

import (
	"context"
	"testing"

	"github.com/masaic-ai-platform/gateway/pkg/config"
	"github.com/masaic-ai-platform/gateway/pkg/toolregistry"
)

func TestRegisterMCPServersSkipsUnsupportedTransport(t *testing.T) {
	tools := toolregistry.New()
	servers := []config.MCPServerConfig{{Label: "broken", Transport: "carrier-pigeon"}}

	registerMCPServers(context.Background(), tools, servers)

	_, ok := tools.GetDefinition("broken__anything")
	if ok {
		t.Fatalf("expected no tools registered for an unsupported transport")
	}
}

func TestRegisterMCPServersSkipsUnreachableHTTPServer(t *testing.T) {
	tools := toolregistry.New()
	servers := []config.MCPServerConfig{{Label: "unreachable", Transport: "http", URL: "http://127.0.0.1:0"}}

	registerMCPServers(context.Background(), tools, servers)

	_, ok := tools.GetDefinition("unreachable__anything")
	if ok {
		t.Fatalf("expected no tools registered when the MCP server is unreachable")
	}
}
