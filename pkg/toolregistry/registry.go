// Package toolregistry implements the Tool Registry: a catalog of callable
// tools in three variants (native, MCP, function) exposing resolveAlias,
// getDefinition, and execute, per SPEC_FULL §4.2.
//
// The registry is read-mostly: readers (the orchestrator, once per turn)
// never block on writers, and writers (MCP discovery) publish a fresh
// snapshot atomically so no reader observes a partially-updated table —
// the same copy-on-write shape the teacher uses for its provider map in
// pkg/registry/registry.go, generalized from provider registration to tool
// registration.
package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/masaic-ai-platform/gateway/pkg/schema"
)

// Kind discriminates the three tool variants.
type Kind string

const (
	KindNative   Kind = "native"
	KindMCP      Kind = "mcp"
	KindFunction Kind = "function"
)

// NativeExecutor runs a native tool and returns a JSON result document.
type NativeExecutor func(ctx context.Context, argumentsJSON string, ectx ExecutionContext) (string, error)

// MCPCaller is the subset of an MCP client the registry needs to invoke a
// remote tool. Satisfied by *mcp.CallerAdapter, which flattens the
// protocol-level CallToolResult into the flat string every tool variant
// returns.
type MCPCaller interface {
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (string, error)
}

// EventEmitter lets a tool's execution publish streaming progress events
// (SPEC_FULL §4.8's response.tool_call.started/completed and
// implementation-defined progress events).
type EventEmitter interface {
	ToolCallStarted(callID, name string)
	ToolCallCompleted(callID, name string, err error)
}

// ExecutionContext carries everything a tool's Execute needs beyond its
// arguments: the caller's credentials, a handle to the upstream client (for
// tools like agentic_search that themselves call the model), a streaming
// event emitter, and request-scoped generation parameters.
type ExecutionContext struct {
	Context        context.Context
	BearerToken    string
	Emitter        EventEmitter
	Model          string
	Temperature    *float64
	VectorStoreIDs []string
	Extra          map[string]interface{}
}

// Definition is the ToolDefinition tagged variant from SPEC_FULL §3.
type Definition struct {
	Kind         Kind
	ResolvedName string
	OriginalName string
	Description  string
	Parameters   map[string]interface{}
	Strict       bool
	Fatal        bool // if true, a tool error aborts the turn loop instead of becoming a FunctionCallOutput

	// Native-only.
	Native NativeExecutor

	// MCP-only.
	MCPServerLabel string
	MCPClient      MCPCaller
}

// Registry is the tool catalog. Zero value is not usable; use New.
type Registry struct {
	snapshot atomic.Pointer[table]
	writeMu  sync.Mutex // serializes writers only; readers never block
}

type table struct {
	defs    map[string]Definition // resolvedName -> definition
	aliases map[string]string     // alias -> resolvedName
}

// New builds an empty registry.
func New() *Registry {
	r := &Registry{}
	r.snapshot.Store(&table{defs: map[string]Definition{}, aliases: map[string]string{}})
	return r
}

// RegisterNative adds (or replaces) a native tool definition.
func (r *Registry) RegisterNative(name, description string, parameters map[string]interface{}, exec NativeExecutor) {
	r.mutate(func(t *table) {
		t.defs[name] = Definition{
			Kind: KindNative, ResolvedName: name, OriginalName: name,
			Description: description, Parameters: parameters, Native: exec,
		}
	})
}

// RegisterFunction adds (or replaces) a caller-declared passthrough tool.
func (r *Registry) RegisterFunction(name, description string, parameters map[string]interface{}, strict bool) {
	r.mutate(func(t *table) {
		t.defs[name] = Definition{
			Kind: KindFunction, ResolvedName: name, OriginalName: name,
			Description: description, Parameters: parameters, Strict: strict,
		}
	})
}

// RegisterMCPTools registers every tool discovered from one MCP server,
// auto-prefixing names as "serverLabel__originalName" to avoid collisions
// between servers that expose the same tool name (SPEC_FULL §4.2).
func (r *Registry) RegisterMCPTools(serverLabel string, client MCPCaller, tools []MCPToolDescriptor) {
	r.mutate(func(t *table) {
		for _, tool := range tools {
			resolved := mcpAliasName(serverLabel, tool.Name)
			t.defs[resolved] = Definition{
				Kind: KindMCP, ResolvedName: resolved, OriginalName: tool.Name,
				Description: tool.Description, Parameters: tool.Parameters,
				MCPServerLabel: serverLabel, MCPClient: client,
			}
			t.aliases[resolved] = resolved
		}
	})
}

// MCPToolDescriptor is the subset of an MCP tool listing the registry needs.
type MCPToolDescriptor struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

func mcpAliasName(serverLabel, originalName string) string {
	return fmt.Sprintf("%s__%s", serverLabel, originalName)
}

func (r *Registry) mutate(fn func(t *table)) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.snapshot.Load()
	next := &table{
		defs:    make(map[string]Definition, len(old.defs)),
		aliases: make(map[string]string, len(old.aliases)),
	}
	for k, v := range old.defs {
		next.defs[k] = v
	}
	for k, v := range old.aliases {
		next.aliases[k] = v
	}
	fn(next)
	r.snapshot.Store(next)
}

// ResolveAlias returns the canonical resolved name for name, supporting the
// "caller_alias_prefix__real" MCP form. Names that are not aliases resolve
// to themselves.
func (r *Registry) ResolveAlias(name string) string {
	t := r.snapshot.Load()
	if canonical, ok := t.aliases[name]; ok {
		return canonical
	}
	return name
}

// GetDefinition looks up a tool definition by resolved (or alias) name.
func (r *Registry) GetDefinition(name string) (Definition, bool) {
	t := r.snapshot.Load()
	resolved := name
	if canonical, ok := t.aliases[name]; ok {
		resolved = canonical
	}
	def, ok := t.defs[resolved]
	return def, ok
}

// Execute validates argumentsJSON against the tool's parameters schema,
// then dispatches to the native executor or the MCP client. Function tools
// cannot be executed here — they are passthrough per SPEC_FULL §4.2, the
// caller is expected to supply a FunctionCallOutput on the next request.
func (r *Registry) Execute(name, argumentsJSON string, ectx ExecutionContext) (string, error) {
	def, ok := r.GetDefinition(name)
	if !ok {
		return "", fmt.Errorf("tool not found: %s", name)
	}

	if err := schema.ValidateArgumentsJSON(def.Parameters, argumentsJSON); err != nil {
		return "", fmt.Errorf("invalid arguments for tool %s: %w", name, err)
	}

	switch def.Kind {
	case KindNative:
		if def.Native == nil {
			return "", fmt.Errorf("tool %s has no native executor", name)
		}
		return def.Native(ectx.Context, argumentsJSON, ectx)
	case KindMCP:
		args, err := decodeArguments(argumentsJSON)
		if err != nil {
			return "", err
		}
		return def.MCPClient.CallTool(ectx.Context, def.OriginalName, args)
	case KindFunction:
		return "", fmt.Errorf("function tool %s is passthrough and cannot be executed server-side", name)
	default:
		return "", fmt.Errorf("unknown tool kind for %s", name)
	}
}

func decodeArguments(argumentsJSON string) (map[string]interface{}, error) {
	if strings.TrimSpace(argumentsJSON) == "" {
		return map[string]interface{}{}, nil
	}
	args := map[string]interface{}{}
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return nil, fmt.Errorf("malformed tool arguments: %w", err)
	}
	return args, nil
}
