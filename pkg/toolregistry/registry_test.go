package toolregistry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndExecuteNative(t *testing.T) {
	r := New()
	r.RegisterNative("think", "returns its argument text as-is", nil,
		func(ctx context.Context, argumentsJSON string, ectx ExecutionContext) (string, error) {
			return argumentsJSON, nil
		})

	out, err := r.Execute("think", `{"text":"reasoning trace"}`, ExecutionContext{Context: context.Background()})
	require.NoError(t, err)
	assert.Equal(t, `{"text":"reasoning trace"}`, out)
}

func TestExecuteUnknownTool(t *testing.T) {
	r := New()
	_, err := r.Execute("nope", "{}", ExecutionContext{Context: context.Background()})
	assert.Error(t, err)
}

func TestExecuteValidatesArguments(t *testing.T) {
	r := New()
	r.RegisterNative("get_weather", "", map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"location"},
	}, func(ctx context.Context, argumentsJSON string, ectx ExecutionContext) (string, error) {
		return "{}", nil
	})
	_, err := r.Execute("get_weather", `{}`, ExecutionContext{Context: context.Background()})
	assert.Error(t, err)
}

type fakeMCPCaller struct {
	lastName string
	lastArgs map[string]interface{}
}

func (f *fakeMCPCaller) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (string, error) {
	f.lastName = name
	f.lastArgs = arguments
	return `{"ok":true}`, nil
}

func TestMCPToolsAreAliasPrefixed(t *testing.T) {
	r := New()
	caller := &fakeMCPCaller{}
	r.RegisterMCPTools("github", caller, []MCPToolDescriptor{
		{Name: "search_issues", Description: "search issues"},
	})

	def, ok := r.GetDefinition("github__search_issues")
	require.True(t, ok)
	assert.Equal(t, KindMCP, def.Kind)
	assert.Equal(t, "search_issues", def.OriginalName)

	out, err := r.Execute("github__search_issues", `{"q":"bug"}`, ExecutionContext{Context: context.Background()})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, "search_issues", caller.lastName)
	assert.Equal(t, "bug", caller.lastArgs["q"])
}

func TestResolveAliasIsIdentityForUnknownName(t *testing.T) {
	r := New()
	assert.Equal(t, "anything", r.ResolveAlias("anything"))
}

func TestFunctionToolsArePassthroughOnly(t *testing.T) {
	r := New()
	r.RegisterFunction("get_time", "returns the current time", nil, false)
	_, err := r.Execute("get_time", "{}", ExecutionContext{Context: context.Background()})
	assert.Error(t, err)
}
