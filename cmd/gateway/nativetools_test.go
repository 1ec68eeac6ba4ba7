package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaic-ai-platform/gateway/pkg/config"
	"github.com/masaic-ai-platform/gateway/pkg/hybridsearch"
	"github.com/masaic-ai-platform/gateway/pkg/toolregistry"
	"github.com/masaic-ai-platform/gateway/pkg/vectorsearch"
	"github.com/masaic-ai-platform/gateway/pkg/vectorstore"
)

func newTestRegistry(t *testing.T) (*toolregistry.Registry, *vectorstore.Service) {
	t.Helper()
	idx, err := vectorsearch.NewIndex("", stubEmbedder{})
	require.NoError(t, err)
	svc := vectorstore.NewService(idx, hybridsearch.NewIndex())
	t.Cleanup(svc.Close)

	tools := toolregistry.New()
	registerNativeTools(tools, svc, &config.AppConfig{})
	return tools, svc
}

func TestThinkToolReturnsArgumentsAsIs(t *testing.T) {
	tools, _ := newTestRegistry(t)
	out, err := tools.Execute("think", `{"text":"because"}`, toolregistry.ExecutionContext{Context: context.Background()})
	require.NoError(t, err)
	assert.Equal(t, `{"text":"because"}`, out)
}

func TestFileSearchToolExecutesAgainstEmptyStore(t *testing.T) {
	tools, _ := newTestRegistry(t)
	out, err := tools.Execute("file_search", `{"query":"anything","vector_store_ids":["vs_missing"]}`,
		toolregistry.ExecutionContext{Context: context.Background()})
	require.NoError(t, err)
	assert.Contains(t, out, "search_query")
}

func TestPythonToolReturnsNonFatalErrorWhenUnconfigured(t *testing.T) {
	tools, _ := newTestRegistry(t)
	out, err := tools.Execute("python", `{"code":"print(1)"}`, toolregistry.ExecutionContext{Context: context.Background()})
	require.NoError(t, err)
	assert.Contains(t, out, "sandbox_unconfigured")
}

func TestImageGenerationReturnsNonFatalErrorWhenUnconfigured(t *testing.T) {
	tools, _ := newTestRegistry(t)
	out, err := tools.Execute("image_generation", `{"prompt":"a cat"}`, toolregistry.ExecutionContext{Context: context.Background()})
	require.NoError(t, err)
	assert.Contains(t, out, "image_generation_unconfigured")
}
