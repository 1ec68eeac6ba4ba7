package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/masaic-ai-platform/gateway/pkg/config"
	"github.com/masaic-ai-platform/gateway/pkg/responsetypes"
	"github.com/masaic-ai-platform/gateway/pkg/toolregistry"
	"github.com/masaic-ai-platform/gateway/pkg/vectorstore"
)

// registerNativeTools wires the mandatory built-in tools from SPEC_FULL
// §4.2 into the registry: file_search and agentic_search delegate to the
// Vector Store Service, image_generation and python/code_interpreter call
// opaque external endpoints, think is a pure pass-through.
func registerNativeTools(tools *toolregistry.Registry, stores *vectorstore.Service, cfg *config.AppConfig) {
	tools.RegisterNative("think",
		"Returns the provided text as-is, for recording a reasoning trace.",
		map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"text": map[string]interface{}{"type": "string"}},
			"required":   []interface{}{"text"},
		},
		func(ctx context.Context, argumentsJSON string, ectx toolregistry.ExecutionContext) (string, error) {
			return argumentsJSON, nil
		})

	tools.RegisterNative("file_search",
		"Searches attached vector stores for relevant chunks.",
		fileSearchSchema(),
		fileSearchExecutor(stores))

	tools.RegisterNative("agentic_search",
		"Iteratively searches attached vector stores, refining the query across iterations.",
		fileSearchSchema(),
		agenticSearchExecutor(stores))

	tools.RegisterNative("image_generation",
		"Generates an image from a text prompt via an external image endpoint.",
		map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"prompt": map[string]interface{}{"type": "string"}},
			"required":   []interface{}{"prompt"},
		},
		imageGenerationExecutor(cfg))

	sandboxExecutor := pythonSandboxExecutor(cfg)
	tools.RegisterNative("python", "Executes Python code in a sandboxed external runtime.",
		map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"code": map[string]interface{}{"type": "string"}},
			"required":   []interface{}{"code"},
		}, sandboxExecutor)
	tools.RegisterNative("code_interpreter", "Executes code in a sandboxed external runtime.",
		map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"code": map[string]interface{}{"type": "string"}},
			"required":   []interface{}{"code"},
		}, sandboxExecutor)
}

func fileSearchSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query":            map[string]interface{}{"type": "string"},
			"vector_store_ids": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"max_num_results":  map[string]interface{}{"type": "integer"},
		},
		"required": []interface{}{"query"},
	}
}

type fileSearchArgs struct {
	Query          string   `json:"query"`
	VectorStoreIDs []string `json:"vector_store_ids"`
	MaxNumResults  int      `json:"max_num_results"`
}

func fileSearchExecutor(stores *vectorstore.Service) toolregistry.NativeExecutor {
	return func(ctx context.Context, argumentsJSON string, ectx toolregistry.ExecutionContext) (string, error) {
		var args fileSearchArgs
		if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
			return "", fmt.Errorf("invalid file_search arguments: %w", err)
		}
		storeIDs := args.VectorStoreIDs
		if len(storeIDs) == 0 {
			storeIDs = ectx.VectorStoreIDs
		}
		outcome, err := stores.Search(ctx, vectorstore.SearchParams{
			Query: args.Query, VectorStoreIDs: storeIDs, MaxNumResults: args.MaxNumResults,
		})
		if err != nil {
			return "", err
		}
		return json.Marshal(searchOutcomeToWire(outcome))
	}
}

func agenticSearchExecutor(stores *vectorstore.Service) toolregistry.NativeExecutor {
	return func(ctx context.Context, argumentsJSON string, ectx toolregistry.ExecutionContext) (string, error) {
		var args fileSearchArgs
		if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
			return "", fmt.Errorf("invalid agentic_search arguments: %w", err)
		}
		storeIDs := args.VectorStoreIDs
		if len(storeIDs) == 0 {
			storeIDs = ectx.VectorStoreIDs
		}
		outcome, err := stores.RunAgenticSearch(ctx, vectorstore.AgenticSearchParams{
			Query: args.Query, VectorStoreIDs: storeIDs, MaxNumResults: args.MaxNumResults,
		})
		if err != nil {
			return "", err
		}
		body := map[string]interface{}{
			"data":          searchResultsToWire(outcome.Results),
			"search_query":  args.Query,
			"reasoning_log": outcome.ReasoningLog,
			"iterations":    outcome.Iterations,
		}
		return json.Marshal(body)
	}
}

func searchOutcomeToWire(outcome *vectorstore.SearchOutcome) map[string]interface{} {
	return map[string]interface{}{
		"data":         searchResultsToWire(outcome.Results),
		"search_query": outcome.SearchQuery,
	}
}

func searchResultsToWire(results []vectorstore.SearchResult) []map[string]interface{} {
	out := make([]map[string]interface{}, len(results))
	for i, r := range results {
		out[i] = map[string]interface{}{
			"file_id":  r.FileID,
			"filename": r.Filename,
			"score":    r.Score,
			"content":  []map[string]interface{}{{"type": "text", "text": r.Content}},
			"annotations": []responsetypes.Annotation{r.Annotation},
		}
	}
	return out
}

func imageGenerationExecutor(cfg *config.AppConfig) toolregistry.NativeExecutor {
	return func(ctx context.Context, argumentsJSON string, ectx toolregistry.ExecutionContext) (string, error) {
		if cfg.ImageGenBaseURL == "" {
			return toolErrorJSON("image_generation_unconfigured", "no image generation endpoint is configured"), nil
		}
		var args struct {
			Prompt string `json:"prompt"`
		}
		if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
			return "", fmt.Errorf("invalid image_generation arguments: %w", err)
		}

		reqBody, _ := json.Marshal(map[string]interface{}{"prompt": args.Prompt, "model": ectx.Model})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.ImageGenBaseURL+"/images/generations", bytes.NewReader(reqBody))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		key := cfg.ImageGenAPIKey
		if key == "" {
			key = ectx.BearerToken
		}
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("image generation request failed: %w", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		if resp.StatusCode >= 400 {
			return toolErrorJSON("image_generation_failed", string(body)), nil
		}
		return string(body), nil
	}
}

func pythonSandboxExecutor(cfg *config.AppConfig) toolregistry.NativeExecutor {
	return func(ctx context.Context, argumentsJSON string, ectx toolregistry.ExecutionContext) (string, error) {
		if cfg.PythonSandboxURL == "" {
			return toolErrorJSON("sandbox_unconfigured", "no sandbox execution endpoint is configured"), nil
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.PythonSandboxURL, bytes.NewReader([]byte(argumentsJSON)))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return toolErrorJSON("sandbox_unreachable", err.Error()), nil
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		if resp.StatusCode >= 400 {
			return toolErrorJSON("sandbox_failed", string(body)), nil
		}
		return string(body), nil
	}
}

func toolErrorJSON(code, message string) string {
	b, _ := json.Marshal(map[string]string{"error": code, "message": message})
	return string(b)
}
