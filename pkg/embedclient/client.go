// Package embedclient implements the external embedding service the
// Vector Search Provider injects as a vectorsearch.Embedder (SPEC_FULL
// §4.3: "compute an embedding vector via the injected embedding service
// (external)"). It speaks the OpenAI-compatible /embeddings dialect,
// grounded on pkg/upstream/client.go's transport/retry shape, reused here
// instead of duplicated since both clients hit the same family of
// providers the Provider Router resolves.
package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/masaic-ai-platform/gateway/pkg/internal/retry"
	"github.com/masaic-ai-platform/gateway/pkg/upstream"
)

// Client embeds text against one resolved base URL and model.
type Client struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	model     string
	dimension int
	retry     retry.Config
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int // expected output dimension; first response that disagrees is rejected
}

// New builds a Client. Dimension defaults to 1536 (text-embedding-3-small)
// when unset.
func New(cfg Config) *Client {
	dim := cfg.Dimension
	if dim == 0 {
		dim = 1536
	}
	retryCfg := upstream.DefaultRetryConfig()
	return &Client{
		http:      upstream.DefaultHTTPClient,
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: dim,
		retry:     retryCfg,
	}
}

// Dimension implements vectorsearch.Embedder.
func (c *Client) Dimension() int { return c.dimension }

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed implements vectorsearch.Embedder, calling POST {baseURL}/embeddings.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	var vector []float64
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		v, err := c.doOnce(ctx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(vector) != c.dimension {
		return nil, fmt.Errorf("embedclient: model %q returned dimension %d, expected %d", c.model, len(vector), c.dimension)
	}
	return vector, nil
}

func (c *Client) doOnce(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("embedding endpoint returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return parsed.Data[0].Embedding, nil
}
