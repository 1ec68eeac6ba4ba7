// Package config loads the gateway's process-wide AppConfig from the
// environment at startup, replacing the global singletons (object
// registries, static envs) scattered through the teacher's codebase with one
// struct threaded through constructors.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig is the gateway's full runtime configuration, populated once at
// process startup and passed by value or pointer into every constructor that
// needs it; nothing below reads os.Getenv directly after Load returns.
type AppConfig struct {
	// Port is the HTTP listen address, e.g. ":8080".
	Port string

	// OpenAIBaseURL is the default upstream base URL used when a request
	// carries no provider prefix and no x-model-provider header.
	OpenAIBaseURL string

	// ImageGenBaseURL is the endpoint image_generation tool calls are sent
	// to; empty means the tool registers but returns a non-fatal
	// image_generation_unconfigured result. ImageGenAPIKey is the bearer
	// token sent with those calls; empty means the caller's own token is used.
	ImageGenBaseURL string
	ImageGenAPIKey  string

	// RequestTimeout bounds a single upstream call (api.request.timeout).
	RequestTimeout time.Duration

	// MaxTurns bounds the orchestrator's tool-calling loop per response.
	MaxTurns int

	// VectorStoreBackend selects the vector-store persistence backend
	// ("memory" keeps snapshots under VectorStoreDir; any other value is
	// rejected at Load time since no other backend is wired in-process).
	VectorStoreBackend string
	VectorStoreDir     string

	// TelemetryEnabled toggles OpenTelemetry span recording process-wide.
	TelemetryEnabled bool

	// OTLPEndpoint is the otlptracehttp collector endpoint; empty disables
	// exporting even if TelemetryEnabled is true (no TracerProvider is
	// installed, so the global tracer records no spans).
	OTLPEndpoint string

	// PythonSandboxURL is the opaque external RPC endpoint the python /
	// code_interpreter tool dials. Empty means the tool registers but
	// execute returns a non-fatal error, per SPEC_FULL §9's decision.
	PythonSandboxURL string

	// EmbeddingModel and EmbeddingDimension configure the embedding client
	// the Vector Search Provider indexes through.
	EmbeddingModel     string
	EmbeddingDimension int

	// MCPServers lists the remote MCP servers discovered and registered
	// into the Tool Registry at startup.
	MCPServers []MCPServerConfig
}

// MCPServerConfig describes one MCP server to connect to at startup.
// Transport is "stdio" (Command/Args) or "http" (URL).
type MCPServerConfig struct {
	Label     string   `json:"label"`
	Transport string   `json:"transport"`
	Command   string   `json:"command,omitempty"`
	Args      []string `json:"args,omitempty"`
	URL       string   `json:"url,omitempty"`
}

const (
	envOpenAIBaseURL        = "OPENAI_BASE_URL"
	envImageGenBaseURL      = "OPEN_RESPONSES_IMAGE_GENERATION_BASE_URL"
	envImageGenAPIKey       = "OPEN_RESPONSES_IMAGE_GENERATION_API_KEY"
	envRequestTimeoutSecs   = "API_REQUEST_TIMEOUT"
	envMaxTurns             = "GATEWAY_MAX_TURNS"
	envVectorStoreBackend   = "VECTOR_STORE_BACKEND"
	envVectorStoreDir       = "VECTOR_STORE_DIR"
	envTelemetryEnabled     = "GATEWAY_TELEMETRY_ENABLED"
	envOTLPEndpoint         = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envPort                 = "GATEWAY_PORT"
	envPythonSandboxURL     = "PYTHON_SANDBOX_URL"
	envEmbeddingModel       = "EMBEDDING_MODEL"
	envEmbeddingDimension   = "EMBEDDING_DIMENSION"
	envMCPServers           = "GATEWAY_MCP_SERVERS"
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultRequestTimeout   = 120 * time.Second
	defaultMaxTurns         = 10
	defaultVectorStoreBackend = "memory"
	defaultPort             = ":8080"
	defaultEmbeddingModel   = "text-embedding-3-small"
	defaultEmbeddingDimension = 1536
)

// Load reads a .env file if present (missing is not an error, matching the
// teacher's godotenv.Load usage) and builds an AppConfig from the process
// environment, applying the defaults SPEC_FULL documents.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: warning: error loading .env file: %v", err)
	}

	cfg := &AppConfig{
		Port:               getEnvOr(envPort, defaultPort),
		OpenAIBaseURL:      getEnvOr(envOpenAIBaseURL, defaultOpenAIBaseURL),
		ImageGenBaseURL:    os.Getenv(envImageGenBaseURL),
		ImageGenAPIKey:     os.Getenv(envImageGenAPIKey),
		VectorStoreBackend: getEnvOr(envVectorStoreBackend, defaultVectorStoreBackend),
		VectorStoreDir:     os.Getenv(envVectorStoreDir),
		RequestTimeout:     defaultRequestTimeout,
		MaxTurns:           defaultMaxTurns,
		PythonSandboxURL:   os.Getenv(envPythonSandboxURL),
		EmbeddingModel:     getEnvOr(envEmbeddingModel, defaultEmbeddingModel),
		EmbeddingDimension: defaultEmbeddingDimension,
	}

	if raw := os.Getenv(envEmbeddingDimension); raw != "" {
		dim, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s %q: %w", envEmbeddingDimension, raw, err)
		}
		cfg.EmbeddingDimension = dim
	}

	if raw := os.Getenv(envRequestTimeoutSecs); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s %q: %w", envRequestTimeoutSecs, raw, err)
		}
		cfg.RequestTimeout = time.Duration(secs) * time.Second
	}

	if raw := os.Getenv(envMaxTurns); raw != "" {
		turns, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s %q: %w", envMaxTurns, raw, err)
		}
		cfg.MaxTurns = turns
	}

	if raw := os.Getenv(envTelemetryEnabled); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s %q: %w", envTelemetryEnabled, raw, err)
		}
		cfg.TelemetryEnabled = enabled
	}
	cfg.OTLPEndpoint = os.Getenv(envOTLPEndpoint)

	if cfg.VectorStoreBackend != "memory" {
		return nil, fmt.Errorf("config: unsupported %s %q (only \"memory\" is wired)", envVectorStoreBackend, cfg.VectorStoreBackend)
	}

	if raw := os.Getenv(envMCPServers); raw != "" {
		var servers []MCPServerConfig
		if err := json.Unmarshal([]byte(raw), &servers); err != nil {
			return nil, fmt.Errorf("config: invalid %s: %w", envMCPServers, err)
		}
		cfg.MCPServers = servers
	}

	return cfg, nil
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
