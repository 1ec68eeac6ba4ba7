// Command gateway runs the LLM gateway HTTP server: the Responses API,
// a chat-completions pass-through, an embeddings proxy, file upload, and
// vector store management, per SPEC_FULL.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/masaic-ai-platform/gateway/pkg/config"
	"github.com/masaic-ai-platform/gateway/pkg/embedclient"
	"github.com/masaic-ai-platform/gateway/pkg/hybridsearch"
	"github.com/masaic-ai-platform/gateway/pkg/mcp"
	"github.com/masaic-ai-platform/gateway/pkg/orchestrator"
	"github.com/masaic-ai-platform/gateway/pkg/providerrouter"
	"github.com/masaic-ai-platform/gateway/pkg/responsestore"
	"github.com/masaic-ai-platform/gateway/pkg/telemetry"
	"github.com/masaic-ai-platform/gateway/pkg/toolregistry"
	"github.com/masaic-ai-platform/gateway/pkg/upstream"
	"github.com/masaic-ai-platform/gateway/pkg/vectorsearch"
	"github.com/masaic-ai-platform/gateway/pkg/vectorstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("gateway: loading config: %v", err)
	}

	shutdownTracing := setupTracing(cfg)
	defer shutdownTracing(context.Background())

	router := providerrouter.New(providerrouter.DefaultProviders(), cfg.OpenAIBaseURL)

	embedder := embedclient.New(embedclient.Config{
		BaseURL: cfg.OpenAIBaseURL, Model: cfg.EmbeddingModel, Dimension: cfg.EmbeddingDimension,
	})
	semanticIndex, err := vectorsearch.NewIndex(cfg.VectorStoreDir, embedder)
	if err != nil {
		log.Fatalf("gateway: building vector search index: %v", err)
	}
	fulltextIndex := hybridsearch.NewIndex()
	stores := vectorstore.NewService(semanticIndex, fulltextIndex)
	defer stores.Close()

	files := newFileStore()

	tools := toolregistry.New()
	registerNativeTools(tools, stores, cfg)
	registerMCPServers(context.Background(), tools, cfg.MCPServers)

	store := responsestore.New()
	tracer := telemetry.GetTracer(&telemetry.Settings{IsEnabled: cfg.TelemetryEnabled})

	newUpstream := func(baseURL string) orchestrator.UpstreamClient {
		return upstream.New(upstream.Config{BaseURL: baseURL, Tracer: tracer})
	}
	orch := orchestrator.New(router, tools, store, newUpstream, cfg.MaxTurns)

	go sweepExpirationLoop(stores)

	mux := newRouter(
		&responsesHandler{orch: orch, store: store},
		&chatHandler{router: router, http: upstream.DefaultHTTPClient},
		&embeddingsHandler{router: router, cfg: cfg},
		&filesHandler{store: files},
		&vectorStoresHandler{stores: stores, files: files},
	)

	srv := &http.Server{Addr: cfg.Port, Handler: mux}
	go func() {
		log.Printf("gateway: listening on %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("gateway: server error: %v", err)
		}
	}()

	waitForShutdown(srv)
}

// registerMCPServers connects to every configured MCP server and registers
// its tools into the registry under its label. A server that fails to
// connect or list tools is logged and skipped rather than failing startup,
// since remote MCP servers are an external dependency the gateway does not
// control.
func registerMCPServers(ctx context.Context, tools *toolregistry.Registry, servers []config.MCPServerConfig) {
	for _, s := range servers {
		var client *mcp.MCPClient
		var err error
		switch s.Transport {
		case "stdio":
			client, err = mcp.CreateStdioMCPClient(s.Command, s.Args)
		case "http":
			client, err = mcp.CreateHTTPMCPClient(s.URL, nil)
		default:
			log.Printf("gateway: mcp server %q: unsupported transport %q", s.Label, s.Transport)
			continue
		}
		if err != nil {
			log.Printf("gateway: mcp server %q: creating client: %v", s.Label, err)
			continue
		}
		if err := client.Connect(ctx); err != nil {
			log.Printf("gateway: mcp server %q: connecting: %v", s.Label, err)
			continue
		}
		if err := mcp.DiscoverAndRegister(ctx, tools, s.Label, client); err != nil {
			log.Printf("gateway: mcp server %q: registering tools: %v", s.Label, err)
			continue
		}
	}
}

// sweepExpirationLoop periodically flips expired vector stores' status,
// per SPEC_FULL §4.6's background sweep hook.
func sweepExpirationLoop(stores *vectorstore.Service) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		stores.SweepAllExpired()
	}
}

func waitForShutdown(srv *http.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("gateway: graceful shutdown failed: %v", err)
	}
}

// setupTracing wires an otlptracehttp exporter into a global
// TracerProvider when telemetry is enabled and an endpoint is configured,
// matching the teacher's observability package's NewTracer shape
// (exporter + resource + TracerProvider + otel.SetTracerProvider),
// adapted from otlptracegrpc to otlptracehttp since that is the exporter
// already vendored for this module.
func setupTracing(cfg *config.AppConfig) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if !cfg.TelemetryEnabled || cfg.OTLPEndpoint == "" {
		return noop
	}

	ctx := context.Background()
	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)))
	if err != nil {
		log.Printf("gateway: telemetry disabled, exporter setup failed: %v", err)
		return noop
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", telemetry.TracerName),
	))
	if err != nil {
		res = resource.Default()
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown
}
