package main

import (
	"net/http"
	"strings"

	"github.com/masaic-ai-platform/gateway/pkg/gatewayerr"
	"github.com/masaic-ai-platform/gateway/pkg/orchestrator"
)

// requestContext extracts the bearer token and the subset of headers the
// Provider Router and telemetry care about (x-model-provider,
// X-B3-TraceId), returning a 401 authentication_error when Authorization
// is absent entirely.
func requestContext(r *http.Request) (orchestrator.RequestContext, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return orchestrator.RequestContext{}, gatewayerr.NewAuthenticationError("missing Authorization header")
	}
	token := strings.TrimPrefix(auth, "Bearer ")

	headers := map[string]string{}
	if v := r.Header.Get("x-model-provider"); v != "" {
		headers["x-model-provider"] = v
	}
	if v := r.Header.Get("X-B3-TraceId"); v != "" {
		headers["X-B3-TraceId"] = v
	}
	return orchestrator.RequestContext{BearerToken: token, Headers: headers}, nil
}
