// Package providerrouter resolves a "provider@model" or "url@model" string
// into an upstream base URL and a logical system name, per SPEC_FULL §4.1.
package providerrouter

import (
	"strings"
	"sync"
)

// Resolution is the result of resolving a model string.
type Resolution struct {
	BaseURL    string
	SystemName string
	ModelName  string
}

// Router holds the static provider-key → base-URL table plus an
// environment default. It is read-mostly: the table is built once at
// construction and never mutated, matching the teacher's registry's
// sync.RWMutex-guarded map idiom generalized to a fixed table (no dynamic
// provider registration is needed here, unlike the teacher's pluggable
// LanguageModel providers).
type Router struct {
	mu             sync.RWMutex
	knownProviders map[string]string // lowercased key -> base url
	headerFallback map[string]string
	defaultBaseURL string
}

// DefaultProviders is the built-in provider-key table from SPEC_FULL §4.1.
func DefaultProviders() map[string]string {
	return map[string]string{
		"openai":    "https://api.openai.com/v1",
		"groq":      "https://api.groq.com/openai/v1",
		"anthropic": "https://api.anthropic.com/v1",
		"claude":    "https://api.anthropic.com/v1",
		"togetherai": "https://api.together.xyz/v1",
		"gemini":    "https://generativelanguage.googleapis.com/v1beta/openai",
		"google":    "https://generativelanguage.googleapis.com/v1beta/openai",
		"deepseek":  "https://api.deepseek.com/v1",
		"xai":       "https://api.x.ai/v1",
		"ollama":    "http://localhost:11434/v1",
	}
}

// New builds a Router. defaultBaseURL is used when neither the model
// string nor the x-model-provider header yields a match (e.g. from
// OPENAI_BASE_URL or a built-in fallback).
func New(knownProviders map[string]string, defaultBaseURL string) *Router {
	normalized := make(map[string]string, len(knownProviders))
	for k, v := range knownProviders {
		normalized[strings.ToLower(k)] = v
	}
	return &Router{
		knownProviders: normalized,
		headerFallback: normalized,
		defaultBaseURL: defaultBaseURL,
	}
}

// Resolve implements the ordered rules in SPEC_FULL §4.1.
func (r *Router) Resolve(model string, headers map[string]string) (Resolution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, modelName, ok := splitOnce(model, '@')
	if ok {
		if isAbsoluteURL(provider) {
			return Resolution{BaseURL: provider, SystemName: "UNKNOWN", ModelName: modelName}, true
		}
		if base, found := r.knownProviders[strings.ToLower(provider)]; found {
			return Resolution{BaseURL: base, SystemName: strings.ToLower(provider), ModelName: modelName}, true
		}
		if headerProvider, found := headerValue(headers, "x-model-provider"); found {
			if base, known := r.knownProviders[strings.ToLower(headerProvider)]; known {
				return Resolution{BaseURL: base, SystemName: strings.ToLower(headerProvider), ModelName: modelName}, true
			}
		}
		if r.defaultBaseURL != "" {
			return Resolution{BaseURL: r.defaultBaseURL, SystemName: "default", ModelName: modelName}, true
		}
		return Resolution{}, false
	}

	// No '@' in the model string: only a known x-model-provider header can
	// rescue it, using the whole string as the model name.
	if headerProvider, found := headerValue(headers, "x-model-provider"); found {
		if base, known := r.knownProviders[strings.ToLower(headerProvider)]; known {
			return Resolution{BaseURL: base, SystemName: strings.ToLower(headerProvider), ModelName: model}, true
		}
	}
	return Resolution{}, false
}

// ValidModelString reports whether m matches the shape required by
// testable property 1 in SPEC_FULL §8, independent of header fallback.
func ValidModelString(m string) bool {
	provider, rest, ok := splitOnce(m, '@')
	if !ok || rest == "" {
		return false
	}
	if isAbsoluteURL(provider) {
		return true
	}
	if provider == "" {
		return false
	}
	for _, c := range provider {
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_') {
			return false
		}
	}
	return true
}

func splitOnce(s string, sep byte) (left, right string, ok bool) {
	idx := strings.IndexByte(s, sep)
	if idx == -1 {
		return "", "", false
	}
	return s[:idx], s[idx+1:], true
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func headerValue(headers map[string]string, key string) (string, bool) {
	if headers == nil {
		return "", false
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
