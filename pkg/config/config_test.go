package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		envOpenAIBaseURL, envImageGenBaseURL, envImageGenAPIKey, envRequestTimeoutSecs,
		envMaxTurns, envVectorStoreBackend, envVectorStoreDir, envTelemetryEnabled,
		envOTLPEndpoint, envPort, envPythonSandboxURL, envEmbeddingModel, envEmbeddingDimension,
	} {
		os.Unsetenv(key)
	}
}

func TestLoadAppliesDefaultsWhenUnset(t *testing.T) {
	clearGatewayEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, defaultOpenAIBaseURL, cfg.OpenAIBaseURL)
	assert.Equal(t, defaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, defaultMaxTurns, cfg.MaxTurns)
	assert.Equal(t, "memory", cfg.VectorStoreBackend)
	assert.False(t, cfg.TelemetryEnabled)
	assert.Equal(t, defaultEmbeddingModel, cfg.EmbeddingModel)
	assert.Equal(t, defaultEmbeddingDimension, cfg.EmbeddingDimension)
	assert.Empty(t, cfg.PythonSandboxURL)
}

func TestLoadReadsOverridesFromEnv(t *testing.T) {
	clearGatewayEnv(t)
	os.Setenv(envOpenAIBaseURL, "https://upstream.example.com/v1")
	os.Setenv(envRequestTimeoutSecs, "30")
	os.Setenv(envMaxTurns, "4")
	os.Setenv(envTelemetryEnabled, "true")
	defer clearGatewayEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://upstream.example.com/v1", cfg.OpenAIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4, cfg.MaxTurns)
	assert.True(t, cfg.TelemetryEnabled)
}

func TestLoadRejectsUnsupportedVectorStoreBackend(t *testing.T) {
	clearGatewayEnv(t)
	os.Setenv(envVectorStoreBackend, "redis")
	defer clearGatewayEnv(t)

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsMalformedTimeout(t *testing.T) {
	clearGatewayEnv(t)
	os.Setenv(envRequestTimeoutSecs, "not-a-number")
	defer clearGatewayEnv(t)

	_, err := Load()
	require.Error(t, err)
}
