package main

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaic-ai-platform/gateway/pkg/gatewayerr"
)

func TestWriteErrorUsesGatewayErrorShape(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, gatewayerr.NewNotFoundError("file", "file_123"))

	assert.Equal(t, 404, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body.Error.Type)
	assert.Equal(t, "not_found", body.Error.Code)
}

func TestWriteErrorFallsBackToInternalError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("boom"))

	assert.Equal(t, 500, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body.Error.Type)
}
