package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/masaic-ai-platform/gateway/pkg/responsetypes"
)

func TestCreatedForcesInProgressStatus(t *testing.T) {
	env := Created(responsetypes.Response{ID: "r1", Status: responsetypes.StatusCompleted})
	assert.Equal(t, EventResponseCreated, env.Type)
	assert.Equal(t, responsetypes.StatusInProgress, env.Response.Status)
}

func TestCompletedSelectsEventByStatus(t *testing.T) {
	cases := []struct {
		status string
		want   string
	}{
		{responsetypes.StatusCompleted, EventResponseCompleted},
		{responsetypes.StatusFailed, EventResponseFailed},
		{responsetypes.StatusIncomplete, EventResponseIncomplete},
	}
	for _, tc := range cases {
		env := Completed(responsetypes.Response{Status: tc.status})
		assert.Equal(t, tc.want, env.Type)
	}
}

func TestToolCallCompletedCarriesErrorText(t *testing.T) {
	env := ToolCallCompleted("call_1", "get_weather", assert.AnError)
	assert.Equal(t, assert.AnError.Error(), env.Error)
}
