package responsetypes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputMarshalRoundTrip(t *testing.T) {
	text := Input{Text: "Hello"}
	data, err := json.Marshal(text)
	require.NoError(t, err)
	assert.Equal(t, `"Hello"`, string(data))

	var decoded Input
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.IsText())
	assert.Equal(t, "Hello", decoded.Text)

	items := Input{Items: []InputItem{NewMessage("", "hi", nil)}}
	data, err = json.Marshal(items)
	require.NoError(t, err)

	var decodedItems Input
	require.NoError(t, json.Unmarshal(data, &decodedItems))
	assert.False(t, decodedItems.IsText())
	require.Len(t, decodedItems.Items, 1)
	assert.Equal(t, ItemTypeMessage, decodedItems.Items[0].Type)
}

func TestToolChoiceAllowsToolCalls(t *testing.T) {
	cases := []struct {
		mode string
		want bool
	}{
		{"", true},
		{"auto", true},
		{"required", true},
		{"none", false},
		{"function", true},
	}
	for _, c := range cases {
		tc := ToolChoice{Mode: c.mode}
		assert.Equal(t, c.want, tc.AllowsToolCalls(), c.mode)
	}
}

func TestFilterCompoundRoundTrip(t *testing.T) {
	f := Filter{BoolOp: "and", Children: []Filter{
		{Key: "file_id", Op: "eq", Value: "F2"},
		{Key: "score", Op: "gte", Value: 0.5},
	}}
	data, err := json.Marshal(f)
	require.NoError(t, err)

	var decoded Filter
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.IsCompound())
	assert.Equal(t, "and", decoded.BoolOp)
	require.Len(t, decoded.Children, 2)
	assert.Equal(t, "file_id", decoded.Children[0].Key)
	assert.Equal(t, "eq", decoded.Children[0].Op)
}

func TestRankingOptionsUsesHybrid(t *testing.T) {
	assert.False(t, RankingOptions{}.UsesHybrid())
	assert.False(t, RankingOptions{Ranker: "default"}.UsesHybrid())
	assert.False(t, RankingOptions{Ranker: "none"}.UsesHybrid())
	assert.True(t, RankingOptions{Ranker: "auto"}.UsesHybrid())
	assert.True(t, RankingOptions{Ranker: "my-custom-reranker"}.UsesHybrid())
}
