package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBatchSingleBlock(t *testing.T) {
	got := ExtractBatch("<think>pondering</think>The answer is 4.", "", "")
	assert.Equal(t, "The answer is 4.", got.Text)
	assert.Equal(t, "pondering", got.Reasoning)
}

func TestExtractBatchNoBlock(t *testing.T) {
	got := ExtractBatch("just text", "", "")
	assert.Equal(t, "just text", got.Text)
	assert.Empty(t, got.Reasoning)
}

func TestExtractBatchMultipleBlocks(t *testing.T) {
	got := ExtractBatch("<think>a</think>mid<think>b</think>end", "", "\n")
	assert.Equal(t, "mid\nend", got.Text)
	assert.Equal(t, "a\nb", got.Reasoning)
}

func TestStreamExtractorHandlesSplitTag(t *testing.T) {
	s := NewStreamExtractor("think", false)
	var deltas []Delta
	deltas = append(deltas, s.Push("<thi")...)
	deltas = append(deltas, s.Push("nk>reasoning ")...)
	deltas = append(deltas, s.Push("text</think>answer")...)
	if f := s.Flush(); f != nil {
		deltas = append(deltas, *f)
	}

	var reasoningText, plainText string
	for _, d := range deltas {
		if d.Kind == DeltaReasoning {
			reasoningText += d.Text
		} else {
			plainText += d.Text
		}
	}
	assert.Equal(t, "reasoning text", reasoningText)
	assert.Equal(t, "answer", plainText)
}

func TestStreamExtractorNoTags(t *testing.T) {
	s := NewStreamExtractor("", false)
	deltas := s.Push("plain text")
	if f := s.Flush(); f != nil {
		deltas = append(deltas, *f)
	}
	for _, d := range deltas {
		assert.Equal(t, DeltaText, d.Kind)
	}
}
