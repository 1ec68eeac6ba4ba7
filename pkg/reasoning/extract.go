// Package reasoning extracts <think>...</think> spans out of upstream
// model text, both for a complete string (batch) and incrementally out of
// a stream of text deltas (streaming), per SPEC_FULL §4.12.
//
// Grounded on the teacher's pkg/middleware/extract_reasoning.go, pulled out
// of its generic LanguageModelMiddleware wrapper into direct functions
// since this gateway has no middleware-chain concept: the orchestrator and
// streaming assembler call these directly.
package reasoning

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	defaultTagName   = "think"
	defaultSeparator = "\n"
)

// Extracted holds the result of a batch extraction.
type Extracted struct {
	Text      string // remaining text with reasoning blocks removed
	Reasoning string // joined reasoning blocks, empty if none were found
}

// ExtractBatch removes every <think>...</think> block from text and
// returns the reasoning content joined by separator (default "\n").
func ExtractBatch(text, tagName, separator string) Extracted {
	if tagName == "" {
		tagName = defaultTagName
	}
	if separator == "" {
		separator = defaultSeparator
	}
	openingTag := fmt.Sprintf("<%s>", tagName)
	closingTag := fmt.Sprintf("</%s>", tagName)

	pattern := fmt.Sprintf(`%s(.*?)%s`, regexp.QuoteMeta(openingTag), regexp.QuoteMeta(closingTag))
	re := regexp.MustCompile(pattern)
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return Extracted{Text: text}
	}

	reasoningParts := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 {
			reasoningParts = append(reasoningParts, m[1])
		}
	}

	remaining := text
	for i := len(matches) - 1; i >= 0; i-- {
		match := matches[i]
		idx := strings.Index(remaining, match[0])
		if idx == -1 {
			continue
		}
		before, after := remaining[:idx], remaining[idx+len(match[0]):]
		sep := ""
		if len(before) > 0 && len(after) > 0 {
			sep = separator
		}
		remaining = before + sep + after
	}

	return Extracted{Text: remaining, Reasoning: strings.Join(reasoningParts, separator)}
}

// DeltaKind discriminates the two kinds of delta StreamExtractor emits.
type DeltaKind string

const (
	DeltaReasoning DeltaKind = "reasoning"
	DeltaText      DeltaKind = "text"
)

// Delta is one piece of classified output from StreamExtractor.
type Delta struct {
	Kind DeltaKind
	Text string
}

// StreamExtractor buffers incoming text deltas and classifies them as
// reasoning or text as <think> tag boundaries are crossed, correctly
// handling a tag split across two deltas.
type StreamExtractor struct {
	openingTag  string
	closingTag  string
	isReasoning bool
	buffer      string
}

// NewStreamExtractor builds an extractor for tagName (default "think").
// startInReasoning should be true if the upstream is known to begin inside
// a reasoning block with no opening tag (rare; default false).
func NewStreamExtractor(tagName string, startInReasoning bool) *StreamExtractor {
	if tagName == "" {
		tagName = defaultTagName
	}
	return &StreamExtractor{
		openingTag:  fmt.Sprintf("<%s>", tagName),
		closingTag:  fmt.Sprintf("</%s>", tagName),
		isReasoning: startInReasoning,
	}
}

// Push feeds one text delta and returns zero or more classified deltas
// ready to emit. Call Flush after the underlying stream ends to drain any
// remaining buffered text.
func (s *StreamExtractor) Push(text string) []Delta {
	s.buffer += text
	var out []Delta

	for {
		nextTag := s.closingTag
		if !s.isReasoning {
			nextTag = s.openingTag
		}

		startIndex := getPotentialStartIndex(s.buffer, nextTag)
		if startIndex == -1 {
			if len(s.buffer) > 0 {
				out = append(out, s.emit(s.buffer))
				s.buffer = ""
			}
			break
		}

		if startIndex > 0 {
			out = append(out, s.emit(s.buffer[:startIndex]))
			s.buffer = s.buffer[startIndex:]
		}

		if startIndex+len(nextTag) <= len(s.buffer) {
			s.buffer = s.buffer[len(nextTag):]
			s.isReasoning = !s.isReasoning
		} else {
			// partial tag match at the end of the buffer; wait for more input
			break
		}
	}
	return out
}

// Flush drains any remaining buffered text as a final delta.
func (s *StreamExtractor) Flush() *Delta {
	if len(s.buffer) == 0 {
		return nil
	}
	d := s.emit(s.buffer)
	s.buffer = ""
	return &d
}

func (s *StreamExtractor) emit(text string) Delta {
	if s.isReasoning {
		return Delta{Kind: DeltaReasoning, Text: text}
	}
	return Delta{Kind: DeltaText, Text: text}
}

// getPotentialStartIndex finds where searchedText could potentially start
// in text: either a complete substring match, or a suffix of text that is
// itself a prefix of searchedText (a tag straddling the buffer boundary).
// Returns -1 if neither is present.
func getPotentialStartIndex(text, searchedText string) int {
	if len(searchedText) == 0 {
		return -1
	}
	if idx := strings.Index(text, searchedText); idx != -1 {
		return idx
	}
	for i := len(text) - 1; i >= 0; i-- {
		suffix := text[i:]
		if strings.HasPrefix(searchedText, suffix) {
			return i
		}
	}
	return -1
}
