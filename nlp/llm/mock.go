package llm

import (
	"context"

	"github.com/hrygo/diarysense/nlp"
)

// Mock is a scripted Parser for tests and for running without an API key.
// When Script is nil every call returns an empty result.
type Mock struct {
	Script func(text string) nlp.LLMParseResult
	Calls  int
}

func (m *Mock) Parse(_ context.Context, text string) nlp.LLMParseResult {
	m.Calls++
	if m.Script != nil {
		return m.Script(text)
	}
	return nlp.LLMParseResult{
		ParseResult: nlp.ParseResult{LatencyMs: 10},
		ModelName:   "mock",
	}
}
