package analyzer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/diarysense/internal/profile"
	"github.com/hrygo/diarysense/nlp"
	"github.com/hrygo/diarysense/nlp/llm"
	"github.com/hrygo/diarysense/store"
	"github.com/hrygo/diarysense/store/cache"
)

func testConfig() Config {
	return Config{
		UseLLMFallback:               true,
		CacheEnabled:                 true,
		HeuristicConfidenceThreshold: 0.7,
		DefaultTimeMinutes:           30,
		AchievementDefaultWeight:     10,
		RedactPII:                    true,
	}
}

func newTestAnalyzer(cfg Config, mock *llm.Mock) *Analyzer {
	history := store.New(store.NewInMemoryDriver(), &profile.Profile{})
	var parser llm.Parser
	if mock != nil {
		parser = mock
	}
	return New(cfg, history, cache.NewMemory(), parser, nil)
}

func TestAnalyzeConfidentHeuristicSkipsLLM(t *testing.T) {
	mock := &llm.Mock{}
	a := newTestAnalyzer(testConfig(), mock)

	res, err := a.Analyze(context.Background(), 1, "Сходил в зал и приготовил обед", "")
	require.NoError(t, err)

	require.Len(t, res.Actions, 2)
	assert.Equal(t, "спорт", res.Actions[0].Category)
	assert.Equal(t, "готовка", res.Actions[1].Category)

	// No explicit duration and no history: defaults apply.
	assert.Equal(t, 30, res.Actions[0].EstimatedTimeMinutes)
	assert.Equal(t, nlp.TimeSourceDefault, res.Actions[0].TimeSource)
	assert.Equal(t, 3.0, res.Actions[0].Points)

	assert.False(t, res.Meta.UsedLLM)
	assert.Equal(t, 0, mock.Calls)
	assert.Equal(t, usedHeuristics, res.Meta.UsedHeuristics)
	require.NotNil(t, res.Meta.HeuristicLatencyMs)
	assert.Nil(t, res.Meta.LLMLatencyMs)
	assert.Nil(t, res.RawText)
}

func TestAnalyzeExplicitDuration(t *testing.T) {
	a := newTestAnalyzer(testConfig(), &llm.Mock{})

	res, err := a.Analyze(context.Background(), 1, "тренировался 2 часа", "2026-08-24")
	require.NoError(t, err)

	require.Len(t, res.Actions, 1)
	assert.Equal(t, 120, res.Actions[0].EstimatedTimeMinutes)
	assert.Equal(t, nlp.TimeSourceText, res.Actions[0].TimeSource)
	assert.Equal(t, 12.0, res.Actions[0].Points)
	assert.Equal(t, "2026-08-24", res.Date)
}

func TestAnalyzeFallsBackToLLM(t *testing.T) {
	mock := &llm.Mock{Script: func(text string) nlp.LLMParseResult {
		return nlp.LLMParseResult{
			ParseResult: nlp.ParseResult{
				Actions: []nlp.RawAction{{
					Category:             "саморазвитие",
					Action:               "гулял и размышлял",
					Type:                 nlp.ActionTypeActivity,
					EstimatedTimeMinutes: nlp.IntPtr(40),
					Confidence:           0.8,
					Source:               nlp.SourceLLM,
				}},
				Confidence: 0.8,
				LatencyMs:  120,
			},
			ModelName:  "mock",
			TokensUsed: 200,
		}
	}}
	a := newTestAnalyzer(testConfig(), mock)

	// Outside the heuristic vocabulary, so the model runs.
	res, err := a.Analyze(context.Background(), 1, "гулял по парку с собакой", "")
	require.NoError(t, err)

	assert.Equal(t, 1, mock.Calls)
	assert.True(t, res.Meta.UsedLLM)
	require.NotNil(t, res.Meta.LLMLatencyMs)

	require.Len(t, res.Actions, 1)
	assert.Equal(t, "саморазвитие", res.Actions[0].Category)
	assert.Equal(t, 40, res.Actions[0].EstimatedTimeMinutes)
	assert.Equal(t, nlp.TimeSourceText, res.Actions[0].TimeSource)
}

func TestAnalyzeLLMFailureDegradesGracefully(t *testing.T) {
	mock := &llm.Mock{Script: func(string) nlp.LLMParseResult {
		return nlp.LLMParseResult{
			ParseResult: nlp.ParseResult{
				LatencyMs: 50,
				Errors:    []string{"LLM parsing failed: connection refused"},
			},
			ModelName: "mock",
		}
	}}
	a := newTestAnalyzer(testConfig(), mock)

	res, err := a.Analyze(context.Background(), 1, "гулял по парку с собакой", "")
	require.NoError(t, err)

	assert.Empty(t, res.Actions)
	assert.True(t, res.Meta.UsedLLM)
	require.Len(t, res.Meta.Errors, 1)
	assert.Contains(t, res.Meta.Errors[0], "LLM parsing failed")
}

func TestAnalyzeLLMDisabledByConfig(t *testing.T) {
	cfg := testConfig()
	cfg.UseLLMFallback = false
	mock := &llm.Mock{}
	a := newTestAnalyzer(cfg, mock)

	res, err := a.Analyze(context.Background(), 1, "гулял по парку с собакой", "")
	require.NoError(t, err)

	assert.Empty(t, res.Actions)
	assert.False(t, res.Meta.UsedLLM)
	assert.Equal(t, 0, mock.Calls)
}

func TestAnalyzeCacheShortCircuits(t *testing.T) {
	mock := &llm.Mock{Script: func(string) nlp.LLMParseResult {
		return nlp.LLMParseResult{
			ParseResult: nlp.ParseResult{
				Actions: []nlp.RawAction{{
					Category:             "саморазвитие",
					Action:               "гулял",
					Type:                 nlp.ActionTypeActivity,
					EstimatedTimeMinutes: nlp.IntPtr(40),
					Confidence:           0.8,
					Source:               nlp.SourceLLM,
				}},
				Confidence: 0.8,
			},
		}
	}}
	a := newTestAnalyzer(testConfig(), mock)
	ctx := context.Background()

	first, err := a.Analyze(ctx, 1, "гулял по парку с собакой", "")
	require.NoError(t, err)
	require.Equal(t, 1, mock.Calls)

	// Same text modulo case and punctuation hits the same cache entry.
	second, err := a.Analyze(ctx, 1, "Гулял по парку с собакой!", "")
	require.NoError(t, err)
	assert.Equal(t, 1, mock.Calls)

	// The cached result deserializes and returns unchanged: the two
	// responses are byte-identical, meta and date included.
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)

	// A different user misses.
	_, err = a.Analyze(ctx, 2, "гулял по парку с собакой", "")
	require.NoError(t, err)
	assert.Equal(t, 2, mock.Calls)
}

func TestAnalyzeRecordsAndReusesHistory(t *testing.T) {
	a := newTestAnalyzer(testConfig(), &llm.Mock{})
	ctx := context.Background()

	// First entry carries an explicit duration, which lands in history.
	first, err := a.Analyze(ctx, 1, "читал книгу 2 часа", "")
	require.NoError(t, err)
	require.Len(t, first.Actions, 1)
	assert.Equal(t, nlp.TimeSourceText, first.Actions[0].TimeSource)

	// The same action without a duration now resolves from history.
	second, err := a.Analyze(ctx, 1, "читал книгу", "")
	require.NoError(t, err)
	require.Len(t, second.Actions, 1)
	assert.Equal(t, 120, second.Actions[0].EstimatedTimeMinutes)
	assert.Equal(t, nlp.TimeSourceHistory, second.Actions[0].TimeSource)
}

func TestAnalyzeRepairsNegativeModelWeight(t *testing.T) {
	mock := &llm.Mock{Script: func(string) nlp.LLMParseResult {
		return nlp.LLMParseResult{
			ParseResult: nlp.ParseResult{
				Actions: []nlp.RawAction{{
					Category:          "спорт",
					Action:            "сходил в зал",
					Type:              nlp.ActionTypeAchievement,
					Confidence:        0.9,
					AchievementWeight: nlp.IntPtr(-5),
					Source:            nlp.SourceLLM,
				}},
				Confidence: 0.9,
			},
			ModelName: "mock",
		}
	}}
	a := newTestAnalyzer(testConfig(), mock)

	res, err := a.Analyze(context.Background(), 1, "гулял по парку с собакой", "")
	require.NoError(t, err)
	require.Len(t, res.Actions, 1)

	// A negative weight never leaves the pipeline: it is repaired to the
	// default and points follow.
	require.NotNil(t, res.Actions[0].AchievementWeight)
	assert.Equal(t, 10, *res.Actions[0].AchievementWeight)
	assert.Equal(t, 10.0, res.Actions[0].Points)
}

func TestAnalyzeDefaultsDateToToday(t *testing.T) {
	a := newTestAnalyzer(testConfig(), &llm.Mock{})

	res, err := a.Analyze(context.Background(), 1, "сходил в зал", "")
	require.NoError(t, err)
	assert.Equal(t, time.Now().Format("2006-01-02"), res.Date)
}

func TestAnalyzeRedactsPIIBeforeParsing(t *testing.T) {
	var seen string
	mock := &llm.Mock{Script: func(text string) nlp.LLMParseResult {
		seen = text
		return nlp.LLMParseResult{}
	}}
	a := newTestAnalyzer(testConfig(), mock)

	_, err := a.Analyze(context.Background(), 1, "набрал маме на +7 999 123-45-67", "")
	require.NoError(t, err)
	require.Equal(t, 1, mock.Calls)
	assert.NotContains(t, seen, "123-45-67")
	assert.Contains(t, seen, "<PHONE>")
}
