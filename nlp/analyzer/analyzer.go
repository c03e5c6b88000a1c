// Package analyzer orchestrates the diary analysis pipeline: preprocess,
// parse, fuse, postprocess, and the cache and history side effects.
package analyzer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hrygo/diarysense/metrics"
	"github.com/hrygo/diarysense/nlp"
	"github.com/hrygo/diarysense/nlp/fusion"
	"github.com/hrygo/diarysense/nlp/heuristic"
	"github.com/hrygo/diarysense/nlp/llm"
	"github.com/hrygo/diarysense/nlp/postprocess"
	"github.com/hrygo/diarysense/store/cache"
)

// usedHeuristics names the heuristic techniques reported in result meta.
var usedHeuristics = []string{"keyword_match", "time_extraction", "category_detection"}

// HistoryStore is the slice of the store the analyzer needs.
type HistoryStore interface {
	GetAverageTime(ctx context.Context, userID int64, action string) (int, bool, error)
	RecordAction(ctx context.Context, userID int64, action string, timeMinutes int) error
}

// Config carries the pipeline switches and thresholds.
type Config struct {
	UseLLMFallback               bool
	CacheEnabled                 bool
	HeuristicConfidenceThreshold float64
	DefaultTimeMinutes           int
	AchievementDefaultWeight     int
	RedactPII                    bool
}

// Analyzer runs the full pipeline for one request at a time. It is safe
// for concurrent use.
type Analyzer struct {
	cfg       Config
	pre       *nlp.Preprocessor
	heuristic *heuristic.Parser
	llm       llm.Parser
	fuser     *fusion.Fuser
	post      *postprocess.Processor
	history   HistoryStore
	cache     cache.Service
	exporter  *metrics.Exporter
}

// New wires the pipeline. llmParser may be nil when no model is
// configured; exporter may be nil to disable metrics.
func New(cfg Config, history HistoryStore, cacheSvc cache.Service, llmParser llm.Parser, exporter *metrics.Exporter) *Analyzer {
	a := &Analyzer{
		cfg:       cfg,
		pre:       nlp.NewPreprocessor(cfg.RedactPII),
		heuristic: heuristic.NewParser(),
		llm:       llmParser,
		post:      postprocess.NewProcessor(0.85, cfg.AchievementDefaultWeight),
		history:   history,
		cache:     cacheSvc,
		exporter:  exporter,
	}
	a.fuser = fusion.NewFuser(&historyLookup{history}, fusion.Config{
		HeuristicConfidenceThreshold: cfg.HeuristicConfidenceThreshold,
		DefaultTimeMinutes:           cfg.DefaultTimeMinutes,
		AchievementDefaultWeight:     cfg.AchievementDefaultWeight,
	})
	return a
}

// historyLookup adapts the store to the fusion interface: lookup errors
// degrade to a miss so a broken database never fails a request.
type historyLookup struct {
	store HistoryStore
}

func (h *historyLookup) GetAverageTime(ctx context.Context, userID int64, normalizedAction string) (int, bool) {
	if h.store == nil {
		return 0, false
	}
	minutes, ok, err := h.store.GetAverageTime(ctx, userID, normalizedAction)
	if err != nil {
		slog.Warn("history lookup failed", "user_id", userID, "error", err)
		return 0, false
	}
	return minutes, ok
}

// Analyze runs the pipeline over one diary entry. date is YYYY-MM-DD and
// defaults to today when empty. The returned result never carries the
// raw text.
func (a *Analyzer) Analyze(ctx context.Context, userID int64, text, date string) (*nlp.AnalysisResult, error) {
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	if a.cacheEnabled() {
		if cached, ok := a.getCached(ctx, userID, text); ok {
			a.observeCache(true)
			return cached, nil
		}
		a.observeCache(false)
	}

	processed := a.pre.Preprocess(text)

	meta := nlp.AnalysisMeta{
		UsedHeuristics: usedHeuristics,
		Errors:         []string{},
	}

	heuristicResult := a.heuristic.Parse(userID, processed)
	meta.HeuristicLatencyMs = &heuristicResult.LatencyMs
	if a.exporter != nil {
		a.exporter.ObserveHeuristic(float64(heuristicResult.LatencyMs) / 1000.0)
	}

	var llmActions []nlp.RawAction
	if a.llm != nil && a.cfg.UseLLMFallback &&
		a.fuser.ShouldUseLLM(heuristicResult.Confidence, len(heuristicResult.Actions)) {
		llmResult := a.llm.Parse(ctx, processed)
		meta.UsedLLM = true
		meta.LLMLatencyMs = &llmResult.LatencyMs
		meta.Errors = append(meta.Errors, llmResult.Errors...)
		llmActions = llmResult.Actions
		if a.exporter != nil {
			a.exporter.ObserveLLMCall(float64(llmResult.LatencyMs)/1000.0, llmResult.TokensUsed, len(llmResult.Errors) > 0)
		}
	}

	fused := a.fuser.Fuse(ctx, userID, heuristicResult.Actions, llmActions)
	final := a.post.Process(fused)

	a.recordHistory(ctx, userID, final)

	result := &nlp.AnalysisResult{
		UserID:  userID,
		Date:    date,
		RawText: nil,
		Actions: final,
		Meta:    meta,
	}

	if a.cacheEnabled() {
		a.putCached(ctx, userID, text, result)
	}

	return result, nil
}

func (a *Analyzer) cacheEnabled() bool {
	return a.cache != nil && a.cfg.CacheEnabled
}

func (a *Analyzer) getCached(ctx context.Context, userID int64, text string) (*nlp.AnalysisResult, bool) {
	key := cache.Key(userID, a.pre.NormalizeText(text))
	raw, ok := a.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var result nlp.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		slog.Warn("cache entry corrupt, ignoring", "error", err)
		return nil, false
	}
	return &result, true
}

func (a *Analyzer) putCached(ctx context.Context, userID int64, text string, result *nlp.AnalysisResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		slog.Warn("cache marshal failed", "error", err)
		return
	}
	a.cache.Set(ctx, cache.Key(userID, a.pre.NormalizeText(text)), string(raw))
}

// recordHistory folds the final durations back into the history store.
// Failures are logged, never surfaced: history is an optimization.
func (a *Analyzer) recordHistory(ctx context.Context, userID int64, actions []nlp.Action) {
	if a.history == nil {
		return
	}
	for _, action := range actions {
		if action.EstimatedTimeMinutes <= 0 {
			continue
		}
		if err := a.history.RecordAction(ctx, userID, action.Action, action.EstimatedTimeMinutes); err != nil {
			slog.Warn("history record failed", "user_id", userID, "error", err)
		}
	}
}

func (a *Analyzer) observeCache(hit bool) {
	if a.exporter == nil {
		return
	}
	if hit {
		a.exporter.ObserveCacheHit()
	} else {
		a.exporter.ObserveCacheMiss()
	}
}
