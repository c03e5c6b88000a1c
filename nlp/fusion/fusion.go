// Package fusion combines heuristic and model parses into final actions,
// fills in durations by source priority, and assigns points.
package fusion

import (
	"context"

	"github.com/hrygo/diarysense/nlp"
)

// HistoryLookup resolves an average duration for an action a user has
// logged before. ok is false when there is no usable history.
type HistoryLookup interface {
	GetAverageTime(ctx context.Context, userID int64, normalizedAction string) (minutes int, ok bool)
}

// Config carries the fusion thresholds and defaults.
type Config struct {
	HeuristicConfidenceThreshold float64
	DefaultTimeMinutes           int
	AchievementDefaultWeight     int
}

// Fuser enriches raw actions into final ones.
type Fuser struct {
	history HistoryLookup
	cfg     Config
	pre     *nlp.Preprocessor
}

// NewFuser builds a fuser. The internal preprocessor only normalizes
// action text for history lookups, so redaction stays off.
func NewFuser(history HistoryLookup, cfg Config) *Fuser {
	return &Fuser{
		history: history,
		cfg:     cfg,
		pre:     nlp.NewPreprocessor(false),
	}
}

// ShouldUseLLM reports whether the model pass is worth its cost given
// what the heuristics produced.
func (f *Fuser) ShouldUseLLM(heuristicConfidence float64, heuristicActionCount int) bool {
	if heuristicActionCount == 0 {
		return true
	}
	return heuristicConfidence < f.cfg.HeuristicConfidenceThreshold
}

// Fuse merges the two parses and enriches every surviving action. When
// the model produced anything its actions replace the heuristic ones
// wholesale; the two sets are never interleaved.
func (f *Fuser) Fuse(ctx context.Context, userID int64, heuristicActions, llmActions []nlp.RawAction) []nlp.Action {
	merged := heuristicActions
	if len(llmActions) > 0 {
		merged = llmActions
	}

	actions := make([]nlp.Action, 0, len(merged))
	for _, raw := range merged {
		actions = append(actions, f.enrich(ctx, userID, raw))
	}
	return actions
}

func (f *Fuser) enrich(ctx context.Context, userID int64, raw nlp.RawAction) nlp.Action {
	minutes, source := f.determineTime(ctx, userID, raw)

	weight := raw.AchievementWeight
	if raw.Type == nlp.ActionTypeAchievement && weight == nil {
		weight = nlp.IntPtr(f.cfg.AchievementDefaultWeight)
	}

	var points float64
	if raw.Type == nlp.ActionTypeAchievement {
		points = float64(*weight)
	} else {
		points = float64(minutes) / 10.0
	}

	return nlp.Action{
		Category:             raw.Category,
		Subcategory:          raw.Subcategory,
		Action:               raw.Action,
		Type:                 raw.Type,
		EstimatedTimeMinutes: minutes,
		TimeSource:           source,
		Confidence:           raw.Confidence,
		AchievementWeight:    weight,
		Points:               points,
	}
}

// determineTime resolves a duration by priority: explicit text mention,
// then user history, then the parser's own estimate, then the default.
func (f *Fuser) determineTime(ctx context.Context, userID int64, raw nlp.RawAction) (int, nlp.TimeSource) {
	if raw.EstimatedTimeMinutes != nil && raw.Confidence >= 0.7 {
		return *raw.EstimatedTimeMinutes, nlp.TimeSourceText
	}

	if f.history != nil {
		normalized := f.pre.NormalizeText(raw.Action)
		if minutes, ok := f.history.GetAverageTime(ctx, userID, normalized); ok {
			return minutes, nlp.TimeSourceHistory
		}
	}

	if raw.EstimatedTimeMinutes != nil {
		return *raw.EstimatedTimeMinutes, nlp.TimeSourceModel
	}

	return f.cfg.DefaultTimeMinutes, nlp.TimeSourceDefault
}
