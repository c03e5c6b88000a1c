// Package nlp defines the domain model of the diary analysis pipeline and
// the text preprocessing primitives shared by its stages.
package nlp

import "math"

// ActionType classifies an extracted action.
type ActionType string

const (
	ActionTypeActivity    ActionType = "activity"
	ActionTypeAchievement ActionType = "achievement"
)

// TimeSource records where a duration estimate came from.
type TimeSource string

const (
	TimeSourceText    TimeSource = "text"
	TimeSourceHistory TimeSource = "history"
	TimeSourceModel   TimeSource = "model"
	TimeSourceDefault TimeSource = "default"
)

// Priority returns the merge ordering of a time source. Higher wins.
func (s TimeSource) Priority() int {
	switch s {
	case TimeSourceText:
		return 4
	case TimeSourceHistory:
		return 3
	case TimeSourceModel:
		return 2
	default:
		return 1
	}
}

// Parser source identifiers carried on RawAction.
const (
	SourceHeuristic = "heuristic"
	SourceLLM       = "llm"
	SourceUnknown   = "unknown"
)

// RawAction is the intermediate record emitted by a parser. It lives only
// between the parsers and fusion inside a single request.
type RawAction struct {
	Category             string
	Subcategory          *string
	Action               string
	Type                 ActionType
	EstimatedTimeMinutes *int
	Confidence           float64
	AchievementWeight    *int
	Source               string
}

// Action is the finalized record returned to the caller.
type Action struct {
	Category             string     `json:"category"`
	Subcategory          *string    `json:"subcategory"`
	Action               string     `json:"action"`
	Type                 ActionType `json:"type"`
	EstimatedTimeMinutes int        `json:"estimated_time_minutes"`
	TimeSource           TimeSource `json:"time_source"`
	Confidence           float64    `json:"confidence"`
	AchievementWeight    *int       `json:"achievement_weight"`
	Points               float64    `json:"points"`
}

// CanonicalPoints returns the points value the scoring formula demands:
// achievements score their weight, activities score minutes/10.
func (a *Action) CanonicalPoints(defaultWeight int) float64 {
	if a.Type == ActionTypeAchievement {
		if a.AchievementWeight != nil {
			return float64(*a.AchievementWeight)
		}
		return float64(defaultWeight)
	}
	return float64(a.EstimatedTimeMinutes) / 10.0
}

// PointsConsistent reports whether the stored points match the canonical
// formula within the tolerance used by the postprocessor.
func (a *Action) PointsConsistent(defaultWeight int) bool {
	return math.Abs(a.Points-a.CanonicalPoints(defaultWeight)) <= 0.01
}

// ParseResult is the outcome of a single parser run.
type ParseResult struct {
	Actions    []RawAction
	Confidence float64
	LatencyMs  int64
	Errors     []string
}

// LLMParseResult is a ParseResult with model accounting attached.
type LLMParseResult struct {
	ParseResult
	ModelName  string
	TokensUsed int
}

// MeanConfidence averages the per-action confidences, or 0 when empty.
func MeanConfidence(actions []RawAction) float64 {
	if len(actions) == 0 {
		return 0
	}
	var sum float64
	for _, a := range actions {
		sum += a.Confidence
	}
	return sum / float64(len(actions))
}

// AnalysisMeta describes how a result was produced.
type AnalysisMeta struct {
	UsedHeuristics     []string `json:"used_heuristics"`
	UsedLLM            bool     `json:"used_llm"`
	HeuristicLatencyMs *int64   `json:"heuristic_latency_ms"`
	LLMLatencyMs       *int64   `json:"llm_latency_ms"`
	Errors             []string `json:"errors"`
}

// AnalysisResult is the complete outcome of one analyze call.
// RawText is always nil: original entries never leave the pipeline.
type AnalysisResult struct {
	UserID  int64        `json:"user_id"`
	Date    string       `json:"date"`
	RawText *string      `json:"raw_text"`
	Actions []Action     `json:"actions"`
	Meta    AnalysisMeta `json:"meta"`
}

// IntPtr is a convenience helper for optional integer fields.
func IntPtr(v int) *int { return &v }

// StringPtr is a convenience helper for optional string fields.
func StringPtr(v string) *string { return &v }

// ClampConfidence bounds a confidence value to [0, 1].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
