// Package postprocess canonicalizes action text, merges near-duplicate
// actions, and repairs invariant violations before results leave the
// pipeline.
package postprocess

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/hrygo/diarysense/nlp"
)

// synonymPair rewrites a surface form to its canonical one. Ordered so
// the more specific forms run first.
var synonymPairs = []struct {
	old, canonical string
}{
	{"зале", "зал"},
	{"спортзале", "зал"},
	{"качалке", "зал"},
	{"gym", "зал"},
	{"книжку", "книгу"},
	{"учебник", "книгу"},
}

// Processor normalizes, deduplicates, and validates final actions.
type Processor struct {
	similarityThreshold float64
	defaultWeight       int
}

// NewProcessor builds a processor. The threshold is the normalized
// similarity above which two same-category same-type actions merge.
func NewProcessor(similarityThreshold float64, defaultWeight int) *Processor {
	return &Processor{
		similarityThreshold: similarityThreshold,
		defaultWeight:       defaultWeight,
	}
}

// Process runs the three passes in order. It is idempotent: running it
// on its own output changes nothing.
func (p *Processor) Process(actions []nlp.Action) []nlp.Action {
	if len(actions) == 0 {
		return []nlp.Action{}
	}
	actions = normalizeActions(actions)
	actions = p.deduplicate(actions)
	return p.validate(actions)
}

func normalizeActions(actions []nlp.Action) []nlp.Action {
	out := make([]nlp.Action, len(actions))
	for i, a := range actions {
		a.Action = applySynonyms(strings.TrimSpace(a.Action))
		out[i] = a
	}
	return out
}

// applySynonyms rewrites known surface forms, preserving a leading
// capital on the replaced word.
func applySynonyms(text string) string {
	lower := strings.ToLower(text)
	for _, s := range synonymPairs {
		if !strings.Contains(lower, s.old) {
			continue
		}
		text = strings.ReplaceAll(text, s.old, s.canonical)
		text = strings.ReplaceAll(text, capitalize(s.old), capitalize(s.canonical))
		lower = strings.ToLower(text)
	}
	return text
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + s[size:]
}

// deduplicate folds each action into an earlier similar one when there
// is one, otherwise keeps it. Merging is in place so a third duplicate
// folds into the already merged record.
func (p *Processor) deduplicate(actions []nlp.Action) []nlp.Action {
	if len(actions) <= 1 {
		return actions
	}

	unique := make([]nlp.Action, 0, len(actions))
	for _, a := range actions {
		merged := false
		for i := range unique {
			if p.similar(&unique[i], &a) {
				unique[i] = mergeActions(unique[i], a)
				merged = true
				break
			}
		}
		if !merged {
			unique = append(unique, a)
		}
	}
	return unique
}

// similar requires identical category and type before comparing text.
func (p *Processor) similar(a, b *nlp.Action) bool {
	if a.Category != b.Category || a.Type != b.Type {
		return false
	}
	return similarity(strings.ToLower(a.Action), strings.ToLower(b.Action)) >= p.similarityThreshold
}

// similarity is the Levenshtein distance normalized by the longer text,
// mapped so identical strings score 1.0.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}

// mergeActions keeps the duration fields from whichever operand has the
// stronger time source and the descriptive fields from whichever is more
// confident. Points travel with the duration.
func mergeActions(a, b nlp.Action) nlp.Action {
	betterTime := a
	if b.TimeSource.Priority() > a.TimeSource.Priority() {
		betterTime = b
	}
	betterConf := a
	if b.Confidence > a.Confidence {
		betterConf = b
	}

	subcategory := betterConf.Subcategory
	if subcategory == nil {
		subcategory = betterTime.Subcategory
	}

	confidence := a.Confidence
	if b.Confidence > confidence {
		confidence = b.Confidence
	}

	return nlp.Action{
		Category:             betterConf.Category,
		Subcategory:          subcategory,
		Action:               betterConf.Action,
		Type:                 betterConf.Type,
		EstimatedTimeMinutes: betterTime.EstimatedTimeMinutes,
		TimeSource:           betterTime.TimeSource,
		Confidence:           confidence,
		AchievementWeight:    betterConf.AchievementWeight,
		Points:               betterTime.Points,
	}
}

// validate repairs out-of-range fields and recomputes points that drifted
// from the scoring formula.
func (p *Processor) validate(actions []nlp.Action) []nlp.Action {
	out := make([]nlp.Action, len(actions))
	for i, a := range actions {
		if a.EstimatedTimeMinutes < 0 {
			a.EstimatedTimeMinutes = 10
		}
		if a.AchievementWeight != nil && *a.AchievementWeight < 0 {
			a.AchievementWeight = nlp.IntPtr(p.defaultWeight)
		}
		a.Confidence = nlp.ClampConfidence(a.Confidence)
		if !a.PointsConsistent(p.defaultWeight) {
			a.Points = a.CanonicalPoints(p.defaultWeight)
		}
		out[i] = a
	}
	return out
}
