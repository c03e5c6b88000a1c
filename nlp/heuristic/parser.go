// Package heuristic extracts diary actions with keyword tables and regex
// patterns, with no model calls. It is the fast path of the pipeline.
package heuristic

import (
	"regexp"
	"strings"
	"time"

	"github.com/hrygo/diarysense/nlp"
)

// Parser extracts actions from preprocessed text using keyword tables and
// a duration pattern. Safe for concurrent use.
type Parser struct {
	segmentRe *regexp.Regexp
	timeRe    *regexp.Regexp
	spaceRe   *regexp.Regexp
}

// NewParser compiles the segmentation and duration patterns.
func NewParser() *Parser {
	return &Parser{
		segmentRe: regexp.MustCompile(`(?i)[,;]|\s+и\s+|\s+а\s+|\s+также\s+|\s+потом\s+`),
		timeRe:    regexp.MustCompile(`(?i)(\d+)\s*(час(?:а|ов)?|ч\.?|минут(?:а|ы)?|мин\.?|секунд(?:а|ы)?|сек\.?)`),
		spaceRe:   regexp.MustCompile(`\s+`),
	}
}

// Parse splits text into segments and extracts one action per segment that
// hits the category vocabulary. Segments outside the vocabulary are
// dropped. The overall confidence is the mean of the per-action scores.
func (p *Parser) Parse(userID int64, text string) nlp.ParseResult {
	start := time.Now()

	var actions []nlp.RawAction
	for _, segment := range p.segment(text) {
		if a, ok := p.extract(segment); ok {
			actions = append(actions, a)
		}
	}

	return nlp.ParseResult{
		Actions:    actions,
		Confidence: nlp.MeanConfidence(actions),
		LatencyMs:  time.Since(start).Milliseconds(),
	}
}

func (p *Parser) segment(text string) []string {
	var segments []string
	for _, s := range p.segmentRe.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func (p *Parser) extract(segment string) (nlp.RawAction, bool) {
	cat, subcat := detectCategory(segment)
	if cat == "" {
		return nlp.RawAction{}, false
	}

	weight, isAchievement := detectAchievement(segment)
	actionType := nlp.ActionTypeActivity
	var weightPtr *int
	if isAchievement {
		actionType = nlp.ActionTypeAchievement
		weightPtr = nlp.IntPtr(weight)
	}

	minutes := p.extractTime(segment)

	confidence := 0.5
	confidence += 0.2 // category always present here
	if minutes != nil {
		confidence += 0.2
	}
	if isAchievement {
		confidence += 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	var subcatPtr *string
	if subcat != "" {
		subcatPtr = nlp.StringPtr(subcat)
	}

	return nlp.RawAction{
		Category:             cat,
		Subcategory:          subcatPtr,
		Action:               p.cleanActionText(segment),
		Type:                 actionType,
		EstimatedTimeMinutes: minutes,
		Confidence:           confidence,
		AchievementWeight:    weightPtr,
		Source:               nlp.SourceHeuristic,
	}, true
}

// detectCategory walks the category table in order and returns on the
// first category whose keyword occurs in the segment. Subcategories are
// checked in order too, only within the matched category.
func detectCategory(text string) (string, string) {
	lower := strings.ToLower(text)
	for _, cat := range categoryTable {
		for _, kw := range cat.keywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			for _, sub := range cat.subcategories {
				for _, skw := range sub.keywords {
					if strings.Contains(lower, skw) {
						return cat.name, sub.name
					}
				}
			}
			return cat.name, ""
		}
	}
	return "", ""
}

func detectAchievement(text string) (int, bool) {
	lower := strings.ToLower(text)
	for _, entry := range achievementTable {
		if strings.Contains(lower, entry.keyword) {
			return entry.weight, true
		}
	}
	return 0, false
}

// extractTime returns the first duration expression converted to minutes,
// or nil when the segment carries none. Seconds round up to at least one
// minute.
func (p *Parser) extractTime(text string) *int {
	m := p.timeRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	value := 0
	for _, r := range m[1] {
		value = value*10 + int(r-'0')
	}
	unit := strings.ToLower(m[2])
	switch {
	case strings.Contains(unit, "ч"):
		return nlp.IntPtr(value * 60)
	case strings.Contains(unit, "мин"):
		return nlp.IntPtr(value)
	case strings.Contains(unit, "сек"):
		v := value / 60
		if v < 1 {
			v = 1
		}
		return nlp.IntPtr(v)
	}
	return nil
}

func (p *Parser) cleanActionText(text string) string {
	text = p.timeRe.ReplaceAllString(text, "")
	text = p.spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
