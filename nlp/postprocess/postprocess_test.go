package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/diarysense/nlp"
)

func newTestProcessor() *Processor {
	return NewProcessor(0.85, 10)
}

func activity(text string, minutes int, conf float64, source nlp.TimeSource) nlp.Action {
	return nlp.Action{
		Category:             "спорт",
		Action:               text,
		Type:                 nlp.ActionTypeActivity,
		EstimatedTimeMinutes: minutes,
		TimeSource:           source,
		Confidence:           conf,
		Points:               float64(minutes) / 10.0,
	}
}

func TestApplySynonyms(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"занимался в зале", "занимался в зал"},
		{"ходил в спортзале", "ходил в зал"},
		{"читал книжку", "читал книгу"},
		{"открыл учебник", "открыл книгу"},
		{"Учебник по физике", "Книгу по физике"},
		{"без синонимов", "без синонимов"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, applySynonyms(tt.input))
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("зал", "зал"))
	assert.Greater(t, similarity("сходил в зал", "сходил в зале"), 0.85)
	assert.Less(t, similarity("сходил в зал", "приготовил обед"), 0.5)
}

func TestProcessMergesNearDuplicates(t *testing.T) {
	p := newTestProcessor()

	a := activity("сходил в зал", 90, 0.9, nlp.TimeSourceText)
	b := activity("сходил в зале", 30, 0.7, nlp.TimeSourceDefault)

	out := p.Process([]nlp.Action{a, b})
	require.Len(t, out, 1)

	// Duration comes from the text source, description from the more
	// confident operand.
	assert.Equal(t, 90, out[0].EstimatedTimeMinutes)
	assert.Equal(t, nlp.TimeSourceText, out[0].TimeSource)
	assert.Equal(t, 0.9, out[0].Confidence)
	assert.Equal(t, 9.0, out[0].Points)
}

func TestProcessKeepsDistinctActions(t *testing.T) {
	p := newTestProcessor()

	a := activity("сходил в зал", 90, 0.9, nlp.TimeSourceText)
	b := nlp.Action{
		Category:             "готовка",
		Action:               "приготовил обед",
		Type:                 nlp.ActionTypeActivity,
		EstimatedTimeMinutes: 40,
		TimeSource:           nlp.TimeSourceModel,
		Confidence:           0.85,
		Points:               4.0,
	}

	out := p.Process([]nlp.Action{a, b})
	assert.Len(t, out, 2)
}

func TestProcessNeverMergesAcrossCategoryOrType(t *testing.T) {
	p := newTestProcessor()

	a := activity("сходил в зал", 90, 0.9, nlp.TimeSourceText)
	b := a
	b.Type = nlp.ActionTypeAchievement
	b.AchievementWeight = nlp.IntPtr(15)
	b.Points = 15.0

	out := p.Process([]nlp.Action{a, b})
	assert.Len(t, out, 2)

	c := a
	c.Category = "дом"
	out = p.Process([]nlp.Action{a, c})
	assert.Len(t, out, 2)
}

func TestMergeInheritsSubcategory(t *testing.T) {
	a := activity("качался в зал", 60, 0.9, nlp.TimeSourceModel)
	b := activity("качался в зале", 60, 0.7, nlp.TimeSourceModel)
	b.Subcategory = nlp.StringPtr("бодибилдинг")

	merged := mergeActions(a, b)
	require.NotNil(t, merged.Subcategory)
	assert.Equal(t, "бодибилдинг", *merged.Subcategory)
}

func TestValidateRepairsFields(t *testing.T) {
	p := newTestProcessor()

	broken := nlp.Action{
		Category:             "спорт",
		Action:               "бегал",
		Type:                 nlp.ActionTypeActivity,
		EstimatedTimeMinutes: -5,
		TimeSource:           nlp.TimeSourceModel,
		Confidence:           1.4,
		Points:               99.0,
	}

	out := p.Process([]nlp.Action{broken})
	require.Len(t, out, 1)

	a := out[0]
	assert.Equal(t, 10, a.EstimatedTimeMinutes)
	assert.Equal(t, 1.0, a.Confidence)
	assert.Equal(t, 1.0, a.Points)
}

func TestValidateRepairsNegativeWeight(t *testing.T) {
	p := newTestProcessor()

	a := nlp.Action{
		Category:             "спорт",
		Action:               "сходил в зал",
		Type:                 nlp.ActionTypeAchievement,
		EstimatedTimeMinutes: 60,
		TimeSource:           nlp.TimeSourceModel,
		Confidence:           0.9,
		AchievementWeight:    nlp.IntPtr(-5),
		Points:               -5.0,
	}

	out := p.Process([]nlp.Action{a})
	require.Len(t, out, 1)

	require.NotNil(t, out[0].AchievementWeight)
	assert.Equal(t, 10, *out[0].AchievementWeight)
	assert.Equal(t, 10.0, out[0].Points)
}

func TestValidateAchievementPointsUseWeight(t *testing.T) {
	p := newTestProcessor()

	a := nlp.Action{
		Category:             "спорт",
		Action:               "впервые пробежал 10 км",
		Type:                 nlp.ActionTypeAchievement,
		EstimatedTimeMinutes: 60,
		TimeSource:           nlp.TimeSourceModel,
		Confidence:           0.9,
		AchievementWeight:    nlp.IntPtr(20),
		Points:               3.0,
	}

	out := p.Process([]nlp.Action{a})
	require.Len(t, out, 1)
	assert.Equal(t, 20.0, out[0].Points)

	// Weightless achievements fall back to the default weight.
	a.AchievementWeight = nil
	out = p.Process([]nlp.Action{a})
	require.Len(t, out, 1)
	assert.Equal(t, 10.0, out[0].Points)
}

func TestProcessIdempotent(t *testing.T) {
	p := newTestProcessor()

	input := []nlp.Action{
		activity("сходил в зале", 90, 0.9, nlp.TimeSourceText),
		activity("сходил в зал", 30, 0.7, nlp.TimeSourceDefault),
		{
			Category:             "учёба",
			Action:               "читал книжку",
			Type:                 nlp.ActionTypeActivity,
			EstimatedTimeMinutes: 45,
			TimeSource:           nlp.TimeSourceHistory,
			Confidence:           0.8,
			Points:               4.5,
		},
	}

	once := p.Process(input)
	twice := p.Process(once)
	assert.Equal(t, once, twice)
}

func TestProcessEmptyInput(t *testing.T) {
	p := newTestProcessor()
	assert.Empty(t, p.Process(nil))
}
