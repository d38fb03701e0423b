package compat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/astromatch/astromatch/internal/astro"
	"github.com/astromatch/astromatch/internal/questionnaire"
)

type fakeSource struct {
	charts  map[string]astro.Chart
	answers map[string]questionnaire.Answers
	delay   time.Duration
}

func (f *fakeSource) NatalChart(ctx context.Context, userID string) (astro.Chart, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.charts[userID], nil
}

func (f *fakeSource) QuestionnaireAnswers(ctx context.Context, userID string) (questionnaire.Answers, error) {
	return f.answers[userID], nil
}

func TestCombineBothEngines(t *testing.T) {
	score := Combine(
		astro.Result{Score: 80, HasData: true},
		questionnaire.Result{Score: 60, HasData: true},
	)
	assert.InDelta(t, 70.0, score.Overall, 0.001)
	assert.Equal(t, "C", score.Grade)
	assert.True(t, score.Recommended)
}

func TestCombineSingleEnginePassthrough(t *testing.T) {
	astroOnly := Combine(astro.Result{Score: 92, HasData: true}, questionnaire.Result{})
	assert.InDelta(t, 92.0, astroOnly.Overall, 0.001)
	assert.Equal(t, "A", astroOnly.Grade)

	questOnly := Combine(astro.Result{}, questionnaire.Result{Score: 65, HasData: true})
	assert.InDelta(t, 65.0, questOnly.Overall, 0.001)
	assert.False(t, questOnly.Recommended)
}

func TestCombineNoDataIsNeutral(t *testing.T) {
	score := Combine(astro.Result{}, questionnaire.Result{})
	assert.InDelta(t, NeutralScore, score.Overall, 0.001)
	assert.Equal(t, "F", score.Grade)
	assert.False(t, score.Recommended)
}

func TestScorerComputeFromStoredData(t *testing.T) {
	source := &fakeSource{
		charts: map[string]astro.Chart{
			"a": {"Sun": astro.Placement{Sign: "Aries", Degree: 0}},
			"b": {"Sun": astro.Placement{Sign: "Leo", Degree: 0}},
		},
		answers: map[string]questionnaire.Answers{},
	}
	scorer := NewScorer(source, time.Second)

	score := scorer.Compute(context.Background(), "a", "b")
	// Exact Sun-Sun trine, no questionnaire data: astro score carries alone.
	assert.Greater(t, score.Overall, 50.0)
	assert.LessOrEqual(t, score.Overall, 75.0)
	assert.True(t, score.Astro.HasData)
	assert.False(t, score.Questionnaire.HasData)
}

func TestScorerMissingDataIsNeutral(t *testing.T) {
	scorer := NewScorer(&fakeSource{}, time.Second)

	score := scorer.Compute(context.Background(), "a", "b")
	assert.InDelta(t, NeutralScore, score.Overall, 0.001)
}

func TestScorerBudgetExceededFallsBackToNeutral(t *testing.T) {
	source := &fakeSource{
		charts: map[string]astro.Chart{
			"a": {"Sun": astro.Placement{Sign: "Aries", Degree: 0}},
			"b": {"Sun": astro.Placement{Sign: "Leo", Degree: 0}},
		},
		delay: 500 * time.Millisecond,
	}
	scorer := NewScorer(source, 20*time.Millisecond)

	start := time.Now()
	score := scorer.Compute(context.Background(), "a", "b")
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.InDelta(t, NeutralScore, score.Overall, 0.001)
}

func TestScorerSymmetric(t *testing.T) {
	source := &fakeSource{
		charts: map[string]astro.Chart{
			"a": {
				"Sun":  astro.Placement{Sign: "Aries", Degree: 5},
				"Moon": astro.Placement{Sign: "Virgo", Degree: 12},
			},
			"b": {
				"Sun":  astro.Placement{Sign: "Libra", Degree: 20},
				"Moon": astro.Placement{Sign: "Gemini", Degree: 3},
			},
		},
		answers: map[string]questionnaire.Answers{
			"a": {{Category: "values", Answer: "family"}},
			"b": {{Category: "values", Answer: "career"}},
		},
	}
	scorer := NewScorer(source, time.Second)

	ab := scorer.Compute(context.Background(), "a", "b")
	ba := scorer.Compute(context.Background(), "b", "a")
	assert.InDelta(t, ab.Overall, ba.Overall, 0.0001)
}
