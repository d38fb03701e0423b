package compat

import (
	"context"
	"time"

	"github.com/astromatch/astromatch/internal/astro"
	"github.com/astromatch/astromatch/internal/questionnaire"
	"github.com/astromatch/astromatch/internal/telemetry"
)

// NeutralScore is used whenever neither engine has data, or live computation
// cannot finish within budget. A neutral pair stays eligible for discovery.
const NeutralScore = 50.0

// RecommendedThreshold marks pairs worth surfacing prominently.
const RecommendedThreshold = 70.0

// Score is the combined compatibility verdict for one user pair.
type Score struct {
	Overall       float64              `json:"overall"`
	Grade         string               `json:"grade"`
	Recommended   bool                 `json:"recommended"`
	Astro         astro.Result         `json:"astro"`
	Questionnaire questionnaire.Result `json:"questionnaire"`
}

// Combine blends the two engine results. With both engines reporting data the
// blend is an even split; with one, that engine's score stands alone; with
// neither, the pair scores neutral.
func Combine(a astro.Result, q questionnaire.Result) Score {
	var overall float64
	switch {
	case a.HasData && q.HasData:
		overall = 0.5*a.Score + 0.5*q.Score
	case a.HasData:
		overall = a.Score
	case q.HasData:
		overall = q.Score
	default:
		overall = NeutralScore
	}

	return Score{
		Overall:       overall,
		Grade:         astro.Grade(overall),
		Recommended:   overall >= RecommendedThreshold,
		Astro:         a,
		Questionnaire: q,
	}
}

// Neutral is the verdict for a pair with no usable data.
func Neutral() Score {
	return Combine(astro.Result{}, questionnaire.Result{})
}

// ProfileSource supplies the stored inputs for live scoring. Absent data is
// reported as a nil chart or answer list, never as an error.
type ProfileSource interface {
	NatalChart(ctx context.Context, userID string) (astro.Chart, error)
	QuestionnaireAnswers(ctx context.Context, userID string) (questionnaire.Answers, error)
}

// Scorer computes live pairwise compatibility within a time budget.
type Scorer struct {
	source ProfileSource
	budget time.Duration
}

func NewScorer(source ProfileSource, budget time.Duration) *Scorer {
	if budget <= 0 {
		budget = 500 * time.Millisecond
	}
	return &Scorer{source: source, budget: budget}
}

// Compute scores the pair from stored chart and questionnaire data. If the
// budget elapses before the result is ready, the caller gets the neutral
// score instead of blocking.
func (s *Scorer) Compute(ctx context.Context, userIDA, userIDB string) Score {
	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	done := make(chan Score, 1)
	go func() {
		done <- s.compute(ctx, userIDA, userIDB)
	}()

	select {
	case score := <-done:
		return score
	case <-ctx.Done():
		telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
			"operation": "compatibility_compute",
			"user_a":    userIDA,
			"user_b":    userIDB,
			"budget_ms": s.budget.Milliseconds(),
		}).Warn("Compatibility computation exceeded budget, returning neutral score")
		return Neutral()
	}
}

func (s *Scorer) compute(ctx context.Context, userIDA, userIDB string) Score {
	logger := telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
		"operation": "compatibility_compute",
		"user_a":    userIDA,
		"user_b":    userIDB,
	})

	chartA, err := s.source.NatalChart(ctx, userIDA)
	if err != nil {
		logger.WithError(err).Warn("Failed to load natal chart, treating as absent")
		chartA = nil
	}
	chartB, err := s.source.NatalChart(ctx, userIDB)
	if err != nil {
		logger.WithError(err).Warn("Failed to load natal chart, treating as absent")
		chartB = nil
	}

	answersA, err := s.source.QuestionnaireAnswers(ctx, userIDA)
	if err != nil {
		logger.WithError(err).Warn("Failed to load questionnaire answers, treating as absent")
		answersA = nil
	}
	answersB, err := s.source.QuestionnaireAnswers(ctx, userIDB)
	if err != nil {
		logger.WithError(err).Warn("Failed to load questionnaire answers, treating as absent")
		answersB = nil
	}

	return Combine(astro.Compare(chartA, chartB), questionnaire.Compare(answersA, answersB))
}
