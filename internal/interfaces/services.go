package interfaces

import (
	"context"

	"github.com/astromatch/astromatch/internal/astro"
	"github.com/astromatch/astromatch/internal/compat"
	"github.com/astromatch/astromatch/internal/questionnaire"
	"github.com/astromatch/astromatch/internal/services"
)

// UserReader defines the profile read model and the chart/questionnaire
// write boundary consumed by the API layer.
type UserReader interface {
	GetUserByID(ctx context.Context, id string) (*services.User, error)
	SaveNatalChart(ctx context.Context, userID string, chart astro.Chart) error
	SaveQuestionnaire(ctx context.Context, userID string, answers questionnaire.Answers) error
	NatalChart(ctx context.Context, userID string) (astro.Chart, error)
	QuestionnaireAnswers(ctx context.Context, userID string) (questionnaire.Answers, error)
}

// CandidateFinder runs the discovery pipeline.
type CandidateFinder interface {
	GetCandidates(ctx context.Context, requesterID string, filters services.Filters, page services.Page) []services.Candidate
}

// CompatibilityScorer computes live pairwise compatibility.
type CompatibilityScorer interface {
	Score(ctx context.Context, userIDA, userIDB string) compat.Score
}

// RequestLifecycle drives match requests from creation to resolution.
type RequestLifecycle interface {
	Create(ctx context.Context, requesterID, targetID string) (*services.CreateRequestResult, error)
	Respond(ctx context.Context, requestID, responderID, decision string) (*services.Match, error)
	Delete(ctx context.Context, requestID, requesterID string) error
}

// MatchManager owns confirmed matches.
type MatchManager interface {
	Confirm(ctx context.Context, userIDA, userIDB string, sourceRequestID *string) (*services.Match, error)
	Unmatch(ctx context.Context, userID, otherUserID, reason string) error
	ListMatches(ctx context.Context, userID string, limit, offset int) ([]services.MatchSummary, error)
}

// InviteLimiter enforces the per-user daily quota.
type InviteLimiter interface {
	Consume(ctx context.Context, userID string) (*services.InviteResult, error)
}

// EdgeRecorder writes swipe and block edges.
type EdgeRecorder interface {
	RecordSwipe(ctx context.Context, swiperID, swipedID, swipeType string) error
	RecordBlock(ctx context.Context, blockerID, blockedID string) error
}
