package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/astromatch/astromatch/internal/database"
	"github.com/astromatch/astromatch/internal/telemetry"
)

// MatchBonusPoints is credited to both users when a match is confirmed.
const MatchBonusPoints = 50

// Ledger credits users' progress. Failures never roll back the match that
// triggered the credit; the ledger is best-effort and retryable.
type Ledger interface {
	Credit(ctx context.Context, userID, eventType string, points int) error
}

// ProgressLedger records credits in the progress_events table.
type ProgressLedger struct {
	db *database.DB
}

func NewProgressLedger(db *database.DB) *ProgressLedger {
	return &ProgressLedger{db: db}
}

func (l *ProgressLedger) Credit(ctx context.Context, userID, eventType string, points int) error {
	query := `
		INSERT INTO progress_events (id, user_id, event_type, points, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := l.db.ExecContext(ctx, query, uuid.New().String(), userID, eventType, points, time.Now())
	if err != nil {
		telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
			"operation":  "ledger_credit",
			"user_id":    userID,
			"event_type": eventType,
		}).WithError(err).Warn("Failed to credit progress ledger")
		return fmt.Errorf("failed to credit ledger: %w", err)
	}
	return nil
}
