package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/astromatch/astromatch/internal/database"
	"github.com/astromatch/astromatch/internal/telemetry"
)

// InviteResult reports the outcome of a quota check. A denied invite is a
// normal outcome, not an error.
type InviteResult struct {
	Allowed        bool `json:"allowed"`
	RemainingToday int  `json:"remaining_today"`
}

// InviteService enforces the per-user daily action quota. The read, compare,
// and decrement happen under a row-level exclusive lock so two concurrent
// calls can never both spend the last invite.
type InviteService struct {
	db           *database.DB
	freeQuota    int
	premiumQuota int
}

func NewInviteService(db *database.DB, freeQuota, premiumQuota int) *InviteService {
	if freeQuota <= 0 {
		freeQuota = 5
	}
	if premiumQuota <= 0 {
		premiumQuota = 25
	}
	return &InviteService{db: db, freeQuota: freeQuota, premiumQuota: premiumQuota}
}

func (s *InviteService) quotaFor(tier string) int {
	if tier == database.TierPremium {
		return s.premiumQuota
	}
	return s.freeQuota
}

// Consume spends one invite if any remain today. The quota row resets to the
// full daily allowance at the first call past a day boundary.
func (s *InviteService) Consume(ctx context.Context, userID string) (*InviteResult, error) {
	logger := telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
		"operation": "consume_invite",
		"user_id":   userID,
	})

	result := &InviteResult{}
	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var tier string
		err := tx.QueryRowContext(ctx,
			`SELECT subscription_tier FROM users WHERE id = $1`, userID,
		).Scan(&tier)
		if err != nil {
			return fmt.Errorf("failed to load user tier: %w", err)
		}
		quota := s.quotaFor(tier)

		now := time.Now()
		today := now.Truncate(24 * time.Hour)

		// Ensure the row exists, then lock it. The insert is a no-op when
		// the user already has a quota row.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO invite_quotas (user_id, remaining, quota_date, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO NOTHING
		`, userID, quota, today, now)
		if err != nil {
			return fmt.Errorf("failed to initialize quota row: %w", err)
		}

		var (
			remaining int
			quotaDate time.Time
		)
		err = tx.QueryRowContext(ctx, `
			SELECT remaining, quota_date FROM invite_quotas
			WHERE user_id = $1
			FOR UPDATE
		`, userID).Scan(&remaining, &quotaDate)
		if err != nil {
			return fmt.Errorf("failed to lock quota row: %w", err)
		}

		// Past a day boundary the stored count is stale; reset first.
		if quotaDate.Before(today) {
			remaining = quota
			quotaDate = today
		}

		if remaining <= 0 {
			result.Allowed = false
			result.RemainingToday = 0
			// Persist a possible day-boundary reset even on denial.
			_, err = tx.ExecContext(ctx, `
				UPDATE invite_quotas SET remaining = $1, quota_date = $2, updated_at = $3
				WHERE user_id = $4
			`, remaining, quotaDate, now, userID)
			if err != nil {
				return fmt.Errorf("failed to persist quota state: %w", err)
			}
			return nil
		}

		remaining--
		_, err = tx.ExecContext(ctx, `
			UPDATE invite_quotas SET remaining = $1, quota_date = $2, updated_at = $3
			WHERE user_id = $4
		`, remaining, quotaDate, now, userID)
		if err != nil {
			return fmt.Errorf("failed to decrement quota: %w", err)
		}

		result.Allowed = true
		result.RemainingToday = remaining
		return nil
	})
	if err != nil {
		logger.WithError(err).Error("Invite consumption failed")
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"allowed":   result.Allowed,
		"remaining": result.RemainingToday,
	}).Debug("Invite quota checked")
	return result, nil
}
