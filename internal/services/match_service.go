package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/astromatch/astromatch/internal/compat"
	"github.com/astromatch/astromatch/internal/database"
	"github.com/astromatch/astromatch/internal/errors"
	"github.com/astromatch/astromatch/internal/notification"
	"github.com/astromatch/astromatch/internal/telemetry"
)

type Match = database.Match
type Conversation = database.Conversation

// MatchSummary is one entry in a user's match list, with the counterpart and
// the conversation preview attached.
type MatchSummary struct {
	Match              Match      `json:"match"`
	CounterpartID      string     `json:"counterpart_id"`
	CounterpartName    string     `json:"counterpart_name"`
	ConversationID     string     `json:"conversation_id"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	LastMessagePreview *string    `json:"last_message_preview,omitempty"`
}

// MatchService owns match confirmation and teardown. Confirmation is a
// single transaction with insert-or-update semantics keyed by the canonical
// pair, so concurrent or retried confirmations converge on one match row.
type MatchService struct {
	db            *database.DB
	compatCache   *compat.Cache
	ledger        Ledger
	exclusions    *ExclusionService
	notifications *notification.Queue
}

func NewMatchService(db *database.DB, compatCache *compat.Cache, ledger Ledger, exclusions *ExclusionService, notifications *notification.Queue) *MatchService {
	return &MatchService{
		db:            db,
		compatCache:   compatCache,
		ledger:        ledger,
		exclusions:    exclusions,
		notifications: notifications,
	}
}

// Confirm creates (or converges on) the Match and Conversation for the pair.
// The durable outcome is the match and conversation rows; cache, ledger, and
// notification writes afterwards are best-effort and never roll them back.
func (s *MatchService) Confirm(ctx context.Context, userIDA, userIDB string, sourceRequestID *string) (*Match, error) {
	if userIDA == userIDB {
		return nil, errors.NewValidationError("user_id", "cannot match a user with themselves")
	}

	low, high := database.CanonicalPair(userIDA, userIDB)
	logger := telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
		"operation": "confirm_match",
		"user1_id":  low,
		"user2_id":  high,
	})

	score := s.compatCache.Score(ctx, low, high)

	match := &Match{}
	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		now := time.Now()

		var conversationID string
		err := tx.QueryRowContext(ctx, `
			INSERT INTO conversations (id, participant1_id, participant2_id, status, created_at)
			VALUES ($1, $2, $3, 'active', $4)
			ON CONFLICT (participant1_id, participant2_id)
				DO UPDATE SET status = 'active'
			RETURNING id
		`, uuid.New().String(), low, high, now).Scan(&conversationID)
		if err != nil {
			return fmt.Errorf("failed to upsert conversation: %w", err)
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO matches (id, user1_id, user2_id, status, compatibility_score, conversation_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			ON CONFLICT (user1_id, user2_id)
				DO UPDATE SET status = $4, conversation_id = $6, updated_at = $7
			RETURNING id, user1_id, user2_id, status, compatibility_score, conversation_id, created_at, updated_at
		`, uuid.New().String(), low, high, database.MatchStatusActive, score.Overall, conversationID, now).Scan(
			&match.ID, &match.User1ID, &match.User2ID, &match.Status,
			&match.CompatibilityScore, &match.ConversationID,
			&match.CreatedAt, &match.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert match: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE conversations SET match_id = $1 WHERE id = $2
		`, match.ID, conversationID)
		if err != nil {
			return fmt.Errorf("failed to link conversation to match: %w", err)
		}

		if sourceRequestID != nil {
			_, err = tx.ExecContext(ctx, `
				UPDATE match_requests
				SET status = $1, resulting_match_id = $2, responded_at = $3
				WHERE id = $4
			`, database.RequestStatusFulfilled, match.ID, now, *sourceRequestID)
			if err != nil {
				return fmt.Errorf("failed to fulfill source request: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		logger.WithError(err).Error("Match confirmation transaction failed")
		return nil, err
	}

	// Best-effort follow-ups. None of these can undo the match.
	s.compatCache.Store(ctx, low, high, score)
	s.exclusions.Invalidate(ctx, low, high)

	for _, userID := range []string{low, high} {
		if err := s.ledger.Credit(ctx, userID, "match_confirmed", MatchBonusPoints); err != nil {
			logger.WithError(err).Warn("Ledger credit failed, match stands")
		}
	}

	if s.notifications != nil {
		s.notifications.Enqueue(ctx, notification.Event{
			Type: notification.EventMatchConfirmed, UserID: low, ActorID: high,
			Payload: map[string]interface{}{"match_id": match.ID},
		})
		s.notifications.Enqueue(ctx, notification.Event{
			Type: notification.EventMatchConfirmed, UserID: high, ActorID: low,
			Payload: map[string]interface{}{"match_id": match.ID},
		})
	}

	logger.WithField("match_id", match.ID).Info("Match confirmed")
	return match, nil
}

// Unmatch soft-disables the match and its conversation. Rows are never hard
// deleted; an audit entry records who ended it and why.
func (s *MatchService) Unmatch(ctx context.Context, userID, otherUserID, reason string) error {
	if userID == otherUserID {
		return errors.NewValidationError("other_user_id", "cannot unmatch yourself")
	}

	low, high := database.CanonicalPair(userID, otherUserID)
	logger := telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
		"operation": "unmatch",
		"user1_id":  low,
		"user2_id":  high,
	})

	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE matches SET status = $1, updated_at = $2
			WHERE user1_id = $3 AND user2_id = $4 AND status = $5
		`, database.MatchStatusUnmatched, time.Now(), low, high, database.MatchStatusActive)
		if err != nil {
			return fmt.Errorf("failed to disable match: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check unmatch result: %w", err)
		}
		if affected == 0 {
			return errors.NewNotFoundError("match")
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE conversations SET status = 'disabled'
			WHERE participant1_id = $1 AND participant2_id = $2
		`, low, high)
		if err != nil {
			return fmt.Errorf("failed to disable conversation: %w", err)
		}

		// Audit trail for compliance; never blocks the unmatch itself once
		// the status rows are updated.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO progress_events (id, user_id, event_type, points, created_at)
			VALUES ($1, $2, $3, 0, $4)
		`, uuid.New().String(), userID, fmt.Sprintf("unmatched:%s", reason), time.Now())
		if err != nil {
			return fmt.Errorf("failed to write unmatch audit record: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	if s.notifications != nil {
		s.notifications.Enqueue(ctx, notification.Event{
			Type: notification.EventUnmatched, UserID: otherUserID, ActorID: userID,
		})
	}

	logger.Info("Match disabled")
	return nil
}

// ListMatches returns the user's active matches, most recent first, with
// conversation previews.
func (s *MatchService) ListMatches(ctx context.Context, userID string, limit, offset int) ([]MatchSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.user1_id, m.user2_id, m.status, m.compatibility_score,
		       m.conversation_id, m.created_at, m.updated_at,
		       u.id, u.name, c.last_message_at, c.last_message_preview
		FROM matches m
		JOIN users u ON u.id = CASE WHEN m.user1_id = $1 THEN m.user2_id ELSE m.user1_id END
		JOIN conversations c ON c.id = m.conversation_id
		WHERE (m.user1_id = $1 OR m.user2_id = $1) AND m.status = $2
		ORDER BY COALESCE(c.last_message_at, m.created_at) DESC
		LIMIT $3 OFFSET $4
	`, userID, database.MatchStatusActive, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var summaries []MatchSummary
	for rows.Next() {
		var s MatchSummary
		err := rows.Scan(
			&s.Match.ID, &s.Match.User1ID, &s.Match.User2ID, &s.Match.Status,
			&s.Match.CompatibilityScore, &s.Match.ConversationID,
			&s.Match.CreatedAt, &s.Match.UpdatedAt,
			&s.CounterpartID, &s.CounterpartName,
			&s.LastMessageAt, &s.LastMessagePreview,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match summary: %w", err)
		}
		s.ConversationID = s.Match.ConversationID
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}

	return summaries, nil
}
