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

type MatchRequest = database.MatchRequest

// Decisions accepted by Respond.
const (
	DecisionConfirm = "confirm"
	DecisionReject  = "reject"
)

// CreateRequestResult reports either the new pending request or the match
// produced by the auto-match path.
type CreateRequestResult struct {
	Request     *MatchRequest `json:"request,omitempty"`
	AutoMatched bool          `json:"auto_matched"`
	Match       *Match        `json:"match,omitempty"`
}

// RequestService drives the match request lifecycle:
// pending -> confirmed/rejected/expired, and confirmed -> fulfilled once the
// match row exists.
type RequestService struct {
	db            *database.DB
	compatCache   *compat.Cache
	matches       *MatchService
	exclusions    *ExclusionService
	notifications *notification.Queue
	requestTTL    time.Duration
}

func NewRequestService(db *database.DB, compatCache *compat.Cache, matches *MatchService, exclusions *ExclusionService, notifications *notification.Queue, requestTTL time.Duration) *RequestService {
	if requestTTL <= 0 {
		requestTTL = 72 * time.Hour
	}
	return &RequestService{
		db:            db,
		compatCache:   compatCache,
		matches:       matches,
		exclusions:    exclusions,
		notifications: notifications,
		requestTTL:    requestTTL,
	}
}

// Create expresses interest from requester to target. If the target already
// has a pending request for the requester, the two requests are mutual and
// the pair proceeds straight into match confirmation with no second
// confirmation step.
func (s *RequestService) Create(ctx context.Context, requesterID, targetID string) (*CreateRequestResult, error) {
	if requesterID == targetID {
		return nil, errors.NewValidationError("target_id", "cannot request a match with yourself")
	}

	logger := telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
		"operation":    "create_match_request",
		"requester_id": requesterID,
		"target_id":    targetID,
	})

	score := s.compatCache.Score(ctx, requesterID, targetID)

	var (
		request   *MatchRequest
		reverseID string
	)
	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		// Take the pair's user rows in canonical order first. The request
		// rows alone cannot serialize two first-time creates: with no row
		// yet, both FOR UPDATE scans come back empty and both inserts land.
		low, high := database.CanonicalPair(requesterID, targetID)
		var locked int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM (
				SELECT id FROM users WHERE id IN ($1, $2) ORDER BY id FOR UPDATE
			) participants
		`, low, high).Scan(&locked)
		if err != nil {
			return fmt.Errorf("failed to lock participants: %w", err)
		}
		if locked != 2 {
			return errors.NewNotFoundError("user")
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT id, requester_id, status FROM match_requests
			WHERE (requester_id = $1 AND matched_user_id = $2)
			   OR (requester_id = $2 AND matched_user_id = $1)
			FOR UPDATE
		`, requesterID, targetID)
		if err != nil {
			return fmt.Errorf("failed to check existing requests: %w", err)
		}

		var reversePendingID string
		for rows.Next() {
			var id, reqID, status string
			if err := rows.Scan(&id, &reqID, &status); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan existing request: %w", err)
			}
			switch status {
			case database.RequestStatusPending:
				if reqID == requesterID {
					rows.Close()
					return errors.NewConflictError("an active match request already exists for this pair")
				}
				reversePendingID = id
			case database.RequestStatusConfirmed:
				rows.Close()
				return errors.NewConflictError("an active match request already exists for this pair")
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating existing requests: %w", err)
		}

		if reversePendingID != "" {
			// Mutual interest: confirm the target's earlier request.
			_, err := tx.ExecContext(ctx, `
				UPDATE match_requests SET status = $1, responded_at = $2 WHERE id = $3
			`, database.RequestStatusConfirmed, time.Now(), reversePendingID)
			if err != nil {
				return fmt.Errorf("failed to confirm reverse request: %w", err)
			}
			reverseID = reversePendingID
			return nil
		}

		now := time.Now()
		request = &MatchRequest{
			ID:                 uuid.New().String(),
			RequesterID:        requesterID,
			MatchedUserID:      targetID,
			Status:             database.RequestStatusPending,
			CompatibilityScore: &score.Overall,
			CreatedAt:          now,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO match_requests (id, requester_id, matched_user_id, status, compatibility_score, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, request.ID, request.RequesterID, request.MatchedUserID, request.Status, score.Overall, now)
		if err != nil {
			return fmt.Errorf("failed to create match request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.exclusions.Invalidate(ctx, requesterID, targetID)

	if reverseID != "" {
		match, err := s.matches.Confirm(ctx, requesterID, targetID, &reverseID)
		if err != nil {
			logger.WithError(err).Error("Auto-match confirmation failed")
			return nil, err
		}
		logger.WithField("match_id", match.ID).Info("Mutual requests auto-matched")
		return &CreateRequestResult{AutoMatched: true, Match: match}, nil
	}

	if s.notifications != nil {
		s.notifications.Enqueue(ctx, notification.Event{
			Type: notification.EventNewMatchRequest, UserID: targetID, ActorID: requesterID,
			Payload: map[string]interface{}{"request_id": request.ID},
		})
	}

	logger.WithField("request_id", request.ID).Info("Match request created")
	return &CreateRequestResult{Request: request}, nil
}

// Respond moves a pending request to confirmed or rejected. Only the target
// may confirm; either side may reject (the requester's reject is a
// cancellation). Rejecting an already rejected request is a no-op.
func (s *RequestService) Respond(ctx context.Context, requestID, responderID, decision string) (*Match, error) {
	if decision != DecisionConfirm && decision != DecisionReject {
		return nil, errors.NewValidationError("decision", fmt.Sprintf("unknown decision: %s", decision))
	}

	var (
		confirmed bool
		request   MatchRequest
	)
	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT id, requester_id, matched_user_id, status, created_at
			FROM match_requests WHERE id = $1
			FOR UPDATE
		`, requestID).Scan(
			&request.ID, &request.RequesterID, &request.MatchedUserID,
			&request.Status, &request.CreatedAt,
		)
		if err != nil {
			if err == sql.ErrNoRows {
				return errors.NewNotFoundError("match request")
			}
			return fmt.Errorf("failed to load match request: %w", err)
		}

		if responderID != request.RequesterID && responderID != request.MatchedUserID {
			return errors.NewValidationError("responder_id", "responder is not a participant of this request")
		}
		if decision == DecisionConfirm && responderID != request.MatchedUserID {
			return errors.NewValidationError("decision", "only the requested user can confirm")
		}

		switch request.Status {
		case database.RequestStatusPending:
		case database.RequestStatusRejected:
			if decision == DecisionReject {
				return nil
			}
			return errors.NewConflictError("request was already rejected")
		default:
			return errors.NewConflictError(fmt.Sprintf("request is not pending (status: %s)", request.Status))
		}

		next := database.RequestStatusRejected
		if decision == DecisionConfirm {
			next = database.RequestStatusConfirmed
			confirmed = true
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE match_requests SET status = $1, responded_at = $2 WHERE id = $3
		`, next, time.Now(), requestID)
		if err != nil {
			return fmt.Errorf("failed to update match request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.exclusions.Invalidate(ctx, request.RequesterID, request.MatchedUserID)

	if !confirmed {
		return nil, nil
	}
	return s.matches.Confirm(ctx, request.RequesterID, request.MatchedUserID, &requestID)
}

// Delete removes the requester's own request while it is still pending or
// rejected. Confirmed or fulfilled requests stay as history.
func (s *RequestService) Delete(ctx context.Context, requestID, requesterID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM match_requests
		WHERE id = $1 AND requester_id = $2 AND status IN ($3, $4)
	`, requestID, requesterID, database.RequestStatusPending, database.RequestStatusRejected)
	if err != nil {
		return fmt.Errorf("failed to delete match request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return errors.NewNotFoundError("match request")
	}

	s.exclusions.Invalidate(ctx, requesterID)
	return nil
}

// ExpirePending transitions pending requests older than the configured
// window to expired and returns how many were swept.
func (s *RequestService) ExpirePending(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.requestTTL)

	res, err := s.db.ExecContext(ctx, `
		UPDATE match_requests SET status = $1, responded_at = $2
		WHERE status = $3 AND created_at < $4
	`, database.RequestStatusExpired, time.Now(), database.RequestStatusPending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending requests: %w", err)
	}
	return res.RowsAffected()
}

// StartExpirySweep runs ExpirePending on the given interval until ctx is
// cancelled.
func (s *RequestService) StartExpirySweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				expired, err := s.ExpirePending(ctx)
				logger := telemetry.LogFromContext(ctx).WithField("operation", "request_expiry_sweep")
				if err != nil {
					logger.WithError(err).Error("Expiry sweep failed")
					continue
				}
				if expired > 0 {
					logger.WithField("expired", expired).Info("Expired stale match requests")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
