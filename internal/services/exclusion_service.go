package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/astromatch/astromatch/internal/cache"
	"github.com/astromatch/astromatch/internal/database"
	apperrors "github.com/astromatch/astromatch/internal/errors"
	"github.com/astromatch/astromatch/internal/telemetry"
)

// ExclusionService computes the set of user ids that must never surface as
// candidates for a requester: self, everyone swiped on, both sides of any
// block, match counterparts regardless of status, and counterparts of
// pending, confirmed, or rejected requests in either direction.
type ExclusionService struct {
	db    *database.DB
	redis *cache.RedisService
	ttl   time.Duration
}

func NewExclusionService(db *database.DB, redis *cache.RedisService, ttl time.Duration) *ExclusionService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ExclusionService{db: db, redis: redis, ttl: ttl}
}

func exclusionKey(userID string) string {
	return fmt.Sprintf("exclude:%s", userID)
}

// BuildExclusionSet returns the exclusion set for the user, served from the
// short-lived cache when warm. Cache failures fall through to the database.
func (s *ExclusionService) BuildExclusionSet(ctx context.Context, userID string) (map[string]struct{}, error) {
	if s.redis != nil {
		var cached []string
		err := s.redis.Get(ctx, exclusionKey(userID), &cached)
		if err == nil {
			return toSet(cached), nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
				"operation": "exclusion_cache_get",
				"user_id":   userID,
			}).WithError(err).Warn("Exclusion cache unavailable, querying database")
		}
	}

	ids, err := s.queryExclusions(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, exclusionKey(userID), ids, s.ttl); err != nil {
			telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
				"operation": "exclusion_cache_set",
				"user_id":   userID,
			}).WithError(err).Warn("Failed to cache exclusion set")
		}
	}

	return toSet(ids), nil
}

func (s *ExclusionService) queryExclusions(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT $1::text
		UNION
		SELECT swiped_id FROM swipes WHERE swiper_id = $1
		UNION
		SELECT blocked_id FROM blocks WHERE blocker_id = $1
		UNION
		SELECT blocker_id FROM blocks WHERE blocked_id = $1
		UNION
		SELECT user2_id FROM matches WHERE user1_id = $1
		UNION
		SELECT user1_id FROM matches WHERE user2_id = $1
		UNION
		SELECT matched_user_id FROM match_requests
		WHERE requester_id = $1 AND status IN ('pending', 'confirmed', 'rejected')
		UNION
		SELECT requester_id FROM match_requests
		WHERE matched_user_id = $1 AND status IN ('pending', 'confirmed', 'rejected')
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to build exclusion set: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan exclusion id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exclusion ids: %w", err)
	}

	return ids, nil
}

// Invalidate drops the cached exclusion set. Every write path touching
// swipes, blocks, matches, or match requests calls this so a newly excluded
// user disappears from discovery without waiting for the TTL.
func (s *ExclusionService) Invalidate(ctx context.Context, userIDs ...string) {
	if s.redis == nil || len(userIDs) == 0 {
		return
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = exclusionKey(id)
	}

	if err := s.redis.Delete(ctx, keys...); err != nil {
		telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
			"operation": "exclusion_cache_invalidate",
			"user_ids":  userIDs,
		}).WithError(err).Warn("Failed to invalidate exclusion cache")
	}
}

// RecordSwipe appends a swipe edge. Repeated swipes on the same target are
// ignored; the first write wins.
func (s *ExclusionService) RecordSwipe(ctx context.Context, swiperID, swipedID, swipeType string) error {
	if swiperID == swipedID {
		return apperrors.NewValidationError("swiped_id", "cannot swipe on yourself")
	}
	if swipeType != database.SwipeTypeLike && swipeType != database.SwipeTypePass {
		return apperrors.NewValidationError("type", fmt.Sprintf("unknown swipe type: %s", swipeType))
	}

	query := `
		INSERT INTO swipes (swiper_id, swiped_id, type, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (swiper_id, swiped_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, swiperID, swipedID, swipeType, time.Now()); err != nil {
		return fmt.Errorf("failed to record swipe: %w", err)
	}

	s.Invalidate(ctx, swiperID)
	return nil
}

// RecordBlock writes a block edge. Blocks cut both ways, so both users'
// cached exclusion sets are invalidated.
func (s *ExclusionService) RecordBlock(ctx context.Context, blockerID, blockedID string) error {
	if blockerID == blockedID {
		return apperrors.NewValidationError("blocked_id", "cannot block yourself")
	}

	query := `
		INSERT INTO blocks (blocker_id, blocked_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (blocker_id, blocked_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, blockerID, blockedID, time.Now()); err != nil {
		return fmt.Errorf("failed to record block: %w", err)
	}

	s.Invalidate(ctx, blockerID, blockedID)
	return nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
