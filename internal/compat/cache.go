package compat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/astromatch/astromatch/internal/astro"
	"github.com/astromatch/astromatch/internal/cache"
	"github.com/astromatch/astromatch/internal/database"
	"github.com/astromatch/astromatch/internal/questionnaire"
	"github.com/astromatch/astromatch/internal/telemetry"
)

// Entry is the cached pairwise score, keyed by the canonical user pair.
// The engine components ride along so a warm hit serves the same payload
// as a live computation. Entries are advisory; a missing or stale entry
// just means recompute.
type Entry struct {
	User1ID       string               `json:"user1_id"`
	User2ID       string               `json:"user2_id"`
	Score         float64              `json:"score"`
	Grade         string               `json:"grade"`
	Astro         astro.Result         `json:"astro"`
	Questionnaire questionnaire.Result `json:"questionnaire"`
	ComputedAt    time.Time            `json:"computed_at"`
	ExpiresAt     time.Time            `json:"expires_at"`
}

// Cache is a Redis-backed read-through store for pairwise scores.
type Cache struct {
	redis  *cache.RedisService
	scorer *Scorer
	ttl    time.Duration
}

func NewCache(redis *cache.RedisService, scorer *Scorer, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Cache{redis: redis, scorer: scorer, ttl: ttl}
}

func pairKey(userIDA, userIDB string) string {
	low, high := database.CanonicalPair(userIDA, userIDB)
	return fmt.Sprintf("compat:%s:%s", low, high)
}

// Lookup returns the cached entry for the pair, or nil on a miss. Redis
// failures degrade to a miss.
func (c *Cache) Lookup(ctx context.Context, userIDA, userIDB string) *Entry {
	var entry Entry
	err := c.redis.Get(ctx, pairKey(userIDA, userIDB), &entry)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
				"operation": "compatibility_cache_lookup",
				"user_a":    userIDA,
				"user_b":    userIDB,
			}).WithError(err).Warn("Compatibility cache lookup failed, treating as miss")
		}
		return nil
	}
	if time.Now().After(entry.ExpiresAt) {
		return nil
	}
	return &entry
}

// Score returns the pair's compatibility score, pulling through to a live
// computation on a cache miss and storing the result.
func (c *Cache) Score(ctx context.Context, userIDA, userIDB string) Score {
	if entry := c.Lookup(ctx, userIDA, userIDB); entry != nil {
		return Score{
			Overall:       entry.Score,
			Grade:         entry.Grade,
			Recommended:   entry.Score >= RecommendedThreshold,
			Astro:         entry.Astro,
			Questionnaire: entry.Questionnaire,
		}
	}

	score := c.scorer.Compute(ctx, userIDA, userIDB)
	c.Store(ctx, userIDA, userIDB, score)
	return score
}

// Store writes the pair's score with a fixed forward expiry. Failures are
// logged and swallowed; the cache is best-effort.
func (c *Cache) Store(ctx context.Context, userIDA, userIDB string, score Score) {
	low, high := database.CanonicalPair(userIDA, userIDB)
	now := time.Now()
	entry := Entry{
		User1ID:       low,
		User2ID:       high,
		Score:         score.Overall,
		Grade:         score.Grade,
		Astro:         score.Astro,
		Questionnaire: score.Questionnaire,
		ComputedAt:    now,
		ExpiresAt:     now.Add(c.ttl),
	}

	if err := c.redis.Set(ctx, pairKey(low, high), entry, c.ttl); err != nil {
		telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
			"operation": "compatibility_cache_store",
			"user_a":    low,
			"user_b":    high,
		}).WithError(err).Warn("Failed to store compatibility score")
	}
}

// InvalidateUser drops every cached score involving the user. Fired when
// the user's chart or questionnaire data changes, since all of their pair
// scores are stale after that.
func (c *Cache) InvalidateUser(ctx context.Context, userID string) {
	for _, pattern := range []string{
		fmt.Sprintf("compat:%s:*", userID),
		fmt.Sprintf("compat:*:%s", userID),
	} {
		if _, err := c.redis.DeletePattern(ctx, pattern); err != nil {
			telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
				"operation": "compatibility_cache_invalidate_user",
				"user_id":   userID,
			}).WithError(err).Warn("Failed to invalidate compatibility cache entries")
		}
	}
}

// Invalidate drops the cached score for a pair. Fired when chart or
// questionnaire data changes for either user.
func (c *Cache) Invalidate(ctx context.Context, userIDA, userIDB string) {
	if err := c.redis.Delete(ctx, pairKey(userIDA, userIDB)); err != nil {
		telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
			"operation": "compatibility_cache_invalidate",
			"user_a":    userIDA,
			"user_b":    userIDB,
		}).WithError(err).Warn("Failed to invalidate compatibility cache entry")
	}
}
