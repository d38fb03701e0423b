package database

import (
	"context"
	"fmt"

	"github.com/astromatch/astromatch/internal/telemetry"
)

// Migrate applies the schema idempotently. Statements only create objects
// that do not exist yet, so running it at every startup is safe.
func (db *DB) Migrate(ctx context.Context) error {
	logger := telemetry.LogFromContext(ctx).WithField("operation", "database_migration")
	logger.Info("Applying database schema")

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			age INT NOT NULL,
			gender TEXT NOT NULL,
			gender_preferences TEXT[] NOT NULL DEFAULT '{}',
			zodiac_sign TEXT NOT NULL DEFAULT '',
			activity_preference TEXT NOT NULL DEFAULT '',
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			subscription_tier TEXT NOT NULL DEFAULT 'free',
			profile_complete BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS natal_charts (
			user_id TEXT PRIMARY KEY REFERENCES users(id),
			placements JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS questionnaire_responses (
			user_id TEXT PRIMARY KEY REFERENCES users(id),
			answers JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS swipes (
			swiper_id TEXT NOT NULL,
			swiped_id TEXT NOT NULL,
			type TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (swiper_id, swiped_id)
		)`,
		`CREATE TABLE IF NOT EXISTS blocks (
			blocker_id TEXT NOT NULL,
			blocked_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (blocker_id, blocked_id)
		)`,
		`CREATE TABLE IF NOT EXISTS match_requests (
			id TEXT PRIMARY KEY,
			requester_id TEXT NOT NULL,
			matched_user_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			compatibility_score DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			responded_at TIMESTAMPTZ,
			resulting_match_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_requests_requester
			ON match_requests (requester_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_match_requests_matched_user
			ON match_requests (matched_user_id, status)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			participant1_id TEXT NOT NULL,
			participant2_id TEXT NOT NULL,
			match_id TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			last_message_at TIMESTAMPTZ,
			last_message_preview TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT conversations_pair_order CHECK (participant1_id < participant2_id),
			CONSTRAINT conversations_pair_unique UNIQUE (participant1_id, participant2_id)
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			user1_id TEXT NOT NULL,
			user2_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			compatibility_score DOUBLE PRECISION NOT NULL DEFAULT 50,
			conversation_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT matches_pair_order CHECK (user1_id < user2_id),
			CONSTRAINT matches_pair_unique UNIQUE (user1_id, user2_id)
		)`,
		`CREATE TABLE IF NOT EXISTS invite_quotas (
			user_id TEXT PRIMARY KEY,
			remaining INT NOT NULL,
			quota_date DATE NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS progress_events (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			points INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_discovery
			ON users (profile_complete, gender, age)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.WithError(err).Error("Migration statement failed")
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	logger.Info("Database schema applied")
	return nil
}
