package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/astromatch/astromatch/internal/astro"
	"github.com/astromatch/astromatch/internal/compat"
	"github.com/astromatch/astromatch/internal/database"
	"github.com/astromatch/astromatch/internal/errors"
	"github.com/astromatch/astromatch/internal/questionnaire"
	"github.com/astromatch/astromatch/internal/telemetry"
)

type User = database.User

// UserService is the read model for profiles plus the write boundary for
// chart and questionnaire payloads. Profile editing itself lives in an
// external service.
type UserService struct {
	db          *database.DB
	compatCache *compat.Cache
}

func NewUserService(db *database.DB, compatCache *compat.Cache) *UserService {
	return &UserService{db: db, compatCache: compatCache}
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*User, error) {
	user := &User{}
	query := `
		SELECT id, name, age, gender, gender_preferences, zodiac_sign,
		       activity_preference, latitude, longitude, subscription_tier,
		       profile_complete, created_at, updated_at
		FROM users WHERE id = $1
	`

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Age, &user.Gender,
		pq.Array(&user.GenderPreferences), &user.ZodiacSign,
		&user.ActivityPreference, &user.Latitude, &user.Longitude,
		&user.SubscriptionTier, &user.ProfileComplete,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("user")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// SaveNatalChart validates and stores the user's chart. Malformed placements
// are rejected here so scoring never sees them. Every cached pair score for
// the user is invalidated afterwards.
func (s *UserService) SaveNatalChart(ctx context.Context, userID string, chart astro.Chart) error {
	logger := telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
		"operation": "save_natal_chart",
		"user_id":   userID,
	})

	if len(chart) == 0 {
		return errors.NewValidationError("placements", "natal chart must contain at least one placement")
	}
	if err := chart.Validate(); err != nil {
		return errors.NewValidationError("placements", err.Error())
	}

	query := `
		INSERT INTO natal_charts (user_id, placements, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET placements = $2, updated_at = $3
	`
	if _, err := s.db.ExecContext(ctx, query, userID, database.ChartPlacements(chart), time.Now()); err != nil {
		logger.WithError(err).Error("Failed to save natal chart")
		return fmt.Errorf("failed to save natal chart: %w", err)
	}

	if s.compatCache != nil {
		s.compatCache.InvalidateUser(ctx, userID)
	}

	logger.Info("Natal chart saved")
	return nil
}

// SaveQuestionnaire validates and stores the user's ordered answer sequence.
func (s *UserService) SaveQuestionnaire(ctx context.Context, userID string, answers questionnaire.Answers) error {
	logger := telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
		"operation": "save_questionnaire",
		"user_id":   userID,
	})

	if len(answers) == 0 {
		return errors.NewValidationError("answers", "questionnaire must contain at least one answer")
	}
	if err := answers.Validate(); err != nil {
		return errors.NewValidationError("answers", err.Error())
	}

	query := `
		INSERT INTO questionnaire_responses (user_id, answers, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET answers = $2, updated_at = $3
	`
	if _, err := s.db.ExecContext(ctx, query, userID, database.AnswerList(answers), time.Now()); err != nil {
		logger.WithError(err).Error("Failed to save questionnaire")
		return fmt.Errorf("failed to save questionnaire: %w", err)
	}

	if s.compatCache != nil {
		s.compatCache.InvalidateUser(ctx, userID)
	}

	logger.Info("Questionnaire saved")
	return nil
}

// NatalChart loads the stored chart, returning nil when the user has none.
// Absence is not an error; scoring degrades to the neutral default.
func (s *UserService) NatalChart(ctx context.Context, userID string) (astro.Chart, error) {
	var placements database.ChartPlacements
	err := s.db.QueryRowContext(ctx,
		`SELECT placements FROM natal_charts WHERE user_id = $1`, userID,
	).Scan(&placements)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load natal chart: %w", err)
	}
	return astro.Chart(placements), nil
}

// QuestionnaireAnswers loads the stored answer sequence, nil when absent.
func (s *UserService) QuestionnaireAnswers(ctx context.Context, userID string) (questionnaire.Answers, error) {
	var answers database.AnswerList
	err := s.db.QueryRowContext(ctx,
		`SELECT answers FROM questionnaire_responses WHERE user_id = $1`, userID,
	).Scan(&answers)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load questionnaire answers: %w", err)
	}
	return questionnaire.Answers(answers), nil
}
