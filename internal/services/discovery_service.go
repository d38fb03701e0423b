package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/astromatch/astromatch/internal/astro"
	"github.com/astromatch/astromatch/internal/compat"
	"github.com/astromatch/astromatch/internal/database"
	"github.com/astromatch/astromatch/internal/telemetry"
)

// candidateFetchCap bounds how many rows the pipeline pulls before ranking.
const candidateFetchCap = 500

// Preference values treated as wildcards in the bidirectional gender check.
var genderWildcards = []string{"any", "both"}

// Filters are the optional discovery constraints. A zero value or "any"
// disables the corresponding filter.
type Filters struct {
	ZodiacSign    string  `json:"zodiac_sign"`
	MinAge        int     `json:"min_age"`
	MaxAge        int     `json:"max_age"`
	MaxDistanceKm float64 `json:"max_distance_km"`
	ActivityType  string  `json:"activity_type"`
}

type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Candidate is one ranked discovery result. CachedScore comes from the
// compatibility cache when warm, otherwise the neutral default; the feed
// never live-scores a page of candidates.
type Candidate struct {
	User        User     `json:"user"`
	CachedScore float64  `json:"cached_score"`
	ScoreGrade  string   `json:"score_grade"`
	DistanceKm  *float64 `json:"distance_km,omitempty"`
}

// DiscoveryService runs the candidate filter pipeline. It is read-only and
// holds no locks; stale results are acceptable for a discovery feed.
type DiscoveryService struct {
	db          *database.DB
	exclusions  *ExclusionService
	compatCache *compat.Cache
}

func NewDiscoveryService(db *database.DB, exclusions *ExclusionService, compatCache *compat.Cache) *DiscoveryService {
	return &DiscoveryService{db: db, exclusions: exclusions, compatCache: compatCache}
}

// GetCandidates returns a ranked, filtered page of candidates for the
// requester. Any unexpected failure degrades to an empty page; discovery is
// best-effort, not a critical write path.
func (s *DiscoveryService) GetCandidates(ctx context.Context, requesterID string, filters Filters, page Page) []Candidate {
	logger := telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
		"operation": "get_candidates",
		"user_id":   requesterID,
	})

	candidates, err := s.getCandidates(ctx, requesterID, filters, page)
	if err != nil {
		logger.WithError(err).Error("Candidate pipeline failed, returning empty page")
		return []Candidate{}
	}
	return candidates
}

func (s *DiscoveryService) getCandidates(ctx context.Context, requesterID string, filters Filters, page Page) ([]Candidate, error) {
	requester, err := s.loadRequester(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	excluded, err := s.exclusions.BuildExclusionSet(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	users, err := s.queryCandidates(ctx, requester, filters, excluded)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(users))
	for _, u := range users {
		c := Candidate{User: u, CachedScore: compat.NeutralScore}
		c.ScoreGrade = astro.Grade(c.CachedScore)

		if entry := s.compatCache.Lookup(ctx, requesterID, u.ID); entry != nil {
			c.CachedScore = entry.Score
			c.ScoreGrade = entry.Grade
		}

		if d := distanceBetween(requester, &u); d != nil {
			if filters.MaxDistanceKm > 0 && *d > filters.MaxDistanceKm {
				continue
			}
			c.DistanceKm = d
		}

		candidates = append(candidates, c)
	}

	rankCandidates(candidates)
	return paginate(candidates, page), nil
}

func (s *DiscoveryService) loadRequester(ctx context.Context, requesterID string) (*User, error) {
	user := &User{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, gender, gender_preferences, latitude, longitude
		FROM users WHERE id = $1
	`, requesterID).Scan(
		&user.ID, &user.Gender, pq.Array(&user.GenderPreferences),
		&user.Latitude, &user.Longitude,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load requester: %w", err)
	}
	return user, nil
}

func (s *DiscoveryService) queryCandidates(ctx context.Context, requester *User, filters Filters, excluded map[string]struct{}) ([]User, error) {
	query := `
		SELECT u.id, u.name, u.age, u.gender, u.gender_preferences,
		       u.zodiac_sign, u.activity_preference, u.latitude, u.longitude,
		       u.subscription_tier, u.profile_complete, u.created_at, u.updated_at
		FROM users u
		WHERE u.id != $1
		  AND u.profile_complete = TRUE
		  AND NOT (u.id = ANY($2))
	`
	args := []interface{}{requester.ID, pq.Array(setToSlice(excluded))}

	// Bidirectional preference: the candidate must match what the requester
	// wants AND the requester must match what the candidate wants.
	if !acceptsAnyGender(requester.GenderPreferences) {
		args = append(args, pq.Array(requester.GenderPreferences))
		query += fmt.Sprintf(` AND u.gender = ANY($%d)`, len(args))
	}
	args = append(args, requester.Gender, pq.Array(genderWildcards))
	query += fmt.Sprintf(
		` AND (u.gender_preferences = '{}' OR $%d = ANY(u.gender_preferences) OR u.gender_preferences && $%d)`,
		len(args)-1, len(args),
	)

	if filters.MinAge > 0 {
		args = append(args, filters.MinAge)
		query += fmt.Sprintf(` AND u.age >= $%d`, len(args))
	}
	if filters.MaxAge > 0 {
		args = append(args, filters.MaxAge)
		query += fmt.Sprintf(` AND u.age <= $%d`, len(args))
	}
	if sign := strings.ToLower(strings.TrimSpace(filters.ZodiacSign)); sign != "" && sign != "any" {
		args = append(args, sign)
		query += fmt.Sprintf(` AND LOWER(u.zodiac_sign) = $%d`, len(args))
	}
	if activity := strings.ToLower(strings.TrimSpace(filters.ActivityType)); activity != "" && activity != "any" {
		args = append(args, activity)
		query += fmt.Sprintf(` AND LOWER(u.activity_preference) = $%d`, len(args))
	}

	args = append(args, candidateFetchCap)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		err := rows.Scan(
			&u.ID, &u.Name, &u.Age, &u.Gender, pq.Array(&u.GenderPreferences),
			&u.ZodiacSign, &u.ActivityPreference, &u.Latitude, &u.Longitude,
			&u.SubscriptionTier, &u.ProfileComplete, &u.CreatedAt, &u.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidates: %w", err)
	}

	return users, nil
}

// rankCandidates orders by subscription tier, then cached score descending,
// then distance ascending with unknown distances last, then recency.
func rankCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]

		if a.User.IsPremium() != b.User.IsPremium() {
			return a.User.IsPremium()
		}
		if a.CachedScore != b.CachedScore {
			return a.CachedScore > b.CachedScore
		}
		switch {
		case a.DistanceKm != nil && b.DistanceKm != nil && *a.DistanceKm != *b.DistanceKm:
			return *a.DistanceKm < *b.DistanceKm
		case a.DistanceKm != nil && b.DistanceKm == nil:
			return true
		case a.DistanceKm == nil && b.DistanceKm != nil:
			return false
		}
		return a.User.CreatedAt.After(b.User.CreatedAt)
	})
}

func paginate(candidates []Candidate, page Page) []Candidate {
	limit := page.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}

	if offset >= len(candidates) {
		return []Candidate{}
	}
	end := offset + limit
	if end > len(candidates) {
		end = len(candidates)
	}
	return candidates[offset:end]
}

func acceptsAnyGender(preferences []string) bool {
	if len(preferences) == 0 {
		return true
	}
	for _, p := range preferences {
		for _, w := range genderWildcards {
			if strings.EqualFold(p, w) {
				return true
			}
		}
	}
	return false
}

func distanceBetween(a, b *User) *float64 {
	if a.Latitude == nil || a.Longitude == nil || b.Latitude == nil || b.Longitude == nil {
		return nil
	}
	d := haversineKm(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude)
	return &d
}

// haversineKm computes the great-circle distance between two coordinates.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func setToSlice(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}
