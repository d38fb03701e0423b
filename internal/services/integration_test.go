package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/astromatch/astromatch/internal/astro"
	"github.com/astromatch/astromatch/internal/cache"
	"github.com/astromatch/astromatch/internal/compat"
	"github.com/astromatch/astromatch/internal/database"
	apperrors "github.com/astromatch/astromatch/internal/errors"
	"github.com/astromatch/astromatch/internal/questionnaire"
)

type testEnv struct {
	db         *database.DB
	redis      *cache.RedisService
	users      *UserService
	exclusions *ExclusionService
	discovery  *DiscoveryService
	matches    *MatchService
	requests   *RequestService
	invites    *InviteService
	cache      *compat.Cache
}

func startPostgres(t *testing.T, ctx context.Context) *database.DB {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "astromatch",
			"POSTGRES_PASSWORD": "astromatch",
			"POSTGRES_DB":       "astromatch_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := database.NewConnection(database.Config{
		Host:     host,
		Port:     mappedPort.Port(),
		User:     "astromatch",
		Password: "astromatch",
		DBName:   "astromatch_test",
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(ctx))
	return db
}

func newTestEnv(t *testing.T, ctx context.Context) *testEnv {
	t.Helper()

	db := startPostgres(t, ctx)

	mr := miniredis.RunT(t)
	redisSvc := cache.NewRedisServiceFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { redisSvc.Close() })

	env := &testEnv{db: db, redis: redisSvc}
	env.users = NewUserService(db, nil)
	scorer := compat.NewScorer(env.users, time.Second)
	env.cache = compat.NewCache(redisSvc, scorer, time.Hour)
	env.users = NewUserService(db, env.cache)
	env.exclusions = NewExclusionService(db, redisSvc, time.Minute)
	env.discovery = NewDiscoveryService(db, env.exclusions, env.cache)
	env.matches = NewMatchService(db, env.cache, NewProgressLedger(db), env.exclusions, nil)
	env.requests = NewRequestService(db, env.cache, env.matches, env.exclusions, nil, 72*time.Hour)
	env.invites = NewInviteService(db, 1, 25)
	return env
}

func (e *testEnv) seedUser(t *testing.T, ctx context.Context, name, gender string, prefs []string) string {
	t.Helper()

	id := uuid.New().String()
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO users (id, name, age, gender, gender_preferences, zodiac_sign,
		                   subscription_tier, profile_complete)
		VALUES ($1, $2, 30, $3, $4, 'aries', 'free', TRUE)
	`, id, name, gender, pq.Array(prefs))
	require.NoError(t, err)
	return id
}

func candidateIDs(candidates []Candidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.User.ID
	}
	return ids
}

func TestMatchingFlowsIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	env := newTestEnv(t, ctx)

	t.Run("exclusion set and discovery", func(t *testing.T) {
		requester := env.seedUser(t, ctx, "requester", "female", []string{"any"})
		swiped := env.seedUser(t, ctx, "swiped", "male", []string{"any"})
		blocker := env.seedUser(t, ctx, "blocker", "male", []string{"any"})
		pendingTarget := env.seedUser(t, ctx, "pending-target", "male", []string{"any"})
		visible := env.seedUser(t, ctx, "visible", "male", []string{"any"})

		require.NoError(t, env.exclusions.RecordSwipe(ctx, requester, swiped, database.SwipeTypePass))
		require.NoError(t, env.exclusions.RecordBlock(ctx, blocker, requester))
		_, err := env.requests.Create(ctx, requester, pendingTarget)
		require.NoError(t, err)

		set, err := env.exclusions.BuildExclusionSet(ctx, requester)
		require.NoError(t, err)
		for _, id := range []string{requester, swiped, blocker, pendingTarget} {
			assert.Contains(t, set, id)
		}
		assert.NotContains(t, set, visible)

		ids := candidateIDs(env.discovery.GetCandidates(ctx, requester, Filters{}, Page{Limit: 50}))
		assert.Contains(t, ids, visible)
		assert.NotContains(t, ids, swiped)
		assert.NotContains(t, ids, blocker)
		assert.NotContains(t, ids, pendingTarget)
	})

	t.Run("bidirectional gender preference", func(t *testing.T) {
		requester := env.seedUser(t, ctx, "pref-requester", "female", []string{"male"})
		mutualFit := env.seedUser(t, ctx, "mutual-fit", "male", []string{"female"})
		wrongGender := env.seedUser(t, ctx, "wrong-gender", "female", []string{"female"})
		rejectsRequester := env.seedUser(t, ctx, "rejects-requester", "male", []string{"male"})

		ids := candidateIDs(env.discovery.GetCandidates(ctx, requester, Filters{}, Page{Limit: 50}))
		assert.Contains(t, ids, mutualFit)
		assert.NotContains(t, ids, wrongGender)
		assert.NotContains(t, ids, rejectsRequester)
	})

	t.Run("auto-match on mutual requests", func(t *testing.T) {
		alice := env.seedUser(t, ctx, "alice", "female", []string{"any"})
		bob := env.seedUser(t, ctx, "bob", "male", []string{"any"})

		first, err := env.requests.Create(ctx, alice, bob)
		require.NoError(t, err)
		require.False(t, first.AutoMatched)
		require.NotNil(t, first.Request)

		second, err := env.requests.Create(ctx, bob, alice)
		require.NoError(t, err)
		require.True(t, second.AutoMatched)
		require.NotNil(t, second.Match)

		low, high := database.CanonicalPair(alice, bob)
		assert.Equal(t, low, second.Match.User1ID)
		assert.Equal(t, high, second.Match.User2ID)
		assert.Less(t, second.Match.User1ID, second.Match.User2ID)

		var matchCount, convCount int
		require.NoError(t, env.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM matches WHERE user1_id = $1 AND user2_id = $2`, low, high,
		).Scan(&matchCount))
		require.NoError(t, env.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM conversations WHERE participant1_id = $1 AND participant2_id = $2`, low, high,
		).Scan(&convCount))
		assert.Equal(t, 1, matchCount)
		assert.Equal(t, 1, convCount)

		var status string
		require.NoError(t, env.db.QueryRowContext(ctx,
			`SELECT status FROM match_requests WHERE id = $1`, first.Request.ID,
		).Scan(&status))
		assert.Equal(t, database.RequestStatusFulfilled, status)

		// A third attempt in either direction conflicts with the fulfilled pair
		// having an active match; re-confirming converges on the same row.
		again, err := env.matches.Confirm(ctx, bob, alice, nil)
		require.NoError(t, err)
		assert.Equal(t, second.Match.ID, again.ID)
	})

	t.Run("respond confirm and reject", func(t *testing.T) {
		carol := env.seedUser(t, ctx, "carol", "female", []string{"any"})
		dave := env.seedUser(t, ctx, "dave", "male", []string{"any"})
		erin := env.seedUser(t, ctx, "erin", "female", []string{"any"})

		created, err := env.requests.Create(ctx, carol, dave)
		require.NoError(t, err)

		// The requester cannot confirm their own request.
		_, err = env.requests.Respond(ctx, created.Request.ID, carol, DecisionConfirm)
		assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))

		match, err := env.requests.Respond(ctx, created.Request.ID, dave, DecisionConfirm)
		require.NoError(t, err)
		require.NotNil(t, match)

		rejected, err := env.requests.Create(ctx, carol, erin)
		require.NoError(t, err)
		_, err = env.requests.Respond(ctx, rejected.Request.ID, erin, DecisionReject)
		require.NoError(t, err)

		// Rejecting an already rejected request is a no-op.
		_, err = env.requests.Respond(ctx, rejected.Request.ID, erin, DecisionReject)
		assert.NoError(t, err)

		// A rejected counterpart never resurfaces in discovery.
		ids := candidateIDs(env.discovery.GetCandidates(ctx, carol, Filters{}, Page{Limit: 50}))
		assert.NotContains(t, ids, erin)
	})

	t.Run("duplicate request conflicts", func(t *testing.T) {
		frank := env.seedUser(t, ctx, "frank", "male", []string{"any"})
		grace := env.seedUser(t, ctx, "grace", "female", []string{"any"})

		_, err := env.requests.Create(ctx, frank, grace)
		require.NoError(t, err)

		_, err = env.requests.Create(ctx, frank, grace)
		assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConflict))

		_, err = env.requests.Create(ctx, frank, frank)
		assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("concurrent mutual requests yield one match", func(t *testing.T) {
		ivan := env.seedUser(t, ctx, "ivan", "male", []string{"any"})
		julia := env.seedUser(t, ctx, "julia", "female", []string{"any"})

		// Reverse-direction creates race for the same pair. The participant
		// row locks serialize them, so the second always observes the
		// first's pending row and auto-matches.
		var wg sync.WaitGroup
		results := make([]*CreateRequestResult, 2)
		errs := make([]error, 2)
		run := func(idx int, a, b string) {
			defer wg.Done()
			results[idx], errs[idx] = env.requests.Create(ctx, a, b)
		}
		wg.Add(2)
		go run(0, ivan, julia)
		go run(1, julia, ivan)
		wg.Wait()

		autoMatched := 0
		for i := range results {
			require.NoError(t, errs[i])
			if results[i].AutoMatched {
				autoMatched++
			}
		}
		assert.Equal(t, 1, autoMatched)

		low, high := database.CanonicalPair(ivan, julia)
		var matches, conversations, active int
		require.NoError(t, env.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM matches WHERE user1_id = $1 AND user2_id = $2`, low, high).Scan(&matches))
		require.NoError(t, env.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM conversations WHERE participant1_id = $1 AND participant2_id = $2`, low, high).Scan(&conversations))
		require.NoError(t, env.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM match_requests
			WHERE ((requester_id = $1 AND matched_user_id = $2)
			    OR (requester_id = $2 AND matched_user_id = $1))
			  AND status IN ('pending', 'confirmed')
		`, ivan, julia).Scan(&active))
		assert.Equal(t, 1, matches)
		assert.Equal(t, 1, conversations)
		assert.Equal(t, 0, active)
	})

	t.Run("concurrent duplicate requests admit one", func(t *testing.T) {
		kyle := env.seedUser(t, ctx, "kyle", "male", []string{"any"})
		lena := env.seedUser(t, ctx, "lena", "female", []string{"any"})

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			created   int
			conflicts int
		)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.requests.Create(ctx, kyle, lena)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					created++
				} else if apperrors.IsErrorType(err, apperrors.ErrorTypeConflict) {
					conflicts++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, created)
		assert.Equal(t, 1, conflicts)

		var pending int
		require.NoError(t, env.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM match_requests
			WHERE requester_id = $1 AND matched_user_id = $2 AND status = 'pending'
		`, kyle, lena).Scan(&pending))
		assert.Equal(t, 1, pending)
	})

	t.Run("request for unknown user is not found", func(t *testing.T) {
		mona := env.seedUser(t, ctx, "mona", "female", []string{"any"})

		_, err := env.requests.Create(ctx, mona, uuid.New().String())
		assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
	})

	t.Run("invite quota under concurrency", func(t *testing.T) {
		user := env.seedUser(t, ctx, "quota-user", "male", []string{"any"})

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			allowed int
		)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := env.invites.Consume(ctx, user)
				if err != nil {
					return
				}
				if res.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		// Free quota is 1 in this environment; only one caller may win.
		assert.Equal(t, 1, allowed)

		res, err := env.invites.Consume(ctx, user)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Equal(t, 0, res.RemainingToday)

		// Past a day boundary the quota resets to the full allowance.
		_, err = env.db.ExecContext(ctx,
			`UPDATE invite_quotas SET quota_date = quota_date - INTERVAL '1 day' WHERE user_id = $1`, user)
		require.NoError(t, err)

		res, err = env.invites.Consume(ctx, user)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 0, res.RemainingToday)
	})

	t.Run("unmatch soft-disables", func(t *testing.T) {
		henry := env.seedUser(t, ctx, "henry", "male", []string{"any"})
		iris := env.seedUser(t, ctx, "iris", "female", []string{"any"})

		match, err := env.matches.Confirm(ctx, henry, iris, nil)
		require.NoError(t, err)

		require.NoError(t, env.matches.Unmatch(ctx, henry, iris, "no longer interested"))

		var matchStatus, convStatus string
		require.NoError(t, env.db.QueryRowContext(ctx,
			`SELECT status FROM matches WHERE id = $1`, match.ID).Scan(&matchStatus))
		require.NoError(t, env.db.QueryRowContext(ctx,
			`SELECT status FROM conversations WHERE id = $1`, match.ConversationID).Scan(&convStatus))
		assert.Equal(t, database.MatchStatusUnmatched, matchStatus)
		assert.Equal(t, "disabled", convStatus)

		// Unmatching again finds no active match.
		err = env.matches.Unmatch(ctx, henry, iris, "again")
		assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))

		// The pair stays mutually excluded even after unmatching.
		ids := candidateIDs(env.discovery.GetCandidates(ctx, henry, Filters{}, Page{Limit: 50}))
		assert.NotContains(t, ids, iris)
	})

	t.Run("expiry sweep", func(t *testing.T) {
		jack := env.seedUser(t, ctx, "jack", "male", []string{"any"})
		kate := env.seedUser(t, ctx, "kate", "female", []string{"any"})

		created, err := env.requests.Create(ctx, jack, kate)
		require.NoError(t, err)

		_, err = env.db.ExecContext(ctx,
			`UPDATE match_requests SET created_at = NOW() - INTERVAL '100 hours' WHERE id = $1`,
			created.Request.ID)
		require.NoError(t, err)

		expired, err := env.requests.ExpirePending(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, expired, int64(1))

		var status string
		require.NoError(t, env.db.QueryRowContext(ctx,
			`SELECT status FROM match_requests WHERE id = $1`, created.Request.ID).Scan(&status))
		assert.Equal(t, database.RequestStatusExpired, status)
	})

	t.Run("chart and questionnaire round trip", func(t *testing.T) {
		user := env.seedUser(t, ctx, "chart-user", "female", []string{"any"})

		// Malformed payloads are rejected at the boundary.
		err := env.users.SaveNatalChart(ctx, user, astro.Chart{
			"Sun": astro.Placement{Sign: "nonsense", Degree: 3},
		})
		assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))

		require.NoError(t, env.users.SaveNatalChart(ctx, user, astro.Chart{
			"Sun": astro.Placement{Sign: "Aries", Degree: 0},
		}))

		loaded, err := env.users.NatalChart(ctx, user)
		require.NoError(t, err)
		require.Contains(t, loaded, "Sun")
		assert.InDelta(t, 0.0, loaded["Sun"].AbsoluteDegree, 0.001)

		require.NoError(t, env.users.SaveQuestionnaire(ctx, user, questionnaire.Answers{
			{Category: "values", Answer: "honesty"},
		}))
		answers, err := env.users.QuestionnaireAnswers(ctx, user)
		require.NoError(t, err)
		require.Len(t, answers, 1)
		assert.Equal(t, "honesty", answers[0].Answer)
	})
}
