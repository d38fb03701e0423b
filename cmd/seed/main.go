package main

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lib/pq"

	"github.com/astromatch/astromatch/internal/astro"
	"github.com/astromatch/astromatch/internal/config"
	"github.com/astromatch/astromatch/internal/database"
	"github.com/astromatch/astromatch/internal/questionnaire"
	"github.com/astromatch/astromatch/internal/services"
)

// Seeds a small deterministic demo population: profiles, natal charts, and
// questionnaire answers, plus a couple of swipes so discovery has exclusions
// to work against. Safe to re-run; every write is an upsert.

type seedUser struct {
	name     string
	age      int
	gender   string
	prefs    []string
	zodiac   string
	activity string
	tier     string
	lat, lon float64
	chart    astro.Chart
	answers  questionnaire.Answers
}

var demoUsers = []seedUser{
	{
		name: "Ada", age: 31, gender: "female", prefs: []string{"male"},
		zodiac: "aries", activity: "hiking", tier: "premium",
		lat: 52.52, lon: 13.405,
		chart: astro.Chart{
			"Sun":   {Sign: "aries", Degree: 12.5},
			"Moon":  {Sign: "cancer", Degree: 3.2},
			"Venus": {Sign: "taurus", Degree: 21.0},
			"Mars":  {Sign: "leo", Degree: 8.7},
		},
		answers: questionnaire.Answers{
			{Category: questionnaire.CategoryLifestyle, Answer: "hiking"},
			{Category: questionnaire.CategoryValues, Answer: "honesty"},
			{Category: questionnaire.CategoryGoals, Answer: "family"},
		},
	},
	{
		name: "Bruno", age: 33, gender: "male", prefs: []string{"female"},
		zodiac: "leo", activity: "hiking", tier: "free",
		lat: 52.50, lon: 13.42,
		chart: astro.Chart{
			"Sun":   {Sign: "leo", Degree: 14.0},
			"Moon":  {Sign: "pisces", Degree: 27.4},
			"Venus": {Sign: "virgo", Degree: 5.5},
			"Mars":  {Sign: "aries", Degree: 11.9},
		},
		answers: questionnaire.Answers{
			{Category: questionnaire.CategoryLifestyle, Answer: "hiking"},
			{Category: questionnaire.CategoryValues, Answer: "loyalty"},
			{Category: questionnaire.CategoryGoals, Answer: "family"},
		},
	},
	{
		name: "Carla", age: 28, gender: "female", prefs: []string{"any"},
		zodiac: "gemini", activity: "dancing", tier: "free",
		lat: 48.8566, lon: 2.3522,
		chart: astro.Chart{
			"Sun":  {Sign: "gemini", Degree: 2.1},
			"Moon": {Sign: "libra", Degree: 19.8},
		},
		answers: questionnaire.Answers{
			{Category: questionnaire.CategoryLifestyle, Answer: "dancing"},
			{Category: questionnaire.CategoryValues, Answer: "honesty"},
		},
	},
	{
		name: "Dmitri", age: 35, gender: "male", prefs: []string{"female"},
		zodiac: "scorpio", activity: "climbing", tier: "free",
		lat: 48.86, lon: 2.35,
		chart: astro.Chart{
			"Sun":  {Sign: "scorpio", Degree: 22.3},
			"Moon": {Sign: "capricorn", Degree: 9.0},
		},
		answers: questionnaire.Answers{
			{Category: questionnaire.CategoryLifestyle, Answer: "climbing"},
			{Category: questionnaire.CategoryValues, Answer: "ambition"},
		},
	},
}

// Stable IDs so repeated runs and external tooling agree on who is who.
func userID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("astromatch-seed:"+name)).String()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := config.Load()
	db, err := database.NewConnection(database.Config{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.Name,
		SSLMode:  cfg.DB.SSLMode,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Charts and answers go through the user service so the seed data is
	// held to the same validation as API writes.
	users := services.NewUserService(db, nil)

	for _, u := range demoUsers {
		if err := seed(ctx, db, users, u); err != nil {
			log.Fatalf("Failed to seed %s: %v", u.name, err)
		}
	}

	// Ada already passed on Dmitri, so he never shows up in her deck.
	_, err = db.ExecContext(ctx, `
		INSERT INTO swipes (swiper_id, swiped_id, type)
		VALUES ($1, $2, 'pass')
		ON CONFLICT (swiper_id, swiped_id) DO NOTHING
	`, userID("Ada"), userID("Dmitri"))
	if err != nil {
		log.Fatalf("Failed to seed swipes: %v", err)
	}

	log.Printf("Seeded %d demo users", len(demoUsers))
}

func seed(ctx context.Context, db *database.DB, users *services.UserService, u seedUser) error {
	id := userID(u.name)

	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, name, age, gender, gender_preferences, zodiac_sign,
		                   activity_preference, latitude, longitude,
		                   subscription_tier, profile_complete)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			age = EXCLUDED.age,
			gender = EXCLUDED.gender,
			gender_preferences = EXCLUDED.gender_preferences,
			zodiac_sign = EXCLUDED.zodiac_sign,
			activity_preference = EXCLUDED.activity_preference,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			subscription_tier = EXCLUDED.subscription_tier,
			profile_complete = TRUE,
			updated_at = NOW()
	`, id, u.name, u.age, u.gender, pq.Array(u.prefs), u.zodiac,
		u.activity, u.lat, u.lon, u.tier)
	if err != nil {
		return err
	}

	if err := users.SaveNatalChart(ctx, id, u.chart); err != nil {
		return err
	}
	return users.SaveQuestionnaire(ctx, id, u.answers)
}
