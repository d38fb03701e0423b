package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/astromatch/astromatch/internal/astro"
	"github.com/astromatch/astromatch/internal/questionnaire"
)

// Match request lifecycle. Fulfilled is only reachable from confirmed, once
// the match row exists.
const (
	RequestStatusPending   = "pending"
	RequestStatusConfirmed = "confirmed"
	RequestStatusRejected  = "rejected"
	RequestStatusExpired   = "expired"
	RequestStatusFulfilled = "fulfilled"
)

const (
	MatchStatusActive    = "active"
	MatchStatusUnmatched = "unmatched"
)

const (
	SwipeTypeLike = "like"
	SwipeTypePass = "pass"
)

const (
	TierFree    = "free"
	TierPremium = "premium"
)

// CanonicalPair orders two user ids so the smaller one comes first. Matches,
// conversations, and score cache entries are all keyed this way so the same
// two users always resolve to the same row.
func CanonicalPair(a, b string) (low, high string) {
	if a < b {
		return a, b
	}
	return b, a
}

// User is the read model consumed by the discovery pipeline. Profile editing
// happens in an external service; this core only reads these rows.
type User struct {
	ID                 string    `json:"id" db:"id"`
	Name               string    `json:"name" db:"name"`
	Age                int       `json:"age" db:"age"`
	Gender             string    `json:"gender" db:"gender"`
	GenderPreferences  []string  `json:"gender_preferences" db:"gender_preferences"`
	ZodiacSign         string    `json:"zodiac_sign" db:"zodiac_sign"`
	ActivityPreference string    `json:"activity_preference" db:"activity_preference"`
	Latitude           *float64  `json:"latitude" db:"latitude"`
	Longitude          *float64  `json:"longitude" db:"longitude"`
	SubscriptionTier   string    `json:"subscription_tier" db:"subscription_tier"`
	ProfileComplete    bool      `json:"profile_complete" db:"profile_complete"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

func (u *User) IsPremium() bool {
	return u.SubscriptionTier == TierPremium
}

// ChartPlacements stores a natal chart as a JSON column.
type ChartPlacements astro.Chart

func (c ChartPlacements) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

func (c *ChartPlacements) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("cannot scan %T into ChartPlacements", value)
	}
}

type NatalChart struct {
	UserID     string          `json:"user_id" db:"user_id"`
	Placements ChartPlacements `json:"placements" db:"placements"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// AnswerList stores an ordered questionnaire response sequence as a JSON
// column. Order matters: positions pair up across users during scoring.
type AnswerList questionnaire.Answers

func (a AnswerList) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

func (a *AnswerList) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("cannot scan %T into AnswerList", value)
	}
}

type QuestionnaireResponse struct {
	UserID    string     `json:"user_id" db:"user_id"`
	Answers   AnswerList `json:"answers" db:"answers"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// Swipe is an append-only directed edge, unique per (swiper, swiped).
type Swipe struct {
	SwiperID  string    `json:"swiper_id" db:"swiper_id"`
	SwipedID  string    `json:"swiped_id" db:"swiped_id"`
	Type      string    `json:"type" db:"type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Block is stored one direction but excluded both ways.
type Block struct {
	BlockerID string    `json:"blocker_id" db:"blocker_id"`
	BlockedID string    `json:"blocked_id" db:"blocked_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type MatchRequest struct {
	ID                 string     `json:"id" db:"id"`
	RequesterID        string     `json:"requester_id" db:"requester_id"`
	MatchedUserID      string     `json:"matched_user_id" db:"matched_user_id"`
	Status             string     `json:"status" db:"status"`
	CompatibilityScore *float64   `json:"compatibility_score" db:"compatibility_score"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	RespondedAt        *time.Time `json:"responded_at" db:"responded_at"`
	ResultingMatchID   *string    `json:"resulting_match_id" db:"resulting_match_id"`
}

func (r *MatchRequest) IsActive() bool {
	return r.Status == RequestStatusPending || r.Status == RequestStatusConfirmed
}

// Match rows always hold user1_id < user2_id.
type Match struct {
	ID                 string    `json:"id" db:"id"`
	User1ID            string    `json:"user1_id" db:"user1_id"`
	User2ID            string    `json:"user2_id" db:"user2_id"`
	Status             string    `json:"status" db:"status"`
	CompatibilityScore float64   `json:"compatibility_score" db:"compatibility_score"`
	ConversationID     string    `json:"conversation_id" db:"conversation_id"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// Counterpart returns the other participant of the match, or "" when the
// given user is not a participant.
func (m *Match) Counterpart(userID string) string {
	switch userID {
	case m.User1ID:
		return m.User2ID
	case m.User2ID:
		return m.User1ID
	default:
		return ""
	}
}

type Conversation struct {
	ID                 string     `json:"id" db:"id"`
	Participant1ID     string     `json:"participant1_id" db:"participant1_id"`
	Participant2ID     string     `json:"participant2_id" db:"participant2_id"`
	MatchID            *string    `json:"match_id" db:"match_id"`
	Status             string     `json:"status" db:"status"`
	LastMessageAt      *time.Time `json:"last_message_at" db:"last_message_at"`
	LastMessagePreview *string    `json:"last_message_preview" db:"last_message_preview"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

// InviteQuota tracks the per-user daily action allowance. Rows are mutated
// only under a row-level lock.
type InviteQuota struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Remaining int       `json:"remaining" db:"remaining"`
	QuotaDate time.Time `json:"quota_date" db:"quota_date"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProgressEvent is a best-effort ledger entry credited outside the match
// transaction.
type ProgressEvent struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	EventType string    `json:"event_type" db:"event_type"`
	Points    int       `json:"points" db:"points"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
