package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromatch/astromatch/internal/astro"
	"github.com/astromatch/astromatch/internal/questionnaire"
)

func TestCanonicalPair(t *testing.T) {
	low, high := CanonicalPair("b-user", "a-user")
	assert.Equal(t, "a-user", low)
	assert.Equal(t, "b-user", high)

	low, high = CanonicalPair("a-user", "b-user")
	assert.Equal(t, "a-user", low)
	assert.Equal(t, "b-user", high)
}

func TestChartPlacementsScan(t *testing.T) {
	raw := `{"Sun":{"sign":"aries","degree":15,"absolute_degree":15}}`

	var fromBytes ChartPlacements
	require.NoError(t, fromBytes.Scan([]byte(raw)))
	assert.InDelta(t, 15.0, fromBytes["Sun"].AbsoluteDegree, 0.001)

	var fromString ChartPlacements
	require.NoError(t, fromString.Scan(raw))
	assert.Equal(t, "aries", fromString["Sun"].Sign)

	var fromNil ChartPlacements
	require.NoError(t, fromNil.Scan(nil))
	assert.Nil(t, fromNil)

	var bad ChartPlacements
	assert.Error(t, bad.Scan(42))
}

func TestChartPlacementsValue(t *testing.T) {
	var empty ChartPlacements
	v, err := empty.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	c := ChartPlacements{
		"Moon": astro.Placement{Sign: "leo", Degree: 10, AbsoluteDegree: 130},
	}
	v, err = c.Value()
	require.NoError(t, err)
	assert.Contains(t, string(v.([]byte)), `"leo"`)
}

func TestAnswerListScan(t *testing.T) {
	raw := `[{"category":"values","answer":"honesty"}]`

	var a AnswerList
	require.NoError(t, a.Scan([]byte(raw)))
	require.Len(t, a, 1)
	assert.Equal(t, questionnaire.Answer{Category: "values", Answer: "honesty"}, ([]questionnaire.Answer)(a)[0])

	var bad AnswerList
	assert.Error(t, bad.Scan(3.14))
}

func TestMatchCounterpart(t *testing.T) {
	m := Match{User1ID: "a", User2ID: "b"}
	assert.Equal(t, "b", m.Counterpart("a"))
	assert.Equal(t, "a", m.Counterpart("b"))
	assert.Equal(t, "", m.Counterpart("c"))
}

func TestMatchRequestIsActive(t *testing.T) {
	for status, active := range map[string]bool{
		RequestStatusPending:   true,
		RequestStatusConfirmed: true,
		RequestStatusRejected:  false,
		RequestStatusExpired:   false,
		RequestStatusFulfilled: false,
	} {
		r := MatchRequest{Status: status}
		assert.Equal(t, active, r.IsActive(), "status %s", status)
	}
}

func TestUserIsPremium(t *testing.T) {
	assert.True(t, (&User{SubscriptionTier: TierPremium}).IsPremium())
	assert.False(t, (&User{SubscriptionTier: TierFree}).IsPremium())
}
