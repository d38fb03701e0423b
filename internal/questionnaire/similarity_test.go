package questionnaire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare_IdenticalAnswers(t *testing.T) {
	answers := Answers{
		{Category: CategoryValues, Answer: "family first"},
		{Category: CategoryLifestyle, Answer: "early riser"},
		{Category: CategoryPersonality, Answer: "introvert"},
	}

	result := Compare(answers, answers)

	require.True(t, result.HasData)
	assert.Equal(t, 100.0, result.Score)
	assert.Equal(t, 3, result.ComparedPairs)
}

func TestCompare_NoUsablePairs(t *testing.T) {
	a := Answers{{Category: CategoryValues, Answer: ""}}
	b := Answers{{Category: CategoryValues, Answer: "honesty"}}

	result := Compare(a, b)
	assert.False(t, result.HasData)
	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, 0, result.ComparedPairs)

	result = Compare(nil, nil)
	assert.False(t, result.HasData)
}

func TestCompare_SkipsMissingPositions(t *testing.T) {
	a := Answers{
		{Category: CategoryValues, Answer: "honesty"},
		{Category: CategoryLifestyle, Answer: ""},
		{Category: CategoryGoals, Answer: "travel"},
	}
	b := Answers{
		{Category: CategoryValues, Answer: "honesty"},
		{Category: CategoryLifestyle, Answer: "night owl"},
		{Category: CategoryGoals, Answer: "travel"},
	}

	result := Compare(a, b)
	require.True(t, result.HasData)
	assert.Equal(t, 2, result.ComparedPairs)
	assert.Equal(t, 100.0, result.Score)
}

func TestCompare_ShorterSequenceBounds(t *testing.T) {
	a := Answers{{Category: CategoryValues, Answer: "honesty"}}
	b := Answers{
		{Category: CategoryValues, Answer: "honesty"},
		{Category: CategoryGoals, Answer: "never compared"},
	}

	result := Compare(a, b)
	assert.Equal(t, 1, result.ComparedPairs)
}

func TestCompare_SimilarityBuckets(t *testing.T) {
	tests := []struct {
		name     string
		left     string
		right    string
		expected float64
	}{
		{"identical", "hiking", "hiking", 100},
		{"identical ignoring case", "Hiking", "hiking", 100},
		{"near identical", "hiking trips", "hiking trip", 80},
		{"somewhat similar", "hiking", "baking", 60},
		{"unrelated", "opera", "motorcycles", 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Answers{{Category: CategoryPersonality, Answer: tt.left}}
			b := Answers{{Category: CategoryPersonality, Answer: tt.right}}

			result := Compare(a, b)
			require.True(t, result.HasData)
			assert.Equal(t, tt.expected, result.Score)
		})
	}
}

func TestCompare_CategoryWeighting(t *testing.T) {
	// One perfect values answer (w=1.5) and one unrelated preferences
	// answer (w=0.8): (100*1.5 + 30*0.8) / 2.3
	a := Answers{
		{Category: CategoryValues, Answer: "honesty"},
		{Category: CategoryPreferences, Answer: "opera"},
	}
	b := Answers{
		{Category: CategoryValues, Answer: "honesty"},
		{Category: CategoryPreferences, Answer: "motorcycles"},
	}

	result := Compare(a, b)
	require.True(t, result.HasData)
	assert.InDelta(t, (100*1.5+30*0.8)/2.3, result.Score, 1e-9)
}

func TestCompare_ScoreWithinBounds(t *testing.T) {
	a := Answers{
		{Category: CategoryValues, Answer: "a"},
		{Category: CategoryGoals, Answer: "b"},
	}
	b := Answers{
		{Category: CategoryValues, Answer: "z"},
		{Category: CategoryGoals, Answer: "y"},
	}

	result := Compare(a, b)
	assert.GreaterOrEqual(t, result.Score, 0.0)
	assert.LessOrEqual(t, result.Score, 100.0)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("same", "same"))
	assert.InDelta(t, 0.5, Similarity("ab", "ax"), 1e-9)
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
}

func TestValidate(t *testing.T) {
	good := Answers{
		{Category: "values", Answer: "honesty"},
		{Category: "Communication", Answer: "direct"},
	}
	assert.NoError(t, good.Validate())

	bad := Answers{{Category: "horoscope", Answer: "libra"}}
	err := bad.Validate()
	require.Error(t, err)

	var catErr *InvalidCategoryError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, 0, catErr.Position)
	assert.Equal(t, "horoscope", catErr.Category)
}
