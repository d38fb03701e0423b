package astro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chartWith(placements map[string]Placement) Chart {
	c := Chart{}
	for body, p := range placements {
		c[body] = p
	}
	return c
}

func TestAbsoluteDegree(t *testing.T) {
	tests := []struct {
		sign     string
		degree   float64
		expected float64
	}{
		{"Aries", 0, 0},
		{"Aries", 15.5, 15.5},
		{"Taurus", 0, 30},
		{"Leo", 0, 120},
		{"Capricorn", 10, 280},
		{"Pisces", 29.9, 359.9},
	}

	for _, tt := range tests {
		t.Run(tt.sign, func(t *testing.T) {
			abs, err := AbsoluteDegree(tt.sign, tt.degree)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, abs, 1e-9)
		})
	}
}

func TestAbsoluteDegree_Invalid(t *testing.T) {
	_, err := AbsoluteDegree("Ophiuchus", 10)
	assert.Error(t, err)

	_, err = AbsoluteDegree("Aries", 30)
	assert.Error(t, err)

	_, err = AbsoluteDegree("Aries", -1)
	assert.Error(t, err)
}

// Sign offsets must tile the circle in 30 degree segments with no gaps.
func TestSignOffsetsTile(t *testing.T) {
	for i, sign := range Signs {
		offset, err := SignOffset(sign)
		require.NoError(t, err)
		assert.Equal(t, float64(i)*30, offset)
	}

	// Every valid placement lands inside [0, 360)
	for _, sign := range Signs {
		for _, degree := range []float64{0, 14.99, 29.999} {
			abs, err := AbsoluteDegree(sign, degree)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, abs, 0.0)
			assert.Less(t, abs, 360.0)
		}
	}
}

func TestAngularSeparation(t *testing.T) {
	tests := []struct {
		a, b     float64
		expected float64
	}{
		{0, 0, 0},
		{0, 120, 120},
		{120, 0, 120},
		{350, 10, 20},
		{10, 350, 20},
		{0, 180, 180},
		{0, 181, 179},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.expected, AngularSeparation(tt.a, tt.b), 1e-9)
	}
}

func TestMatchAspect(t *testing.T) {
	tests := []struct {
		separation float64
		name       string
		found      bool
	}{
		{0, "conjunction", true},
		{7.9, "conjunction", true},
		{60, "sextile", true},
		{65, "sextile", true},
		{90, "square", true},
		{120, "trine", true},
		{127.5, "trine", true},
		{150, "quincunx", true},
		{152.9, "quincunx", true},
		{154, "", false}, // outside quincunx orb, too far for trine/opposition
		{180, "opposition", true},
		{40, "", false},
	}

	for _, tt := range tests {
		aspect, _, found := matchAspect(tt.separation)
		assert.Equal(t, tt.found, found, "separation %v", tt.separation)
		if found {
			assert.Equal(t, tt.name, aspect.Name, "separation %v", tt.separation)
		}
	}
}

// A Sun in Aries 0 and a Sun in Leo 0 sit 120 degrees apart: an exact trine.
func TestCompare_SunTrine(t *testing.T) {
	chartA := chartWith(map[string]Placement{"Sun": {Sign: "Aries", Degree: 0}})
	chartB := chartWith(map[string]Placement{"Sun": {Sign: "Leo", Degree: 0}})

	result := Compare(chartA, chartB)

	require.True(t, result.HasData)
	require.Len(t, result.Aspects, 1)
	assert.Equal(t, "trine", result.Aspects[0].Aspect)
	assert.InDelta(t, 120, result.Aspects[0].Separation, 1e-9)

	// A single harmonious aspect must land above neutral, at most 75.
	assert.Greater(t, result.Score, 50.0)
	assert.LessOrEqual(t, result.Score, 75.0)
}

func TestCompare_Symmetric(t *testing.T) {
	chartA := chartWith(map[string]Placement{
		"Sun":       {Sign: "Aries", Degree: 5},
		"Moon":      {Sign: "Cancer", Degree: 12},
		"Venus":     {Sign: "Gemini", Degree: 20},
		"Mars":      {Sign: "Scorpio", Degree: 3},
		"Ascendant": {Sign: "Libra", Degree: 17},
	})
	chartB := chartWith(map[string]Placement{
		"Sun":     {Sign: "Leo", Degree: 8},
		"Moon":    {Sign: "Pisces", Degree: 25},
		"Venus":   {Sign: "Virgo", Degree: 11},
		"Mars":    {Sign: "Taurus", Degree: 28},
		"Mercury": {Sign: "Leo", Degree: 2},
	})

	ab := Compare(chartA, chartB)
	ba := Compare(chartB, chartA)

	assert.InDelta(t, ab.Score, ba.Score, 1e-9)
	assert.Equal(t, ab.Grade, ba.Grade)
	assert.Len(t, ba.Aspects, len(ab.Aspects))
}

func TestCompare_MissingData(t *testing.T) {
	full := chartWith(map[string]Placement{"Sun": {Sign: "Aries", Degree: 0}})

	for _, other := range []Chart{nil, {}} {
		result := Compare(full, other)
		assert.False(t, result.HasData)
		assert.Equal(t, 50.0, result.Score)
		assert.Equal(t, "F", result.Grade)
	}
}

func TestCompare_MalformedChart(t *testing.T) {
	good := chartWith(map[string]Placement{"Sun": {Sign: "Aries", Degree: 0}})
	bad := chartWith(map[string]Placement{"Sun": {Sign: "Nonsense", Degree: 0}})

	result := Compare(good, bad)
	assert.False(t, result.HasData)
	assert.Equal(t, 50.0, result.Score)
}

func TestCompare_NoAspects(t *testing.T) {
	// 40 degrees apart matches no aspect type.
	chartA := chartWith(map[string]Placement{"Sun": {Sign: "Aries", Degree: 0}})
	chartB := chartWith(map[string]Placement{"Sun": {Sign: "Taurus", Degree: 10}})

	result := Compare(chartA, chartB)
	require.True(t, result.HasData)
	assert.Empty(t, result.Aspects)
	assert.Equal(t, 50.0, result.Score)
}

func TestCompare_ScoreBounds(t *testing.T) {
	// All-square charts must clamp within [0, 100].
	chartA := chartWith(map[string]Placement{
		"Sun":  {Sign: "Aries", Degree: 0},
		"Moon": {Sign: "Aries", Degree: 0},
		"Mars": {Sign: "Aries", Degree: 0},
	})
	chartB := chartWith(map[string]Placement{
		"Sun":  {Sign: "Cancer", Degree: 0},
		"Moon": {Sign: "Cancer", Degree: 0},
		"Mars": {Sign: "Cancer", Degree: 0},
	})

	result := Compare(chartA, chartB)
	assert.GreaterOrEqual(t, result.Score, 0.0)
	assert.LessOrEqual(t, result.Score, 100.0)
	assert.Less(t, result.Score, 50.0) // squares are disharmonious
}

func TestGrade(t *testing.T) {
	tests := []struct {
		score float64
		grade string
	}{
		{95, "A"}, {90, "A"},
		{85, "B"}, {80, "B"},
		{75, "C"}, {70, "C"},
		{65, "D"}, {60, "D"},
		{59.9, "F"}, {0, "F"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.grade, Grade(tt.score), "score %v", tt.score)
	}
}

func TestPairWeight(t *testing.T) {
	assert.Equal(t, 2.0, pairWeight("Sun", "Moon"))
	assert.Equal(t, 2.0, pairWeight("Moon", "Sun"))
	assert.Equal(t, 1.7, pairWeight("Venus", "Mars"))
	assert.Equal(t, 1.5, pairWeight("Sun", "Mercury"))
	assert.Equal(t, 1.5, pairWeight("Ascendant", "Venus"))
	assert.Equal(t, 1.0, pairWeight("Mercury", "Venus"))
}
