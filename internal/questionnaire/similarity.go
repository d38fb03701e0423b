package questionnaire

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Answer categories come from a small fixed vocabulary.
const (
	CategoryValues        = "values"
	CategoryLifestyle     = "lifestyle"
	CategoryPersonality   = "personality"
	CategoryPreferences   = "preferences"
	CategoryCommunication = "communication"
	CategoryGoals         = "goals"
)

var validCategories = map[string]bool{
	CategoryValues:        true,
	CategoryLifestyle:     true,
	CategoryPersonality:   true,
	CategoryPreferences:   true,
	CategoryCommunication: true,
	CategoryGoals:         true,
}

// IsValidCategory reports whether the category belongs to the vocabulary.
func IsValidCategory(category string) bool {
	return validCategories[strings.ToLower(strings.TrimSpace(category))]
}

// Answer is a single questionnaire response.
type Answer struct {
	Category string `json:"category"`
	Answer   string `json:"answer"`
}

// Answers is an ordered response sequence. Position defines the pairing
// between two users' sequences.
type Answers []Answer

// Validate rejects sequences containing unknown categories.
func (a Answers) Validate() error {
	for i, answer := range a {
		if !IsValidCategory(answer.Category) {
			return &InvalidCategoryError{Position: i, Category: answer.Category}
		}
	}
	return nil
}

// InvalidCategoryError reports an answer with a category outside the
// fixed vocabulary.
type InvalidCategoryError struct {
	Position int
	Category string
}

func (e *InvalidCategoryError) Error() string {
	return "invalid answer category " + e.Category
}

// Category weights emphasize core values over surface preferences.
var categoryWeights = map[string]float64{
	CategoryValues:      1.5,
	CategoryLifestyle:   1.2,
	CategoryPersonality: 1.0,
	CategoryPreferences: 0.8,
}

const defaultWeight = 1.0

func weightFor(category string) float64 {
	if w, ok := categoryWeights[strings.ToLower(strings.TrimSpace(category))]; ok {
		return w
	}
	return defaultWeight
}

// Result is the outcome of comparing two response sequences. A zero score
// with HasData=false means "no usable pairs", not "fully incompatible";
// callers must not treat it as a real score.
type Result struct {
	Score         float64 `json:"score"`
	ComparedPairs int     `json:"compared_pairs"`
	HasData       bool    `json:"has_data"`
}

// Compare walks both sequences position by position up to the shorter
// length, scores each answered pair, and returns the weight-normalized
// average in [0, 100].
func Compare(a, b Answers) Result {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var (
		weightedSum float64
		weightSum   float64
		pairs       int
	)

	for i := 0; i < n; i++ {
		left := strings.TrimSpace(a[i].Answer)
		right := strings.TrimSpace(b[i].Answer)
		if left == "" || right == "" {
			continue
		}

		weight := weightFor(a[i].Category)
		weightedSum += answerScore(left, right) * weight
		weightSum += weight
		pairs++
	}

	if pairs == 0 || weightSum == 0 {
		return Result{}
	}

	score := weightedSum / weightSum
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Result{Score: score, ComparedPairs: pairs, HasData: true}
}

// answerScore buckets a pair of answers by similarity.
func answerScore(left, right string) float64 {
	l := strings.ToLower(left)
	r := strings.ToLower(right)

	if l == r {
		return 100
	}

	switch sim := Similarity(l, r); {
	case sim > 0.7:
		return 80
	case sim > 0.4:
		return 60
	default:
		return 30
	}
}

// Similarity is a normalized edit-distance measure in [0, 1], where 1 means
// identical strings.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}
