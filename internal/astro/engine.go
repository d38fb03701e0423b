package astro

// Core bodies considered by the aspect engine. Charts may carry more
// placements (outer planets, nodes); only these six are scored.
var CoreBodies = []string{"Sun", "Moon", "Ascendant", "Mercury", "Venus", "Mars"}

const neutralScore = 50.0

// AspectMatch records one detected aspect between the two charts.
type AspectMatch struct {
	Body1      string  `json:"body1"`
	Body2      string  `json:"body2"`
	Aspect     string  `json:"aspect"`
	Separation float64 `json:"separation"`
	Deviation  float64 `json:"deviation"`
	Harmony    float64 `json:"harmony"`
	Weight     float64 `json:"weight"`
}

// Result is the outcome of comparing two natal charts.
type Result struct {
	Score   float64       `json:"score"`
	Grade   string        `json:"grade"`
	Aspects []AspectMatch `json:"aspects"`
	HasData bool          `json:"has_data"`
}

// Neutral returns the default result used when chart data is missing or
// malformed for either user.
func Neutral() Result {
	return Result{Score: neutralScore, Grade: Grade(neutralScore)}
}

// Grade maps a 0-100 score to a letter grade.
func Grade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// Compare scores the compatibility of two natal charts. It walks each
// unordered pair of core bodies once (21 pairs), detects at most one aspect
// per pair, and folds the weighted harmony values into a 0-100 score
// centered on 50. The result is symmetric in its arguments.
func Compare(chartA, chartB Chart) Result {
	if len(chartA) == 0 || len(chartB) == 0 {
		return Neutral()
	}
	if err := chartA.Validate(); err != nil {
		return Neutral()
	}
	if err := chartB.Validate(); err != nil {
		return Neutral()
	}

	var (
		matches   []AspectMatch
		harmonySum float64
		weightSum  float64
	)

	for i, body1 := range CoreBodies {
		for j := i; j < len(CoreBodies); j++ {
			body2 := CoreBodies[j]

			match, ok := bestAspectForPair(chartA, chartB, body1, body2)
			if !ok {
				continue
			}

			matches = append(matches, match)
			harmonySum += match.Harmony * match.Weight
			weightSum += match.Weight
		}
	}

	score := neutralScore
	if weightSum > 0 {
		score = neutralScore + 25*(harmonySum/weightSum)
	}
	score = clamp(score, 0, 100)

	return Result{
		Score:   score,
		Grade:   Grade(score),
		Aspects: matches,
		HasData: true,
	}
}

// bestAspectForPair evaluates the body pair across both charts. For distinct
// bodies the two cross comparisons (A.b1 vs B.b2 and A.b2 vs B.b1) are both
// candidates and the tighter one wins, which keeps Compare symmetric.
func bestAspectForPair(chartA, chartB Chart, body1, body2 string) (AspectMatch, bool) {
	type candidate struct {
		from, to string
	}

	candidates := []candidate{{body1, body2}}
	if body1 != body2 {
		candidates = append(candidates, candidate{body2, body1})
	}

	var (
		best      AspectMatch
		bestRatio float64
		found     bool
	)

	for _, c := range candidates {
		placementA, okA := chartA[c.from]
		placementB, okB := chartB[c.to]
		if !okA || !okB {
			continue
		}

		separation := AngularSeparation(placementA.AbsoluteDegree, placementB.AbsoluteDegree)
		aspect, deviation, ok := matchAspect(separation)
		if !ok {
			continue
		}

		ratio := deviation / aspect.Orb
		if found && ratio >= bestRatio {
			continue
		}

		weight := pairWeight(body1, body2)
		// Tightness bonus rewards exact aspects.
		weight *= 1 + 0.5*(1-ratio)

		best = AspectMatch{
			Body1:      body1,
			Body2:      body2,
			Aspect:     aspect.Name,
			Separation: separation,
			Deviation:  deviation,
			Harmony:    aspect.Harmony,
			Weight:     weight,
		}
		bestRatio = ratio
		found = true
	}

	return best, found
}

// pairWeight returns the importance of a body pair. Luminaries and the
// Ascendant outweigh the inner planets; the Sun-Moon and Venus-Mars
// combinations carry their own emphasis.
func pairWeight(body1, body2 string) float64 {
	if (body1 == "Sun" && body2 == "Moon") || (body1 == "Moon" && body2 == "Sun") {
		return 2.0
	}
	if (body1 == "Venus" && body2 == "Mars") || (body1 == "Mars" && body2 == "Venus") {
		return 1.7
	}
	if isLuminary(body1) || isLuminary(body2) {
		return 1.5
	}
	return 1.0
}

func isLuminary(body string) bool {
	return body == "Sun" || body == "Moon" || body == "Ascendant"
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
