package astro

import "math"

// Aspect is a named angular relationship between two chart placements.
type Aspect struct {
	Name    string
	Angle   float64 // target separation in degrees
	Orb     float64 // maximum allowed deviation from the target
	Harmony float64 // signed contribution to the compatibility score
}

// Aspect table ordered by ascending orb so the tightest aspect type wins
// when a separation could qualify for more than one.
var aspects = []Aspect{
	{Name: "quincunx", Angle: 150, Orb: 3, Harmony: -0.3},
	{Name: "sextile", Angle: 60, Orb: 6, Harmony: 0.7},
	{Name: "conjunction", Angle: 0, Orb: 8, Harmony: 0.3},
	{Name: "square", Angle: 90, Orb: 8, Harmony: -0.7},
	{Name: "trine", Angle: 120, Orb: 8, Harmony: 1.0},
	{Name: "opposition", Angle: 180, Orb: 8, Harmony: -0.5},
}

// AngularSeparation returns the angle between two absolute degrees,
// normalized to [0, 180].
func AngularSeparation(a, b float64) float64 {
	diff := math.Mod(math.Abs(a-b), 360)
	if diff > 180 {
		diff = 360 - diff
	}
	return diff
}

// matchAspect finds the aspect type for a separation, if any. Aspect types
// are evaluated in ascending orb order; at most one matches.
func matchAspect(separation float64) (Aspect, float64, bool) {
	for _, aspect := range aspects {
		deviation := math.Abs(separation - aspect.Angle)
		if deviation <= aspect.Orb {
			return aspect, deviation, true
		}
	}
	return Aspect{}, 0, false
}
