package astro

import (
	"fmt"
	"strings"
)

// Signs in ecliptic order. Each sign spans a fixed 30 degree segment,
// so a placement's absolute degree is signOffset + degreeWithinSign.
var Signs = []string{
	"Aries", "Taurus", "Gemini", "Cancer", "Leo", "Virgo",
	"Libra", "Scorpio", "Sagittarius", "Capricorn", "Aquarius", "Pisces",
}

var signOffsets = func() map[string]float64 {
	offsets := make(map[string]float64, len(Signs))
	for i, sign := range Signs {
		offsets[strings.ToLower(sign)] = float64(i) * 30
	}
	return offsets
}()

// SignOffset returns the absolute degree at which the sign's segment starts.
func SignOffset(sign string) (float64, error) {
	offset, ok := signOffsets[strings.ToLower(strings.TrimSpace(sign))]
	if !ok {
		return 0, fmt.Errorf("unknown zodiac sign: %q", sign)
	}
	return offset, nil
}

// IsValidSign reports whether the given name is a zodiac sign.
func IsValidSign(sign string) bool {
	_, ok := signOffsets[strings.ToLower(strings.TrimSpace(sign))]
	return ok
}

// AbsoluteDegree converts a sign plus degree-within-sign into an absolute
// ecliptic degree in [0, 360).
func AbsoluteDegree(sign string, degree float64) (float64, error) {
	if degree < 0 || degree >= 30 {
		return 0, fmt.Errorf("degree within sign must be in [0, 30): %v", degree)
	}
	offset, err := SignOffset(sign)
	if err != nil {
		return 0, err
	}
	return offset + degree, nil
}

// Placement records where a celestial body sits in a natal chart.
type Placement struct {
	Sign           string  `json:"sign"`
	Degree         float64 `json:"degree"`
	AbsoluteDegree float64 `json:"absolute_degree"`
}

// Normalize fills in the absolute degree from sign+degree and validates the
// placement. A placement that fails validation is unusable for scoring.
func (p *Placement) Normalize() error {
	abs, err := AbsoluteDegree(p.Sign, p.Degree)
	if err != nil {
		return err
	}
	p.AbsoluteDegree = abs
	return nil
}

// Chart maps celestial body names (Sun, Moon, Ascendant, Mercury, Venus,
// Mars, ...) to their placements.
type Chart map[string]Placement

// Validate normalizes every placement and rejects malformed charts.
func (c Chart) Validate() error {
	for body, placement := range c {
		if err := placement.Normalize(); err != nil {
			return fmt.Errorf("body %s: %w", body, err)
		}
		c[body] = placement
	}
	return nil
}
