package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// Yards per unit.
const (
	yardsPerFurlong = 220
	yardsPerMile    = 1760
)

// Distance converts a raw distance value to whole yards, or nil when the
// value is empty or non-numeric.
//
// The feeds encode furlong and mile distances in a "hundredths" scale:
// 600 means 6.00 furlongs and 2400 means 1.5 miles (one mile = 1600 in that
// encoding, not 100). Values under 100 are literal units. When no unit is
// given it is inferred from magnitude. The thresholds mirror the upstream
// encoding as closely as it is documented; they are deliberately not "fixed"
// for ambiguous mid-range values.
func (s *Standardizer) Distance(value, unit string) *int {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return nil
	}
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}

	u := strings.ToUpper(strings.TrimSpace(unit))
	if u == "" {
		switch {
		case d < 20:
			u = "F"
		case d > 1000:
			u = "Y"
		default:
			u = "M"
		}
	}

	switch u {
	case "F", "FURLONG", "FURLONGS":
		if d >= 100 {
			return intOf(d / 100 * yardsPerFurlong)
		}
		return intOf(d * yardsPerFurlong)

	case "M", "MILE", "MILES":
		if d >= 100 {
			return intOf(d / 1600 * yardsPerMile)
		}
		return intOf(d * yardsPerMile)

	case "Y", "YARD", "YARDS":
		return intOf(d)

	default:
		// Unlabeled unit: magnitude heuristics, with a large-magnitude
		// branch that assumes feet.
		switch {
		case d < 20:
			return intOf(d * yardsPerFurlong)
		case d >= 100 && d <= 1000:
			return intOf(d / 100 * yardsPerFurlong)
		case d > 1000:
			if d > 5000 {
				return intOf(d / 3)
			}
			return intOf(d)
		default:
			return intOf(d * yardsPerFurlong)
		}
	}
}

// intOf truncates to a whole yard count.
func intOf(f float64) *int {
	n := int(f)
	return &n
}

var firstDigits = regexp.MustCompile(`(\d+)`)

// Weight extracts the carried weight in pounds as the first run of digits,
// or nil when none is present.
func (s *Standardizer) Weight(raw string) *int {
	m := firstDigits.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// Money parses a dollar amount, tolerating "$" and thousands separators.
func Money(raw string) *float64 {
	cleaned := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(raw, ",", ""), "$", ""))
	if cleaned == "" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}
