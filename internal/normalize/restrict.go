package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// AgeRange bounds the ages a race is open to. A nil Max means unbounded
// ("3 and up"); both nil means no recognized restriction.
type AgeRange struct {
	Min *int `json:"min_age,omitempty"`
	Max *int `json:"max_age,omitempty"`
}

type agePattern struct {
	re      *regexp.Regexp
	sameMax bool // max equals min ("3YO")
	hasMax  bool // explicit second capture group ("3-5")
}

// Ordered: first match wins.
var agePatterns = []agePattern{
	{re: regexp.MustCompile(`(\d+)YO`), sameMax: true},
	{re: regexp.MustCompile(`(\d+)U`)},
	{re: regexp.MustCompile(`(\d+)\+`)},
	{re: regexp.MustCompile(`(\d+)-(\d+)`), hasMax: true},
	{re: regexp.MustCompile(`(\d+)&UP`)},
	{re: regexp.MustCompile(`(\d+) AND UP`)},
	{re: regexp.MustCompile(`(\d+) YEARS OLD AND UP`)},
}

// AgeRestriction parses patterns like "3YO", "4U", "3+", "3-5" and
// "4 AND UP". Unrecognized text leaves both bounds unset.
func (s *Standardizer) AgeRestriction(raw string) AgeRange {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	if cleaned == "" {
		return AgeRange{}
	}

	for _, p := range agePatterns {
		m := p.re.FindStringSubmatch(cleaned)
		if m == nil {
			continue
		}
		min, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		r := AgeRange{Min: &min}
		switch {
		case p.sameMax:
			max := min
			r.Max = &max
		case p.hasMax:
			if max, err := strconv.Atoi(m[2]); err == nil {
				r.Max = &max
			}
		}
		return r
	}
	return AgeRange{}
}

// SexFlags are the six mutually exclusive sex-restriction categories.
type SexFlags struct {
	FilliesAndMares  bool `json:"fillies_and_mares"`
	ColtsAndGeldings bool `json:"colts_and_geldings"`
	FilliesOnly      bool `json:"fillies_only"`
	MaresOnly        bool `json:"mares_only"`
	ColtsOnly        bool `json:"colts_only"`
	GeldingsOnly     bool `json:"geldings_only"`
}

// SexRestriction parses a sex-restriction phrase into flags. Combined phrases
// take precedence: "FILLIES AND MARES" sets only the combined flag, never
// fillies-only or mares-only. At most one flag is set.
func (s *Standardizer) SexRestriction(raw string) SexFlags {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	if cleaned == "" {
		return SexFlags{}
	}

	var f SexFlags
	switch {
	case strings.Contains(cleaned, "FILLIES AND MARES") || strings.Contains(cleaned, "F&M"):
		f.FilliesAndMares = true
	case strings.Contains(cleaned, "FILLIES") && !strings.Contains(cleaned, "MARES"):
		f.FilliesOnly = true
	case strings.Contains(cleaned, "MARES") && !strings.Contains(cleaned, "FILLIES"):
		f.MaresOnly = true
	case strings.Contains(cleaned, "COLTS AND GELDINGS"):
		f.ColtsAndGeldings = true
	case strings.Contains(cleaned, "COLTS") && !strings.Contains(cleaned, "GELDINGS"):
		f.ColtsOnly = true
	case strings.Contains(cleaned, "GELDINGS") && !strings.Contains(cleaned, "COLTS"):
		f.GeldingsOnly = true
	}
	return f
}
