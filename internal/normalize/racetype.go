package normalize

import "strings"

// RaceClass is the standardized classification of a race type string.
type RaceClass struct {
	Code          string `json:"race_type_code"`
	Description   string `json:"race_type_description"`
	ClassLevel    int    `json:"class_level"`
	PurseCategory string `json:"purse_category"`
}

// RaceType classifies a raw race-type description. Rule order is a
// correctness contract: compound phrases are resolved before whole-word
// hierarchy matches, which in turn beat the substring fallbacks. Reordering
// changes the result for ambiguous inputs like "MAIDEN CLAIMING", which must
// classify as a maiden-level claiming race, not a plain maiden.
func (s *Standardizer) RaceType(raw string) RaceClass {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return RaceClass{Code: "UNKNOWN", Description: "Unknown", ClassLevel: 0, PurseCategory: "UNKNOWN"}
	}

	cleaned := strings.ToUpper(trimmed)

	// Compound phrases first.
	if strings.Contains(cleaned, "MAIDEN CLAIMING") || strings.Contains(cleaned, "MAIDEN CLM") {
		return RaceClass{Code: "CLAIMING", Description: trimmed, ClassLevel: 1, PurseCategory: "MAIDEN"}
	}

	// Whole-word match against the class hierarchy, in table order.
	words := strings.Fields(cleaned)
	for _, entry := range s.hierarchy {
		if containsWord(words, entry.Code) {
			return RaceClass{
				Code:          entry.Code,
				Description:   trimmed,
				ClassLevel:    entry.Level,
				PurseCategory: purseCategory(entry.Level),
			}
		}
	}

	// Substring fallbacks, most specific first.
	switch {
	case strings.Contains(cleaned, "MAIDEN") || strings.Contains(cleaned, "MSW"):
		return RaceClass{Code: "MAIDEN", Description: trimmed, ClassLevel: 1, PurseCategory: "MAIDEN"}
	case strings.Contains(cleaned, "CLAIMING") || strings.Contains(cleaned, "CLM"):
		return RaceClass{Code: "CLAIMING", Description: trimmed, ClassLevel: 2, PurseCategory: "CLAIMING"}
	case strings.Contains(cleaned, "ALLOWANCE") || strings.Contains(cleaned, "ALW"):
		return RaceClass{Code: "ALLOWANCE", Description: trimmed, ClassLevel: 5, PurseCategory: "ALLOWANCE"}
	case strings.Contains(cleaned, "STAKES") || strings.Contains(cleaned, "STK"):
		return RaceClass{Code: "STAKES", Description: trimmed, ClassLevel: 6, PurseCategory: "STAKES"}
	default:
		return RaceClass{Code: "OTHER", Description: trimmed, ClassLevel: 3, PurseCategory: "OTHER"}
	}
}

func containsWord(words []string, code string) bool {
	for _, w := range words {
		if w == code {
			return true
		}
	}
	return false
}

// purseCategory is a pure function of class level with fixed thresholds.
func purseCategory(level int) string {
	switch {
	case level >= 8:
		return "GRADED_STAKES"
	case level >= 6:
		return "STAKES"
	case level >= 4:
		return "ALLOWANCE"
	case level >= 2:
		return "CLAIMING"
	case level == 1:
		return "MAIDEN"
	default:
		return "UNKNOWN"
	}
}
