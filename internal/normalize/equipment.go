package normalize

import (
	"regexp"
	"strings"
)

var equipmentSplit = regexp.MustCompile(`[,;/\s]+`)

// Equipment parses an equipment string like "B,L1,T" into canonical tokens.
// Known codes map through the lookup table; unknown tokens are kept verbatim.
// The result is de-duplicated preserving first-seen order.
func (s *Standardizer) Equipment(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	for _, item := range equipmentSplit.Split(strings.ToUpper(trimmed), -1) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if canonical, ok := s.equipment[item]; ok {
			item = canonical
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// EquipmentDescription renders a canonical token for display,
// e.g. LASIX_FIRST_TIME -> "Lasix First Time".
func EquipmentDescription(code string) string {
	words := strings.Split(strings.ToLower(strings.ReplaceAll(code, "_", " ")), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
