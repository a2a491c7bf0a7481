// Package normalize maps raw racing-feed field encodings onto a canonical
// schema. Every function is total: malformed input yields a sentinel value
// (UNKNOWN, OTHER, nil), never an error, since these run per record in the
// ingestion hot path.
package normalize

import "strings"

// Standardizer resolves heterogeneous source encodings into canonical values.
// Safe for concurrent use; all state is read-only after construction.
type Standardizer struct {
	dirt      map[string]struct{}
	turf      map[string]struct{}
	synthetic map[string]struct{}
	hierarchy []RaceTypeEntry
	equipment map[string]string
	condition map[string]string
}

// New builds a Standardizer from loaded lookup tables.
func New(t *Tables) *Standardizer {
	return &Standardizer{
		dirt:      toSet(t.CourseTypes.Dirt),
		turf:      toSet(t.CourseTypes.Turf),
		synthetic: toSet(t.CourseTypes.Synthetic),
		hierarchy: t.RaceTypeHierarchy,
		equipment: t.Equipment,
		condition: t.TrackConditions,
	}
}

func toSet(vals []string) map[string]struct{} {
	set := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		set[v] = struct{}{}
	}
	return set
}

// Course surface canonical values.
const (
	CourseDirt      = "DIRT"
	CourseTurf      = "TURF"
	CourseSynthetic = "SYNTHETIC"
	CourseUnknown   = "UNKNOWN"
)

// CourseType maps a raw surface name onto DIRT, TURF, SYNTHETIC or UNKNOWN.
func (s *Standardizer) CourseType(raw string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	if cleaned == "" {
		return CourseUnknown
	}
	if _, ok := s.dirt[cleaned]; ok {
		return CourseDirt
	}
	if _, ok := s.turf[cleaned]; ok {
		return CourseTurf
	}
	if _, ok := s.synthetic[cleaned]; ok {
		return CourseSynthetic
	}
	return CourseUnknown
}

// TrackCondition maps a raw condition onto its canonical code. Empty input is
// UNKNOWN; anything not in the table is OTHER.
func (s *Standardizer) TrackCondition(raw string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	if cleaned == "" {
		return "UNKNOWN"
	}
	if cond, ok := s.condition[cleaned]; ok {
		return cond
	}
	return "OTHER"
}
