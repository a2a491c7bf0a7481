package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStandardizer(t *testing.T) *Standardizer {
	t.Helper()
	tables, err := LoadTables()
	require.NoError(t, err)
	return New(tables)
}

func TestCourseType(t *testing.T) {
	s := newTestStandardizer(t)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"dirt code", "D", "DIRT"},
		{"dirt word", "dirt", "DIRT"},
		{"dirt condition synonym", "Sloppy", "DIRT"},
		{"turf word", "TURF", "TURF"},
		{"turf grass", "grass", "TURF"},
		{"turf multiword", "good to firm", "TURF"},
		{"synthetic tapeta", "Tapeta", "SYNTHETIC"},
		{"synthetic polytrack", "POLYTRACK", "SYNTHETIC"},
		{"unmatched", "ASPHALT", "UNKNOWN"},
		{"empty", "", "UNKNOWN"},
		{"whitespace", "   ", "UNKNOWN"},
		{"padded", "  turf  ", "TURF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.CourseType(tt.raw))
		})
	}
}

func TestRaceType(t *testing.T) {
	s := newTestStandardizer(t)

	tests := []struct {
		name      string
		raw       string
		wantCode  string
		wantLevel int
		wantPurse string
	}{
		// Compound rule must win over the plain MAIDEN/CLAIMING keywords.
		{"maiden claiming", "MAIDEN CLAIMING", "CLAIMING", 1, "MAIDEN"},
		{"maiden clm", "MAIDEN CLM $10,000", "CLAIMING", 1, "MAIDEN"},
		{"graded one", "G1 STAKES", "G1", 10, "GRADED_STAKES"},
		{"graded three", "GRADE G3 HANDICAP", "G3", 8, "GRADED_STAKES"},
		{"listed", "LISTED HANDICAP", "LISTED", 7, "STAKES"},
		{"allowance word match", "ALLOWANCE N1X", "ALLOWANCE", 5, "ALLOWANCE"},
		{"claiming keyword", "CLAIMING $25,000", "CLAIMING", 2, "CLAIMING"},
		{"maiden keyword", "MAIDENS ONLY", "MAIDEN", 1, "MAIDEN"},
		{"stakes keyword", "OVERNIGHT STAKES", "STAKES", 6, "STAKES"},
		{"maiden special weight", "MSW", "MSW", 1, "MAIDEN"},
		{"other", "STARTER HANDICAP", "OTHER", 3, "OTHER"},
		{"empty", "", "UNKNOWN", 0, "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.RaceType(tt.raw)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantLevel, got.ClassLevel)
			assert.Equal(t, tt.wantPurse, got.PurseCategory)
		})
	}
}

func TestRaceType_CompoundBeatsWholeWord(t *testing.T) {
	s := newTestStandardizer(t)

	// "MAIDEN CLAIMING" contains both MAIDEN (level 1) and CLAIMING (level 2)
	// as whole words; the compound rule must fire before either.
	got := s.RaceType("MAIDEN CLAIMING")
	assert.Equal(t, 1, got.ClassLevel)
	assert.NotEqual(t, "MAIDEN", got.Code)
}

func TestPurseCategory(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{10, "GRADED_STAKES"},
		{8, "GRADED_STAKES"},
		{7, "STAKES"},
		{6, "STAKES"},
		{5, "ALLOWANCE"},
		{4, "ALLOWANCE"},
		{3, "CLAIMING"},
		{2, "CLAIMING"},
		{1, "MAIDEN"},
		{0, "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, purseCategory(tt.level), "level %d", tt.level)
	}
}

func TestAgeRestriction(t *testing.T) {
	s := newTestStandardizer(t)

	intp := func(n int) *int { return &n }

	tests := []struct {
		name string
		raw  string
		want AgeRange
	}{
		{"exact year", "3YO", AgeRange{Min: intp(3), Max: intp(3)}},
		{"up suffix", "4U", AgeRange{Min: intp(4)}},
		{"plus", "3+", AgeRange{Min: intp(3)}},
		{"range", "3-5", AgeRange{Min: intp(3), Max: intp(5)}},
		{"ampersand up", "4&UP", AgeRange{Min: intp(4)}},
		{"spelled out", "3 AND UP", AgeRange{Min: intp(3)}},
		{"years old and up", "4 YEARS OLD AND UP", AgeRange{Min: intp(4)}},
		{"lowercase", "3yo", AgeRange{Min: intp(3), Max: intp(3)}},
		{"unrecognized", "OPEN", AgeRange{}},
		{"empty", "", AgeRange{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.AgeRestriction(tt.raw))
		})
	}
}

func TestSexRestriction(t *testing.T) {
	s := newTestStandardizer(t)

	tests := []struct {
		name string
		raw  string
		want SexFlags
	}{
		{"fillies and mares", "FILLIES AND MARES", SexFlags{FilliesAndMares: true}},
		{"f&m shorthand", "F&M", SexFlags{FilliesAndMares: true}},
		{"fillies only", "FILLIES", SexFlags{FilliesOnly: true}},
		{"mares only", "MARES", SexFlags{MaresOnly: true}},
		{"colts and geldings", "COLTS AND GELDINGS", SexFlags{ColtsAndGeldings: true}},
		{"colts only", "COLTS", SexFlags{ColtsOnly: true}},
		{"geldings only", "GELDINGS", SexFlags{GeldingsOnly: true}},
		{"open race", "", SexFlags{}},
		{"unrelated text", "STATE BRED", SexFlags{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.SexRestriction(tt.raw))
		})
	}
}

func TestSexRestriction_CombinedSetsSingleFlag(t *testing.T) {
	s := newTestStandardizer(t)

	got := s.SexRestriction("FILLIES AND MARES")
	assert.True(t, got.FilliesAndMares)
	assert.False(t, got.FilliesOnly)
	assert.False(t, got.MaresOnly)
}

func TestEquipment(t *testing.T) {
	s := newTestStandardizer(t)

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"comma separated", "B,L1,T", []string{"BLINKERS", "LASIX_FIRST_TIME", "TONGUE_TIE"}},
		{"mixed delimiters", "B; L1 / T", []string{"BLINKERS", "LASIX_FIRST_TIME", "TONGUE_TIE"}},
		{"full names", "BLINKERS, LASIX", []string{"BLINKERS", "LASIX"}},
		{"salix alias", "SALIX", []string{"LASIX"}},
		{"duplicates collapse", "B,BLINKERS,B", []string{"BLINKERS"}},
		{"unknown kept verbatim", "B,XYZ", []string{"BLINKERS", "XYZ"}},
		{"unknown deduped", "XYZ XYZ", []string{"XYZ"}},
		{"lowercase input", "b,l1", []string{"BLINKERS", "LASIX_FIRST_TIME"}},
		{"empty", "", nil},
		{"whitespace", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Equipment(tt.raw))
		})
	}
}

func TestEquipmentDescription(t *testing.T) {
	assert.Equal(t, "Blinkers", EquipmentDescription("BLINKERS"))
	assert.Equal(t, "Lasix First Time", EquipmentDescription("LASIX_FIRST_TIME"))
}

func TestTrackCondition(t *testing.T) {
	s := newTestStandardizer(t)

	tests := []struct {
		raw  string
		want string
	}{
		{"FT", "FAST"},
		{"fast", "FAST"},
		{"GD", "GOOD"},
		{"SLPY", "SLOPPY"},
		{"MY", "MUDDY"},
		{"WET FAST", "WET_FAST"},
		{"YL", "YIELDING"},
		{"HV", "HEAVY"},
		{"FROZEN", "OTHER"},
		{"", "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.TrackCondition(tt.raw), "raw %q", tt.raw)
	}
}

func TestDistance(t *testing.T) {
	s := newTestStandardizer(t)

	intp := func(n int) *int { return &n }

	tests := []struct {
		name  string
		value string
		unit  string
		want  *int
	}{
		// Hundredths-encoded furlongs.
		{"six furlongs hundredths", "600", "F", intp(1320)},
		{"five and a half furlongs hundredths", "550", "F", intp(1210)},
		{"long furlongs hundredths", "1430", "F", intp(3146)},
		// Literal furlongs.
		{"literal furlongs", "6", "F", intp(1320)},
		{"fractional furlongs", "5.5", "F", intp(1210)},
		// Miles: one mile = 1600 in the hundredths scale.
		{"mile and a half hundredths", "2400", "M", intp(2640)},
		{"one mile hundredths", "1600", "M", intp(1760)},
		{"literal miles", "1.25", "M", intp(2200)},
		// Yards pass through truncated.
		{"yards identity", "1320", "Y", intp(1320)},
		{"yards truncated", "1320.9", "Y", intp(1320)},
		// Unit inferred from magnitude.
		{"inferred furlongs", "6", "", intp(1320)},
		{"inferred yards", "1320", "", intp(1320)},
		{"inferred miles hundredths", "240", "", intp(264)},
		// Unlabeled unit fallback heuristics.
		{"unknown unit small", "6", "X", intp(1320)},
		{"unknown unit hundredths", "600", "X", intp(1320)},
		{"unknown unit yards", "1320", "X", intp(1320)},
		{"unknown unit feet", "6000", "X", intp(2000)},
		{"unknown unit midrange", "50", "X", intp(11000)},
		// Totals, never errors.
		{"empty", "", "F", nil},
		{"non-numeric", "about six", "F", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Distance(tt.value, tt.unit)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestWeight(t *testing.T) {
	s := newTestStandardizer(t)

	tests := []struct {
		raw  string
		want *int
	}{
		{"126", intp(126)},
		{"118 lbs", intp(118)},
		{"wt: 122", intp(122)},
		{"", nil},
		{"unknown", nil},
	}
	for _, tt := range tests {
		got := s.Weight(tt.raw)
		if tt.want == nil {
			assert.Nil(t, got, "raw %q", tt.raw)
			continue
		}
		require.NotNil(t, got, "raw %q", tt.raw)
		assert.Equal(t, *tt.want, *got)
	}
}

func intp(n int) *int { return &n }

func TestMoney(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{"25000", fp(25000)},
		{"$25,000", fp(25000)},
		{"1,500.50", fp(1500.50)},
		{"", nil},
		{"TBD", nil},
	}
	for _, tt := range tests {
		got := Money(tt.raw)
		if tt.want == nil {
			assert.Nil(t, got, "raw %q", tt.raw)
			continue
		}
		require.NotNil(t, got, "raw %q", tt.raw)
		assert.Equal(t, *tt.want, *got)
	}
}

func fp(f float64) *float64 { return &f }

func TestRaceFeatures(t *testing.T) {
	s := newTestStandardizer(t)

	feats := s.RaceFeatures(RawRace{
		CourseType:     "D",
		TrackCondition: "FT",
		RaceType:       "MAIDEN CLAIMING",
		AgeRestriction: "3YO",
		SexRestriction: "FILLIES AND MARES",
		Distance:       "600",
		DistanceUnit:   "F",
		Purse:          "$32,000",
	})

	assert.Equal(t, "DIRT", feats.CourseTypeCode)
	assert.Equal(t, "FAST", feats.TrackCondition)
	assert.Equal(t, "CLAIMING", feats.Class.Code)
	assert.Equal(t, 1, feats.Class.ClassLevel)
	require.NotNil(t, feats.Age.Min)
	assert.Equal(t, 3, *feats.Age.Min)
	assert.True(t, feats.Sex.FilliesAndMares)
	require.NotNil(t, feats.DistanceYards)
	assert.Equal(t, 1320, *feats.DistanceYards)
	require.NotNil(t, feats.PurseUSD)
	assert.Equal(t, 32000.0, *feats.PurseUSD)
}

func TestEntryFeatures(t *testing.T) {
	s := newTestStandardizer(t)

	feats := s.EntryFeatures(RawEntry{
		Equipment:  "B,L1,T",
		Medication: "",
		Weight:     "122",
	})

	assert.Equal(t, []string{"BLINKERS", "LASIX_FIRST_TIME", "TONGUE_TIE"}, feats.EquipmentCodes)
	assert.True(t, feats.HasBlinkers)
	assert.True(t, feats.HasLasix)
	assert.True(t, feats.HasTongueTie)
	assert.False(t, feats.HasNasalStrip)
	require.NotNil(t, feats.WeightLbs)
	assert.Equal(t, 122, *feats.WeightLbs)
}

func TestEntryFeatures_LasixFromMedication(t *testing.T) {
	s := newTestStandardizer(t)

	feats := s.EntryFeatures(RawEntry{Equipment: "B", Medication: "L"})
	assert.True(t, feats.HasLasix)
	assert.Equal(t, []string{"LASIX"}, feats.MedicationCodes)
	assert.Equal(t, []string{"BLINKERS"}, feats.EquipmentCodes)
}
