package normalize

import "strings"

// RawRace carries the raw pre-race fields that feed race standardization.
type RawRace struct {
	CourseType     string
	TrackCondition string
	RaceType       string
	AgeRestriction string
	SexRestriction string
	Distance       string
	DistanceUnit   string
	Purse          string
}

// RaceFeatures is the full standardized field set for one race.
type RaceFeatures struct {
	CourseTypeCode string
	TrackCondition string
	Class          RaceClass
	Age            AgeRange
	Sex            SexFlags
	DistanceYards  *int
	PurseUSD       *float64
}

// RaceFeatures applies every race-level standardization rule exactly once and
// merges the results.
func (s *Standardizer) RaceFeatures(raw RawRace) RaceFeatures {
	return RaceFeatures{
		CourseTypeCode: s.CourseType(raw.CourseType),
		TrackCondition: s.TrackCondition(raw.TrackCondition),
		Class:          s.RaceType(raw.RaceType),
		Age:            s.AgeRestriction(raw.AgeRestriction),
		Sex:            s.SexRestriction(raw.SexRestriction),
		DistanceYards:  s.Distance(raw.Distance, raw.DistanceUnit),
		PurseUSD:       Money(raw.Purse),
	}
}

// RawEntry carries the raw per-starter fields that feed entry standardization.
type RawEntry struct {
	Equipment  string
	Medication string
	Weight     string
}

// EntryFeatures is the standardized per-starter field set.
type EntryFeatures struct {
	EquipmentCodes  []string
	MedicationCodes []string
	WeightLbs       *int

	HasBlinkers    bool
	HasLasix       bool
	HasTongueTie   bool
	HasNasalStrip  bool
	HasShadowRoll  bool
	HasCheekPieces bool
	HasEarPlugs    bool
	HasHood        bool
}

// EntryFeatures standardizes one starter's equipment, medication and weight.
// Lasix is flagged whether it appears under equipment or medication, and
// first-time variants count toward the base flag.
func (s *Standardizer) EntryFeatures(raw RawEntry) EntryFeatures {
	equipment := s.Equipment(raw.Equipment)
	medication := s.Equipment(raw.Medication)

	all := make([]string, 0, len(equipment)+len(medication))
	all = append(all, equipment...)
	all = append(all, medication...)

	return EntryFeatures{
		EquipmentCodes:  equipment,
		MedicationCodes: medication,
		WeightLbs:       s.Weight(raw.Weight),
		HasBlinkers:     anyContains(equipment, "BLINKERS"),
		HasLasix:        anyContains(all, "LASIX"),
		HasTongueTie:    anyContains(equipment, "TONGUE_TIE"),
		HasNasalStrip:   anyContains(equipment, "NASAL_STRIP"),
		HasShadowRoll:   anyContains(equipment, "SHADOW_ROLL"),
		HasCheekPieces:  anyContains(equipment, "CHEEK_PIECES"),
		HasEarPlugs:     anyContains(equipment, "EAR_PLUGS"),
		HasHood:         anyContains(equipment, "HOOD"),
	}
}

func anyContains(codes []string, fragment string) bool {
	for _, c := range codes {
		if strings.Contains(c, fragment) {
			return true
		}
	}
	return false
}
