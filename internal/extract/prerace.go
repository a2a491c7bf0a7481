package extract

import (
	"context"
	"strconv"
	"strings"

	"github.com/trackline/racing-etl/internal/feed"
	"github.com/trackline/racing-etl/internal/model"
	"github.com/trackline/racing-etl/internal/normalize"
)

// PreRace extracts race and entry candidates (plus per-entry equipment
// facts) from one entry card. Track code and race date come from the
// document name; a race without a number, or an entry without a horse
// registration, is a counted skip.
func PreRace(ctx context.Context, std *normalize.Standardizer, doc feed.Document) (*Batch, error) {
	races, err := decodeElements[cardRace](doc.Body, "Race")
	if err != nil {
		return nil, err
	}

	trackCode, raceDate := raceContext(doc.Name)

	batch := &Batch{}
	for _, cr := range races {
		race, ok := raceFrom(std, &cr, trackCode, raceDate, doc.Name)
		if !ok {
			batch.Skipped++
			continue
		}
		batch.Races = append(batch.Races, race)

		for _, starter := range cr.Starters {
			entry, ok := entryFrom(std, &starter, race.RaceID, doc.Name)
			if !ok {
				batch.Skipped++
				continue
			}
			batch.Entries = append(batch.Entries, entry)
			batch.Equipment = append(batch.Equipment,
				equipmentRecords(std, &starter, race.RaceID, entry.RegistrationNumber)...)
		}
	}
	return batch, nil
}

func raceFrom(std *normalize.Standardizer, cr *cardRace, trackCode, raceDate, sourceFile string) (model.Race, bool) {
	number := cleanText(cr.RaceNumber)
	if number == "" {
		return model.Race{}, false
	}
	raceNumber, err := strconv.Atoi(number)
	if err != nil {
		return model.Race{}, false
	}

	feats := std.RaceFeatures(normalize.RawRace{
		CourseType:     cleanText(cr.CourseType),
		RaceType:       cleanText(cr.RaceTypeDescription),
		AgeRestriction: cleanText(cr.AgeRestriction),
		SexRestriction: cleanText(cr.SexRestriction),
		Distance:       cleanText(cr.DistanceID),
		DistanceUnit:   cleanText(cr.DistanceUnit),
		Purse:          cleanText(cr.PurseUSA),
	})

	return model.Race{
		RaceID:     model.RaceKey(trackCode, raceDate, number),
		TrackCode:  trackCode,
		RaceDate:   raceDate,
		RaceNumber: raceNumber,

		RaceName:       cleanText(cr.RaceName),
		ConditionsText: cleanText(cr.ConditionText),

		CourseTypeCode:      feats.CourseTypeCode,
		RaceTypeCode:        feats.Class.Code,
		RaceTypeDescription: feats.Class.Description,
		TrackCondition:      feats.TrackCondition,

		MinAge: feats.Age.Min,
		MaxAge: feats.Age.Max,

		FilliesAndMares:  feats.Sex.FilliesAndMares,
		ColtsAndGeldings: feats.Sex.ColtsAndGeldings,
		FilliesOnly:      feats.Sex.FilliesOnly,
		MaresOnly:        feats.Sex.MaresOnly,
		ColtsOnly:        feats.Sex.ColtsOnly,
		GeldingsOnly:     feats.Sex.GeldingsOnly,

		DistanceYards: feats.DistanceYards,
		PurseUSD:      feats.PurseUSD,
		MaxClaimPrice: cleanText(cr.MaximumClaimPrice),
		MinClaimPrice: cleanText(cr.MinimumClaimPrice),

		ClassLevel:    feats.Class.ClassLevel,
		PurseCategory: feats.Class.PurseCategory,
		PostTime:      cleanText(cr.PostTime),

		SourceFile: sourceFile,
		DataSource: model.SourcePastPerformance,
	}, true
}

func entryFrom(std *normalize.Standardizer, starter *cardStarter, raceID, sourceFile string) (model.Entry, bool) {
	if starter.Horse == nil {
		return model.Entry{}, false
	}
	registration := cleanText(starter.Horse.RegistrationNumber)
	if registration == "" {
		return model.Entry{}, false
	}

	feats := std.EntryFeatures(normalize.RawEntry{
		Equipment:  cleanText(starter.Equipment),
		Medication: cleanText(starter.Medication),
		Weight:     cleanText(starter.WeightCarried),
	})

	entry := model.Entry{
		EntryID:            model.EntryKey(raceID, registration),
		RaceID:             raceID,
		RegistrationNumber: registration,

		ProgramNumber: cleanText(starter.ProgramNumber),
		PostPosition:  parseIntClean(starter.PostPosition),
		WeightLbs:     feats.WeightLbs,
		AgeAtRace:     ageAtRace(raceID, cleanText(starter.Horse.YearOfBirth)),
		ClaimPrice:    parseNumeric(starter.ClaimedPriceUSA),
		MorningOdds:   parseOdds(starter.Odds),

		HasBlinkers:    feats.HasBlinkers,
		HasLasix:       feats.HasLasix,
		HasTongueTie:   feats.HasTongueTie,
		HasNasalStrip:  feats.HasNasalStrip,
		HasShadowRoll:  feats.HasShadowRoll,
		HasCheekPieces: feats.HasCheekPieces,
		HasEarPlugs:    feats.HasEarPlugs,
		HasHood:        feats.HasHood,

		TrainerID: cleanText(starter.Trainer.partyID()),
		OwnerID:   cleanText(starter.Owner.partyID()),
		Scratched: cleanText(starter.ScratchIndicator) != "",

		SourceFile: sourceFile,
		DataSource: model.SourcePastPerformance,
	}
	return entry, true
}

// partyID tolerates an absent Trainer/Owner element.
func (p *cardParty) partyID() string {
	if p == nil {
		return ""
	}
	return p.ExternalPartyID
}

// ageAtRace derives the horse's age in the race year from its year of birth.
// The race year comes out of the race key's date segment.
func ageAtRace(raceID, yearOfBirth string) *int {
	if yearOfBirth == "" {
		return nil
	}
	yob, err := strconv.Atoi(yearOfBirth)
	if err != nil {
		return nil
	}
	parts := strings.Split(raceID, "_")
	if len(parts) < 2 {
		return nil
	}
	ry := raceYear(parts[1])
	if ry == nil {
		return nil
	}
	age := *ry - yob
	return &age
}

// equipmentRecords expands an entry's canonical equipment tokens into
// append-only junction facts.
func equipmentRecords(std *normalize.Standardizer, starter *cardStarter, raceID, registration string) []model.EquipmentRecord {
	codes := std.Equipment(cleanText(starter.Equipment))
	records := make([]model.EquipmentRecord, 0, len(codes))
	for _, code := range codes {
		records = append(records, model.EquipmentRecord{
			RaceID:             raceID,
			RegistrationNumber: registration,
			Code:               code,
			Description:        normalize.EquipmentDescription(code),
			IsFirstTime:        strings.Contains(code, "FIRST_TIME"),
		})
	}
	return records
}
