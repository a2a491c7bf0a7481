package extract

import (
	"context"
	"strconv"

	"github.com/trackline/racing-etl/internal/feed"
	"github.com/trackline/racing-etl/internal/model"
)

// Entities extracts horse, trainer and owner candidates from one pre-race
// entry card. Records without their natural key are dropped and counted as
// skips; the caller decides whether a decode failure aborts the file.
func Entities(ctx context.Context, doc feed.Document) (*Batch, error) {
	races, err := decodeElements[cardRace](doc.Body, "Race")
	if err != nil {
		return nil, err
	}

	batch := &Batch{}
	for _, race := range races {
		for _, starter := range race.Starters {
			if starter.Horse != nil {
				if horse, ok := horseFrom(starter.Horse); ok {
					batch.Horses = append(batch.Horses, horse)
				} else {
					batch.Skipped++
				}
			}
			if starter.Trainer != nil {
				if person, ok := personFrom(starter.Trainer); ok {
					batch.Trainers = append(batch.Trainers, person)
				} else {
					batch.Skipped++
				}
			}
			if starter.Owner != nil {
				if person, ok := personFrom(starter.Owner); ok {
					batch.Owners = append(batch.Owners, person)
				} else {
					batch.Skipped++
				}
			}
		}
	}
	return batch, nil
}

func horseFrom(h *cardHorse) (model.Horse, bool) {
	registration := cleanText(h.RegistrationNumber)
	if registration == "" {
		return model.Horse{}, false
	}

	horse := model.Horse{
		RegistrationNumber: registration,
		Name:               cleanText(h.HorseName),
		FoalingDate:        cleanDate(h.FoalingDate),
		FoalingArea:        cleanText(h.FoalingArea),
		BreedType:          cleanText(h.BreedType),
		ColorCode:          cleanText(h.ColorCode),
		SexCode:            cleanText(h.SexCode),
		BreederName:        cleanText(h.BreederName),
		SireRegistration:   cleanText(h.SireRegistration),
		DamRegistration:    cleanText(h.DamRegistration),
	}
	if yob, err := strconv.Atoi(cleanText(h.YearOfBirth)); err == nil {
		horse.YearOfBirth = &yob
	}
	return horse, true
}

func personFrom(p *cardParty) (model.Person, bool) {
	id := cleanText(p.ExternalPartyID)
	if id == "" {
		return model.Person{}, false
	}
	return model.Person{
		ExternalPartyID: id,
		FirstName:       cleanText(p.FirstName),
		MiddleName:      cleanText(p.MiddleName),
		LastName:        cleanText(p.LastName),
		TypeSource:      cleanText(p.TypeSource),
	}, true
}
