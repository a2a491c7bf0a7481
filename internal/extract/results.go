package extract

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/trackline/racing-etl/internal/feed"
	"github.com/trackline/racing-etl/internal/model"
	"github.com/trackline/racing-etl/internal/normalize"
)

// HorseResolver resolves a horse display name to its registration number.
// Result charts reference horses by name only, so entry merges need a point
// query against already-persisted horses.
type HorseResolver interface {
	LookupHorseByName(ctx context.Context, name string) (string, error)
}

// approximate distances for fraction calls 1..5; race-specific data would be
// needed for exact values.
var fractionCallYards = map[int]int{
	1: 440,
	2: 880,
	3: 1320,
	4: 1760,
	5: 2200,
}

// Results extracts race and entry result merges plus wagering, fraction and
// position-call facts from one result chart. A horse name the resolver
// cannot match is a counted referential miss, never an error.
func Results(ctx context.Context, std *normalize.Standardizer, horses HorseResolver, doc feed.Document) (*Batch, error) {
	charts, err := decodeElements[chartDoc](doc.Body, "CHART")
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "extract"), zap.String("doc", doc.Name))

	batch := &Batch{}
	for _, chart := range charts {
		raceDate := cleanText(chart.RaceDate)
		trackCode := cleanText(chart.TrackCode)
		if raceDate == "" || trackCode == "" {
			batch.Skipped++
			continue
		}

		for _, race := range chart.Races {
			number := cleanText(race.Number)
			if number == "" {
				batch.Skipped++
				continue
			}
			raceID := model.RaceKey(trackCode, raceDate, number)

			batch.RaceResults = append(batch.RaceResults, raceResultFrom(std, &race, raceID))
			batch.Fractions = append(batch.Fractions, fractionsFrom(&race, raceID)...)
			batch.Wagering = append(batch.Wagering, wageringFrom(&race, raceID)...)

			for _, entry := range race.Entries {
				name := cleanText(entry.Name)
				if name == "" {
					batch.Skipped++
					continue
				}

				registration, err := horses.LookupHorseByName(ctx, name)
				if err != nil || registration == "" {
					log.Warn("no registration number for horse", zap.String("horse", name))
					batch.ReferentialMisses++
					continue
				}

				batch.EntryResults = append(batch.EntryResults, entryResultFrom(&entry, raceID, registration))
				batch.PositionCalls = append(batch.PositionCalls, positionCallsFrom(&entry, raceID, registration)...)
			}
		}
	}
	return batch, nil
}

func raceResultFrom(std *normalize.Standardizer, race *chartRace, raceID string) model.RaceResult {
	return model.RaceResult{
		RaceID:            raceID,
		WinningTime:       parseSeconds(race.WinTime),
		FinalFractionTime: parseSeconds(race.Fraction5),
		TrackCondition:    std.TrackCondition(cleanText(race.TrackCond)),
		Weather:           cleanText(race.Weather),
		WindSpeed:         parseNumeric(race.WindSpeed),
		WindDirection:     cleanText(race.WindDirection),
	}
}

func fractionsFrom(race *chartRace, raceID string) []model.Fraction {
	var fractions []model.Fraction
	for call := 1; call <= 5; call++ {
		t := parseSeconds(race.fraction(call))
		if t == nil {
			continue
		}
		yards := fractionCallYards[call]
		fractions = append(fractions, model.Fraction{
			RaceID:        raceID,
			CallPosition:  call,
			DistanceYards: &yards,
			FractionTime:  *t,
		})
	}
	return fractions
}

func wageringFrom(race *chartRace, raceID string) []model.WageringRecord {
	var records []model.WageringRecord
	for _, wager := range race.Wagers {
		wagerType := cleanText(wager.WagerType)
		if wagerType == "" {
			continue
		}
		records = append(records, model.WageringRecord{
			RaceID:       raceID,
			WagerType:    wagerType,
			PoolTotal:    parseNumeric(wager.PoolTotal),
			Combinations: cleanText(wager.Winners),
			Payout:       parseNumeric(wager.Payoff),
			NumWinners:   parseNumeric(wager.NumTickets),
		})
	}
	return records
}

func entryResultFrom(entry *chartEntry, raceID, registration string) model.EntryResult {
	var finish *int
	if f := parseNumeric(entry.OfficialFin); f != nil {
		n := int(*f)
		finish = &n
	}
	return model.EntryResult{
		EntryID:            model.EntryKey(raceID, registration),
		RaceID:             raceID,
		RegistrationNumber: registration,
		FinishPosition:     finish,
		FinalTime:          parseSeconds(entry.FinishTime),
		SpeedRating:        parseNumeric(entry.SpeedRating),
		WinPayoff:          parseNumeric(entry.WinPayoff),
		PlacePayoff:        parseNumeric(entry.PlacePayoff),
		ShowPayoff:         parseNumeric(entry.ShowPayoff),
		ActualOdds:         parseNumeric(entry.DollarOdds),
		RaceComments:       cleanText(entry.Comment),
		JockeyID:           cleanText(entry.JockeyKey),
		TrainerID:          cleanText(entry.TrainerKey),
	}
}

func positionCallsFrom(entry *chartEntry, raceID, registration string) []model.PositionCall {
	var calls []model.PositionCall
	for _, call := range entry.Calls {
		which := cleanText(call.Which)
		position := parseNumeric(call.Position)
		if which == "" || position == nil {
			continue
		}
		calls = append(calls, model.PositionCall{
			RaceID:             raceID,
			RegistrationNumber: registration,
			CallPosition:       callPosition(which),
			Position:           *position,
			LengthsBehind:      parseNumeric(call.Lengths),
		})
	}
	return calls
}

// callPosition maps the chart's WHICH attribute to a numeric call slot;
// FINAL is slot 6, unrecognized text is slot 0.
func callPosition(which string) int {
	if which == "FINAL" {
		return 6
	}
	if n, err := strconv.Atoi(which); err == nil {
		return n
	}
	return 0
}
