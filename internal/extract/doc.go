// Package extract turns parsed racing documents into typed candidate
// records. Two source dialects are supported: pre-race entry cards
// (horse/trainer/owner entities plus race and entry records) and post-race
// result charts (result merges plus wagering, fraction and position-call
// facts). All value normalization is delegated to internal/normalize.
package extract

import (
	"bytes"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/trackline/racing-etl/internal/model"
)

// Batch is the set of candidate records extracted from a single document,
// together with local counts of items that could not be kept.
type Batch struct {
	Horses   []model.Horse
	Trainers []model.Person
	Owners   []model.Person

	Races     []model.Race
	Entries   []model.Entry
	Equipment []model.EquipmentRecord

	RaceResults   []model.RaceResult
	EntryResults  []model.EntryResult
	Fractions     []model.Fraction
	Wagering      []model.WageringRecord
	PositionCalls []model.PositionCall

	// Skipped counts records dropped for a missing natural-key field.
	Skipped int
	// ReferentialMisses counts result entries whose horse name resolved to
	// no persisted registration number.
	ReferentialMisses int
}

// decodeElements collects every element with the given local name from the
// document, at any depth, decoding each into T. Charset declarations other
// than UTF-8 are honored via the HTML index.
func decodeElements[T any](body []byte, localName string) ([]T, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var out []T
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "extract: read token")
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != localName {
			continue
		}

		var item T
		if err := decoder.DecodeElement(&item, &se); err != nil {
			return nil, eris.Wrapf(err, "extract: decode %s element", localName)
		}
		out = append(out, item)
	}
}

// --- pre-race entry card schema ---

type cardRace struct {
	RaceNumber          string        `xml:"RaceNumber"`
	RaceName            string        `xml:"RaceName"`
	ConditionText       string        `xml:"ConditionText"`
	PostTime            string        `xml:"PostTime"`
	MaximumClaimPrice   string        `xml:"MaximumClaimPrice"`
	MinimumClaimPrice   string        `xml:"MinimumClaimPrice"`
	CourseType          string        `xml:"Course>CourseType>Value"`
	RaceTypeDescription string        `xml:"RaceType>Description"`
	AgeRestriction      string        `xml:"AgeRestriction>Value"`
	SexRestriction      string        `xml:"SexRestriction>Value"`
	DistanceID          string        `xml:"Distance>DistanceId"`
	DistanceUnit        string        `xml:"Distance>DistanceUnit>Value"`
	PurseUSA            string        `xml:"PurseUSA"`
	Starters            []cardStarter `xml:"Starters"`
}

type cardStarter struct {
	ProgramNumber    string     `xml:"ProgramNumber"`
	PostPosition     string     `xml:"PostPosition"`
	ClaimedPriceUSA  string     `xml:"ClaimedPriceUSA"`
	Odds             string     `xml:"Odds"`
	ScratchIndicator string     `xml:"ScratchIndicator>Value"`
	Equipment        string     `xml:"Equipment>Value"`
	Medication       string     `xml:"Medication>Value"`
	WeightCarried    string     `xml:"WeightCarried"`
	Horse            *cardHorse `xml:"Horse"`
	Trainer          *cardParty `xml:"Trainer"`
	Owner            *cardParty `xml:"Owner"`
}

type cardHorse struct {
	RegistrationNumber string `xml:"RegistrationNumber"`
	HorseName          string `xml:"HorseName"`
	FoalingDate        string `xml:"FoalingDate"`
	YearOfBirth        string `xml:"YearOfBirth"`
	FoalingArea        string `xml:"FoalingArea"`
	BreedType          string `xml:"BreedType>Value"`
	ColorCode          string `xml:"Color>Value"`
	SexCode            string `xml:"Sex>Value"`
	BreederName        string `xml:"BreederName"`
	SireRegistration   string `xml:"Sire>RegistrationNumber"`
	DamRegistration    string `xml:"Dam>RegistrationNumber"`
}

type cardParty struct {
	ExternalPartyID string `xml:"ExternalPartyId"`
	FirstName       string `xml:"FirstName"`
	MiddleName      string `xml:"MiddleName"`
	LastName        string `xml:"LastName"`
	TypeSource      string `xml:"TypeSource"`
}

// --- post-race result chart schema ---

type chartDoc struct {
	RaceDate  string      `xml:"RACE_DATE,attr"`
	TrackCode string      `xml:"TRACK>CODE"`
	Races     []chartRace `xml:"RACE"`
}

type chartRace struct {
	Number        string `xml:"NUMBER,attr"`
	WinTime       string `xml:"WIN_TIME"`
	Fraction1     string `xml:"FRACTION_1"`
	Fraction2     string `xml:"FRACTION_2"`
	Fraction3     string `xml:"FRACTION_3"`
	Fraction4     string `xml:"FRACTION_4"`
	Fraction5     string `xml:"FRACTION_5"`
	TrackCond     string `xml:"TRK_COND"`
	Weather       string `xml:"WEATHER"`
	WindSpeed     string `xml:"WIND_SPEED"`
	WindDirection string `xml:"WIND_DIRECTION"`

	Wagers  []chartWager `xml:"EXOTIC_WAGERS>WAGER"`
	Entries []chartEntry `xml:"ENTRY"`
}

// fraction returns the raw FRACTION_n value for call positions 1..5.
func (r *chartRace) fraction(call int) string {
	switch call {
	case 1:
		return r.Fraction1
	case 2:
		return r.Fraction2
	case 3:
		return r.Fraction3
	case 4:
		return r.Fraction4
	case 5:
		return r.Fraction5
	default:
		return ""
	}
}

type chartWager struct {
	WagerType  string `xml:"WAGER_TYPE"`
	PoolTotal  string `xml:"POOL_TOTAL"`
	Winners    string `xml:"WINNERS"`
	Payoff     string `xml:"PAYOFF"`
	NumTickets string `xml:"NUM_TICKETS"`
}

type chartEntry struct {
	Name        string        `xml:"NAME"`
	OfficialFin string        `xml:"OFFICIAL_FIN"`
	FinishTime  string        `xml:"FINISH_TIME"`
	SpeedRating string        `xml:"SPEED_RATING"`
	WinPayoff   string        `xml:"WIN_PAYOFF"`
	PlacePayoff string        `xml:"PLACE_PAYOFF"`
	ShowPayoff  string        `xml:"SHOW_PAYOFF"`
	DollarOdds  string        `xml:"DOLLAR_ODDS"`
	Comment     string        `xml:"COMMENT"`
	JockeyKey   string        `xml:"JOCKEY>KEY"`
	TrainerKey  string        `xml:"TRAINER>KEY"`
	Calls       []pointOfCall `xml:"POINT_OF_CALL"`
}

type pointOfCall struct {
	Which    string `xml:"WHICH,attr"`
	Position string `xml:"POSITION"`
	Lengths  string `xml:"LENGTHS"`
}
