package model

import "fmt"

// DataSource identifies which feed a record came from.
type DataSource string

const (
	SourcePastPerformance DataSource = "past_performance"
	SourceResultChart     DataSource = "result_chart"
)

// Horse is the master entity for a racehorse, keyed by registration number.
// Created once during the entity phase and never mutated afterward.
type Horse struct {
	RegistrationNumber string `json:"registration_number"`
	Name               string `json:"name"`
	FoalingDate        string `json:"foaling_date,omitempty"` // YYYY-MM-DD
	YearOfBirth        *int   `json:"year_of_birth,omitempty"`
	FoalingArea        string `json:"foaling_area,omitempty"`
	BreedType          string `json:"breed_type,omitempty"`
	ColorCode          string `json:"color_code,omitempty"`
	SexCode            string `json:"sex_code,omitempty"`
	BreederName        string `json:"breeder_name,omitempty"`
	SireRegistration   string `json:"sire_registration,omitempty"`
	DamRegistration    string `json:"dam_registration,omitempty"`
}

// Person is a trainer or owner record, keyed by external party id.
type Person struct {
	ExternalPartyID string `json:"external_party_id"`
	FirstName       string `json:"first_name,omitempty"`
	MiddleName      string `json:"middle_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	TypeSource      string `json:"type_source,omitempty"`
}

// Race is keyed by track + date + number. Pre-race fields are written during
// the prerace phase; the Result* fields are merged in by the results phase.
type Race struct {
	RaceID     string `json:"race_id"`
	TrackCode  string `json:"track_code"`
	RaceDate   string `json:"race_date"` // YYYY-MM-DD
	RaceNumber int    `json:"race_number"`

	RaceName       string `json:"race_name,omitempty"`
	ConditionsText string `json:"conditions_text,omitempty"`

	CourseTypeCode      string `json:"course_type_code"`
	RaceTypeCode        string `json:"race_type_code"`
	RaceTypeDescription string `json:"race_type_description,omitempty"`
	TrackCondition      string `json:"track_condition,omitempty"`

	MinAge *int `json:"min_age,omitempty"`
	MaxAge *int `json:"max_age,omitempty"`

	FilliesAndMares  bool `json:"fillies_and_mares"`
	ColtsAndGeldings bool `json:"colts_and_geldings"`
	FilliesOnly      bool `json:"fillies_only"`
	MaresOnly        bool `json:"mares_only"`
	ColtsOnly        bool `json:"colts_only"`
	GeldingsOnly     bool `json:"geldings_only"`

	DistanceYards *int     `json:"distance_yards,omitempty"`
	PurseUSD      *float64 `json:"purse_usd,omitempty"`
	MaxClaimPrice string   `json:"max_claim_price,omitempty"`
	MinClaimPrice string   `json:"min_claim_price,omitempty"`

	ClassLevel    int    `json:"class_level"`
	PurseCategory string `json:"purse_category"`
	PostTime      string `json:"post_time,omitempty"`

	SourceFile string     `json:"source_file,omitempty"`
	DataSource DataSource `json:"data_source,omitempty"`
}

// RaceResult carries the post-race fields merged onto an existing Race row.
type RaceResult struct {
	RaceID            string   `json:"race_id"`
	WinningTime       *float64 `json:"winning_time,omitempty"`
	FinalFractionTime *float64 `json:"final_fraction_time,omitempty"`
	TrackCondition    string   `json:"track_condition,omitempty"`
	Weather           string   `json:"weather,omitempty"`
	WindSpeed         *float64 `json:"wind_speed,omitempty"`
	WindDirection     string   `json:"wind_direction,omitempty"`
}

// Entry is one horse's start in one race, keyed by race + registration.
type Entry struct {
	EntryID            string `json:"entry_id"`
	RaceID             string `json:"race_id"`
	RegistrationNumber string `json:"registration_number"`

	ProgramNumber string   `json:"program_number,omitempty"`
	PostPosition  *int     `json:"post_position,omitempty"`
	WeightLbs     *int     `json:"weight_lbs,omitempty"`
	AgeAtRace     *int     `json:"age_at_race,omitempty"`
	ClaimPrice    *float64 `json:"claim_price,omitempty"`
	MorningOdds   *float64 `json:"morning_line_odds,omitempty"`

	HasBlinkers    bool `json:"has_blinkers"`
	HasLasix       bool `json:"has_lasix"`
	HasTongueTie   bool `json:"has_tongue_tie"`
	HasNasalStrip  bool `json:"has_nasal_strip"`
	HasShadowRoll  bool `json:"has_shadow_roll"`
	HasCheekPieces bool `json:"has_cheek_pieces"`
	HasEarPlugs    bool `json:"has_ear_plugs"`
	HasHood        bool `json:"has_hood"`

	TrainerID string `json:"trainer_id,omitempty"`
	OwnerID   string `json:"owner_id,omitempty"`
	Scratched bool   `json:"scratched"`

	SourceFile string     `json:"source_file,omitempty"`
	DataSource DataSource `json:"data_source,omitempty"`
}

// EntryResult carries the post-race fields merged onto an existing Entry row.
type EntryResult struct {
	EntryID            string   `json:"entry_id"`
	RaceID             string   `json:"race_id"`
	RegistrationNumber string   `json:"registration_number"`
	FinishPosition     *int     `json:"official_finish_position,omitempty"`
	FinalTime          *float64 `json:"final_time,omitempty"`
	SpeedRating        *float64 `json:"speed_rating,omitempty"`
	WinPayoff          *float64 `json:"win_payoff,omitempty"`
	PlacePayoff        *float64 `json:"place_payoff,omitempty"`
	ShowPayoff         *float64 `json:"show_payoff,omitempty"`
	ActualOdds         *float64 `json:"actual_odds,omitempty"`
	RaceComments       string   `json:"race_comments,omitempty"`
	JockeyID           string   `json:"jockey_id,omitempty"`
	TrainerID          string   `json:"trainer_id,omitempty"`
}

// EquipmentRecord is one canonical equipment token worn by one horse in one race.
type EquipmentRecord struct {
	RaceID             string `json:"race_id"`
	RegistrationNumber string `json:"registration_number"`
	Code               string `json:"equipment_code"`
	Description        string `json:"equipment_description"`
	IsFirstTime        bool   `json:"is_first_time"`
}

// Fraction is one fractional time call for a race.
type Fraction struct {
	RaceID        string  `json:"race_id"`
	CallPosition  int     `json:"call_position"`
	DistanceYards *int    `json:"distance_yards,omitempty"`
	FractionTime  float64 `json:"fraction_time"`
	LeaderAtCall  string  `json:"leader_at_call,omitempty"`
}

// WageringRecord is one exotic wager pool/payout for a race.
type WageringRecord struct {
	RaceID       string   `json:"race_id"`
	WagerType    string   `json:"wager_type"`
	PoolTotal    *float64 `json:"pool_total,omitempty"`
	Combinations string   `json:"winning_combinations,omitempty"`
	Payout       *float64 `json:"payout,omitempty"`
	NumWinners   *float64 `json:"number_of_winners,omitempty"`
}

// PositionCall is one point-of-call position for a horse within a race.
type PositionCall struct {
	RaceID             string   `json:"race_id"`
	RegistrationNumber string   `json:"registration_number"`
	CallPosition       int      `json:"call_position"`
	Position           float64  `json:"position"`
	LengthsBehind      *float64 `json:"lengths_behind,omitempty"`
}

// RaceKey builds the natural key that joins race rows across phases. The
// format must stay byte-identical between the prerace and results phases.
func RaceKey(trackCode, raceDate string, raceNumber string) string {
	return fmt.Sprintf("%s_%s_%s", trackCode, raceDate, raceNumber)
}

// EntryKey builds the natural key for an entry from its race key and the
// horse's registration number.
func EntryKey(raceID, registrationNumber string) string {
	return fmt.Sprintf("%s_%s", raceID, registrationNumber)
}
