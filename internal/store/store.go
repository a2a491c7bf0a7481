// Package store persists normalized racing records. Two backends share one
// interface: an embedded SQLite file for local runs and Postgres for shared
// deployments. All inserts are insert-or-ignore on the record's natural key,
// so replaying a feed never duplicates rows.
package store

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/trackline/racing-etl/internal/model"
)

// ErrNotFound is returned by lookups that matched no row.
var ErrNotFound = errors.New("store: not found")

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Batch is one flush worth of records, written atomically.
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
}

// Len is the total record count across every kind.
func (b *Batch) Len() int {
	return len(b.Horses) + len(b.Trainers) + len(b.Owners) +
		len(b.Races) + len(b.Entries) + len(b.Equipment) +
		len(b.RaceResults) + len(b.EntryResults) +
		len(b.Fractions) + len(b.Wagering) + len(b.PositionCalls)
}

// BatchCounts reports what one Apply wrote.
type BatchCounts struct {
	// Inserted is the per-table count of rows actually written; rows whose
	// natural key already existed are not counted.
	Inserted map[string]int64
	// Updated and UpdateMisses track result merges; a miss is a result
	// whose race or entry row does not exist.
	Updated      int64
	UpdateMisses int64
}

// Store is the persistence contract for the ingestion pipeline.
type Store interface {
	Migrate(ctx context.Context) error

	// Apply writes every record in the batch inside a single transaction.
	// Either the whole batch commits or none of it does.
	Apply(ctx context.Context, b *Batch) (BatchCounts, error)

	// LookupHorseByName resolves a horse name from the result charts to the
	// registration number persisted during the entity phase. When several
	// horses share a name the most recently foaled one wins.
	LookupHorseByName(ctx context.Context, name string) (string, error)

	StartRun(ctx context.Context, run model.RunRecord) error
	CompleteRun(ctx context.Context, run model.RunRecord) error
	// ListRuns returns the most recent phase runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)

	// CountRows reports the row count of one of the known tables.
	CountRows(ctx context.Context, table string) (int64, error)

	Close() error
}

// Tables lists every table the schema creates, in creation order. CountRows
// accepts only these names.
var Tables = []string{
	"horses",
	"trainers",
	"owners",
	"races",
	"entries",
	"race_equipment",
	"race_fractions",
	"race_wagering",
	"position_calls",
	"ingest_runs",
}

func knownTable(table string) bool {
	for _, t := range Tables {
		if t == table {
			return true
		}
	}
	return false
}

// Config selects and configures a backend.
type Config struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	// Path is the database file location for the sqlite driver.
	Path string `mapstructure:"path" yaml:"path"`
	// DSN is the connection string for the postgres driver.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// Open builds the store named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return NewSQLiteStore(cfg.Path)
	case DriverPostgres:
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// Row builders shared by both backends. Argument order must match the
// column order of the backend statements.

func horseRows(horses []model.Horse) [][]any {
	rows := make([][]any, 0, len(horses))
	for _, h := range horses {
		rows = append(rows, []any{
			h.RegistrationNumber, h.Name, h.FoalingDate, h.YearOfBirth, h.FoalingArea,
			h.BreedType, h.ColorCode, h.SexCode, h.BreederName, h.SireRegistration, h.DamRegistration,
		})
	}
	return rows
}

func personRows(persons []model.Person) [][]any {
	rows := make([][]any, 0, len(persons))
	for _, p := range persons {
		rows = append(rows, []any{p.ExternalPartyID, p.FirstName, p.MiddleName, p.LastName, p.TypeSource})
	}
	return rows
}

func raceRows(races []model.Race) [][]any {
	rows := make([][]any, 0, len(races))
	for _, r := range races {
		rows = append(rows, []any{
			r.RaceID, r.TrackCode, r.RaceDate, r.RaceNumber, r.RaceName, r.ConditionsText,
			r.CourseTypeCode, r.RaceTypeCode, r.RaceTypeDescription, r.TrackCondition,
			r.MinAge, r.MaxAge, r.FilliesAndMares, r.ColtsAndGeldings, r.FilliesOnly,
			r.MaresOnly, r.ColtsOnly, r.GeldingsOnly, r.DistanceYards, r.PurseUSD,
			r.MaxClaimPrice, r.MinClaimPrice, r.ClassLevel, r.PurseCategory, r.PostTime,
			r.SourceFile, string(r.DataSource),
		})
	}
	return rows
}

func entryRows(entries []model.Entry) [][]any {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{
			e.EntryID, e.RaceID, e.RegistrationNumber, e.ProgramNumber, e.PostPosition,
			e.WeightLbs, e.AgeAtRace, e.ClaimPrice, e.MorningOdds,
			e.HasBlinkers, e.HasLasix, e.HasTongueTie, e.HasNasalStrip, e.HasShadowRoll,
			e.HasCheekPieces, e.HasEarPlugs, e.HasHood,
			e.TrainerID, e.OwnerID, e.Scratched, e.SourceFile, string(e.DataSource),
		})
	}
	return rows
}

func equipmentRows(recs []model.EquipmentRecord) [][]any {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []any{r.RaceID, r.RegistrationNumber, r.Code, r.Description, r.IsFirstTime})
	}
	return rows
}

func fractionRows(fractions []model.Fraction) [][]any {
	rows := make([][]any, 0, len(fractions))
	for _, f := range fractions {
		rows = append(rows, []any{f.RaceID, f.CallPosition, f.DistanceYards, f.FractionTime, f.LeaderAtCall})
	}
	return rows
}

func wageringRows(recs []model.WageringRecord) [][]any {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []any{r.RaceID, r.WagerType, r.PoolTotal, r.Combinations, r.Payout, r.NumWinners})
	}
	return rows
}

func callRows(calls []model.PositionCall) [][]any {
	rows := make([][]any, 0, len(calls))
	for _, c := range calls {
		rows = append(rows, []any{c.RaceID, c.RegistrationNumber, c.CallPosition, c.Position, c.LengthsBehind})
	}
	return rows
}

func raceResultRows(results []model.RaceResult) [][]any {
	rows := make([][]any, 0, len(results))
	for _, r := range results {
		rows = append(rows, []any{
			r.WinningTime, r.FinalFractionTime, r.TrackCondition,
			r.Weather, r.WindSpeed, r.WindDirection, r.RaceID,
		})
	}
	return rows
}

func entryResultRows(results []model.EntryResult) [][]any {
	rows := make([][]any, 0, len(results))
	for _, r := range results {
		rows = append(rows, []any{
			r.FinishPosition, r.FinalTime, r.SpeedRating,
			r.WinPayoff, r.PlacePayoff, r.ShowPayoff,
			r.ActualOdds, r.RaceComments, r.JockeyID, r.TrainerID, r.EntryID,
		})
	}
	return rows
}
