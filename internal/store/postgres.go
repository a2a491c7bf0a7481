package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trackline/racing-etl/internal/db"
	"github.com/trackline/racing-etl/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS horses (
	registration_number TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	foaling_date        TEXT,
	year_of_birth       INTEGER,
	foaling_area        TEXT,
	breed_type          TEXT,
	color_code          TEXT,
	sex_code            TEXT,
	breeder_name        TEXT,
	sire_registration   TEXT,
	dam_registration    TEXT
);

CREATE TABLE IF NOT EXISTS trainers (
	external_party_id TEXT PRIMARY KEY,
	first_name        TEXT,
	middle_name       TEXT,
	last_name         TEXT,
	type_source       TEXT
);

CREATE TABLE IF NOT EXISTS owners (
	external_party_id TEXT PRIMARY KEY,
	first_name        TEXT,
	middle_name       TEXT,
	last_name         TEXT,
	type_source       TEXT
);

CREATE TABLE IF NOT EXISTS races (
	race_id               TEXT PRIMARY KEY,
	track_code            TEXT NOT NULL,
	race_date             DATE NOT NULL,
	race_number           INTEGER NOT NULL,
	race_name             TEXT,
	conditions_text       TEXT,
	course_type_code      TEXT,
	race_type_code        TEXT,
	race_type_description TEXT,
	track_condition       TEXT,
	min_age               INTEGER,
	max_age               INTEGER,
	fillies_and_mares     BOOLEAN NOT NULL DEFAULT FALSE,
	colts_and_geldings    BOOLEAN NOT NULL DEFAULT FALSE,
	fillies_only          BOOLEAN NOT NULL DEFAULT FALSE,
	mares_only            BOOLEAN NOT NULL DEFAULT FALSE,
	colts_only            BOOLEAN NOT NULL DEFAULT FALSE,
	geldings_only         BOOLEAN NOT NULL DEFAULT FALSE,
	distance_yards        INTEGER,
	purse_usd             DOUBLE PRECISION,
	max_claim_price       TEXT,
	min_claim_price       TEXT,
	class_level           INTEGER NOT NULL DEFAULT 0,
	purse_category        TEXT,
	post_time             TEXT,
	winning_time          DOUBLE PRECISION,
	final_fraction_time   DOUBLE PRECISION,
	weather               TEXT,
	wind_speed            DOUBLE PRECISION,
	wind_direction        TEXT,
	source_file           TEXT,
	data_source           TEXT
);

CREATE TABLE IF NOT EXISTS entries (
	entry_id                 TEXT PRIMARY KEY,
	race_id                  TEXT NOT NULL,
	registration_number      TEXT NOT NULL,
	program_number           TEXT,
	post_position            INTEGER,
	weight_lbs               INTEGER,
	age_at_race              INTEGER,
	claim_price              DOUBLE PRECISION,
	morning_line_odds        DOUBLE PRECISION,
	has_blinkers             BOOLEAN NOT NULL DEFAULT FALSE,
	has_lasix                BOOLEAN NOT NULL DEFAULT FALSE,
	has_tongue_tie           BOOLEAN NOT NULL DEFAULT FALSE,
	has_nasal_strip          BOOLEAN NOT NULL DEFAULT FALSE,
	has_shadow_roll          BOOLEAN NOT NULL DEFAULT FALSE,
	has_cheek_pieces         BOOLEAN NOT NULL DEFAULT FALSE,
	has_ear_plugs            BOOLEAN NOT NULL DEFAULT FALSE,
	has_hood                 BOOLEAN NOT NULL DEFAULT FALSE,
	trainer_id               TEXT,
	owner_id                 TEXT,
	scratched                BOOLEAN NOT NULL DEFAULT FALSE,
	official_finish_position INTEGER,
	final_time               DOUBLE PRECISION,
	speed_rating             DOUBLE PRECISION,
	win_payoff               DOUBLE PRECISION,
	place_payoff             DOUBLE PRECISION,
	show_payoff              DOUBLE PRECISION,
	actual_odds              DOUBLE PRECISION,
	race_comments            TEXT,
	jockey_id                TEXT,
	source_file              TEXT,
	data_source              TEXT
);

CREATE TABLE IF NOT EXISTS race_equipment (
	race_id               TEXT NOT NULL,
	registration_number   TEXT NOT NULL,
	equipment_code        TEXT NOT NULL,
	equipment_description TEXT,
	is_first_time         BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (race_id, registration_number, equipment_code)
);

CREATE TABLE IF NOT EXISTS race_fractions (
	race_id        TEXT NOT NULL,
	call_position  INTEGER NOT NULL,
	distance_yards INTEGER,
	fraction_time  DOUBLE PRECISION NOT NULL,
	leader_at_call TEXT,
	PRIMARY KEY (race_id, call_position)
);

CREATE TABLE IF NOT EXISTS race_wagering (
	race_id              TEXT NOT NULL,
	wager_type           TEXT NOT NULL,
	pool_total           DOUBLE PRECISION,
	winning_combinations TEXT,
	payout               DOUBLE PRECISION,
	number_of_winners    DOUBLE PRECISION,
	PRIMARY KEY (race_id, wager_type)
);

CREATE TABLE IF NOT EXISTS position_calls (
	race_id             TEXT NOT NULL,
	registration_number TEXT NOT NULL,
	call_position       INTEGER NOT NULL,
	position            DOUBLE PRECISION NOT NULL,
	lengths_behind      DOUBLE PRECISION,
	PRIMARY KEY (race_id, registration_number, call_position)
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id           TEXT PRIMARY KEY,
	phase        TEXT NOT NULL,
	status       TEXT NOT NULL,
	stats        TEXT,
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_horses_name ON horses (name);
CREATE INDEX IF NOT EXISTS idx_entries_race ON entries (race_id);
`

// PostgresStore persists records in Postgres through a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the database named by dsn.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "store: create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping postgres")
	}

	zap.L().Debug("postgres store opened")
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreWithPool wraps an existing pool. Used by tests.
func NewPostgresStoreWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema. Safe to run repeatedly.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return eris.Wrap(err, "store: migrate postgres schema")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const (
	pgUpdateRaces = `UPDATE races SET
		winning_time = $1,
		final_fraction_time = $2,
		track_condition = COALESCE(NULLIF($3, ''), track_condition),
		weather = $4,
		wind_speed = $5,
		wind_direction = $6
		WHERE race_id = $7`

	pgUpdateEntries = `UPDATE entries SET
		official_finish_position = $1,
		final_time = $2,
		speed_rating = $3,
		win_payoff = $4,
		place_payoff = $5,
		show_payoff = $6,
		actual_odds = $7,
		race_comments = $8,
		jockey_id = $9,
		trainer_id = COALESCE(NULLIF($10, ''), trainer_id)
		WHERE entry_id = $11`
)

var (
	pgHorseColumns = []string{
		"registration_number", "name", "foaling_date", "year_of_birth", "foaling_area",
		"breed_type", "color_code", "sex_code", "breeder_name", "sire_registration", "dam_registration",
	}
	pgPersonColumns = []string{"external_party_id", "first_name", "middle_name", "last_name", "type_source"}
	pgRaceColumns   = []string{
		"race_id", "track_code", "race_date", "race_number", "race_name", "conditions_text",
		"course_type_code", "race_type_code", "race_type_description", "track_condition",
		"min_age", "max_age", "fillies_and_mares", "colts_and_geldings", "fillies_only",
		"mares_only", "colts_only", "geldings_only", "distance_yards", "purse_usd",
		"max_claim_price", "min_claim_price", "class_level", "purse_category", "post_time",
		"source_file", "data_source",
	}
	pgEntryColumns = []string{
		"entry_id", "race_id", "registration_number", "program_number", "post_position",
		"weight_lbs", "age_at_race", "claim_price", "morning_line_odds",
		"has_blinkers", "has_lasix", "has_tongue_tie", "has_nasal_strip", "has_shadow_roll",
		"has_cheek_pieces", "has_ear_plugs", "has_hood",
		"trainer_id", "owner_id", "scratched", "source_file", "data_source",
	}
	pgEquipmentColumns = []string{"race_id", "registration_number", "equipment_code", "equipment_description", "is_first_time"}
	pgFractionColumns  = []string{"race_id", "call_position", "distance_yards", "fraction_time", "leader_at_call"}
	pgWageringColumns  = []string{"race_id", "wager_type", "pool_total", "winning_combinations", "payout", "number_of_winners"}
	pgCallColumns      = []string{"race_id", "registration_number", "call_position", "position", "lengths_behind"}
)

// Apply writes the whole batch inside one transaction. Update rows that
// matched nothing are counted as misses rather than errors: a chart can
// reference a race the entry feed never delivered.
func (s *PostgresStore) Apply(ctx context.Context, b *Batch) (BatchCounts, error) {
	counts := BatchCounts{Inserted: make(map[string]int64)}
	if b == nil || b.Len() == 0 {
		return counts, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return BatchCounts{}, eris.Wrap(err, "store: begin batch tx")
	}
	defer tx.Rollback(ctx)

	inserts := []struct {
		table   string
		columns []string
		keys    []string
		rows    [][]any
	}{
		{"horses", pgHorseColumns, []string{"registration_number"}, horseRows(b.Horses)},
		{"trainers", pgPersonColumns, []string{"external_party_id"}, personRows(b.Trainers)},
		{"owners", pgPersonColumns, []string{"external_party_id"}, personRows(b.Owners)},
		{"races", pgRaceColumns, []string{"race_id"}, raceRows(b.Races)},
		{"entries", pgEntryColumns, []string{"entry_id"}, entryRows(b.Entries)},
		{"race_equipment", pgEquipmentColumns, []string{"race_id", "registration_number", "equipment_code"}, equipmentRows(b.Equipment)},
		{"race_fractions", pgFractionColumns, []string{"race_id", "call_position"}, fractionRows(b.Fractions)},
		{"race_wagering", pgWageringColumns, []string{"race_id", "wager_type"}, wageringRows(b.Wagering)},
		{"position_calls", pgCallColumns, []string{"race_id", "registration_number", "call_position"}, callRows(b.PositionCalls)},
	}
	for _, ins := range inserts {
		if len(ins.rows) == 0 {
			continue
		}
		n, err := db.InsertIgnore(ctx, tx, ins.table, ins.columns, ins.keys, ins.rows)
		if err != nil {
			return BatchCounts{}, err
		}
		if n > 0 {
			counts.Inserted[ins.table] += n
		}
	}

	updates := []struct {
		label string
		stmt  string
		rows  [][]any
	}{
		{"races", pgUpdateRaces, raceResultRows(b.RaceResults)},
		{"entries", pgUpdateEntries, entryResultRows(b.EntryResults)},
	}
	for _, upd := range updates {
		for _, args := range upd.rows {
			tag, err := tx.Exec(ctx, upd.stmt, args...)
			if err != nil {
				return BatchCounts{}, eris.Wrapf(err, "store: update %s row", upd.label)
			}
			if tag.RowsAffected() == 0 {
				counts.UpdateMisses++
			} else {
				counts.Updated += tag.RowsAffected()
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return BatchCounts{}, eris.Wrap(err, "store: commit batch tx")
	}
	return counts, nil
}

func (s *PostgresStore) LookupHorseByName(ctx context.Context, name string) (string, error) {
	const query = `SELECT registration_number FROM horses
		WHERE name = $1 ORDER BY year_of_birth DESC NULLS LAST LIMIT 1`

	var registration string
	err := s.pool.QueryRow(ctx, query, name).Scan(&registration)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", eris.Wrapf(err, "store: lookup horse %q", name)
	}
	return registration, nil
}

func (s *PostgresStore) StartRun(ctx context.Context, run model.RunRecord) error {
	const stmt = `INSERT INTO ingest_runs (id, phase, status, stats, started_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, stmt,
		run.ID, string(run.Phase), string(run.Status), run.Stats, run.StartedAt.UTC())
	if err != nil {
		return eris.Wrapf(err, "store: record run start %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, run model.RunRecord) error {
	const stmt = `UPDATE ingest_runs SET status = $1, stats = $2, completed_at = $3 WHERE id = $4`

	var completed *time.Time
	if run.CompletedAt != nil {
		utc := run.CompletedAt.UTC()
		completed = &utc
	}
	_, err := s.pool.Exec(ctx, stmt, string(run.Status), run.Stats, completed, run.ID)
	if err != nil {
		return eris.Wrapf(err, "store: record run completion %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	const query = `SELECT id, phase, status, COALESCE(stats, ''), started_at, completed_at
		FROM ingest_runs ORDER BY started_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var (
			run       model.RunRecord
			completed *time.Time
		)
		if err := rows.Scan(&run.ID, &run.Phase, &run.Status, &run.Stats, &run.StartedAt, &completed); err != nil {
			return nil, eris.Wrap(err, "store: scan run row")
		}
		run.CompletedAt = completed
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) CountRows(ctx context.Context, table string) (int64, error) {
	if !knownTable(table) {
		return 0, eris.Errorf("store: unknown table %q", table)
	}

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if err := s.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, eris.Wrapf(err, "store: count rows in %s", table)
	}
	return count, nil
}
