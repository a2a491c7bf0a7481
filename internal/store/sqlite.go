package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/trackline/racing-etl/internal/model"
)

const sqliteSchema = `
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
	race_date             TEXT NOT NULL,
	race_number           INTEGER NOT NULL,
	race_name             TEXT,
	conditions_text       TEXT,
	course_type_code      TEXT,
	race_type_code        TEXT,
	race_type_description TEXT,
	track_condition       TEXT,
	min_age               INTEGER,
	max_age               INTEGER,
	fillies_and_mares     INTEGER NOT NULL DEFAULT 0,
	colts_and_geldings    INTEGER NOT NULL DEFAULT 0,
	fillies_only          INTEGER NOT NULL DEFAULT 0,
	mares_only            INTEGER NOT NULL DEFAULT 0,
	colts_only            INTEGER NOT NULL DEFAULT 0,
	geldings_only         INTEGER NOT NULL DEFAULT 0,
	distance_yards        INTEGER,
	purse_usd             REAL,
	max_claim_price       TEXT,
	min_claim_price       TEXT,
	class_level           INTEGER NOT NULL DEFAULT 0,
	purse_category        TEXT,
	post_time             TEXT,
	winning_time          REAL,
	final_fraction_time   REAL,
	weather               TEXT,
	wind_speed            REAL,
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
	claim_price              REAL,
	morning_line_odds        REAL,
	has_blinkers             INTEGER NOT NULL DEFAULT 0,
	has_lasix                INTEGER NOT NULL DEFAULT 0,
	has_tongue_tie           INTEGER NOT NULL DEFAULT 0,
	has_nasal_strip          INTEGER NOT NULL DEFAULT 0,
	has_shadow_roll          INTEGER NOT NULL DEFAULT 0,
	has_cheek_pieces         INTEGER NOT NULL DEFAULT 0,
	has_ear_plugs            INTEGER NOT NULL DEFAULT 0,
	has_hood                 INTEGER NOT NULL DEFAULT 0,
	trainer_id               TEXT,
	owner_id                 TEXT,
	scratched                INTEGER NOT NULL DEFAULT 0,
	official_finish_position INTEGER,
	final_time               REAL,
	speed_rating             REAL,
	win_payoff               REAL,
	place_payoff             REAL,
	show_payoff              REAL,
	actual_odds              REAL,
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
	is_first_time         INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (race_id, registration_number, equipment_code)
);

CREATE TABLE IF NOT EXISTS race_fractions (
	race_id        TEXT NOT NULL,
	call_position  INTEGER NOT NULL,
	distance_yards INTEGER,
	fraction_time  REAL NOT NULL,
	leader_at_call TEXT,
	PRIMARY KEY (race_id, call_position)
);

CREATE TABLE IF NOT EXISTS race_wagering (
	race_id              TEXT NOT NULL,
	wager_type           TEXT NOT NULL,
	pool_total           REAL,
	winning_combinations TEXT,
	payout               REAL,
	number_of_winners    REAL,
	PRIMARY KEY (race_id, wager_type)
);

CREATE TABLE IF NOT EXISTS position_calls (
	race_id             TEXT NOT NULL,
	registration_number TEXT NOT NULL,
	call_position       INTEGER NOT NULL,
	position            REAL NOT NULL,
	lengths_behind      REAL,
	PRIMARY KEY (race_id, registration_number, call_position)
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id           TEXT PRIMARY KEY,
	phase        TEXT NOT NULL,
	status       TEXT NOT NULL,
	stats        TEXT,
	started_at   TEXT NOT NULL,
	completed_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_horses_name ON horses (name);
CREATE INDEX IF NOT EXISTS idx_entries_race ON entries (race_id);
`

const (
	sqliteInsertHorses = `INSERT OR IGNORE INTO horses
		(registration_number, name, foaling_date, year_of_birth, foaling_area,
		 breed_type, color_code, sex_code, breeder_name, sire_registration, dam_registration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqliteInsertPersons = `INSERT OR IGNORE INTO %s
		(external_party_id, first_name, middle_name, last_name, type_source)
		VALUES (?, ?, ?, ?, ?)`

	sqliteInsertRaces = `INSERT OR IGNORE INTO races
		(race_id, track_code, race_date, race_number, race_name, conditions_text,
		 course_type_code, race_type_code, race_type_description, track_condition,
		 min_age, max_age, fillies_and_mares, colts_and_geldings, fillies_only,
		 mares_only, colts_only, geldings_only, distance_yards, purse_usd,
		 max_claim_price, min_claim_price, class_level, purse_category, post_time,
		 source_file, data_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqliteInsertEntries = `INSERT OR IGNORE INTO entries
		(entry_id, race_id, registration_number, program_number, post_position,
		 weight_lbs, age_at_race, claim_price, morning_line_odds,
		 has_blinkers, has_lasix, has_tongue_tie, has_nasal_strip, has_shadow_roll,
		 has_cheek_pieces, has_ear_plugs, has_hood,
		 trainer_id, owner_id, scratched, source_file, data_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqliteInsertEquipment = `INSERT OR IGNORE INTO race_equipment
		(race_id, registration_number, equipment_code, equipment_description, is_first_time)
		VALUES (?, ?, ?, ?, ?)`

	sqliteInsertFractions = `INSERT OR IGNORE INTO race_fractions
		(race_id, call_position, distance_yards, fraction_time, leader_at_call)
		VALUES (?, ?, ?, ?, ?)`

	sqliteInsertWagering = `INSERT OR IGNORE INTO race_wagering
		(race_id, wager_type, pool_total, winning_combinations, payout, number_of_winners)
		VALUES (?, ?, ?, ?, ?, ?)`

	sqliteInsertPositionCalls = `INSERT OR IGNORE INTO position_calls
		(race_id, registration_number, call_position, position, lengths_behind)
		VALUES (?, ?, ?, ?, ?)`

	sqliteUpdateRaces = `UPDATE races SET
		winning_time = ?,
		final_fraction_time = ?,
		track_condition = COALESCE(NULLIF(?, ''), track_condition),
		weather = ?,
		wind_speed = ?,
		wind_direction = ?
		WHERE race_id = ?`

	sqliteUpdateEntries = `UPDATE entries SET
		official_finish_position = ?,
		final_time = ?,
		speed_rating = ?,
		win_payoff = ?,
		place_payoff = ?,
		show_payoff = ?,
		actual_odds = ?,
		race_comments = ?,
		jockey_id = ?,
		trainer_id = COALESCE(NULLIF(?, ''), trainer_id)
		WHERE entry_id = ?`
)

// SQLiteStore persists records in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "racing.db"
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open sqlite db at %s", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrapf(err, "store: ping sqlite db at %s", path)
	}

	zap.L().Debug("sqlite store opened", zap.String("path", path))
	return &SQLiteStore{db: db}, nil
}

// Migrate creates the schema. Safe to run repeatedly.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return eris.Wrap(err, "store: migrate sqlite schema")
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Apply writes the whole batch inside one transaction. Update rows that
// matched nothing are counted as misses rather than errors: a chart can
// reference a race the entry feed never delivered.
func (s *SQLiteStore) Apply(ctx context.Context, b *Batch) (BatchCounts, error) {
	counts := BatchCounts{Inserted: make(map[string]int64)}
	if b == nil || b.Len() == 0 {
		return counts, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return BatchCounts{}, eris.Wrap(err, "store: begin batch tx")
	}
	defer tx.Rollback()

	inserts := []struct {
		table string
		stmt  string
		rows  [][]any
	}{
		{"horses", sqliteInsertHorses, horseRows(b.Horses)},
		{"trainers", fmt.Sprintf(sqliteInsertPersons, "trainers"), personRows(b.Trainers)},
		{"owners", fmt.Sprintf(sqliteInsertPersons, "owners"), personRows(b.Owners)},
		{"races", sqliteInsertRaces, raceRows(b.Races)},
		{"entries", sqliteInsertEntries, entryRows(b.Entries)},
		{"race_equipment", sqliteInsertEquipment, equipmentRows(b.Equipment)},
		{"race_fractions", sqliteInsertFractions, fractionRows(b.Fractions)},
		{"race_wagering", sqliteInsertWagering, wageringRows(b.Wagering)},
		{"position_calls", sqliteInsertPositionCalls, callRows(b.PositionCalls)},
	}
	for _, ins := range inserts {
		n, err := sqliteInsertRows(ctx, tx, ins.table, ins.stmt, ins.rows)
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
		{"races", sqliteUpdateRaces, raceResultRows(b.RaceResults)},
		{"entries", sqliteUpdateEntries, entryResultRows(b.EntryResults)},
	}
	for _, upd := range updates {
		updated, missed, err := sqliteUpdateRows(ctx, tx, upd.label, upd.stmt, upd.rows)
		if err != nil {
			return BatchCounts{}, err
		}
		counts.Updated += updated
		counts.UpdateMisses += missed
	}

	if err := tx.Commit(); err != nil {
		return BatchCounts{}, eris.Wrap(err, "store: commit batch tx")
	}
	return counts, nil
}

// sqliteInsertRows runs one prepared insert-or-ignore statement per row and
// returns the number of rows actually written.
func sqliteInsertRows(ctx context.Context, tx *sql.Tx, label, stmt string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return 0, eris.Wrapf(err, "store: prepare %s insert", label)
	}
	defer prepared.Close()

	var inserted int64
	for _, args := range rows {
		res, err := prepared.ExecContext(ctx, args...)
		if err != nil {
			return 0, eris.Wrapf(err, "store: insert %s row", label)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrapf(err, "store: rows affected for %s", label)
		}
		inserted += n
	}
	return inserted, nil
}

// sqliteUpdateRows runs one prepared update per row, counting rows that
// matched nothing as misses.
func sqliteUpdateRows(ctx context.Context, tx *sql.Tx, label, stmt string, rows [][]any) (updated, missed int64, err error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}

	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "store: prepare %s update", label)
	}
	defer prepared.Close()

	for _, args := range rows {
		res, err := prepared.ExecContext(ctx, args...)
		if err != nil {
			return 0, 0, eris.Wrapf(err, "store: update %s row", label)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, 0, eris.Wrapf(err, "store: rows affected for %s", label)
		}
		if n == 0 {
			missed++
		} else {
			updated += n
		}
	}
	return updated, missed, nil
}

func (s *SQLiteStore) LookupHorseByName(ctx context.Context, name string) (string, error) {
	const query = `SELECT registration_number FROM horses
		WHERE name = ? ORDER BY year_of_birth DESC LIMIT 1`

	var registration string
	err := s.db.QueryRowContext(ctx, query, name).Scan(&registration)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", eris.Wrapf(err, "store: lookup horse %q", name)
	}
	return registration, nil
}

func (s *SQLiteStore) StartRun(ctx context.Context, run model.RunRecord) error {
	const stmt = `INSERT INTO ingest_runs (id, phase, status, stats, started_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, stmt,
		run.ID, string(run.Phase), string(run.Status), run.Stats,
		run.StartedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return eris.Wrapf(err, "store: record run start %s", run.ID)
	}
	return nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, run model.RunRecord) error {
	const stmt = `UPDATE ingest_runs SET status = ?, stats = ?, completed_at = ? WHERE id = ?`

	var completed any
	if run.CompletedAt != nil {
		completed = run.CompletedAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, stmt, string(run.Status), run.Stats, completed, run.ID)
	if err != nil {
		return eris.Wrapf(err, "store: record run completion %s", run.ID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	const query = `SELECT id, phase, status, COALESCE(stats, ''), started_at, completed_at
		FROM ingest_runs ORDER BY started_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var (
			run       model.RunRecord
			started   string
			completed sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Phase, &run.Status, &run.Stats, &started, &completed); err != nil {
			return nil, eris.Wrap(err, "store: scan run row")
		}
		if t, err := time.Parse(time.RFC3339, started); err == nil {
			run.StartedAt = t
		}
		if completed.Valid {
			if t, err := time.Parse(time.RFC3339, completed.String); err == nil {
				run.CompletedAt = &t
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) CountRows(ctx context.Context, table string) (int64, error) {
	if !knownTable(table) {
		return 0, eris.Errorf("store: unknown table %q", table)
	}

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, eris.Wrapf(err, "store: count rows in %s", table)
	}
	return count, nil
}
