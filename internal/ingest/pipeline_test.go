package ingest

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/trackline/racing-etl/internal/model"
	"github.com/trackline/racing-etl/internal/normalize"
	"github.com/trackline/racing-etl/internal/store"
)

const pipelineCardXML = `<?xml version="1.0" encoding="UTF-8"?>
<EntryRaceCard>
  <Race>
    <RaceNumber>3</RaceNumber>
    <RaceType><Description>MAIDEN CLAIMING</Description></RaceType>
    <Course><CourseType><Value>D</Value></CourseType></Course>
    <AgeRestriction><Value>3YO</Value></AgeRestriction>
    <Distance><DistanceId>600</DistanceId><DistanceUnit><Value>F</Value></DistanceUnit></Distance>
    <PurseUSA>32000</PurseUSA>
    <Starters>
      <ProgramNumber>1</ProgramNumber>
      <PostPosition>1</PostPosition>
      <Equipment><Value>B</Value></Equipment>
      <Horse>
        <RegistrationNumber>H0001</RegistrationNumber>
        <HorseName>FAST CURRENT</HorseName>
        <YearOfBirth>2020</YearOfBirth>
      </Horse>
      <Trainer><ExternalPartyId>T0001</ExternalPartyId><LastName>Reilly</LastName></Trainer>
      <Owner><ExternalPartyId>O0001</ExternalPartyId><LastName>Meadow Stable</LastName></Owner>
    </Starters>
  </Race>
</EntryRaceCard>`

const pipelineChartXML = `<?xml version="1.0" encoding="UTF-8"?>
<CHART RACE_DATE="2023-01-01">
  <TRACK><CODE>AQU</CODE></TRACK>
  <RACE NUMBER="3">
    <WIN_TIME>1:10.25</WIN_TIME>
    <FRACTION_1>22.50</FRACTION_1>
    <TRK_COND>FT</TRK_COND>
    <EXOTIC_WAGERS>
      <WAGER><WAGER_TYPE>EXACTA</WAGER_TYPE><PAYOFF>42.50</PAYOFF></WAGER>
    </EXOTIC_WAGERS>
    <ENTRY>
      <NAME>FAST CURRENT</NAME>
      <OFFICIAL_FIN>1</OFFICIAL_FIN>
      <FINISH_TIME>1:10.25</FINISH_TIME>
      <POINT_OF_CALL WHICH="FINAL"><POSITION>1</POSITION><LENGTHS>0</LENGTHS></POINT_OF_CALL>
    </ENTRY>
    <ENTRY>
      <NAME>GHOST HORSE</NAME>
      <OFFICIAL_FIN>2</OFFICIAL_FIN>
    </ENTRY>
  </RACE>
</CHART>`

func newTestPipeline(t *testing.T) (*Pipeline, string) {
	t.Helper()

	entryDir := t.TempDir()
	chartDir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(entryDir, "SIMD20230101AQU_USA.xml"), []byte(pipelineCardXML), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(chartDir, "rc20230101AQU.xml"), []byte(pipelineChartXML), 0o644))

	dbPath := filepath.Join(t.TempDir(), "racing.db")
	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	tables, err := normalize.LoadTables()
	require.NoError(t, err)

	return NewPipeline(s, normalize.New(tables), Config{
		EntryDir: entryDir,
		ChartDir: chartDir,
		Workers:  4,
	}), dbPath
}

func TestPipelineRunAll(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	report, err := p.RunAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.PhaseErrors)

	want := map[string]int64{
		"horses":         1,
		"trainers":       1,
		"owners":         1,
		"races":          1,
		"entries":        1,
		"race_equipment": 1,
		"race_fractions": 1,
		"race_wagering":  1,
		"position_calls": 1,
		"ingest_runs":    3,
	}
	for table, count := range want {
		assert.Equal(t, count, report.TableCounts[table], table)
	}

	results := report.Phases[model.PhaseResults]
	assert.Equal(t, int64(2), results.Updated, "race and entry result merges")
	assert.Equal(t, 1, results.ReferentialMisses, "unknown horse name in the chart")
}

func TestPipelineRunAllIdempotent(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.RunAll(ctx)
	require.NoError(t, err)

	report, err := p.RunAll(ctx)
	require.NoError(t, err)

	// Replaying the feeds inserts nothing new.
	for _, phase := range []model.PhaseName{model.PhaseEntities, model.PhasePreRace} {
		stats := report.Phases[phase]
		assert.Zero(t, stats.TotalInserted(), string(phase))
	}
	assert.Equal(t, int64(1), report.TableCounts["horses"])
	assert.Equal(t, int64(1), report.TableCounts["races"])
	// Result merges re-apply; that is harmless.
	assert.Equal(t, int64(2), report.Phases[model.PhaseResults].Updated)
}

func TestPipelineEntriesReferenceKnownHorses(t *testing.T) {
	p, dbPath := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.RunEntities(ctx)
	require.NoError(t, err)
	_, err = p.RunPreRace(ctx)
	require.NoError(t, err)

	db, err := sql.Open("sqlite", "file:"+dbPath)
	require.NoError(t, err)
	defer db.Close()

	var entries int64
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries`).Scan(&entries))
	require.Equal(t, int64(1), entries)

	var orphans int64
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries e
		 LEFT JOIN horses h ON e.registration_number = h.registration_number
		 WHERE h.registration_number IS NULL`).Scan(&orphans))
	assert.Zero(t, orphans, "every entry joins a horse persisted by the entity phase")
}

func TestPipelineMissingDirFailsPhase(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "racing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	tables, err := normalize.LoadTables()
	require.NoError(t, err)

	p := NewPipeline(s, normalize.New(tables), Config{
		EntryDir: filepath.Join(t.TempDir(), "nope"),
		ChartDir: filepath.Join(t.TempDir(), "nope"),
	})

	report, err := p.RunAll(context.Background())
	assert.Error(t, err)
	assert.Len(t, report.PhaseErrors, 3, "every phase failed, none blocked the others")
}
