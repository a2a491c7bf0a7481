package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackline/racing-etl/internal/feed"
	"github.com/trackline/racing-etl/internal/normalize"
)

const entryCardXML = `<?xml version="1.0" encoding="UTF-8"?>
<EntryRaceCard>
  <Race>
    <RaceNumber>3</RaceNumber>
    <RaceName>The Aqueduct Sprint</RaceName>
    <ConditionText>FOR FILLIES AND MARES THREE YEARS OLD AND UPWARD</ConditionText>
    <PostTime>13:05</PostTime>
    <MaximumClaimPrice>25000</MaximumClaimPrice>
    <Course><CourseType><Value>D</Value></CourseType></Course>
    <RaceType><Description>MAIDEN CLAIMING</Description></RaceType>
    <AgeRestriction><Value>3YO</Value></AgeRestriction>
    <SexRestriction><Value>FILLIES AND MARES</Value></SexRestriction>
    <Distance><DistanceId>600</DistanceId><DistanceUnit><Value>F</Value></DistanceUnit></Distance>
    <PurseUSA>32000</PurseUSA>
    <Starters>
      <ProgramNumber>1</ProgramNumber>
      <PostPosition>1</PostPosition>
      <ClaimedPriceUSA>$25,000</ClaimedPriceUSA>
      <Odds>20/1</Odds>
      <Equipment><Value>B,L1,T</Value></Equipment>
      <Medication><Value>L</Value></Medication>
      <WeightCarried>122</WeightCarried>
      <Horse>
        <RegistrationNumber>H0001</RegistrationNumber>
        <HorseName>FAST CURRENT</HorseName>
        <FoalingDate>2020-03-25+00:00</FoalingDate>
        <YearOfBirth>2020</YearOfBirth>
        <BreedType><Value>TB</Value></BreedType>
        <Sire><RegistrationNumber>S0001</RegistrationNumber></Sire>
        <Dam><RegistrationNumber>D0001</RegistrationNumber></Dam>
      </Horse>
      <Trainer>
        <ExternalPartyId>T0001</ExternalPartyId>
        <FirstName>Pat</FirstName>
        <LastName>Reilly</LastName>
      </Trainer>
      <Owner>
        <ExternalPartyId>O0001</ExternalPartyId>
        <LastName>Meadow Stable</LastName>
      </Owner>
    </Starters>
    <Starters>
      <ProgramNumber>2</ProgramNumber>
      <Horse>
        <HorseName>NO PAPERS</HorseName>
      </Horse>
    </Starters>
  </Race>
</EntryRaceCard>`

const chartXML = `<?xml version="1.0" encoding="UTF-8"?>
<CHART RACE_DATE="2023-01-01">
  <TRACK><CODE>AQU</CODE><NAME>Aqueduct</NAME></TRACK>
  <RACE NUMBER="3">
    <WIN_TIME>1:10.25</WIN_TIME>
    <FRACTION_1>22.50</FRACTION_1>
    <FRACTION_2>45.80</FRACTION_2>
    <TRK_COND>FT</TRK_COND>
    <WEATHER>CLEAR</WEATHER>
    <WIND_SPEED>5</WIND_SPEED>
    <WIND_DIRECTION>NW</WIND_DIRECTION>
    <EXOTIC_WAGERS>
      <WAGER>
        <WAGER_TYPE>EXACTA</WAGER_TYPE>
        <POOL_TOTAL>101,250</POOL_TOTAL>
        <WINNERS>3-1</WINNERS>
        <PAYOFF>42.50</PAYOFF>
        <NUM_TICKETS>812</NUM_TICKETS>
      </WAGER>
    </EXOTIC_WAGERS>
    <ENTRY>
      <NAME>FAST CURRENT</NAME>
      <OFFICIAL_FIN>1</OFFICIAL_FIN>
      <FINISH_TIME>1:10.25</FINISH_TIME>
      <SPEED_RATING>88</SPEED_RATING>
      <WIN_PAYOFF>8.40</WIN_PAYOFF>
      <DOLLAR_ODDS>3.20</DOLLAR_ODDS>
      <COMMENT>drew clear late</COMMENT>
      <JOCKEY><KEY>J0001</KEY></JOCKEY>
      <TRAINER><KEY>T0001</KEY></TRAINER>
      <POINT_OF_CALL WHICH="1"><POSITION>2</POSITION><LENGTHS>1.5</LENGTHS></POINT_OF_CALL>
      <POINT_OF_CALL WHICH="FINAL"><POSITION>1</POSITION><LENGTHS>0</LENGTHS></POINT_OF_CALL>
    </ENTRY>
    <ENTRY>
      <NAME>GHOST HORSE</NAME>
      <OFFICIAL_FIN>2</OFFICIAL_FIN>
    </ENTRY>
  </RACE>
</CHART>`

func testDoc(name, body string) feed.Document {
	return feed.Document{Name: name, Body: []byte(body)}
}

func newStd(t *testing.T) *normalize.Standardizer {
	t.Helper()
	tables, err := normalize.LoadTables()
	require.NoError(t, err)
	return normalize.New(tables)
}

func TestEntities(t *testing.T) {
	batch, err := Entities(context.Background(), testDoc("SIMD20230101AQU_USA.xml", entryCardXML))
	require.NoError(t, err)

	require.Len(t, batch.Horses, 1)
	horse := batch.Horses[0]
	assert.Equal(t, "H0001", horse.RegistrationNumber)
	assert.Equal(t, "FAST CURRENT", horse.Name)
	assert.Equal(t, "2020-03-25", horse.FoalingDate)
	require.NotNil(t, horse.YearOfBirth)
	assert.Equal(t, 2020, *horse.YearOfBirth)
	assert.Equal(t, "S0001", horse.SireRegistration)
	assert.Equal(t, "D0001", horse.DamRegistration)

	require.Len(t, batch.Trainers, 1)
	assert.Equal(t, "T0001", batch.Trainers[0].ExternalPartyID)
	require.Len(t, batch.Owners, 1)
	assert.Equal(t, "O0001", batch.Owners[0].ExternalPartyID)

	// Second starter's horse has no registration number.
	assert.Equal(t, 1, batch.Skipped)
}

func TestEntities_BadXML(t *testing.T) {
	_, err := Entities(context.Background(), testDoc("x.xml", "<EntryRaceCard><Race>"))
	assert.Error(t, err)
}

func TestPreRace(t *testing.T) {
	std := newStd(t)
	batch, err := PreRace(context.Background(), std, testDoc("SIMD20230101AQU_USA.xml", entryCardXML))
	require.NoError(t, err)

	require.Len(t, batch.Races, 1)
	race := batch.Races[0]
	assert.Equal(t, "AQU_2023-01-01_3", race.RaceID)
	assert.Equal(t, "AQU", race.TrackCode)
	assert.Equal(t, "2023-01-01", race.RaceDate)
	assert.Equal(t, 3, race.RaceNumber)
	assert.Equal(t, "DIRT", race.CourseTypeCode)
	assert.Equal(t, "CLAIMING", race.RaceTypeCode)
	assert.Equal(t, 1, race.ClassLevel)
	assert.Equal(t, "MAIDEN", race.PurseCategory)
	assert.True(t, race.FilliesAndMares)
	require.NotNil(t, race.DistanceYards)
	assert.Equal(t, 1320, *race.DistanceYards)
	require.NotNil(t, race.PurseUSD)
	assert.Equal(t, 32000.0, *race.PurseUSD)

	require.Len(t, batch.Entries, 1)
	entry := batch.Entries[0]
	assert.Equal(t, "AQU_2023-01-01_3_H0001", entry.EntryID)
	require.NotNil(t, entry.PostPosition)
	assert.Equal(t, 1, *entry.PostPosition)
	require.NotNil(t, entry.AgeAtRace)
	assert.Equal(t, 3, *entry.AgeAtRace)
	require.NotNil(t, entry.ClaimPrice)
	assert.Equal(t, 25000.0, *entry.ClaimPrice)
	require.NotNil(t, entry.MorningOdds)
	assert.Equal(t, 20.0, *entry.MorningOdds)
	assert.True(t, entry.HasBlinkers)
	assert.True(t, entry.HasLasix)
	assert.True(t, entry.HasTongueTie)
	assert.False(t, entry.Scratched)
	assert.Equal(t, "T0001", entry.TrainerID)
	assert.Equal(t, "O0001", entry.OwnerID)

	// B, L1, T expand to three equipment facts.
	require.Len(t, batch.Equipment, 3)
	assert.Equal(t, "BLINKERS", batch.Equipment[0].Code)
	assert.Equal(t, "LASIX_FIRST_TIME", batch.Equipment[1].Code)
	assert.True(t, batch.Equipment[1].IsFirstTime)
	assert.Equal(t, "TONGUE_TIE", batch.Equipment[2].Code)

	// The registration-less starter is skipped.
	assert.Equal(t, 1, batch.Skipped)
}

func TestRaceContext(t *testing.T) {
	tests := []struct {
		name      string
		docName   string
		wantTrack string
		wantDate  string
	}{
		{"standard name", "SIMD20230101AQU_USA.xml", "AQU", "2023-01-01"},
		{"zip member", "charts.zip:SIMD20230215SAR_USA.xml", "SAR", "2023-02-15"},
		{"no underscore", "SIMD20230101AQUUSA.xml", "AQU", "2023-01-01"},
		{"unparseable", "weird.xml", "UNK", "2023-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track, date := raceContext(tt.docName)
			assert.Equal(t, tt.wantTrack, track)
			assert.Equal(t, tt.wantDate, date)
		})
	}
}

// staticResolver resolves a fixed name->registration mapping.
type staticResolver map[string]string

func (r staticResolver) LookupHorseByName(ctx context.Context, name string) (string, error) {
	return r[name], nil
}

func TestResults(t *testing.T) {
	std := newStd(t)
	resolver := staticResolver{"FAST CURRENT": "H0001"}

	batch, err := Results(context.Background(), std, resolver, testDoc("rc20230101AQU.xml", chartXML))
	require.NoError(t, err)

	require.Len(t, batch.RaceResults, 1)
	rr := batch.RaceResults[0]
	assert.Equal(t, "AQU_2023-01-01_3", rr.RaceID)
	require.NotNil(t, rr.WinningTime)
	assert.InDelta(t, 70.25, *rr.WinningTime, 0.001)
	assert.Equal(t, "FAST", rr.TrackCondition)
	assert.Equal(t, "CLEAR", rr.Weather)
	require.NotNil(t, rr.WindSpeed)
	assert.Equal(t, 5.0, *rr.WindSpeed)

	require.Len(t, batch.Fractions, 2)
	assert.Equal(t, 1, batch.Fractions[0].CallPosition)
	assert.InDelta(t, 22.5, batch.Fractions[0].FractionTime, 0.001)
	require.NotNil(t, batch.Fractions[0].DistanceYards)
	assert.Equal(t, 440, *batch.Fractions[0].DistanceYards)

	require.Len(t, batch.Wagering, 1)
	w := batch.Wagering[0]
	assert.Equal(t, "EXACTA", w.WagerType)
	require.NotNil(t, w.PoolTotal)
	assert.Equal(t, 101250.0, *w.PoolTotal)
	assert.Equal(t, "3-1", w.Combinations)

	// FAST CURRENT resolves; GHOST HORSE is a referential miss.
	require.Len(t, batch.EntryResults, 1)
	er := batch.EntryResults[0]
	assert.Equal(t, "AQU_2023-01-01_3_H0001", er.EntryID)
	require.NotNil(t, er.FinishPosition)
	assert.Equal(t, 1, *er.FinishPosition)
	require.NotNil(t, er.FinalTime)
	assert.InDelta(t, 70.25, *er.FinalTime, 0.001)
	assert.Equal(t, "drew clear late", er.RaceComments)
	assert.Equal(t, "J0001", er.JockeyID)
	assert.Equal(t, 1, batch.ReferentialMisses)

	require.Len(t, batch.PositionCalls, 2)
	assert.Equal(t, 1, batch.PositionCalls[0].CallPosition)
	assert.Equal(t, 6, batch.PositionCalls[1].CallPosition) // FINAL
	assert.Equal(t, 1.0, batch.PositionCalls[1].Position)
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{"1:10.25", fp(70.25)},
		{"22.50", fp(22.5)},
		{"2:00", fp(120)},
		{"", nil},
		{"DNF", nil},
	}
	for _, tt := range tests {
		got := parseSeconds(tt.raw)
		if tt.want == nil {
			assert.Nil(t, got, "raw %q", tt.raw)
			continue
		}
		require.NotNil(t, got, "raw %q", tt.raw)
		assert.InDelta(t, *tt.want, *got, 0.0001)
	}
}

func TestParseOdds(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{"20/1", fp(20)},
		{"7/2", fp(3.5)},
		{"3.20", fp(3.2)},
		{"1/0", nil},
		{"", nil},
	}
	for _, tt := range tests {
		got := parseOdds(tt.raw)
		if tt.want == nil {
			assert.Nil(t, got, "raw %q", tt.raw)
			continue
		}
		require.NotNil(t, got, "raw %q", tt.raw)
		assert.InDelta(t, *tt.want, *got, 0.0001)
	}
}

func TestParseNumeric(t *testing.T) {
	assert.Nil(t, parseNumeric("N/A"))
	assert.Nil(t, parseNumeric(""))
	got := parseNumeric("$1,234.50")
	require.NotNil(t, got)
	assert.Equal(t, 1234.5, *got)
}

func fp(f float64) *float64 { return &f }
