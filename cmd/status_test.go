package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trackline/racing-etl/internal/config"
	"github.com/trackline/racing-etl/internal/ingest"
	"github.com/trackline/racing-etl/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Ingest: ingest.Config{
			EntryDir:  "/base/entries",
			ChartDir:  "/base/charts",
			Workers:   16,
			BatchSize: 500,
		},
	}
}

func TestFormatRuns(t *testing.T) {
	started := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)

	var buf bytes.Buffer
	formatRuns(&buf, []model.RunRecord{
		{
			ID:          "run-1",
			Phase:       model.PhaseEntities,
			Status:      model.RunStatusComplete,
			StartedAt:   started,
			CompletedAt: &completed,
		},
		{
			ID:        "run-2",
			Phase:     model.PhaseResults,
			Status:    model.RunStatusRunning,
			StartedAt: started,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "entities")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "run-2")
	assert.Contains(t, out, "-", "incomplete run has no duration")
}

func TestIngestConfigFlagOverrides(t *testing.T) {
	cfgBefore := cfg
	t.Cleanup(func() {
		cfg = cfgBefore
		flagEntryDir, flagChartDir = "", ""
		flagWorkers, flagBatchSize = 0, 0
	})

	cfg = testConfig()
	flagEntryDir = "/override/entries"
	flagWorkers = 8

	ic := ingestConfig()
	assert.Equal(t, "/override/entries", ic.EntryDir)
	assert.Equal(t, "/base/charts", ic.ChartDir)
	assert.Equal(t, 8, ic.Workers)
	assert.Equal(t, 500, ic.BatchSize)
}
