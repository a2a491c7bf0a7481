package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trackline/racing-etl/internal/extract"
	"github.com/trackline/racing-etl/internal/feed"
	"github.com/trackline/racing-etl/internal/ledger"
	"github.com/trackline/racing-etl/internal/model"
	"github.com/trackline/racing-etl/internal/store"
)

// State is the lifecycle position of a phase run.
type State int32

const (
	StateIdle State = iota
	StateDiscovering
	StateProcessing
	StateFlushing
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateProcessing:
		return "processing"
	case StateFlushing:
		return "flushing"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// DefaultWorkers is the parse worker count used when none is configured.
const DefaultWorkers = 16

// Extractor turns one document into candidate records.
type Extractor func(ctx context.Context, doc feed.Document) (*extract.Batch, error)

// Phase runs one ingestion phase: discover documents, parse them on a
// worker pool, and funnel every extracted batch through a single aggregator
// goroutine that owns the dedup ledgers, the stats and the batch writer.
// Workers never touch shared state; they only send on a channel.
type Phase struct {
	name    model.PhaseName
	source  feed.Source
	extract Extractor
	writer  *BatchWriter
	store   store.Store
	workers int

	state atomic.Int32
	runID string
}

// NewPhase wires a phase. workers <= 0 selects DefaultWorkers.
func NewPhase(name model.PhaseName, src feed.Source, ex Extractor, w *BatchWriter, s store.Store, workers int) *Phase {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Phase{name: name, source: src, extract: ex, writer: w, store: s, workers: workers}
}

// State reports the current lifecycle state. Safe to call concurrently
// with Run.
func (p *Phase) State() State {
	return State(p.state.Load())
}

// fileResult is what a parse worker hands to the aggregator.
type fileResult struct {
	doc   string
	batch *extract.Batch
	err   error
}

// ledgers hold one claim set per record kind for the duration of a run.
type ledgers struct {
	horses, trainers, owners   *ledger.Set
	races, entries, equipment  *ledger.Set
	raceResults, entryResults  *ledger.Set
	fractions, wagering, calls *ledger.Set
}

func newLedgers() *ledgers {
	return &ledgers{
		horses: ledger.NewSet(), trainers: ledger.NewSet(), owners: ledger.NewSet(),
		races: ledger.NewSet(), entries: ledger.NewSet(), equipment: ledger.NewSet(),
		raceResults: ledger.NewSet(), entryResults: ledger.NewSet(),
		fractions: ledger.NewSet(), wagering: ledger.NewSet(), calls: ledger.NewSet(),
	}
}

// Run executes the phase to completion. Per-file failures are counted, not
// fatal; only a failed or empty discovery, cancellation or a failed final
// flush fail the run.
func (p *Phase) Run(ctx context.Context) (PhaseStats, error) {
	log := zap.L().With(zap.String("phase", string(p.name)))
	var stats PhaseStats

	fail := func(err error) (PhaseStats, error) {
		p.state.Store(int32(StateFailed))
		p.completeRun(ctx, &stats, model.RunStatusFailed)
		return stats, err
	}

	p.state.Store(int32(StateDiscovering))
	docs, err := p.source.Discover(ctx)
	if err != nil {
		p.state.Store(int32(StateFailed))
		return stats, eris.Wrapf(err, "ingest: discover documents for %s phase", p.name)
	}
	stats.FilesDiscovered = len(docs)
	if len(docs) == 0 {
		p.state.Store(int32(StateFailed))
		return stats, eris.Errorf("ingest: no documents found for %s phase", p.name)
	}
	log.Info("documents discovered", zap.Int("count", len(docs)))

	p.runID = uuid.NewString()
	if err := p.store.StartRun(ctx, model.RunRecord{
		ID:        p.runID,
		Phase:     p.name,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now(),
	}); err != nil {
		p.state.Store(int32(StateFailed))
		return stats, err
	}

	p.state.Store(int32(StateProcessing))

	results := make(chan fileResult, p.workers)
	led := newLedgers()

	aggDone := make(chan struct{})
	go func() {
		defer close(aggDone)
		for res := range results {
			if res.err != nil {
				stats.FileErrors++
				log.Warn("document failed", zap.String("doc", res.doc), zap.Error(res.err))
				continue
			}
			stats.FilesProcessed++
			stats.Skipped += res.batch.Skipped
			stats.ReferentialMisses += res.batch.ReferentialMisses

			deduped := dedupe(led, res.batch, &stats)
			counts, err := p.writer.Add(ctx, deduped)
			if err != nil {
				stats.FlushErrors++
				log.Error("flush failed, records dropped", zap.Error(err))
				continue
			}
			stats.addInserted(counts.Inserted)
			stats.Updated += counts.Updated
			stats.UpdateMisses += counts.UpdateMisses
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			// Cancellation takes effect between documents; an in-flight
			// parse always finishes.
			if err := gctx.Err(); err != nil {
				return err
			}
			batch, err := p.extract(gctx, doc)
			results <- fileResult{doc: doc.Name, batch: batch, err: err}
			return nil
		})
	}
	err = g.Wait()
	close(results)
	<-aggDone
	if err != nil {
		return fail(eris.Wrapf(err, "ingest: %s phase canceled", p.name))
	}

	p.state.Store(int32(StateFlushing))
	counts, err := p.writer.Flush(ctx)
	if err != nil {
		stats.FlushErrors++
		return fail(eris.Wrapf(err, "ingest: final flush for %s phase", p.name))
	}
	stats.addInserted(counts.Inserted)
	stats.Updated += counts.Updated
	stats.UpdateMisses += counts.UpdateMisses

	p.state.Store(int32(StateComplete))
	p.completeRun(ctx, &stats, model.RunStatusComplete)
	log.Info("phase complete",
		zap.Int("files", stats.FilesProcessed),
		zap.Int("file_errors", stats.FileErrors),
		zap.Int("skipped", stats.Skipped),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("referential_misses", stats.ReferentialMisses),
		zap.Int64("inserted", stats.TotalInserted()),
		zap.Int64("updated", stats.Updated),
		zap.Int64("update_misses", stats.UpdateMisses))
	return stats, nil
}

func (p *Phase) completeRun(ctx context.Context, stats *PhaseStats, status model.RunStatus) {
	encoded, err := json.Marshal(stats)
	if err != nil {
		encoded = nil
	}
	now := time.Now()
	// The run outcome is recorded even when the run was canceled.
	if err := p.store.CompleteRun(context.WithoutCancel(ctx), model.RunRecord{
		ID:          p.runID,
		Phase:       p.name,
		Status:      status,
		Stats:       string(encoded),
		CompletedAt: &now,
	}); err != nil {
		zap.L().Warn("run record update failed", zap.String("run_id", p.runID), zap.Error(err))
	}
}

// dedupe filters b down to records whose natural key has not been claimed
// earlier in this run. Only called from the aggregator goroutine, but the
// underlying sets are safe for concurrent use regardless.
func dedupe(led *ledgers, b *extract.Batch, stats *PhaseStats) *extract.Batch {
	out := &extract.Batch{}
	before := batchLen(b)

	for _, h := range b.Horses {
		if led.horses.TryClaim(h.RegistrationNumber) {
			out.Horses = append(out.Horses, h)
		}
	}
	for _, t := range b.Trainers {
		if led.trainers.TryClaim(t.ExternalPartyID) {
			out.Trainers = append(out.Trainers, t)
		}
	}
	for _, o := range b.Owners {
		if led.owners.TryClaim(o.ExternalPartyID) {
			out.Owners = append(out.Owners, o)
		}
	}
	for _, r := range b.Races {
		if led.races.TryClaim(r.RaceID) {
			out.Races = append(out.Races, r)
		}
	}
	for _, e := range b.Entries {
		if led.entries.TryClaim(e.EntryID) {
			out.Entries = append(out.Entries, e)
		}
	}
	for _, eq := range b.Equipment {
		if led.equipment.TryClaim(eq.RaceID + "|" + eq.RegistrationNumber + "|" + eq.Code) {
			out.Equipment = append(out.Equipment, eq)
		}
	}
	for _, r := range b.RaceResults {
		if led.raceResults.TryClaim(r.RaceID) {
			out.RaceResults = append(out.RaceResults, r)
		}
	}
	for _, e := range b.EntryResults {
		if led.entryResults.TryClaim(e.EntryID) {
			out.EntryResults = append(out.EntryResults, e)
		}
	}
	for _, f := range b.Fractions {
		if led.fractions.TryClaim(fmt.Sprintf("%s|%d", f.RaceID, f.CallPosition)) {
			out.Fractions = append(out.Fractions, f)
		}
	}
	for _, w := range b.Wagering {
		if led.wagering.TryClaim(w.RaceID + "|" + w.WagerType) {
			out.Wagering = append(out.Wagering, w)
		}
	}
	for _, c := range b.PositionCalls {
		if led.calls.TryClaim(fmt.Sprintf("%s|%s|%d", c.RaceID, c.RegistrationNumber, c.CallPosition)) {
			out.PositionCalls = append(out.PositionCalls, c)
		}
	}

	stats.Duplicates += before - batchLen(out)
	return out
}

func batchLen(b *extract.Batch) int {
	return len(b.Horses) + len(b.Trainers) + len(b.Owners) +
		len(b.Races) + len(b.Entries) + len(b.Equipment) +
		len(b.RaceResults) + len(b.EntryResults) +
		len(b.Fractions) + len(b.Wagering) + len(b.PositionCalls)
}
