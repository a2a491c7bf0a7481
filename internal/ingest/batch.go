package ingest

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/trackline/racing-etl/internal/extract"
	"github.com/trackline/racing-etl/internal/retry"
	"github.com/trackline/racing-etl/internal/store"
)

// DefaultBatchSize is the record threshold that triggers a flush.
const DefaultBatchSize = 500

// BatchWriter buffers extracted records and writes them to the store in
// batches. Adds are cheap appends under a mutex; a flush swaps the buffer
// out first, so extraction is never blocked on storage. The whole flush
// commits in one storage transaction; a failed flush drops its records,
// which is safe because re-ingesting the same documents is idempotent.
type BatchWriter struct {
	store     store.Store
	threshold int
	retry     retry.Config

	bufMu   sync.Mutex
	buf     store.Batch
	pending int

	flushMu sync.Mutex
}

// NewBatchWriter builds a writer flushing every threshold records.
// Transient storage errors are retried before a flush is given up on.
func NewBatchWriter(s store.Store, threshold int) *BatchWriter {
	if threshold <= 0 {
		threshold = DefaultBatchSize
	}
	return &BatchWriter{store: s, threshold: threshold, retry: retry.DefaultConfig()}
}

// Add buffers every record in b and flushes if the threshold is reached.
// Flush counts from a triggered flush are returned; otherwise the zero
// counts.
func (w *BatchWriter) Add(ctx context.Context, b *extract.Batch) (store.BatchCounts, error) {
	w.bufMu.Lock()
	w.buf.Horses = append(w.buf.Horses, b.Horses...)
	w.buf.Trainers = append(w.buf.Trainers, b.Trainers...)
	w.buf.Owners = append(w.buf.Owners, b.Owners...)
	w.buf.Races = append(w.buf.Races, b.Races...)
	w.buf.Entries = append(w.buf.Entries, b.Entries...)
	w.buf.Equipment = append(w.buf.Equipment, b.Equipment...)
	w.buf.RaceResults = append(w.buf.RaceResults, b.RaceResults...)
	w.buf.EntryResults = append(w.buf.EntryResults, b.EntryResults...)
	w.buf.Fractions = append(w.buf.Fractions, b.Fractions...)
	w.buf.Wagering = append(w.buf.Wagering, b.Wagering...)
	w.buf.PositionCalls = append(w.buf.PositionCalls, b.PositionCalls...)
	w.pending = w.buf.Len()
	full := w.pending >= w.threshold
	w.bufMu.Unlock()

	if !full {
		return store.BatchCounts{}, nil
	}
	return w.Flush(ctx)
}

// Flush writes everything buffered so far in a single store transaction.
// Safe to call with an empty buffer; the final call at the end of a phase
// drains the remainder.
func (w *BatchWriter) Flush(ctx context.Context) (store.BatchCounts, error) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.bufMu.Lock()
	batch := w.buf
	w.buf = store.Batch{}
	w.pending = 0
	w.bufMu.Unlock()

	if batch.Len() == 0 {
		return store.BatchCounts{Inserted: make(map[string]int64)}, nil
	}

	var counts store.BatchCounts
	err := retry.Do(ctx, w.retry, func(ctx context.Context) error {
		var err error
		counts, err = w.store.Apply(ctx, &batch)
		return err
	})
	if err != nil {
		return store.BatchCounts{}, err
	}

	zap.L().Debug("batch flushed",
		zap.Int64("inserted", sumCounts(counts.Inserted)),
		zap.Int64("updated", counts.Updated),
		zap.Int64("update_misses", counts.UpdateMisses))
	return counts, nil
}

func sumCounts(m map[string]int64) int64 {
	var total int64
	for _, n := range m {
		total += n
	}
	return total
}
