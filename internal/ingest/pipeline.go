package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trackline/racing-etl/internal/extract"
	"github.com/trackline/racing-etl/internal/feed"
	"github.com/trackline/racing-etl/internal/model"
	"github.com/trackline/racing-etl/internal/normalize"
	"github.com/trackline/racing-etl/internal/store"
)

// Config carries the pipeline knobs read from the config file.
type Config struct {
	// EntryDir holds pre-race entry card documents; ChartDir holds
	// post-race result charts.
	EntryDir string `mapstructure:"entry_dir" yaml:"entry_dir"`
	ChartDir string `mapstructure:"chart_dir" yaml:"chart_dir"`

	Workers   int `mapstructure:"workers" yaml:"workers"`
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
}

// Report is the cross-phase summary produced by a full pipeline run.
type Report struct {
	Phases      map[model.PhaseName]PhaseStats `json:"phases"`
	PhaseErrors map[model.PhaseName]string     `json:"phase_errors,omitempty"`
	TableCounts map[string]int64               `json:"table_counts,omitempty"`
}

// Pipeline runs the three ingestion phases in their required order:
// entities before prerace (entries reference horses and people), prerace
// before results (charts merge onto existing rows).
type Pipeline struct {
	store store.Store
	std   *normalize.Standardizer
	cfg   Config
}

// NewPipeline wires a pipeline over an opened store.
func NewPipeline(s store.Store, std *normalize.Standardizer, cfg Config) *Pipeline {
	return &Pipeline{store: s, std: std, cfg: cfg}
}

func (p *Pipeline) newPhase(name model.PhaseName, src feed.Source, ex Extractor) *Phase {
	writer := NewBatchWriter(p.store, p.cfg.BatchSize)
	return NewPhase(name, src, ex, writer, p.store, p.cfg.Workers)
}

// RunEntities ingests horse, trainer and owner master records from the
// entry cards.
func (p *Pipeline) RunEntities(ctx context.Context) (PhaseStats, error) {
	phase := p.newPhase(model.PhaseEntities, feed.NewDirSource(p.cfg.EntryDir),
		func(ctx context.Context, doc feed.Document) (*extract.Batch, error) {
			return extract.Entities(ctx, doc)
		})
	return phase.Run(ctx)
}

// RunPreRace ingests race cards and entries from the entry cards.
func (p *Pipeline) RunPreRace(ctx context.Context) (PhaseStats, error) {
	phase := p.newPhase(model.PhasePreRace, feed.NewDirSource(p.cfg.EntryDir),
		func(ctx context.Context, doc feed.Document) (*extract.Batch, error) {
			return extract.PreRace(ctx, p.std, doc)
		})
	return phase.Run(ctx)
}

// RunResults merges result charts onto the rows the earlier phases wrote.
func (p *Pipeline) RunResults(ctx context.Context) (PhaseStats, error) {
	phase := p.newPhase(model.PhaseResults, feed.NewDirSource(p.cfg.ChartDir),
		func(ctx context.Context, doc feed.Document) (*extract.Batch, error) {
			return extract.Results(ctx, p.std, p.store, doc)
		})
	return phase.Run(ctx)
}

// RunAll executes all three phases sequentially. A failed phase is recorded
// in the report and the remaining phases still run; later phases simply see
// fewer rows to join against. The report error is non-nil when any phase
// failed.
func (p *Pipeline) RunAll(ctx context.Context) (Report, error) {
	report := Report{
		Phases:      make(map[model.PhaseName]PhaseStats),
		PhaseErrors: make(map[model.PhaseName]string),
	}

	phases := []struct {
		name model.PhaseName
		run  func(context.Context) (PhaseStats, error)
	}{
		{model.PhaseEntities, p.RunEntities},
		{model.PhasePreRace, p.RunPreRace},
		{model.PhaseResults, p.RunResults},
	}

	var failed []string
	for _, ph := range phases {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		stats, err := ph.run(ctx)
		report.Phases[ph.name] = stats
		if err != nil {
			report.PhaseErrors[ph.name] = err.Error()
			failed = append(failed, string(ph.name))
			zap.L().Error("phase failed", zap.String("phase", string(ph.name)), zap.Error(err))
		}
	}

	counts, err := p.TableCounts(ctx)
	if err != nil {
		zap.L().Warn("table count summary failed", zap.Error(err))
	} else {
		report.TableCounts = counts
	}

	if len(failed) > 0 {
		return report, eris.Errorf("ingest: phases failed: %v", failed)
	}
	return report, nil
}

// TableCounts reports the current row count of every table.
func (p *Pipeline) TableCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(store.Tables))
	for _, table := range store.Tables {
		n, err := p.store.CountRows(ctx, table)
		if err != nil {
			return nil, err
		}
		counts[table] = n
	}
	return counts, nil
}
