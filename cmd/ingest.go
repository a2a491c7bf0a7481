package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trackline/racing-etl/internal/ingest"
	"github.com/trackline/racing-etl/internal/normalize"
)

var (
	flagEntryDir  string
	flagChartDir  string
	flagWorkers   int
	flagBatchSize int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run ingestion phases",
	Long:  "Parses racing XML documents and writes normalized records to the store. Phases run in a fixed order: entities, then prerace, then results.",
}

var ingestEntitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Ingest horse, trainer and owner master records",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPhase(cmd.Context(), func(ctx context.Context, p *ingest.Pipeline) error {
			_, err := p.RunEntities(ctx)
			return err
		})
	},
}

var ingestPreRaceCmd = &cobra.Command{
	Use:   "prerace",
	Short: "Ingest race cards and entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPhase(cmd.Context(), func(ctx context.Context, p *ingest.Pipeline) error {
			_, err := p.RunPreRace(ctx)
			return err
		})
	},
}

var ingestResultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Merge result charts onto existing races and entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPhase(cmd.Context(), func(ctx context.Context, p *ingest.Pipeline) error {
			_, err := p.RunResults(ctx)
			return err
		})
	},
}

var ingestAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Run all three phases in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPhase(cmd.Context(), func(ctx context.Context, p *ingest.Pipeline) error {
			report, err := p.RunAll(ctx)
			for table, count := range report.TableCounts {
				zap.L().Info("table summary", zap.String("table", table), zap.Int64("rows", count))
			}
			return err
		})
	},
}

func init() {
	ingestCmd.PersistentFlags().StringVar(&flagEntryDir, "entry-dir", "", "directory of entry card XML documents")
	ingestCmd.PersistentFlags().StringVar(&flagChartDir, "chart-dir", "", "directory of result chart XML documents")
	ingestCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "parse worker count")
	ingestCmd.PersistentFlags().IntVar(&flagBatchSize, "batch-size", 0, "records per storage flush")

	ingestCmd.AddCommand(ingestEntitiesCmd, ingestPreRaceCmd, ingestResultsCmd, ingestAllCmd)
	rootCmd.AddCommand(ingestCmd)
}

// ingestConfig merges command-line flags over the file configuration.
func ingestConfig() ingest.Config {
	ic := cfg.Ingest
	if flagEntryDir != "" {
		ic.EntryDir = flagEntryDir
	}
	if flagChartDir != "" {
		ic.ChartDir = flagChartDir
	}
	if flagWorkers > 0 {
		ic.Workers = flagWorkers
	}
	if flagBatchSize > 0 {
		ic.BatchSize = flagBatchSize
	}
	return ic
}

func runPhase(ctx context.Context, run func(context.Context, *ingest.Pipeline) error) error {
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Migrate(ctx); err != nil {
		return eris.Wrap(err, "migrate")
	}

	tables, err := normalize.LoadTables()
	if err != nil {
		return eris.Wrap(err, "load reference tables")
	}

	p := ingest.NewPipeline(s, normalize.New(tables), ingestConfig())
	return run(ctx, p)
}
