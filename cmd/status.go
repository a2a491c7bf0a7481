package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trackline/racing-etl/internal/model"
	"github.com/trackline/racing-etl/internal/store"
)

var flagRunLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show table counts and recent ingestion runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "TABLE\tROWS")
		for _, table := range store.Tables {
			count, err := s.CountRows(ctx, table)
			if err != nil {
				return eris.Wrapf(err, "count %s", table)
			}
			_, _ = fmt.Fprintf(w, "%s\t%d\n", table, count)
		}
		_ = w.Flush()

		runs, err := s.ListRuns(ctx, flagRunLimit)
		if err != nil {
			return eris.Wrap(err, "list runs")
		}
		if len(runs) == 0 {
			zap.L().Info("no ingestion runs recorded, run 'ingest all' first")
			return nil
		}

		fmt.Println()
		formatRuns(os.Stdout, runs)
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&flagRunLimit, "limit", 20, "number of runs to show")
	rootCmd.AddCommand(statusCmd)
}

// formatRuns writes a tabular view of run records to out.
func formatRuns(out io.Writer, runs []model.RunRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN\tPHASE\tSTATUS\tSTARTED\tDURATION")

	for _, run := range runs {
		dur := "-"
		if run.CompletedAt != nil {
			dur = run.CompletedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			run.ID, run.Phase, run.Status,
			run.StartedAt.Format(time.RFC3339), dur)
	}
	_ = w.Flush()
}
