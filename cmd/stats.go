package cmd

import (
	"fmt"
	"log/slog"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"docproc/internal/bootstrap"
	"docproc/internal/bootstrap/logging"
	"docproc/internal/errs"
	"docproc/internal/interfaces/httpapi"
	"docproc/internal/usecase/intake"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show processing statistics",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service, _ *httpapi.Server) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		stats, err := svc.Statistics(ctx)
		if err != nil {
			logging.Error(ctx, "load statistics failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "load statistics")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if _, err := fmt.Fprintln(w, "metric\tvalue"); err != nil {
			return errs.Wrap(err, "write stats header")
		}
		rows := []struct {
			name  string
			value any
		}{
			{"total_documents", stats.TotalDocuments},
			{"pending", stats.Pending},
			{"processing", stats.Processing},
			{"completed", stats.Completed},
			{"failed", stats.Failed},
			{"average_processing_time", stats.AverageProcessingTime},
			{"average_confidence_score", stats.AverageConfidenceScore},
			{"time_saved_hours", stats.TimeSavedHours},
		}
		for _, row := range rows {
			if _, err := fmt.Fprintf(w, "%s\t%v\n", row.name, row.value); err != nil {
				return errs.Wrap(err, "write stats row")
			}
		}

		types := make([]string, 0, len(stats.DocumentsByType))
		for docType := range stats.DocumentsByType {
			types = append(types, docType)
		}
		sort.Strings(types)
		for _, docType := range types {
			if _, err := fmt.Fprintf(w, "type:%s\t%d\n", docType, stats.DocumentsByType[docType]); err != nil {
				return errs.Wrap(err, "write stats type row")
			}
		}

		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "flush stats output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
