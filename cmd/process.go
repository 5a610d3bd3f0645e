package cmd

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"docproc/internal/bootstrap"
	"docproc/internal/bootstrap/logging"
	"docproc/internal/errs"
	"docproc/internal/interfaces/httpapi"
	"docproc/internal/usecase/intake"
)

var processCmd = &cobra.Command{
	Use:   "process <document-id>",
	Short: "Process one uploaded document and wait for the result",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service, _ *httpapi.Server) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, err := strconv.ParseUint(cmd.Flags().Args()[0], 10, 64)
		if err != nil || id == 0 {
			return fmt.Errorf("invalid document id %q", cmd.Flags().Args()[0])
		}

		if err := svc.StartProcessing(ctx, id); err != nil {
			logging.Error(ctx, "start processing failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start processing")
		}
		svc.Wait()

		detail, err := svc.GetDocument(ctx, id)
		if err != nil {
			return errs.Wrap(err, "load processed document")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "document %d status=%s type=%s\n",
			detail.DocumentID, detail.Status, detail.DocumentType); err != nil {
			return errs.Wrap(err, "write process output")
		}
		if detail.ErrorMessage != "" {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "error: %s\n", detail.ErrorMessage); err != nil {
				return errs.Wrap(err, "write process output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(processCmd)
}
