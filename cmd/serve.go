package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docproc/internal/bootstrap"
	"docproc/internal/bootstrap/logging"
	"docproc/internal/errs"
	"docproc/internal/interfaces/httpapi"
	"docproc/internal/usecase/intake"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ *intake.Service, server *httpapi.Server) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		if err := app.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "initialize schema")
		}

		signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		serveErr := make(chan error, 1)
		go func() {
			serveErr <- server.ListenAndServe(ctx)
		}()

		select {
		case err := <-serveErr:
			if err != nil {
				return errs.Wrap(err, "serve http")
			}
			return nil
		case <-signalCtx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errs.Wrap(err, "shutdown server")
		}
		if err := <-serveErr; err != nil {
			return errs.Wrap(err, "serve http")
		}

		logging.Info(ctx, "server stopped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
