package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"docproc/internal/bootstrap/logging"
	"docproc/internal/errs"
	"docproc/internal/usecase/intake"
)

// Server wraps the HTTP listener with graceful shutdown. Shutdown first stops
// accepting requests, then drains in-flight background processing so a
// document is never left stuck in the processing state by a restart.
type Server struct {
	httpServer *http.Server
	svc        *intake.Service
}

func NewServer(addr string, handler http.Handler, svc *intake.Service) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		svc: svc,
	}
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	logging.Info(ctx, "http server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errs.Wrap(err, "serve http")
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info(ctx, "http server shutting down")
	err := s.httpServer.Shutdown(ctx)
	s.svc.Wait()
	if err != nil {
		return errs.Wrap(err, "shutdown http server")
	}
	return nil
}
