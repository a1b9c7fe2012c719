// Package frontend exposes the engine over HTTP: starting and inspecting
// sync runs, cancelling them, and driving the soft-delete lifecycle.
package frontend

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/uroborus2s/campus-sync/internal/aggregator"
	"github.com/uroborus2s/campus-sync/internal/config"
	"github.com/uroborus2s/campus-sync/internal/logger"
	syncengine "github.com/uroborus2s/campus-sync/internal/sync"
)

// Server is the HTTP API front end.
type Server struct {
	addr       string
	engine     *syncengine.Engine
	aggregator *aggregator.Aggregator
	httpServer *http.Server
}

// New creates the API server.
func New(cfg config.Server, engine *syncengine.Engine, agg *aggregator.Aggregator) *Server {
	srv := &Server{
		addr:       cfg.Addr(),
		engine:     engine,
		aggregator: agg,
	}
	srv.httpServer = &http.Server{
		Addr:              srv.addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/terms/{term}/sync", s.handleStartSync)
		r.Post("/terms/{term}/sync/incremental", s.handleIncrementalSync)
		r.Post("/terms/{term}/soft-delete/sweep", s.handleSweepSoftDelete)
		r.Get("/sync/{rootTaskID}", s.handleSyncStatus)
		r.Delete("/sync/{rootTaskID}", s.handleCancelSync)
		r.Post("/occurrences/soft-delete", s.handleSoftDelete)
	})
	return r
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "API server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
