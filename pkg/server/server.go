// Package server exposes the mapping status, on-demand sync and metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/vpnda/akahu-sync/pkg/metrics"
	"github.com/vpnda/akahu-sync/pkg/services"
	"github.com/vpnda/akahu-sync/pkg/store"
)

const (
	defaultGracefulShutdownTimeout = 30 * time.Second
	// a sync walks every mapped account, so requests get a long budget
	defaultHTTPMiddlewareTimeout = 5 * time.Minute
	defaultHTTPReadTimeout       = 15 * time.Second
	defaultHTTPIdleTimeout       = 60 * time.Second
)

// Syncer runs one transaction sync.
type Syncer interface {
	Sync(ctx context.Context) (*services.SyncReport, error)
}

type Server struct {
	store  *store.Store
	syncer Syncer
	// syncing allows one sync at a time
	syncing sync.Mutex
}

func New(st *store.Store, syncer Syncer) *Server {
	return &Server{store: st, syncer: syncer}
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultHTTPMiddlewareTimeout))
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/status", s.handleStatus)
	r.Get("/sync", s.handleSync)
	r.Post("/sync", s.handleSync)
	r.Handle("/metrics", metrics.Handler())

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	state, err := s.store.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load mapping")
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrMissingFile) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, services.Summarize(state))
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if !s.syncing.TryLock() {
		writeError(w, http.StatusConflict, "a sync is already running")
		return
	}
	defer s.syncing.Unlock()

	report, err := s.syncer.Sync(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Sync failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Router(),
		ReadTimeout: defaultHTTPReadTimeout,
		IdleTimeout: defaultHTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", addr).Msg("HTTP server listening")
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case runErr = <-errCh:
		if runErr != nil {
			log.Error().Err(runErr).Msg("HTTP server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("http server failed: %w", runErr)
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}
