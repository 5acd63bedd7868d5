// Package server exposes the calculators, the chat proxy and the document
// list over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telecalc/internal/chat"
	"telecalc/internal/config"
	"telecalc/internal/docstore"
	"telecalc/internal/logger"
	"telecalc/internal/metrics"
	"telecalc/internal/proration"
	"telecalc/internal/ratelimit"
)

// Deps are the collaborators of a Server. Gatherer serves /metrics and is
// usually the registry Metrics was built on.
type Deps struct {
	Config    *config.Config
	Chat      *chat.Service
	Limiter   *ratelimit.Limiter
	Documents *docstore.Store
	Metrics   *metrics.Collector
	Gatherer  prometheus.Gatherer
}

// Server holds the HTTP handlers.
type Server struct {
	cfg       *config.Config
	chat      *chat.Service
	limiter   *ratelimit.Limiter
	docs      *docstore.Store
	metrics   *metrics.Collector
	gatherer  prometheus.Gatherer
	formatter *proration.Formatter
	log       zerolog.Logger
}

// New returns a Server. Config, Chat, Limiter, Documents and Metrics are
// required.
func New(d Deps) *Server {
	f := proration.NewFormatter(decimal.NewFromFloat(d.Config.VATRate))
	f.DateStyle = proration.DateStyle(d.Config.DateStyle)

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		cfg:       d.Config,
		chat:      d.Chat,
		limiter:   d.Limiter,
		docs:      d.Documents,
		metrics:   d.Metrics,
		gatherer:  gatherer,
		formatter: f,
		log:       logger.WithComponent("server"),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		// The chat stream outlives the calculator deadline.
		r.Post("/chat", s.handleChat)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.HTTPRequestTimeout))

			r.Get("/cycle", s.handleCycle)
			r.Post("/prorate", s.handleProrate)
			r.Post("/pricing", s.handlePricing)

			r.Get("/documents", s.handleListDocuments)
			r.Post("/documents", s.handleUpsertDocuments)
			r.Delete("/documents/{id}", s.handleDeleteDocument)
		})
	})

	return r
}

// Run serves on the configured address until ctx is done, then drains
// in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
