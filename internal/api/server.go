// Package api serves run status over HTTP while a transcription is running.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/voice2txt/internal/metrics"
	"github.com/snarg/voice2txt/internal/transcribe"
)

// ServerOptions wires the status server to the running transcription.
type ServerOptions struct {
	Addr      string
	AuthToken string
	Version   string
	StartTime time.Time
	Tracker   *transcribe.Tracker
	Hub       *EventHub
	DB        Pinger           // nil without the postgres backend
	MQTT      ConnectionStatus // nil without a broker
	Log       zerolog.Logger
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(opts ServerOptions) *Server {
	return &Server{
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewRouter(opts),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		log: opts.Log,
	}
}

// NewRouter builds the status routes.
func NewRouter(opts ServerOptions) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))
	r.Use(metrics.InstrumentHandler)

	// Health endpoint and metrics: no auth
	r.Get("/api/v1/health", NewHealthHandler(opts.DB, opts.MQTT, opts.Tracker, opts.Version, opts.StartTime).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(opts.AuthToken))
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/progress", NewProgressHandler(opts.Tracker).ServeHTTP)
			NewEventsHandler(opts.Hub).Routes(r)
		})
	})

	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("status server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("status server shutting down")
	return s.http.Shutdown(ctx)
}
