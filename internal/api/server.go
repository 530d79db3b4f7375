package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/tmaxmax/go-sse"

	"github.com/binarykitchen/noodlenotify/internal/config"
	"github.com/binarykitchen/noodlenotify/internal/metrics"
)

// Server is the push hub: listeners subscribe on /push and publishers post
// to the messages API.
type Server struct {
	cfg    config.HubConfig
	push   *sse.Server
	router *chi.Mux
	log    zerolog.Logger
	http   *http.Server
}

func NewServer(cfg config.HubConfig, log zerolog.Logger) *Server {
	metrics.Init()

	s := &Server{
		cfg:  cfg,
		push: &sse.Server{},
		log:  log,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.log))

	msgHandler := NewMessageHandler(s.push, s.log)
	healthHandler := NewHealthHandler()

	r.Get("/health", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/push", s.stream)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.cfg.Secret != "" {
				r.Use(SignatureMiddleware(s.cfg.Secret))
			}
			r.Post("/messages", msgHandler.Send)
		})
	})

	return r
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	metrics.Subscribers.Inc()
	defer metrics.Subscribers.Dec()

	s.log.Debug().Str("remote", r.RemoteAddr).Msg("push subscriber connected")
	s.push.ServeHTTP(w, r)
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("push subscriber gone")
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	// No write timeout: push streams stay open for the client's lifetime.
	s.http = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: s.cfg.ReadTimeout,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")
	return s.http.ListenAndServe()
}

// Shutdown ends all open push streams first, then stops the HTTP server.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.push.Shutdown(ctx); err != nil {
		s.log.Error().Err(err).Msg("push stream shutdown error")
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
