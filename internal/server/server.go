// Package server is the preview server: it hosts fixture diagrams and
// payloads under the same routes as the real backend and runs a push
// channel so a card can be developed without one.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ziadkadry99/topoview/internal/auth"
)

// Config holds server configuration.
type Config struct {
	Port           int
	Namespace      string
	FixturesDir    string
	JWTSecret      string   // empty accepts any bearer token
	AllowedOrigins []string // empty allows localhost only
}

type Server struct {
	cfg        Config
	fixtures   *Fixtures
	tokens     *auth.Manager
	hub        *Hub
	registry   *prometheus.Registry
	metrics    *Metrics
	router     chi.Router
	httpServer *http.Server
}

// New loads the fixtures and builds the router.
func New(cfg Config) (*Server, error) {
	fixtures, err := LoadFixtures(cfg.FixturesDir)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	s := &Server{
		cfg:      cfg,
		fixtures: fixtures,
		tokens:   auth.NewManager(cfg.JWTSecret),
		registry: reg,
		metrics:  NewMetrics(reg),
	}
	s.hub = NewHub(cfg.Namespace, s.tokens, fixtures, s.metrics)
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(s.cfg.AllowedOrigins) > 0 {
		corsOpts.AllowedOrigins = s.cfg.AllowedOrigins
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// The push channel authenticates in-band and must not be cut off by
	// the request timeout.
	r.Get("/api/websocket", s.hub.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(requireBearer(s.tokens))
		registerFixtureRoutes(r, s)
	})

	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Hub returns the push channel hub.
func (s *Server) Hub() *Hub { return s.hub }

// Registry returns the registry served on /metrics.
func (s *Server) Registry() *prometheus.Registry { return s.registry }

// Fixtures returns the fixture index.
func (s *Server) Fixtures() *Fixtures { return s.fixtures }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("topoview preview listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
