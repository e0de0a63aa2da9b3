package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/dungeon-engine/internal/config"
	"github.com/terra-clan/dungeon-engine/internal/dungeon"
	"github.com/terra-clan/dungeon-engine/internal/events"
	"github.com/terra-clan/dungeon-engine/internal/models"
	"github.com/terra-clan/dungeon-engine/internal/roster"
	"github.com/terra-clan/dungeon-engine/internal/storage"
)

// Executor runs fn on the goroutine that owns the engine state
type Executor interface {
	Do(ctx context.Context, fn func() error) error
}

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	engine         *dungeon.Orchestrator
	roster         *roster.Roster
	loop           Executor
	repo           storage.Repository
	bus            *events.Bus
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server. Engine and roster are only touched through loop.
func NewServer(
	cfg config.ServerConfig,
	engine *dungeon.Orchestrator,
	characters *roster.Roster,
	loop Executor,
	repo storage.Repository,
	bus *events.Bus,
	clients []*models.ApiClient,
) *Server {
	s := &Server{
		config:         cfg,
		engine:         engine,
		roster:         characters,
		loop:           loop,
		repo:           repo,
		bus:            bus,
		authMiddleware: NewAuthMiddleware(clients),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	auth := s.authMiddleware

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Authenticate)

		// Long-lived stream, no request timeout
		r.With(auth.RequirePermission("events:read")).Get("/events/ws", s.handleEventsWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			// Templates
			r.Route("/templates", func(r chi.Router) {
				r.With(auth.RequirePermission("templates:read")).Get("/", s.handleListTemplates)
				r.With(auth.RequirePermission("templates:read")).Get("/{id}", s.handleGetTemplate)
				r.With(auth.RequirePermission("templates:write")).Post("/{id}/unlock", s.handleUnlockTemplate)
			})

			// Characters
			r.Route("/characters", func(r chi.Router) {
				r.With(auth.RequirePermission("characters:write")).Post("/", s.handleRegisterCharacter)

				r.Route("/{id}", func(r chi.Router) {
					r.With(auth.RequirePermission("characters:read")).Get("/", s.handleGetCharacter)
					r.With(auth.RequirePermission("characters:read")).Get("/available", s.handleAvailableDungeons)
					r.With(auth.RequirePermission("characters:write")).Post("/unlocks", s.handleCheckUnlocks)
				})
			})

			// Dungeon sessions
			r.Route("/dungeons", func(r chi.Router) {
				r.With(auth.RequirePermission("dungeons:read")).Get("/", s.handleListSessions)
				r.With(auth.RequirePermission("dungeons:write")).Post("/enter", s.handleEnterDungeon)

				r.Route("/{id}", func(r chi.Router) {
					r.With(auth.RequirePermission("dungeons:read")).Get("/", s.handleGetSession)
					r.With(auth.RequirePermission("dungeons:write")).Post("/kills", s.handleReportKills)
					r.With(auth.RequirePermission("dungeons:write")).Post("/damage", s.handleReportDamage)
					r.With(auth.RequirePermission("dungeons:write")).Post("/items", s.handleReportItems)
					r.With(auth.RequirePermission("dungeons:write")).Post("/exit", s.handleExitDungeon)
				})
			})

			// Run history
			r.Route("/runs", func(r chi.Router) {
				r.With(auth.RequirePermission("runs:read")).Get("/", s.handleListRuns)
				r.With(auth.RequirePermission("runs:read")).Get("/{id}", s.handleGetRun)
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
