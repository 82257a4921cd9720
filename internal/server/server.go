// Package server provides the HTTP server and routing for the treasury
// service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/treasurer/internal/config"
	"github.com/aristath/treasurer/internal/database"
	"github.com/aristath/treasurer/internal/domain"
	"github.com/aristath/treasurer/internal/events"
	"github.com/aristath/treasurer/internal/modules/analysis"
	analysishandlers "github.com/aristath/treasurer/internal/modules/analysis/handlers"
	"github.com/aristath/treasurer/internal/modules/governance"
	governancehandlers "github.com/aristath/treasurer/internal/modules/governance/handlers"
	"github.com/aristath/treasurer/internal/modules/ledger"
	ledgerhandlers "github.com/aristath/treasurer/internal/modules/ledger/handlers"
	"github.com/aristath/treasurer/internal/modules/snapshots"
	"github.com/aristath/treasurer/internal/modules/treasury"
	treasuryhandlers "github.com/aristath/treasurer/internal/modules/treasury/handlers"
)

// Config holds server configuration
type Config struct {
	Log        zerolog.Logger
	Config     *config.Config
	TreasuryDB *database.DB
	HistoryDB  *database.DB

	Resolver   *domain.Resolver
	Bus        *events.Bus
	Treasury   *treasury.Service
	Analysis   *analysis.Service
	Governance *governance.Service
	LedgerRepo *ledger.Repository
	Snapshots  *snapshots.Repository
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            Config
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg,
		systemHandlers: NewSystemHandlers(cfg.TreasuryDB, cfg.HistoryDB, cfg.Log),
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// SystemHandlers returns the system handlers for post-construction wiring
// (the backup job is created after the server).
func (s *Server) SystemHandlers() *SystemHandlers {
	return s.systemHandlers
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", treasuryhandlers.CallerHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Websocket event stream; registered before the timeout-wrapped
		// handlers would matter for long-lived connections.
		eventsHandler := NewEventsWSHandler(s.cfg.Bus, s.cfg.Log)
		r.Get("/events/ws", eventsHandler.ServeHTTP)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Post("/backup", s.systemHandlers.HandleTriggerBackup)
		})

		treasuryHandler := treasuryhandlers.NewHandler(s.cfg.Treasury, s.cfg.Resolver, s.cfg.Log)
		analysisHandler := analysishandlers.NewHandler(s.cfg.Analysis, s.cfg.Snapshots, s.cfg.Log)
		r.Route("/treasury", func(r chi.Router) {
			treasuryHandler.RegisterRoutes(r)
			analysisHandler.RegisterRoutes(r)
		})

		ledgerHandler := ledgerhandlers.NewHandler(s.cfg.LedgerRepo, s.cfg.Log)
		ledgerHandler.RegisterRoutes(r)

		governanceHandler := governancehandlers.NewHandler(s.cfg.Governance, s.cfg.Resolver, s.cfg.Log)
		governanceHandler.RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Config.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
