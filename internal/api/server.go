// Package api provides the HTTP surface of the dashboard synchronization
// core: layout CRUD, panel registry operations, and event publish/stream.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/parcelstack-labs/parcelboard/internal/panel"
	"github.com/parcelstack-labs/parcelboard/internal/state"
	psync "github.com/parcelstack-labs/parcelboard/internal/sync"
)

// Server is the main API server.
type Server struct {
	store        state.Store
	registry     *panel.Registry
	bus          *psync.Bus
	sessionStore *sessions.CookieStore
	port         int
	templatesDir string
	logger       *slog.Logger

	mu          sync.Mutex
	unsubscribe map[string]func() // panel id -> reaction teardown
}

// Config holds configuration for the API server.
type Config struct {
	Store         state.Store
	Registry      *panel.Registry
	Bus           *psync.Bus
	Port          int
	SessionSecret string
	TemplatesDir  string
	Logger        *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 30) // 30 days
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Server{
		store:        cfg.Store,
		registry:     cfg.Registry,
		bus:          cfg.Bus,
		sessionStore: sessionStore,
		port:         cfg.Port,
		templatesDir: cfg.TemplatesDir,
		logger:       logger,
		unsubscribe:  make(map[string]func()),
	}
}

// Serve starts the API server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting API server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Load layout templates and watch for changes if a directory is set.
	if s.templatesDir != "" {
		if err := s.loadTemplates(); err != nil {
			s.logger.Error("failed to load layout templates", "error", err)
			// Don't fail - serve without templates.
		}
		eg.Go(func() error {
			return s.watchTemplates(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Routes builds the router. Exposed separately so tests can exercise
// handlers without binding a port.
func (s *Server) Routes() chi.Router {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.withOwner)

		r.Route("/layouts", func(r chi.Router) {
			r.Get("/", s.handleListLayouts)
			r.Post("/", s.handleCreateLayout)
			r.Get("/default", s.handleGetDefaultLayout)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetLayout)
				r.Put("/", s.handleUpdateLayout)
				r.Delete("/", s.handleDeleteLayout)
				r.Post("/clone", s.handleCloneLayout)
				r.Post("/default", s.handleSetDefaultLayout)
			})
		})

		r.Route("/panels", func(r chi.Router) {
			r.Get("/", s.handleListPanels)
			r.Post("/", s.handleRegisterPanel)
			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", s.handleUpdatePanel)
				r.Delete("/", s.handleUnregisterPanel)
				r.Get("/affected", s.handleAffectedPanels)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Post("/", s.handlePublishEvent)
			r.Get("/stream", s.handleEventStream)
			r.Get("/drops", s.handleEventDrops)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
