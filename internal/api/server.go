// Package api provides the HTTP REST API and management panel server for
// the voice assistant manager.
//
// It exposes the exposure state, draft editing, commit/discard, preview,
// and platform supervision endpoints to the web panel. All mutating
// routes sit behind admin bearer-token auth.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mattiagosetto9/ha-voice-manager/internal/apply"
	"github.com/mattiagosetto9/ha-voice-manager/internal/audit"
	"github.com/mattiagosetto9/ha-voice-manager/internal/bridge"
	"github.com/mattiagosetto9/ha-voice-manager/internal/catalog"
	"github.com/mattiagosetto9/ha-voice-manager/internal/draft"
	"github.com/mattiagosetto9/ha-voice-manager/internal/infrastructure/config"
	"github.com/mattiagosetto9/ha-voice-manager/internal/infrastructure/logging"
	"github.com/mattiagosetto9/ha-voice-manager/internal/rules"
	"github.com/mattiagosetto9/ha-voice-manager/internal/system"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config       config.APIConfig
	Logger       *logging.Logger
	Drafts       *draft.Manager
	Orchestrator *apply.Orchestrator
	Store        rules.Store
	Catalog      catalog.Provider
	Audit        audit.Repository         // optional
	System       *system.Client           // optional: platform check/restart
	Bridge       *bridge.HomeKitPublisher // optional: bridge status for /state
	Version      string
}

// Server is the HTTP API server for the voice assistant manager.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg          config.APIConfig
	logger       *logging.Logger
	drafts       *draft.Manager
	orchestrator *apply.Orchestrator
	store        rules.Store
	catalog      catalog.Provider
	auditRepo    audit.Repository
	systemClient *system.Client
	bridge       *bridge.HomeKitPublisher
	version      string
	server       *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Drafts == nil {
		return nil, fmt.Errorf("draft manager is required")
	}
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("rule store is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("entity catalog is required")
	}

	return &Server{
		cfg:          deps.Config,
		logger:       deps.Logger,
		drafts:       deps.Drafts,
		orchestrator: deps.Orchestrator,
		store:        deps.Store,
		catalog:      deps.Catalog,
		auditRepo:    deps.Audit,
		systemClient: deps.System,
		bridge:       deps.Bridge,
		version:      deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener runs in a background goroutine; stop it with Close().
func (s *Server) Start(_ context.Context) error {
	if s.cfg.AdminToken == "" {
		s.logger.Warn("admin token not configured, API is unauthenticated")
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
