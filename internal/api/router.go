package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mattiagosetto9/ha-voice-manager/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Management panel (embedded via go:embed)
	r.Handle("/panel/*", http.StripPrefix("/panel", panel.Handler(s.cfg.PanelDir)))
	r.Handle("/panel", http.RedirectHandler("/panel/", http.StatusMovedPermanently))
	r.Handle("/", http.RedirectHandler("/panel/", http.StatusMovedPermanently))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Everything else requires the admin token
		r.Group(func(r chi.Router) {
			r.Use(s.adminAuthMiddleware)

			r.Get("/state", s.handleGetState)
			r.Put("/mode", s.handleSetMode)
			r.Get("/entities", s.handleListEntities)
			r.Get("/audit", s.handleListAudit)

			r.Post("/commit", s.handleCommitAll)

			r.Route("/profiles/{id}", func(r chi.Router) {
				r.Get("/draft", s.handleGetDraft)
				r.Put("/filter-mode", s.handleSetFilterMode)
				r.Put("/rules/{domain}", s.handleSetDomainRule)
				r.Delete("/rules/{domain}", s.handleClearDomainRule)
				r.Put("/overrides", s.handleSetOverride)
				r.Delete("/overrides/{entityID}", s.handleClearOverride)
				r.Post("/bulk", s.handleBulkApply)
				r.Put("/settings", s.handleSetSettings)
				r.Get("/preview", s.handlePreview)
				r.Post("/commit", s.handleCommit)
				r.Post("/discard", s.handleDiscard)
			})

			r.Route("/system", func(r chi.Router) {
				r.Post("/check-config", s.handleCheckConfig)
				r.Post("/restart", s.handleRestart)
				r.Put("/bridge", s.handleSetBridgeTarget)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
