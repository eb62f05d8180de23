package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mattiagosetto9/ha-voice-manager/internal/audit"
	"github.com/mattiagosetto9/ha-voice-manager/internal/compile"
	"github.com/mattiagosetto9/ha-voice-manager/internal/profile"
)

// profileSummary is the per-profile slice of the full state response.
type profileSummary struct {
	FilterMode profile.FilterMode `json:"filter_mode"`
	Version    int64              `json:"version"`
	Enabled    bool               `json:"enabled"`
	Dirty      bool               `json:"dirty"`
	Rules      int                `json:"rules"`
	Overrides  int                `json:"overrides"`
}

// handleGetState returns the complete manager state in one response: the
// sharing mode, per-profile committed summaries and dirty flags, the
// generation timestamps, and the HomeKit bridge status. The panel renders
// entirely from this plus the per-profile preview.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ms, err := s.store.LoadSettings(ctx)
	if err != nil {
		s.logger.Error("loading manager settings", "error", err)
		writeDomainError(w, err)
		return
	}

	profiles := make(map[profile.ID]profileSummary)
	for _, id := range profile.AllProfiles() {
		rs, err := s.store.Load(ctx, id)
		if err != nil {
			s.logger.Error("loading profile", "profile", id, "error", err)
			writeDomainError(w, err)
			return
		}
		profiles[id] = profileSummary{
			FilterMode: rs.FilterMode,
			Version:    rs.Version,
			Enabled:    rs.Settings.Enabled,
			Dirty:      s.drafts.IsDirty(id),
			Rules:      len(rs.DomainRules),
			Overrides:  len(rs.Overrides),
		}
	}

	state := map[string]any{
		"mode":                      ms.Mode,
		"bridge_target":             ms.BridgeTarget,
		"last_generated":            ms.LastGenerated,
		"profiles":                  profiles,
		"dirty_any":                 s.drafts.IsDirtyAny(),
		"homekit_supported_domains": compile.HomeKitSupportedDomains(),
		"version":                   s.version,
	}
	if s.bridge != nil {
		state["bridge_online"] = s.bridge.Online()
		if last := s.bridge.LastSeenOnline(); !last.IsZero() {
			state["bridge_last_seen"] = last
		}
	}

	writeJSON(w, http.StatusOK, state)
}

// handleSetMode switches between linked and separate rule management.
// Drafts must be clean first: a mode switch changes which profile owns
// the rules, and silently carrying uncommitted edits across that boundary
// would be surprising.
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode profile.Mode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := profile.ValidateMode(req.Mode); err != nil {
		writeDomainError(w, err)
		return
	}

	if s.drafts.IsDirtyAny() {
		writeError(w, http.StatusConflict, ErrCodeConflict,
			"commit or discard all drafts before switching mode")
		return
	}

	ctx := r.Context()
	ms, err := s.store.LoadSettings(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if ms.Mode == req.Mode {
		writeJSON(w, http.StatusOK, map[string]any{"mode": ms.Mode})
		return
	}

	ms.Mode = req.Mode
	if err := s.store.SaveSettings(ctx, ms); err != nil {
		writeDomainError(w, err)
		return
	}

	s.recordAudit(ctx, audit.ActionModeChange, "", map[string]any{"mode": req.Mode})
	s.logger.Info("sharing mode changed", "mode", req.Mode)
	writeJSON(w, http.StatusOK, map[string]any{"mode": req.Mode})
}

// handleListEntities returns the live entity catalog.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.catalog.Entities(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": entities,
		"total":    len(entities),
	})
}

// recordAudit writes an audit entry when a repository is configured.
func (s *Server) recordAudit(ctx context.Context, action string, id profile.ID, details map[string]any) {
	if s.auditRepo == nil {
		return
	}
	entry := &audit.AuditLog{Action: action, ProfileID: id, Source: "api", Details: details}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Warn("audit write failed", "action", action, "error", err)
	}
}
