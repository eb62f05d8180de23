package api

import (
	"encoding/json"
	"net/http"

	"github.com/mattiagosetto9/ha-voice-manager/internal/audit"
)

// handleCheckConfig asks the platform to validate its configuration,
// typically after a commit has rewritten the generated packages.
func (s *Server) handleCheckConfig(w http.ResponseWriter, r *http.Request) {
	if s.systemClient == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUpstream,
			"platform supervision is not configured")
		return
	}

	result, err := s.systemClient.CheckConfig(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.recordAudit(r.Context(), audit.ActionCheckConfig, "", map[string]any{
		"valid": result.Valid,
	})
	writeJSON(w, http.StatusOK, result)
}

// handleRestart asks the platform to restart so freshly generated
// packages take effect.
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if s.systemClient == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUpstream,
			"platform supervision is not configured")
		return
	}

	if err := s.systemClient.Restart(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}

	s.recordAudit(r.Context(), audit.ActionRestart, "", nil)
	s.logger.Info("platform restart requested")
	writeJSON(w, http.StatusOK, map[string]any{"restarting": true})
}

// handleSetBridgeTarget records which HomeKit bridge instance receives
// desired-state publishes.
func (s *Server) handleSetBridgeTarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BridgeTarget string `json:"bridge_target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ctx := r.Context()
	ms, err := s.store.LoadSettings(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ms.BridgeTarget = req.BridgeTarget
	if err := s.store.SaveSettings(ctx, ms); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"bridge_target": ms.BridgeTarget})
}
