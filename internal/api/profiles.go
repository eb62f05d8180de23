package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mattiagosetto9/ha-voice-manager/internal/draft"
	"github.com/mattiagosetto9/ha-voice-manager/internal/profile"
)

// profileID extracts and validates the profile ID from the URL.
func profileID(r *http.Request) (profile.ID, error) {
	id := profile.ID(chi.URLParam(r, "id"))
	if err := profile.ValidateProfileID(id); err != nil {
		return "", err
	}
	return id, nil
}

// draftResponse is the JSON shape returned by every draft mutation: the
// full working copy plus its dirty flag, so the panel never needs a
// follow-up read.
type draftResponse struct {
	Profile  profile.ID       `json:"profile"`
	RuleSet  *profile.RuleSet `json:"rule_set"`
	Dirty    bool             `json:"dirty"`
	Version  int64            `json:"version"`
	DirtyAny bool             `json:"dirty_any"`
}

func (s *Server) writeDraft(w http.ResponseWriter, id profile.ID, state *draft.State) {
	writeJSON(w, http.StatusOK, draftResponse{
		Profile:  id,
		RuleSet:  state.RuleSet,
		Dirty:    state.Dirty,
		Version:  state.BaseVersion,
		DirtyAny: s.drafts.IsDirtyAny(),
	})
}

// handleGetDraft opens (or returns the already-open) draft for a profile.
func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	state, err := s.drafts.BeginEdit(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeDraft(w, id, state)
}

// handleSetFilterMode changes the draft's filter mode.
func (s *Server) handleSetFilterMode(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req struct {
		FilterMode profile.FilterMode `json:"filter_mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	state, err := s.drafts.SetFilterMode(r.Context(), id, req.FilterMode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeDraft(w, id, state)
}

// handleSetDomainRule sets the default decision for a domain.
func (s *Server) handleSetDomainRule(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req struct {
		Decision profile.Decision `json:"decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	state, err := s.drafts.SetDomainRule(r.Context(), id, chi.URLParam(r, "domain"), req.Decision)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeDraft(w, id, state)
}

// handleClearDomainRule removes a domain rule, restoring the filter-mode
// default for that domain.
func (s *Server) handleClearDomainRule(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	state, err := s.drafts.SetDomainRule(r.Context(), id, chi.URLParam(r, "domain"), "")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeDraft(w, id, state)
}

// handleSetOverride sets or replaces a per-entity override.
func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var override profile.EntityOverride
	if err := json.NewDecoder(r.Body).Decode(&override); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	state, err := s.drafts.SetOverride(r.Context(), id, override)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeDraft(w, id, state)
}

// handleClearOverride removes a per-entity override.
func (s *Server) handleClearOverride(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	state, err := s.drafts.ClearOverride(r.Context(), id, chi.URLParam(r, "entityID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeDraft(w, id, state)
}

// handleBulkApply applies one operation to a batch of entities.
func (s *Server) handleBulkApply(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req struct {
		EntityIDs []string        `json:"entity_ids"`
		Operation draft.Operation `json:"operation"`
		Value     string          `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	state, err := s.drafts.BulkApply(r.Context(), id, req.EntityIDs, req.Operation, req.Value)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeDraft(w, id, state)
}

// handleSetSettings replaces a backend's assistant settings.
func (s *Server) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var settings profile.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	state, err := s.drafts.SetSettings(r.Context(), id, settings)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeDraft(w, id, state)
}

// handlePreview resolves the draft against the live catalog without
// committing anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := s.orchestrator.Preview(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile":   id,
		"exposures": result,
		"exposed":   len(result.Exposed()),
		"total":     len(result),
	})
}

// handleCommit runs the commit pipeline for one profile.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := s.orchestrator.CommitOne(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCommitAll commits every dirty profile, reporting per-profile
// failures without aborting the rest.
func (s *Server) handleCommitAll(w http.ResponseWriter, r *http.Request) {
	result, err := s.orchestrator.CommitAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if len(result.Errors) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, result)
}

// handleDiscard drops the draft and reloads committed state.
func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	state, err := s.orchestrator.Discard(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeDraft(w, id, state)
}
