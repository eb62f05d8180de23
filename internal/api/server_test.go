package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mattiagosetto9/ha-voice-manager/internal/apply"
	"github.com/mattiagosetto9/ha-voice-manager/internal/catalog"
	"github.com/mattiagosetto9/ha-voice-manager/internal/compile"
	"github.com/mattiagosetto9/ha-voice-manager/internal/draft"
	"github.com/mattiagosetto9/ha-voice-manager/internal/infrastructure/config"
	"github.com/mattiagosetto9/ha-voice-manager/internal/infrastructure/logging"
	"github.com/mattiagosetto9/ha-voice-manager/internal/profile"
	"github.com/mattiagosetto9/ha-voice-manager/internal/rules"
)

// fakeStore is an in-memory rules.Store with version enforcement.
type fakeStore struct {
	mu       sync.Mutex
	rules    map[profile.ID]*profile.RuleSet
	settings *profile.ManagerSettings
}

func newFakeStore(mode profile.Mode) *fakeStore {
	ms := profile.DefaultManagerSettings()
	ms.Mode = mode
	return &fakeStore{
		rules:    make(map[profile.ID]*profile.RuleSet),
		settings: ms,
	}
}

func (s *fakeStore) Load(_ context.Context, id profile.ID) (*profile.RuleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs, ok := s.rules[id]; ok {
		return rs.DeepCopy(), nil
	}
	return profile.NewRuleSet(id), nil
}

func (s *fakeStore) Commit(_ context.Context, rs *profile.RuleSet, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var current int64
	if existing, ok := s.rules[rs.ProfileID]; ok {
		current = existing.Version
	}
	if expectedVersion != current {
		return 0, rules.ErrVersionConflict
	}
	saved := rs.DeepCopy()
	saved.Version = current + 1
	s.rules[rs.ProfileID] = saved
	return saved.Version, nil
}

func (s *fakeStore) LoadSettings(context.Context) (*profile.ManagerSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.DeepCopy(), nil
}

func (s *fakeStore) SaveSettings(_ context.Context, ms *profile.ManagerSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = ms.DeepCopy()
	return nil
}

const testToken = "test-admin-token"

// newTestServer wires a full server over in-memory fakes and returns it
// with its router.
func newTestServer(t *testing.T, mode profile.Mode) (*Server, http.Handler, *fakeStore) {
	t.Helper()

	store := newFakeStore(mode)
	drafts := draft.NewManager(store)
	provider := catalog.NewStaticProvider([]catalog.Entity{
		{EntityID: "camera.front", FriendlyName: "Front Camera"},
		{EntityID: "light.lamp", FriendlyName: "Lamp"},
		{EntityID: "switch.fan", FriendlyName: "Fan"},
	})

	root := t.TempDir()
	orch := apply.NewOrchestrator(
		drafts,
		store,
		provider,
		compile.Compilers(
			"packages/generated_google_assistant.yaml",
			"packages/generated_alexa.yaml",
		),
		root,
	)

	srv, err := New(Deps{
		Config: config.APIConfig{
			AdminToken: testToken,
		},
		Logger:       logging.New(config.LoggingConfig{Level: "error"}, "test"),
		Drafts:       drafts,
		Orchestrator: orch,
		Store:        store,
		Catalog:      provider,
		Version:      "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, srv.buildRouter(), store
}

// doJSON performs an authenticated request with an optional JSON body.
func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthNoAuth(t *testing.T) {
	_, handler, _ := newTestServer(t, profile.ModeSeparate)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	_, handler, _ := newTestServer(t, profile.ModeSeparate)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/state", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/state", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestGetState(t *testing.T) {
	_, handler, _ := newTestServer(t, profile.ModeLinked)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var state struct {
		Mode     profile.Mode                  `json:"mode"`
		Profiles map[profile.ID]profileSummary `json:"profiles"`
		DirtyAny bool                          `json:"dirty_any"`
		Domains  []string                      `json:"homekit_supported_domains"`
	}
	decode(t, rec, &state)

	if state.Mode != profile.ModeLinked {
		t.Errorf("mode = %q, want linked", state.Mode)
	}
	if len(state.Profiles) != 4 {
		t.Errorf("profiles = %d, want 4", len(state.Profiles))
	}
	if state.DirtyAny {
		t.Error("dirty_any = true for a fresh server")
	}
	if len(state.Domains) == 0 {
		t.Error("homekit_supported_domains is empty")
	}
}

func TestDraftEditFlow(t *testing.T) {
	_, handler, _ := newTestServer(t, profile.ModeSeparate)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/profiles/google/draft", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get draft status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/v1/profiles/google/rules/camera",
		map[string]string{"decision": "suppress"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set rule status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp draftResponse
	decode(t, rec, &resp)
	if !resp.Dirty {
		t.Error("draft not dirty after rule edit")
	}
	if rule := resp.RuleSet.RuleFor("camera"); rule == nil || rule.Decision != profile.DecisionSuppress {
		t.Errorf("camera rule = %+v, want suppress", rule)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/profiles/google/rules/camera", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear rule status = %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &resp)
	if resp.RuleSet.RuleFor("camera") != nil {
		t.Error("camera rule survived delete")
	}
}

func TestSetOverrideAndClear(t *testing.T) {
	_, handler, _ := newTestServer(t, profile.ModeSeparate)

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/profiles/alexa/overrides",
		map[string]any{"entity_id": "light.lamp", "alias": "Reading Light"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set override status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp draftResponse
	decode(t, rec, &resp)
	if o := resp.RuleSet.OverrideFor("light.lamp"); o == nil || o.Alias != "Reading Light" {
		t.Fatalf("override = %+v, want alias Reading Light", o)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/profiles/alexa/overrides/light.lamp", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear override status = %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &resp)
	if resp.RuleSet.OverrideFor("light.lamp") != nil {
		t.Error("override survived delete")
	}
}

func TestBulkApplyInvalidOperation(t *testing.T) {
	_, handler, _ := newTestServer(t, profile.ModeSeparate)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/profiles/google/bulk",
		map[string]any{"entity_ids": []string{"light.lamp"}, "operation": "explode"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestLinkedModeBlocksBackendRuleEdits(t *testing.T) {
	_, handler, _ := newTestServer(t, profile.ModeLinked)

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/profiles/google/rules/camera",
		map[string]string{"decision": "suppress"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}

	// Settings stay editable per backend even in linked mode.
	rec = doJSON(t, handler, http.MethodPut, "/api/v1/profiles/google/settings",
		map[string]any{"enabled": true, "project_id": "my-project"})
	if rec.Code != http.StatusOK {
		t.Fatalf("settings status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestUnknownProfile(t *testing.T) {
	_, handler, _ := newTestServer(t, profile.ModeSeparate)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/profiles/cortana/draft", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestModeSwitchRequiresCleanDrafts(t *testing.T) {
	_, handler, _ := newTestServer(t, profile.ModeSeparate)

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/profiles/google/rules/camera",
		map[string]string{"decision": "suppress"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set rule status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/v1/mode",
		map[string]string{"mode": "linked"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("mode switch status = %d, want 409: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/profiles/google/discard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("discard status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/v1/mode",
		map[string]string{"mode": "linked"})
	if rec.Code != http.StatusOK {
		t.Fatalf("mode switch after discard = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCommitWritesArtifact(t *testing.T) {
	srv, handler, _ := newTestServer(t, profile.ModeSeparate)

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/profiles/alexa/settings",
		map[string]any{"enabled": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("settings status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/profiles/alexa/commit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("commit status = %d: %s", rec.Code, rec.Body.String())
	}

	var result apply.CommitResult
	decode(t, rec, &result)
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
	if len(result.Artifacts) != 1 {
		t.Fatalf("artifacts = %d, want 1", len(result.Artifacts))
	}

	data, err := os.ReadFile(filepath.Join(artifactRoot(srv), "packages", "generated_alexa.yaml"))
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if !strings.Contains(string(data), "alexa:") {
		t.Errorf("artifact missing alexa block:\n%s", data)
	}
}

func TestCommitVersionConflict(t *testing.T) {
	_, handler, store := newTestServer(t, profile.ModeSeparate)

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/profiles/alexa/settings",
		map[string]any{"enabled": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("settings status = %d: %s", rec.Code, rec.Body.String())
	}

	// Another writer commits behind the draft's back.
	stale := profile.NewRuleSet(profile.Alexa)
	if _, err := store.Commit(context.Background(), stale, 0); err != nil {
		t.Fatalf("out-of-band commit: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/profiles/alexa/commit", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
}

func TestPreview(t *testing.T) {
	_, handler, _ := newTestServer(t, profile.ModeSeparate)

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/profiles/google/rules/camera",
		map[string]string{"decision": "suppress"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set rule status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/profiles/google/preview", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Exposures []struct {
			EntityID string `json:"entity_id"`
			Expose   bool   `json:"expose"`
		} `json:"exposures"`
		Exposed int `json:"exposed"`
		Total   int `json:"total"`
	}
	decode(t, rec, &resp)

	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}
	if resp.Exposed != 2 {
		t.Errorf("exposed = %d, want 2", resp.Exposed)
	}
	for _, e := range resp.Exposures {
		if e.EntityID == "camera.front" && e.Expose {
			t.Error("camera.front exposed despite suppress rule")
		}
	}
}

func TestSystemEndpointsWithoutClient(t *testing.T) {
	_, handler, _ := newTestServer(t, profile.ModeSeparate)

	for _, path := range []string{"/api/v1/system/check-config", "/api/v1/system/restart"} {
		rec := doJSON(t, handler, http.MethodPost, path, nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, rec.Code)
		}
	}
}

func TestSetBridgeTarget(t *testing.T) {
	_, handler, store := newTestServer(t, profile.ModeSeparate)

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/system/bridge",
		map[string]string{"bridge_target": "bridge-two"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	ms, err := store.LoadSettings(context.Background())
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if ms.BridgeTarget != "bridge-two" {
		t.Errorf("bridge target = %q, want bridge-two", ms.BridgeTarget)
	}
}

func TestAuditWithoutRepository(t *testing.T) {
	_, handler, _ := newTestServer(t, profile.ModeSeparate)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/audit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Logs  []any `json:"logs"`
		Total int   `json:"total"`
	}
	decode(t, rec, &result)
	if result.Total != 0 || len(result.Logs) != 0 {
		t.Errorf("expected empty audit trail, got %+v", result)
	}
}

func TestBodySizeLimit(t *testing.T) {
	_, handler, _ := newTestServer(t, profile.ModeSeparate)

	oversized := fmt.Sprintf(`{"alias": %q, "entity_id": "light.lamp"}`,
		strings.Repeat("x", maxRequestBodySize+1))
	req := httptest.NewRequest(http.MethodPut, "/api/v1/profiles/google/overrides",
		strings.NewReader(oversized))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// artifactRoot exposes the orchestrator's config root for file assertions.
func artifactRoot(s *Server) string {
	return s.orchestrator.ConfigRoot()
}
