package rules

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattiagosetto9/ha-voice-manager/migrations"

	"github.com/mattiagosetto9/ha-voice-manager/internal/infrastructure/database"
	"github.com/mattiagosetto9/ha-voice-manager/internal/profile"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "rules.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return NewSQLiteStore(db.DB)
}

func TestLoad_MissingProfileReturnsEmptyRuleSet(t *testing.T) {
	store := newTestStore(t)

	rs, err := store.Load(context.Background(), profile.Google)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rs.Version != 0 {
		t.Errorf("Version = %d, want 0 for unseen profile", rs.Version)
	}
	if rs.FilterMode != profile.FilterExclude {
		t.Errorf("FilterMode = %q, want exclude default", rs.FilterMode)
	}
	if len(rs.DomainRules) != 0 || len(rs.Overrides) != 0 {
		t.Error("new rule set should be empty")
	}
}

func TestCommit_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rs := profile.NewRuleSet(profile.Google)
	rs.FilterMode = profile.FilterInclude
	rs.SetDomainRule("light", profile.DecisionExpose)
	rs.SetOverride(profile.EntityOverride{EntityID: "light.lamp", Alias: "Lamp"})
	rs.Settings.Enabled = true
	rs.Settings.ProjectID = "my-project"

	version, err := store.Commit(ctx, rs, 0)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if version != 1 {
		t.Errorf("new version = %d, want 1", version)
	}

	loaded, err := store.Load(ctx, profile.Google)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Version != 1 {
		t.Errorf("loaded version = %d, want 1", loaded.Version)
	}
	if loaded.FilterMode != profile.FilterInclude {
		t.Errorf("FilterMode = %q, want include", loaded.FilterMode)
	}
	if rule := loaded.RuleFor("light"); rule == nil || rule.Decision != profile.DecisionExpose {
		t.Errorf("RuleFor(light) = %v, want expose", rule)
	}
	if o := loaded.OverrideFor("light.lamp"); o == nil || o.Alias != "Lamp" {
		t.Errorf("OverrideFor(light.lamp) = %v, want alias Lamp", o)
	}
	if !loaded.Settings.Enabled || loaded.Settings.ProjectID != "my-project" {
		t.Errorf("Settings = %+v, want enabled with project id", loaded.Settings)
	}
}

func TestCommit_StaleVersionFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rs := profile.NewRuleSet(profile.Alexa)
	if _, err := store.Commit(ctx, rs, 0); err != nil {
		t.Fatalf("first Commit() error = %v", err)
	}

	// Second commit with the already-consumed version token must conflict
	// and must not change the stored record.
	stale := profile.NewRuleSet(profile.Alexa)
	stale.SetDomainRule("camera", profile.DecisionSuppress)
	if _, err := store.Commit(ctx, stale, 0); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale Commit() = %v, want ErrVersionConflict", err)
	}

	loaded, err := store.Load(ctx, profile.Alexa)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Version != 1 {
		t.Errorf("version after failed commit = %d, want 1", loaded.Version)
	}
	if loaded.RuleFor("camera") != nil {
		t.Error("failed commit must not leave partial state")
	}
}

func TestCommit_SequentialVersions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rs := profile.NewRuleSet(profile.HomeKit)
	v1, err := store.Commit(ctx, rs, 0)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	rs.SetDomainRule("lock", profile.DecisionSuppress)
	v2, err := store.Commit(ctx, rs, v1)
	if err != nil {
		t.Fatalf("second Commit() error = %v", err)
	}
	if v2 != v1+1 {
		t.Errorf("version advanced from %d to %d, want +1", v1, v2)
	}
}

func TestSettings_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ms, err := store.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if ms.Mode != profile.ModeLinked {
		t.Errorf("default Mode = %q, want linked", ms.Mode)
	}

	ms.Mode = profile.ModeSeparate
	ms.BridgeTarget = "bridge-main"
	ms.LastGenerated[profile.Google] = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	if err := store.SaveSettings(ctx, ms); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	loaded, err := store.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("LoadSettings() after save error = %v", err)
	}
	if loaded.Mode != profile.ModeSeparate {
		t.Errorf("Mode = %q, want separate", loaded.Mode)
	}
	if loaded.BridgeTarget != "bridge-main" {
		t.Errorf("BridgeTarget = %q, want bridge-main", loaded.BridgeTarget)
	}
	if got := loaded.LastGenerated[profile.Google]; !got.Equal(ms.LastGenerated[profile.Google]) {
		t.Errorf("LastGenerated[google] = %v, want %v", got, ms.LastGenerated[profile.Google])
	}
}
