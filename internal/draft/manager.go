package draft

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mattiagosetto9/ha-voice-manager/internal/profile"
	"github.com/mattiagosetto9/ha-voice-manager/internal/rules"
)

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// State is one profile's uncommitted working copy: the edited rule set, the
// dirty flag, and the version token captured when the committed state was
// loaded. The token travels to the rule store at commit time, where a
// mismatch means another session won the race.
type State struct {
	RuleSet     *profile.RuleSet `json:"rule_set"`
	Dirty       bool             `json:"dirty"`
	BaseVersion int64            `json:"base_version"`
	LoadedAt    time.Time        `json:"loaded_at"`
}

// DeepCopy returns an independent copy of the draft state.
func (s *State) DeepCopy() *State {
	if s == nil {
		return nil
	}
	return &State{
		RuleSet:     s.RuleSet.DeepCopy(),
		Dirty:       s.Dirty,
		BaseVersion: s.BaseVersion,
		LoadedAt:    s.LoadedAt,
	}
}

// Operation is a bulk edit applied to a set of entities.
type Operation string

const (
	// OpExclude sets a suppress decision override on each entity.
	OpExclude Operation = "exclude"

	// OpInclude sets an expose decision override on each entity.
	OpInclude Operation = "include"

	// OpSetPrefix sets the voice-name prefix on each entity.
	OpSetPrefix Operation = "set_prefix"

	// OpSetSuffix sets the voice-name suffix on each entity.
	OpSetSuffix Operation = "set_suffix"

	// OpClearAlias clears alias, prefix, and suffix on each entity.
	OpClearAlias Operation = "clear_alias"
)

// ErrInvalidOperation is returned for an unrecognised bulk operation.
var ErrInvalidOperation = fmt.Errorf("draft: invalid bulk operation")

// Manager owns every draft. All mutations buffer in memory against the
// loaded rule set; nothing reaches the rule store until the commit pipeline
// asks for a snapshot and later confirms success via MarkCommitted.
//
// Edits and commits for the same profile are serialised by a per-profile
// lock; edits to different profiles proceed in parallel.
type Manager struct {
	store rules.Store

	mu     sync.Mutex
	drafts map[profile.ID]*State
	locks  map[profile.ID]*sync.Mutex

	logger Logger
}

// NewManager creates a draft manager over the given rule store.
func NewManager(store rules.Store) *Manager {
	return &Manager{
		store:  store,
		drafts: make(map[profile.ID]*State),
		locks:  make(map[profile.ID]*sync.Mutex),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// LockProfile acquires the per-profile edit/commit lock and returns the
// unlock function. The commit pipeline holds this for the duration of a
// commit so concurrent edits to the same profile block until it finishes.
func (m *Manager) LockProfile(id profile.ID) func() {
	m.mu.Lock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// BeginEdit loads the committed state into a fresh draft if none is open
// for the profile. Idempotent: an existing draft is returned untouched.
func (m *Manager) BeginEdit(ctx context.Context, id profile.ID) (*State, error) {
	if err := profile.ValidateProfileID(id); err != nil {
		return nil, err
	}

	unlock := m.LockProfile(id)
	defer unlock()

	state, err := m.ensureDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	return state.DeepCopy(), nil
}

// ensureDraft returns the open draft for a profile, loading committed state
// on first access. Caller must hold the profile lock.
func (m *Manager) ensureDraft(ctx context.Context, id profile.ID) (*State, error) {
	m.mu.Lock()
	state, ok := m.drafts[id]
	m.mu.Unlock()
	if ok {
		return state, nil
	}

	rs, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading committed rules for %s: %w", id, err)
	}

	state = &State{
		RuleSet:     rs,
		Dirty:       false,
		BaseVersion: rs.Version,
		LoadedAt:    time.Now().UTC(),
	}

	m.mu.Lock()
	m.drafts[id] = state
	m.mu.Unlock()

	m.logger.Debug("draft opened", "profile", id, "version", rs.Version)
	return state, nil
}

// checkEditable rejects mutations to profiles that do not own their rule
// set under the current sharing mode: in linked mode only the linked
// profile accepts edits, in separate mode the linked profile is inactive.
func (m *Manager) checkEditable(ctx context.Context, id profile.ID) error {
	ms, err := m.store.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("loading manager settings: %w", err)
	}
	switch ms.Mode {
	case profile.ModeLinked:
		if id != profile.Linked {
			return fmt.Errorf("%w: %s mirrors the linked profile", profile.ErrProfileReadOnly, id)
		}
	case profile.ModeSeparate:
		if id == profile.Linked {
			return fmt.Errorf("%w: linked profile is inactive in separate mode", profile.ErrProfileReadOnly)
		}
	}
	return nil
}

// mutate runs fn against a profile's draft under the profile lock, marks
// the draft dirty, and returns the updated state. No I/O beyond the
// initial committed-state load ever happens here.
func (m *Manager) mutate(ctx context.Context, id profile.ID, fn func(*profile.RuleSet) error) (*State, error) {
	if err := profile.ValidateProfileID(id); err != nil {
		return nil, err
	}
	if err := m.checkEditable(ctx, id); err != nil {
		return nil, err
	}

	unlock := m.LockProfile(id)
	defer unlock()

	state, err := m.ensureDraft(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(state.RuleSet); err != nil {
		return nil, err
	}

	state.Dirty = true
	return state.DeepCopy(), nil
}

// SetFilterMode changes the draft's filter mode.
func (m *Manager) SetFilterMode(ctx context.Context, id profile.ID, mode profile.FilterMode) (*State, error) {
	if err := profile.ValidateFilterMode(mode); err != nil {
		return nil, err
	}
	return m.mutate(ctx, id, func(rs *profile.RuleSet) error {
		rs.FilterMode = mode
		return nil
	})
}

// SetDomainRule sets or replaces the default decision for a domain.
// An empty decision removes the rule.
func (m *Manager) SetDomainRule(ctx context.Context, id profile.ID, domain string, decision profile.Decision) (*State, error) {
	if err := profile.ValidateDomain(domain); err != nil {
		return nil, err
	}
	if decision != "" {
		if err := profile.ValidateDecision(decision); err != nil {
			return nil, err
		}
	}
	return m.mutate(ctx, id, func(rs *profile.RuleSet) error {
		rs.SetDomainRule(domain, decision)
		return nil
	})
}

// SetOverride sets or replaces a per-entity override. All user-supplied
// fields are validated before they reach the draft.
func (m *Manager) SetOverride(ctx context.Context, id profile.ID, override profile.EntityOverride) (*State, error) {
	if err := profile.ValidateOverride(override); err != nil {
		return nil, err
	}
	return m.mutate(ctx, id, func(rs *profile.RuleSet) error {
		rs.SetOverride(override)
		return nil
	})
}

// ClearOverride removes a per-entity override.
func (m *Manager) ClearOverride(ctx context.Context, id profile.ID, entityID string) (*State, error) {
	if err := profile.ValidateEntityID(entityID); err != nil {
		return nil, err
	}
	return m.mutate(ctx, id, func(rs *profile.RuleSet) error {
		rs.ClearOverride(entityID)
		return nil
	})
}

// SetSettings replaces the draft's assistant settings. Settings belong to
// the backend profile in both modes: linked mode shares rules, never
// credentials, so the linked-mode gate does not apply here.
func (m *Manager) SetSettings(ctx context.Context, id profile.ID, settings profile.Settings) (*State, error) {
	if err := profile.ValidateProfileID(id); err != nil {
		return nil, err
	}
	if id == profile.Linked {
		return nil, fmt.Errorf("%w: the linked profile carries no assistant settings", profile.ErrProfileReadOnly)
	}
	if err := profile.ValidateAlias(settings.ProjectID); err != nil {
		return nil, err
	}

	unlock := m.LockProfile(id)
	defer unlock()

	state, err := m.ensureDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	state.RuleSet.Settings = settings
	state.Dirty = true
	return state.DeepCopy(), nil
}

// BulkApply applies one operation to a batch of entities. The whole batch
// is validated up front; a bad entry rejects the call with the draft
// unchanged.
func (m *Manager) BulkApply(ctx context.Context, id profile.ID, entityIDs []string, op Operation, value string) (*State, error) {
	if err := profile.ValidateEntityIDs(entityIDs); err != nil {
		return nil, err
	}
	if err := profile.ValidateAlias(value); err != nil {
		return nil, err
	}
	switch op {
	case OpExclude, OpInclude, OpSetPrefix, OpSetSuffix, OpClearAlias:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperation, op)
	}

	return m.mutate(ctx, id, func(rs *profile.RuleSet) error {
		for _, entityID := range entityIDs {
			applyBulkOp(rs, entityID, op, value)
		}
		return nil
	})
}

// applyBulkOp applies one bulk operation to one entity, preserving the
// unrelated override fields.
func applyBulkOp(rs *profile.RuleSet, entityID string, op Operation, value string) {
	override := profile.EntityOverride{EntityID: entityID}
	if existing := rs.OverrideFor(entityID); existing != nil {
		override = *existing
		if existing.Decision != nil {
			d := *existing.Decision
			override.Decision = &d
		}
	}

	switch op {
	case OpExclude:
		d := profile.DecisionSuppress
		override.Decision = &d
	case OpInclude:
		d := profile.DecisionExpose
		override.Decision = &d
	case OpSetPrefix:
		override.Prefix = value
	case OpSetSuffix:
		override.Suffix = value
	case OpClearAlias:
		override.Alias = ""
		override.Prefix = ""
		override.Suffix = ""
	}

	rs.SetOverride(override)
}

// Discard drops a profile's draft and reloads committed state, clearing
// the dirty flag. Always safe: it has no dependency on any in-flight
// commit.
func (m *Manager) Discard(ctx context.Context, id profile.ID) (*State, error) {
	if err := profile.ValidateProfileID(id); err != nil {
		return nil, err
	}

	unlock := m.LockProfile(id)
	defer unlock()

	m.mu.Lock()
	delete(m.drafts, id)
	m.mu.Unlock()

	m.logger.Info("draft discarded", "profile", id)

	state, err := m.ensureDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	return state.DeepCopy(), nil
}

// IsDirty reports whether a profile has uncommitted edits.
func (m *Manager) IsDirty(id profile.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.drafts[id]
	return ok && state.Dirty
}

// IsDirtyAny reports whether any open profile has uncommitted edits.
// Backs the unsaved-changes indicator and the tab-switch confirmation.
func (m *Manager) IsDirtyAny() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, state := range m.drafts {
		if state.Dirty {
			return true
		}
	}
	return false
}

// DirtyProfiles returns the IDs of all profiles with uncommitted edits.
func (m *Manager) DirtyProfiles() []profile.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var dirty []profile.ID
	for id, state := range m.drafts {
		if state.Dirty {
			dirty = append(dirty, id)
		}
	}
	return dirty
}

// Snapshot returns a deep copy of a profile's draft for the commit
// pipeline, opening the draft if needed. Caller must hold the profile lock
// (via LockProfile) for the snapshot to stay consistent with a later
// MarkCommitted.
func (m *Manager) Snapshot(ctx context.Context, id profile.ID) (*State, error) {
	state, err := m.ensureDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	return state.DeepCopy(), nil
}

// MarkCommitted records a successful commit: the draft becomes the new
// committed baseline at the store's new version and the dirty flag clears.
// Caller must hold the profile lock.
func (m *Manager) MarkCommitted(id profile.ID, newVersion int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.drafts[id]
	if !ok {
		return
	}
	state.Dirty = false
	state.BaseVersion = newVersion
	state.RuleSet.Version = newVersion
	m.logger.Info("draft committed", "profile", id, "version", newVersion)
}

// Rebase moves a draft's baseline forward without clearing the dirty
// flag. The commit pipeline calls this as soon as the rule store accepts
// a new version, so an artifact write failure afterwards leaves the draft
// retryable instead of stuck behind a version conflict. Caller must hold
// the profile lock.
func (m *Manager) Rebase(id profile.ID, newVersion int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.drafts[id]
	if !ok {
		return
	}
	state.BaseVersion = newVersion
	state.RuleSet.Version = newVersion
}
