package apply

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mattiagosetto9/ha-voice-manager/internal/audit"
	"github.com/mattiagosetto9/ha-voice-manager/internal/catalog"
	"github.com/mattiagosetto9/ha-voice-manager/internal/compile"
	"github.com/mattiagosetto9/ha-voice-manager/internal/draft"
	"github.com/mattiagosetto9/ha-voice-manager/internal/profile"
	"github.com/mattiagosetto9/ha-voice-manager/internal/resolve"
	"github.com/mattiagosetto9/ha-voice-manager/internal/rules"
	"github.com/mattiagosetto9/ha-voice-manager/internal/safety"
)

// ErrNotCommittable is returned when a profile cannot be committed under
// the current sharing mode.
var ErrNotCommittable = errors.New("apply: profile not committable in current mode")

// BridgePublisher delivers HomeKit live-sync payloads. Satisfied by
// *bridge.HomeKitPublisher.
type BridgePublisher interface {
	PublishDesired(ctx context.Context, payload []byte) error
}

// Telemetry records commit metrics. Satisfied by *influxdb.Client; nil
// disables recording.
type Telemetry interface {
	WriteCommitMetric(profileID profile.ID, entities, exposed int, duration time.Duration, success bool)
	WriteSafetyViolation(profileID profile.ID, kind string)
}

// Logger defines the logging interface used by the orchestrator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ArtifactInfo describes one output produced by a commit.
type ArtifactInfo struct {
	Backend  profile.ID `json:"backend"`
	Path     string     `json:"path,omitempty"`
	Bytes    int        `json:"bytes"`
	LiveSync bool       `json:"live_sync"`
}

// SkippedBackend reports a backend that produced no artifact because its
// settings were incomplete at commit time.
type SkippedBackend struct {
	Backend profile.ID `json:"backend"`
	Reason  string     `json:"reason"`
}

// CommitResult summarises one successful commit.
type CommitResult struct {
	ProfileID   profile.ID       `json:"profile_id"`
	Version     int64            `json:"version"`
	Artifacts   []ArtifactInfo   `json:"artifacts"`
	Skipped     []SkippedBackend `json:"skipped,omitempty"`
	Exposed     int              `json:"exposed"`
	Entities    int              `json:"entities"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// CommitAllResult collects the per-profile outcomes of a commit-all.
// Profiles fail independently: one conflict or safety violation never
// rolls back another profile's commit.
type CommitAllResult struct {
	Results []CommitResult        `json:"results"`
	Errors  map[profile.ID]string `json:"errors,omitempty"`
}

// Orchestrator runs the commit pipeline: snapshot the draft, resolve
// against the live catalog, compile every affected artifact, gate the
// writes through safety checks, persist committed state, and deliver the
// HomeKit payload. Nothing is written unless every artifact for the
// profile validates. A backend that is enabled but missing required
// settings is skipped with a reported reason rather than failing the
// whole commit.
type Orchestrator struct {
	drafts    *draft.Manager
	store     rules.Store
	catalog   catalog.Provider
	compilers map[profile.ID]compile.Compiler
	publisher BridgePublisher
	auditRepo audit.Repository
	telemetry Telemetry

	configRoot string
	logger     Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAudit records commits, discards, and safety violations.
func WithAudit(repo audit.Repository) Option {
	return func(o *Orchestrator) { o.auditRepo = repo }
}

// WithTelemetry records commit metrics.
func WithTelemetry(t Telemetry) Option {
	return func(o *Orchestrator) { o.telemetry = t }
}

// WithPublisher sets the HomeKit live-sync publisher. Without one,
// HomeKit commits persist state but skip delivery.
func WithPublisher(p BridgePublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(l Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates the commit pipeline over its collaborators.
// configRoot is the platform configuration directory all file artifacts
// must stay inside.
func NewOrchestrator(
	drafts *draft.Manager,
	store rules.Store,
	provider catalog.Provider,
	compilers map[profile.ID]compile.Compiler,
	configRoot string,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		drafts:     drafts,
		store:      store,
		catalog:    provider,
		compilers:  compilers,
		configRoot: configRoot,
		logger:     noopLogger{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ConfigRoot returns the directory all file artifacts are confined to.
func (o *Orchestrator) ConfigRoot() string {
	return o.configRoot
}

// commitTargets returns the backends whose artifacts a commit of id must
// regenerate, or ErrNotCommittable.
//
// Linked mode: committing the linked profile regenerates every backend;
// committing a backend persists only its settings and regenerates its own
// artifact from the linked rules. Separate mode: each backend commits
// itself; the linked profile is inactive.
func commitTargets(ms *profile.ManagerSettings, id profile.ID) ([]profile.ID, error) {
	switch ms.Mode {
	case profile.ModeLinked:
		if id == profile.Linked {
			return profile.BackendProfiles(), nil
		}
		return []profile.ID{id}, nil
	case profile.ModeSeparate:
		if id == profile.Linked {
			return nil, fmt.Errorf("%w: linked profile is inactive in separate mode", ErrNotCommittable)
		}
		return []profile.ID{id}, nil
	}
	return nil, fmt.Errorf("%w: unrecognised mode %q", ErrNotCommittable, ms.Mode)
}

// backendRuleSet assembles the rule set driving one backend's artifact:
// the authoritative rules plus the backend's own settings. When the rules
// source is the backend itself this is just the source.
func (o *Orchestrator) backendRuleSet(ctx context.Context, backend profile.ID, source *profile.RuleSet) (*profile.RuleSet, error) {
	if source.ProfileID == backend {
		return source, nil
	}

	backendRS, err := o.store.Load(ctx, backend)
	if err != nil {
		return nil, fmt.Errorf("loading %s settings: %w", backend, err)
	}
	merged := source.DeepCopy()
	merged.ProfileID = backend
	merged.Settings = backendRS.Settings
	return merged, nil
}

// rulesSource returns the rule set whose rules drive resolution for a
// commit of id: the draft snapshot when id owns its rules, the committed
// linked rules when a backend commits settings in linked mode.
func (o *Orchestrator) rulesSource(ctx context.Context, ms *profile.ManagerSettings, id profile.ID, snapshot *draft.State) (*profile.RuleSet, error) {
	if ms.Mode == profile.ModeLinked && id != profile.Linked {
		linked, err := o.store.Load(ctx, profile.Linked)
		if err != nil {
			return nil, fmt.Errorf("loading linked rules: %w", err)
		}
		// The backend's own snapshot still supplies its settings.
		merged := linked.DeepCopy()
		merged.ProfileID = id
		merged.Settings = snapshot.RuleSet.Settings
		return merged, nil
	}
	return snapshot.RuleSet, nil
}

// CommitOne runs the full pipeline for one profile.
//
// Order matters: every artifact compiles and validates before the state
// store is touched, and the store commit (which enforces the version
// token) lands before any file write. A stale draft therefore fails with
// rules.ErrVersionConflict without modifying a single file.
func (o *Orchestrator) CommitOne(ctx context.Context, id profile.ID) (*CommitResult, error) {
	if err := profile.ValidateProfileID(id); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := o.commitLocked(ctx, id)

	if o.telemetry != nil {
		entities, exposed := 0, 0
		if result != nil {
			entities, exposed = result.Entities, result.Exposed
		}
		o.telemetry.WriteCommitMetric(id, entities, exposed, time.Since(start), err == nil)
	}

	if err != nil {
		o.recordAudit(ctx, audit.ActionCommitFailed, id, map[string]any{"error": err.Error()})
		return nil, err
	}
	o.recordAudit(ctx, audit.ActionCommit, id, map[string]any{
		"version": result.Version,
		"exposed": result.Exposed,
	})
	return result, nil
}

func (o *Orchestrator) commitLocked(ctx context.Context, id profile.ID) (*CommitResult, error) {
	unlock := o.drafts.LockProfile(id)
	defer unlock()

	ms, err := o.store.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading manager settings: %w", err)
	}
	targets, err := commitTargets(ms, id)
	if err != nil {
		return nil, err
	}

	snapshot, err := o.drafts.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	source, err := o.rulesSource(ctx, ms, id, snapshot)
	if err != nil {
		return nil, err
	}

	entities, err := o.catalog.Entities(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading entity catalog: %w", err)
	}
	resolution := resolve.Resolve(source, entities)

	// Compile and validate everything before any write.
	artifacts := make([]*compile.Artifact, 0, len(targets))
	paths := make([]string, 0, len(targets))
	var skipped []SkippedBackend
	for _, backend := range targets {
		compiler, ok := o.compilers[backend]
		if !ok {
			return nil, fmt.Errorf("%w: no compiler for %s", ErrNotCommittable, backend)
		}
		rs, err := o.backendRuleSet(ctx, backend, source)
		if err != nil {
			return nil, err
		}

		artifact, err := compiler.Compile(rs, resolution)
		if errors.Is(err, compile.ErrSettingsIncomplete) {
			// An enabled backend with incomplete settings must not block
			// the other backends: skip it, report why, keep committing.
			skipped = append(skipped, SkippedBackend{Backend: backend, Reason: err.Error()})
			o.logger.Warn("backend skipped at commit",
				"profile", id, "backend", backend, "reason", err.Error())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("compiling %s artifact: %w", backend, err)
		}

		resolved := ""
		if !artifact.LiveSync {
			resolved, err = safety.ValidatePath(o.configRoot, artifact.Path)
			if err != nil {
				o.recordViolation(ctx, backend, "path_traversal", err)
				return nil, err
			}
			if err := safety.ValidateContent(artifact.Content); err != nil {
				o.recordViolation(ctx, backend, "unsafe_content", err)
				return nil, err
			}
		}
		artifacts = append(artifacts, artifact)
		paths = append(paths, resolved)
	}

	// Claim the version before writing files: a conflicting commit must
	// leave the filesystem untouched.
	newVersion, err := o.store.Commit(ctx, snapshot.RuleSet, snapshot.BaseVersion)
	if err != nil {
		return nil, err
	}
	// The claimed version becomes the draft's baseline immediately: if a
	// write below fails, the retry must not conflict with the version this
	// commit already holds in the store.
	o.drafts.Rebase(id, newVersion)

	info := make([]ArtifactInfo, 0, len(artifacts))
	for i, artifact := range artifacts {
		if artifact.LiveSync {
			if o.publisher != nil {
				if err := o.publisher.PublishDesired(ctx, artifact.Content); err != nil {
					return nil, fmt.Errorf("delivering %s live sync: %w", artifact.Backend, err)
				}
			}
		} else if err := writeAtomic(paths[i], artifact.Content); err != nil {
			return nil, fmt.Errorf("writing %s artifact: %w", artifact.Backend, err)
		}
		info = append(info, ArtifactInfo{
			Backend:  artifact.Backend,
			Path:     artifact.Path,
			Bytes:    len(artifact.Content),
			LiveSync: artifact.LiveSync,
		})
	}

	o.drafts.MarkCommitted(id, newVersion)

	now := time.Now().UTC()
	for _, artifact := range artifacts {
		ms.LastGenerated[artifact.Backend] = now
	}
	if err := o.store.SaveSettings(ctx, ms); err != nil {
		return nil, fmt.Errorf("recording generation timestamps: %w", err)
	}

	o.logger.Info("profile committed",
		"profile", id,
		"version", newVersion,
		"artifacts", len(info),
		"exposed", len(resolution.Exposed()),
	)

	return &CommitResult{
		ProfileID:   id,
		Version:     newVersion,
		Artifacts:   info,
		Skipped:     skipped,
		Exposed:     len(resolution.Exposed()),
		Entities:    len(resolution),
		GeneratedAt: now,
	}, nil
}

// CommitAll commits every dirty profile. Profiles are independent: a
// failure in one is reported and the rest still commit.
func (o *Orchestrator) CommitAll(ctx context.Context) (*CommitAllResult, error) {
	dirty := o.drafts.DirtyProfiles()
	sort.Slice(dirty, func(i, j int) bool { return dirty[i] < dirty[j] })

	out := &CommitAllResult{}
	for _, id := range dirty {
		result, err := o.CommitOne(ctx, id)
		if err != nil {
			if out.Errors == nil {
				out.Errors = make(map[profile.ID]string)
			}
			out.Errors[id] = err.Error()
			o.logger.Warn("commit-all: profile failed", "profile", id, "error", err)
			continue
		}
		out.Results = append(out.Results, *result)
	}
	return out, nil
}

// Preview resolves a profile's draft against the live catalog without
// writing anything. What preview shows is exactly what a commit compiles.
func (o *Orchestrator) Preview(ctx context.Context, id profile.ID) (resolve.Result, error) {
	if err := profile.ValidateProfileID(id); err != nil {
		return nil, err
	}

	unlock := o.drafts.LockProfile(id)
	snapshot, err := o.drafts.Snapshot(ctx, id)
	unlock()
	if err != nil {
		return nil, err
	}

	ms, err := o.store.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading manager settings: %w", err)
	}
	source, err := o.rulesSource(ctx, ms, id, snapshot)
	if err != nil {
		return nil, err
	}

	entities, err := o.catalog.Entities(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading entity catalog: %w", err)
	}
	return resolve.Resolve(source, entities), nil
}

// Discard drops a profile's draft and records the action.
func (o *Orchestrator) Discard(ctx context.Context, id profile.ID) (*draft.State, error) {
	state, err := o.drafts.Discard(ctx, id)
	if err != nil {
		return nil, err
	}
	o.recordAudit(ctx, audit.ActionDiscard, id, nil)
	return state, nil
}

func (o *Orchestrator) recordAudit(ctx context.Context, action string, id profile.ID, details map[string]any) {
	if o.auditRepo == nil {
		return
	}
	entry := &audit.AuditLog{Action: action, ProfileID: id, Source: "api", Details: details}
	if err := o.auditRepo.Create(ctx, entry); err != nil {
		o.logger.Warn("audit write failed", "action", action, "error", err)
	}
}

func (o *Orchestrator) recordViolation(ctx context.Context, id profile.ID, kind string, cause error) {
	o.logger.Error("safety violation blocked commit", "profile", id, "kind", kind, "error", cause)
	if o.telemetry != nil {
		o.telemetry.WriteSafetyViolation(id, kind)
	}
	o.recordAudit(ctx, audit.ActionSafetyViolation, id, map[string]any{
		"kind":  kind,
		"error": cause.Error(),
	})
}

// writeAtomic writes content via a temp file in the target directory and
// renames it into place, so readers never observe a partial artifact.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".voiceman-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // artifacts are read by the platform process
		os.Remove(tmpName)
		return fmt.Errorf("setting artifact permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming artifact into place: %w", err)
	}
	return nil
}
