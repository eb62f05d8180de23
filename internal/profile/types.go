package profile

import (
	"sort"
	"time"
)

// ID identifies an assistant profile.
type ID string

// Known profile IDs. Linked is the shared authoritative profile used when
// the manager runs in linked mode; the backend profiles own independent
// rule sets in separate mode.
const (
	Linked  ID = "linked"
	Google  ID = "google"
	Alexa   ID = "alexa"
	HomeKit ID = "homekit"
)

// BackendProfiles lists the profiles that have a compiler target.
// Linked is not a backend: it is the shared rule source.
func BackendProfiles() []ID {
	return []ID{Google, Alexa, HomeKit}
}

// AllProfiles lists every profile, linked first.
func AllProfiles() []ID {
	return []ID{Linked, Google, Alexa, HomeKit}
}

// Mode is the sharing mode across assistant profiles.
type Mode string

const (
	// ModeLinked means one authoritative rule set (the Linked profile) is
	// mirrored read-only into every backend profile.
	ModeLinked Mode = "linked"

	// ModeSeparate means each backend profile owns an independent rule set.
	ModeSeparate Mode = "separate"
)

// FilterMode controls the default decision for entities with no rule.
type FilterMode string

const (
	// FilterExclude is opt-out: everything is exposed unless excluded.
	FilterExclude FilterMode = "exclude"

	// FilterInclude is opt-in: nothing is exposed unless included.
	FilterInclude FilterMode = "include"
)

// Decision is an exposure decision for a domain or a single entity.
type Decision string

const (
	DecisionExpose   Decision = "expose"
	DecisionSuppress Decision = "suppress"
)

// DomainRule is a default decision for an entire entity domain within a
// profile (e.g. suppress all "camera" entities).
type DomainRule struct {
	Domain   string   `json:"domain"`
	Decision Decision `json:"decision"`
}

// EntityOverride is a per-entity exception layered on top of the domain
// default. A nil Decision means the domain default stands; Alias, Prefix and
// Suffix shape the voice-visible name.
type EntityOverride struct {
	EntityID string    `json:"entity_id"`
	Decision *Decision `json:"decision,omitempty"`
	Alias    string    `json:"alias,omitempty"`
	Prefix   string    `json:"prefix,omitempty"`
	Suffix   string    `json:"suffix,omitempty"`
}

// IsEmpty reports whether the override carries no information and can be
// dropped from the rule set.
func (o EntityOverride) IsEmpty() bool {
	return o.Decision == nil && o.Alias == "" && o.Prefix == "" && o.Suffix == ""
}

// Settings holds per-assistant configuration carried alongside the rule set.
// Google uses every field; Alexa and HomeKit only use Enabled.
type Settings struct {
	Enabled            bool   `json:"enabled"`
	ProjectID          string `json:"project_id,omitempty"`
	ServiceAccountPath string `json:"service_account_path,omitempty"`
	ReportState        bool   `json:"report_state,omitempty"`
	SecureDevicesPIN   string `json:"secure_devices_pin,omitempty"`
}

// RuleSet is one profile's complete exposure configuration: the domain
// defaults, the per-entity overrides, the assistant settings, and the
// version token used for optimistic concurrency at commit.
type RuleSet struct {
	ProfileID   ID               `json:"profile_id"`
	FilterMode  FilterMode       `json:"filter_mode"`
	DomainRules []DomainRule     `json:"domain_rules"`
	Overrides   []EntityOverride `json:"overrides"`
	Settings    Settings         `json:"settings"`
	Version     int64            `json:"version"`
}

// NewRuleSet returns an empty rule set for a profile at version 0.
func NewRuleSet(id ID) *RuleSet {
	return &RuleSet{
		ProfileID:   id,
		FilterMode:  FilterExclude,
		DomainRules: []DomainRule{},
		Overrides:   []EntityOverride{},
	}
}

// DeepCopy returns an independent copy of the rule set.
// Drafts and cache reads hand out copies so callers can mutate freely.
func (rs *RuleSet) DeepCopy() *RuleSet {
	if rs == nil {
		return nil
	}
	out := *rs
	out.DomainRules = make([]DomainRule, len(rs.DomainRules))
	copy(out.DomainRules, rs.DomainRules)
	out.Overrides = make([]EntityOverride, len(rs.Overrides))
	for i, o := range rs.Overrides {
		out.Overrides[i] = o
		if o.Decision != nil {
			d := *o.Decision
			out.Overrides[i].Decision = &d
		}
	}
	return &out
}

// RuleFor returns the domain rule for a domain, or nil if none is set.
func (rs *RuleSet) RuleFor(domain string) *DomainRule {
	for i := range rs.DomainRules {
		if rs.DomainRules[i].Domain == domain {
			return &rs.DomainRules[i]
		}
	}
	return nil
}

// OverrideFor returns the override for an entity, or nil if none is set.
func (rs *RuleSet) OverrideFor(entityID string) *EntityOverride {
	for i := range rs.Overrides {
		if rs.Overrides[i].EntityID == entityID {
			return &rs.Overrides[i]
		}
	}
	return nil
}

// SetDomainRule inserts or replaces the rule for a domain.
// An empty decision removes the rule.
func (rs *RuleSet) SetDomainRule(domain string, decision Decision) {
	for i := range rs.DomainRules {
		if rs.DomainRules[i].Domain == domain {
			if decision == "" {
				rs.DomainRules = append(rs.DomainRules[:i], rs.DomainRules[i+1:]...)
			} else {
				rs.DomainRules[i].Decision = decision
			}
			return
		}
	}
	if decision != "" {
		rs.DomainRules = append(rs.DomainRules, DomainRule{Domain: domain, Decision: decision})
	}
}

// SetOverride inserts or replaces the override for an entity.
// Empty overrides are dropped rather than stored.
func (rs *RuleSet) SetOverride(override EntityOverride) {
	for i := range rs.Overrides {
		if rs.Overrides[i].EntityID == override.EntityID {
			if override.IsEmpty() {
				rs.Overrides = append(rs.Overrides[:i], rs.Overrides[i+1:]...)
			} else {
				rs.Overrides[i] = override
			}
			return
		}
	}
	if !override.IsEmpty() {
		rs.Overrides = append(rs.Overrides, override)
	}
}

// ClearOverride removes the override for an entity, if present.
func (rs *RuleSet) ClearOverride(entityID string) {
	for i := range rs.Overrides {
		if rs.Overrides[i].EntityID == entityID {
			rs.Overrides = append(rs.Overrides[:i], rs.Overrides[i+1:]...)
			return
		}
	}
}

// Normalise sorts domain rules and overrides for stable serialisation.
// Resolution does not depend on order; persistence and diffing do.
func (rs *RuleSet) Normalise() {
	sort.Slice(rs.DomainRules, func(i, j int) bool {
		return rs.DomainRules[i].Domain < rs.DomainRules[j].Domain
	})
	sort.Slice(rs.Overrides, func(i, j int) bool {
		return rs.Overrides[i].EntityID < rs.Overrides[j].EntityID
	})
}

// Equal reports whether two rule sets carry the same rules and settings.
// Version is deliberately ignored: a reloaded draft at a newer version with
// identical content is still clean.
func (rs *RuleSet) Equal(other *RuleSet) bool {
	if rs == nil || other == nil {
		return rs == other
	}
	if rs.ProfileID != other.ProfileID ||
		rs.FilterMode != other.FilterMode ||
		rs.Settings != other.Settings ||
		len(rs.DomainRules) != len(other.DomainRules) ||
		len(rs.Overrides) != len(other.Overrides) {
		return false
	}

	a := rs.DeepCopy()
	b := other.DeepCopy()
	a.Normalise()
	b.Normalise()

	for i := range a.DomainRules {
		if a.DomainRules[i] != b.DomainRules[i] {
			return false
		}
	}
	for i := range a.Overrides {
		oa, ob := a.Overrides[i], b.Overrides[i]
		if oa.EntityID != ob.EntityID || oa.Alias != ob.Alias ||
			oa.Prefix != ob.Prefix || oa.Suffix != ob.Suffix {
			return false
		}
		switch {
		case oa.Decision == nil && ob.Decision == nil:
		case oa.Decision != nil && ob.Decision != nil && *oa.Decision == *ob.Decision:
		default:
			return false
		}
	}
	return true
}

// ManagerSettings is the global configuration shared across profiles:
// the sharing mode, the HomeKit bridge target, and per-backend generation
// timestamps.
type ManagerSettings struct {
	Mode          Mode             `json:"mode"`
	BridgeTarget  string           `json:"bridge_target,omitempty"`
	LastGenerated map[ID]time.Time `json:"last_generated"`
}

// DefaultManagerSettings returns the initial global settings.
func DefaultManagerSettings() *ManagerSettings {
	return &ManagerSettings{
		Mode:          ModeLinked,
		LastGenerated: make(map[ID]time.Time),
	}
}

// DeepCopy returns an independent copy of the settings.
func (ms *ManagerSettings) DeepCopy() *ManagerSettings {
	if ms == nil {
		return nil
	}
	out := &ManagerSettings{
		Mode:          ms.Mode,
		BridgeTarget:  ms.BridgeTarget,
		LastGenerated: make(map[ID]time.Time, len(ms.LastGenerated)),
	}
	for id, at := range ms.LastGenerated {
		out.LastGenerated[id] = at
	}
	return out
}

// Authoritative returns the profile whose rule set drives resolution for
// the given backend under the current mode.
func (ms *ManagerSettings) Authoritative(backend ID) ID {
	if ms.Mode == ModeLinked {
		return Linked
	}
	return backend
}
