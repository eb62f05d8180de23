package resolve

import (
	"sort"

	"github.com/mattiagosetto9/ha-voice-manager/internal/catalog"
	"github.com/mattiagosetto9/ha-voice-manager/internal/profile"
)

// Exposure is the final decision for one entity: whether it is visible to
// the assistant and under what name.
type Exposure struct {
	EntityID  string `json:"entity_id"`
	Domain    string `json:"domain"`
	Expose    bool   `json:"expose"`
	VoiceName string `json:"voice_name"`

	// Aliased reports whether the voice name differs from the catalog's
	// friendly name (an alias, prefix, or suffix is in effect).
	Aliased bool `json:"aliased"`
}

// Result is a resolved exposure set, sorted by entity ID. It is derived,
// never persisted, and recomputed on demand.
type Result []Exposure

// Exposed returns only the entries that are visible to the assistant.
func (r Result) Exposed() Result {
	out := make(Result, 0, len(r))
	for _, e := range r {
		if e.Expose {
			out = append(out, e)
		}
	}
	return out
}

// Lookup returns the exposure for an entity ID, or nil if the entity is not
// in the result.
func (r Result) Lookup(entityID string) *Exposure {
	i := sort.Search(len(r), func(i int) bool { return r[i].EntityID >= entityID })
	if i < len(r) && r[i].EntityID == entityID {
		return &r[i]
	}
	return nil
}

// Resolve computes the final include/exclude/alias decision for every
// catalog entity under one profile's rule set.
//
// For each entity the domain rule supplies the default; with no rule,
// exclude-mode exposes (opt-out) and include-mode suppresses (opt-in). A
// per-entity override decision always wins over the domain default. The
// voice name is prefix + (alias or friendly name) + suffix, with prefix and
// suffix applied only when explicitly set.
//
// The function is pure and deterministic: identical inputs always yield an
// identical, entity-ID-sorted result. Live preview and final compilation
// both call it and must agree.
func Resolve(rs *profile.RuleSet, entities []catalog.Entity) Result {
	result := make(Result, 0, len(entities))

	for _, entity := range entities {
		expose := rs.FilterMode == profile.FilterExclude

		if rule := rs.RuleFor(entity.Domain); rule != nil {
			expose = rule.Decision == profile.DecisionExpose
		}

		name := entity.FriendlyName
		aliased := false

		if o := rs.OverrideFor(entity.EntityID); o != nil {
			if o.Decision != nil {
				expose = *o.Decision == profile.DecisionExpose
			}
			if o.Alias != "" {
				name = o.Alias
			}
			name = o.Prefix + name + o.Suffix
			aliased = o.Alias != "" || o.Prefix != "" || o.Suffix != ""
		}

		result = append(result, Exposure{
			EntityID:  entity.EntityID,
			Domain:    entity.Domain,
			Expose:    expose,
			VoiceName: name,
			Aliased:   aliased,
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].EntityID < result[j].EntityID })
	return result
}
