package catalog

import (
	"context"
	"sort"
	"strings"
)

// Entity is one entry in the automation platform's entity registry.
// The catalog is consumed read-only; the voice manager never mutates it.
type Entity struct {
	EntityID     string `json:"entity_id"`
	Domain       string `json:"domain"`
	FriendlyName string `json:"friendly_name"`
	Area         string `json:"area,omitempty"`
}

// Provider supplies the entity catalog. Implementations must be safe for
// concurrent use; the resolver may be invoked for preview at any time.
type Provider interface {
	// Entities returns the current catalog, sorted by entity ID.
	Entities(ctx context.Context) ([]Entity, error)
}

// Domains returns the sorted set of distinct domains in a catalog slice.
func Domains(entities []Entity) []string {
	seen := make(map[string]struct{})
	for _, e := range entities {
		seen[e.Domain] = struct{}{}
	}
	domains := make([]string, 0, len(seen))
	for d := range seen {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// DomainOf extracts the domain from an entity ID ("light.lamp" -> "light").
func DomainOf(entityID string) string {
	if i := strings.IndexByte(entityID, '.'); i > 0 {
		return entityID[:i]
	}
	return ""
}

// StaticProvider serves a fixed catalog. Used in tests and headless runs
// where no platform API is reachable.
type StaticProvider struct {
	entities []Entity
}

// NewStaticProvider creates a provider over a fixed entity list.
// Missing domains are derived from entity IDs; the list is sorted once.
func NewStaticProvider(entities []Entity) *StaticProvider {
	out := make([]Entity, len(entities))
	copy(out, entities)
	for i := range out {
		if out[i].Domain == "" {
			out[i].Domain = DomainOf(out[i].EntityID)
		}
		if out[i].FriendlyName == "" {
			out[i].FriendlyName = out[i].EntityID
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return &StaticProvider{entities: out}
}

// Entities returns a copy of the fixed catalog.
func (p *StaticProvider) Entities(_ context.Context) ([]Entity, error) {
	out := make([]Entity, len(p.entities))
	copy(out, p.entities)
	return out, nil
}
