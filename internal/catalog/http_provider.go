package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// ErrCatalogUnavailable is returned when the platform API cannot be reached
// or returns an unexpected response.
var ErrCatalogUnavailable = errors.New("catalog: platform unavailable")

// defaultCacheTTL is how long a fetched catalog is reused before refetching.
const defaultCacheTTL = 30 * time.Second

// HTTPProvider fetches the entity registry from the automation platform's
// REST API (GET /api/states) with a bounded timeout and a short-lived cache.
type HTTPProvider struct {
	baseURL string
	token   string
	client  *http.Client

	mu       sync.Mutex
	cache    []Entity
	cachedAt time.Time
	ttl      time.Duration
}

// NewHTTPProvider creates a catalog provider backed by the platform API.
func NewHTTPProvider(baseURL, token string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		ttl:     defaultCacheTTL,
	}
}

// stateRecord is the wire shape of one platform state entry.
type stateRecord struct {
	EntityID   string `json:"entity_id"`
	Attributes struct {
		FriendlyName string `json:"friendly_name"`
	} `json:"attributes"`
}

// Entities returns the current catalog, fetching from the platform when the
// cached copy has expired.
func (p *HTTPProvider) Entities(ctx context.Context) ([]Entity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cache != nil && time.Since(p.cachedAt) < p.ttl {
		out := make([]Entity, len(p.cache))
		copy(out, p.cache)
		return out, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/states", nil)
	if err != nil {
		return nil, fmt.Errorf("building catalog request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrCatalogUnavailable, resp.StatusCode)
	}

	var records []stateRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrCatalogUnavailable, err)
	}

	entities := make([]Entity, 0, len(records))
	for _, r := range records {
		domain := DomainOf(r.EntityID)
		if domain == "" {
			continue
		}
		name := r.Attributes.FriendlyName
		if name == "" {
			name = r.EntityID
		}
		entities = append(entities, Entity{
			EntityID:     r.EntityID,
			Domain:       domain,
			FriendlyName: name,
		})
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].EntityID < entities[j].EntityID })

	p.cache = entities
	p.cachedAt = time.Now()

	out := make([]Entity, len(entities))
	copy(out, entities)
	return out, nil
}
