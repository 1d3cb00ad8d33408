package media

import (
	"sort"
	"sync"

	"golang.org/x/time/rate"
)

// Registry is a thread-safe provider table keyed by provider id. It also
// holds optional client-side rate limiters the orchestrator waits on before
// each paid call, so a burst of orchestration runs cannot hammer one backend.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	limiters  map[string]*rate.Limiter
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Register adds a provider under its own id. An existing provider with the
// same id is replaced.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

// RegisterWithLimit registers a provider together with a client-side rate
// limit of rps requests per second and the given burst.
func (r *Registry) RegisterWithLimit(p Provider, rps float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		r.limiters[p.ID()] = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// Get retrieves a provider by id.
func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// Limiter returns the provider's rate limiter, or nil when unlimited.
func (r *Registry) Limiter(id string) *rate.Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[id]
}

// List returns the sorted ids of all registered providers.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ByCapability returns all providers serving the given capability, sorted
// by id for stable iteration.
func (r *Registry) ByCapability(c Capability) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Provider
	for _, p := range r.providers {
		if p.Capability() == c {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
