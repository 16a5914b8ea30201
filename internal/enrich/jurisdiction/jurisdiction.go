// Package jurisdiction holds the country derivation engines and the table
// that routes an entity to its engine. All country-specific knowledge lives
// behind the Engine interface; supporting a new jurisdiction means writing
// an engine and registering it, nothing in the orchestrator changes.
package jurisdiction

import (
	"context"
	"sort"
	"sync"

	"fides/internal/enrich/models"
)

// Engine derives national identifiers for one country. An engine receives
// the run context, attempts its country's derivation chain, and returns one
// result per identifier type it is responsible for, in chain order. Engines
// record derived identifiers on the context so later steps can build on
// them.
//
// Per-identifier failures never surface as errors: they are recovered
// locally and expressed as error-status results, so one failed step cannot
// abort the run. The returned error is reserved for configuration-class
// failures (missing or rejected adapter credentials), which abort the whole
// run.
type Engine interface {
	// Country returns the ISO 3166-1 alpha-2 code this engine serves.
	Country() string

	// Enrich runs the derivation chain against the context.
	Enrich(ctx context.Context, rc *models.RunContext) ([]models.Result, error)
}

// Registry is the country-to-engine table.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]Engine)}
}

// Register adds an engine, replacing any previous engine for its country.
func (r *Registry) Register(e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[e.Country()] = e
}

// Lookup returns the engine for a country, or (nil, false) when the country
// is unsupported. Unsupported is a normal outcome, not an error: global
// enrichers still run for such entities.
func (r *Registry) Lookup(country string) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[country]
	return e, ok
}

// Countries returns the supported country codes, sorted.
func (r *Registry) Countries() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.engines))
	for c := range r.engines {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
