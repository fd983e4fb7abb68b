// Package predicates holds the eligibility checks that automation rules
// delegate to. Each predicate is registered under a rule key; adding a rule
// type means adding a Predicate and registering it, never branching on
// strings inside the engine.
package predicates

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	casemodels "caseflow/internal/cases/models"
)

// Predicate compiles a rule's opaque config into an Evaluator.
type Predicate interface {
	Key() string
	Compile(config json.RawMessage) (Evaluator, error)
}

// Evaluator is a compiled predicate bound to one rule's parameters.
type Evaluator interface {
	// Query selects the candidate cases worth evaluating. The engine always
	// adds the tenant scope.
	Query() casemodels.CandidateQuery
	// Match reports whether c qualifies. It must not mutate c.
	Match(c *casemodels.Case, now time.Time) (bool, error)
	// Parameters returns the effective configuration for reporting.
	Parameters() map[string]any
}

// Registry maps rule keys to predicates.
type Registry struct {
	mu         sync.RWMutex
	predicates map[string]Predicate
}

func NewRegistry(predicates ...Predicate) *Registry {
	r := &Registry{predicates: make(map[string]Predicate)}
	for _, p := range predicates {
		r.MustRegister(p)
	}
	return r
}

// Default returns a registry with every built-in predicate.
func Default() *Registry {
	return NewRegistry(SimpleRenewals{})
}

// Register adds p, refusing duplicate keys.
func (r *Registry) Register(p Predicate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.predicates[p.Key()]; ok {
		return fmt.Errorf("predicate %q already registered", p.Key())
	}
	r.predicates[p.Key()] = p
	return nil
}

func (r *Registry) MustRegister(p Predicate) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Lookup returns the predicate for key, if any.
func (r *Registry) Lookup(key string) (Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.predicates[key]
	return p, ok
}

// Keys lists registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.predicates))
	for k := range r.predicates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
