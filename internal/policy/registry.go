package policy

import (
	"strings"
)

// Registry holds the ordered normalization strategies.
// Order matters: earlier strategies take priority.
type Registry struct {
	strategies []MatchStrategy
}

var defaultRegistry = NewRegistry()

// NewRegistry creates a registry with the default strategy chain:
// URL path match, schemeless reddit URL, then prefix strip.
func NewRegistry() *Registry {
	r := &Registry{}

	r.Register(URLPathStrategy{})
	r.Register(SchemelessURLStrategy{})
	r.Register(PrefixStrategy{})

	return r
}

// NewRegistryWithStrategies creates a registry with custom strategies (for testing).
func NewRegistryWithStrategies(strategies ...MatchStrategy) *Registry {
	r := &Registry{}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// Register appends a strategy to the end of the chain.
func (r *Registry) Register(s MatchStrategy) {
	r.strategies = append(r.strategies, s)
}

// Get returns a strategy by name.
func (r *Registry) Get(name string) (MatchStrategy, bool) {
	for _, s := range r.strategies {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// GetAll returns all strategies in priority order.
func (r *Registry) GetAll() []MatchStrategy {
	return append([]MatchStrategy(nil), r.strategies...)
}

// List returns all strategy names in priority order.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for _, s := range r.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Normalize runs the chain on trimmed input. First success wins.
func (r *Registry) Normalize(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	for _, strategy := range r.strategies {
		if id, ok := strategy.Match(s); ok {
			return id, true
		}
	}
	return "", false
}
