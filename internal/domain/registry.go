package domain

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alphadose/haxmap"
)

// Registry holds one Mapper per intensity kind. It is built at start-up and
// injected wherever lookups happen.
type Registry struct {
	mappers *haxmap.Map[string, *Mapper]

	mu    sync.Mutex // guards kinds
	kinds []string
}

// NewRegistry creates a mapper for every scale. Duplicate kinds are rejected.
func NewRegistry(scales ...Scale) (*Registry, error) {
	r := &Registry{mappers: haxmap.New[string, *Mapper]()}
	for _, s := range scales {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry contains the built-in traffic and vulnerability scales.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(TrafficScale(), VulnerabilityScale())
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds a mapper for s.
func (r *Registry) Register(s Scale) error {
	m, err := NewMapper(s)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.mappers.Get(s.Kind); exists {
		return fmt.Errorf("scale %s already registered", s.Kind)
	}
	r.mappers.Set(s.Kind, m)
	r.kinds = append(r.kinds, s.Kind)
	sort.Strings(r.kinds)
	return nil
}

// Get returns the mapper for kind.
func (r *Registry) Get(kind string) (*Mapper, bool) {
	return r.mappers.Get(kind)
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.kinds))
	copy(out, r.kinds)
	return out
}
