package utility

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jgoulah/bidgely/internal/apierrors"
)

type Registry struct {
	mu        sync.RWMutex
	utilities map[string]Utility
}

func NewRegistry() *Registry {
	return &Registry{
		utilities: make(map[string]Utility),
	}
}

// Default is the process-wide registry populated at start-up
var Default = NewRegistry()

func (r *Registry) Register(u Utility) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(u.ID())
	if _, exists := r.utilities[key]; exists {
		return fmt.Errorf("utility with ID '%s' already registered", u.ID())
	}
	r.utilities[key] = u
	return nil
}

// List returns every registered backend sorted by ID
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ds := make([]Descriptor, 0, len(r.utilities))
	for _, u := range r.utilities {
		ds = append(ds, Describe(u))
	}

	sort.Slice(ds, func(i, j int) bool {
		return ds[i].ID < ds[j].ID
	})

	return ds
}

// Resolve finds a backend by display name or ID, ignoring case
func (r *Registry) Resolve(name string) (Utility, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := strings.ToLower(strings.TrimSpace(name))
	if u, ok := r.utilities[want]; ok {
		return u, nil
	}
	for _, u := range r.utilities {
		if strings.ToLower(u.Name()) == want {
			return u, nil
		}
	}
	return nil, &apierrors.NotFoundError{Kind: "utility", Name: name}
}

func Register(u Utility) error { return Default.Register(u) }

func List() []Descriptor { return Default.List() }

func Resolve(name string) (Utility, error) { return Default.Resolve(name) }
