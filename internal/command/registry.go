package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by Resolve when no command matches.
var ErrNotFound = errors.New("command not found")

// DuplicateNameError reports a name collision during registration.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("command name already registered: %s", e.Name)
}

// DuplicateAliasError reports an alias colliding with an existing name or alias.
type DuplicateAliasError struct {
	Alias string
}

func (e *DuplicateAliasError) Error() string {
	return fmt.Sprintf("command alias already registered: %s", e.Alias)
}

// Registry holds immutable command specs indexed by name and alias. Names
// and aliases share one global namespace; lookups are case-insensitive.
// The table only changes through Register at load time or an atomic Reload.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Spec
	lookup map[string]*Spec // names and aliases, lowercased
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Spec),
		lookup: make(map[string]*Spec),
	}
}

// Register adds a spec. It fails with DuplicateNameError or
// DuplicateAliasError on any collision and leaves the table untouched.
func (r *Registry) Register(spec *Spec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return register(r.byName, r.lookup, spec)
}

func register(byName, lookup map[string]*Spec, spec *Spec) error {
	name := strings.ToLower(spec.Name)
	if _, ok := lookup[name]; ok {
		return &DuplicateNameError{Name: spec.Name}
	}
	seen := map[string]bool{name: true}
	for _, a := range spec.Aliases {
		la := strings.ToLower(a)
		if _, ok := lookup[la]; ok {
			return &DuplicateAliasError{Alias: a}
		}
		// Aliases of a single spec must not collide with each other either.
		if seen[la] {
			return &DuplicateAliasError{Alias: a}
		}
		seen[la] = true
	}

	byName[name] = spec
	lookup[name] = spec
	for _, a := range spec.Aliases {
		lookup[strings.ToLower(a)] = spec
	}
	return nil
}

// Resolve returns the spec matching a name or alias, case-insensitively.
func (r *Registry) Resolve(nameOrAlias string) (*Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.lookup[strings.ToLower(nameOrAlias)]
	if !ok {
		return nil, ErrNotFound
	}
	return spec, nil
}

// ByCategory returns all specs in a category, sorted by name.
func (r *Registry) ByCategory(category string) []*Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []*Spec
	for _, spec := range r.byName {
		if spec.Category == category {
			list = append(list, spec)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// All returns every registered spec, sorted by name.
func (r *Registry) All() []*Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*Spec, 0, len(r.byName))
	for _, spec := range r.byName {
		list = append(list, spec)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Len returns the number of registered commands (aliases not counted).
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Reload replaces the whole table with the given specs. The swap is
// all-or-nothing: on any collision the existing table stays in place.
func (r *Registry) Reload(specs []*Spec) error {
	byName := make(map[string]*Spec, len(specs))
	lookup := make(map[string]*Spec, len(specs))
	for _, spec := range specs {
		if err := register(byName, lookup, spec); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.byName = byName
	r.lookup = lookup
	r.mu.Unlock()
	return nil
}
