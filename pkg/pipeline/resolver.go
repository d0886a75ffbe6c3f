package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var (
	ErrUnknownMiddleware = errors.New("pipeline: unknown middleware")
	ErrGroupCycle        = errors.New("pipeline: middleware group cycle")
	ErrInvalidReference  = errors.New("pipeline: invalid middleware reference")
)

// Factory builds a middleware from the parameters of its reference.
// For "throttle:60,1" the factory receives ("60", "1").
type Factory[M any] func(params ...string) (M, error)

// Static adapts a parameterless middleware into a Factory.
func Static[M any](m M) Factory[M] {
	return func(...string) (M, error) { return m, nil }
}

// Parse splits a middleware reference into its name and parameters.
//
//	Parse("throttle:60,1") // "throttle", ["60", "1"]
func Parse(ref string) (string, []string) {
	name, raw, ok := strings.Cut(ref, ":")
	if !ok || raw == "" {
		return name, nil
	}
	return name, strings.Split(raw, ",")
}

// Resolver maps middleware references to middleware values using aliases,
// groups and a priority list.
type Resolver[M any] struct {
	aliases  map[string]Factory[M]
	groups   map[string][]string
	priority []string
	mu       sync.RWMutex
}

// NewResolver creates an empty resolver.
func NewResolver[M any]() *Resolver[M] {
	return &Resolver[M]{
		aliases: make(map[string]Factory[M]),
		groups:  make(map[string][]string),
	}
}

// Alias registers a factory under name, replacing any existing alias.
func (r *Resolver[M]) Alias(name string, f Factory[M]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[name] = f
}

// HasAlias reports whether name is a registered alias.
func (r *Resolver[M]) HasAlias(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.aliases[name]
	return ok
}

// Group defines (or replaces) a named group of references.
func (r *Resolver[M]) Group(name string, refs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[name] = slices.Clone(refs)
}

// AppendToGroup adds references to the end of a group if not present.
func (r *Resolver[M]) AppendToGroup(name string, refs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ref := range refs {
		if !slices.Contains(r.groups[name], ref) {
			r.groups[name] = append(r.groups[name], ref)
		}
	}
}

// PrependToGroup adds references to the start of a group if not present.
func (r *Resolver[M]) PrependToGroup(name string, refs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var head []string
	for _, ref := range refs {
		if !slices.Contains(r.groups[name], ref) {
			head = append(head, ref)
		}
	}
	r.groups[name] = append(head, r.groups[name]...)
}

// HasGroup reports whether name is a registered group.
func (r *Resolver[M]) HasGroup(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.groups[name]
	return ok
}

// SetPriority sets the relative order enforced on middleware names.
func (r *Resolver[M]) SetPriority(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.priority = slices.Clone(names)
}

// Priority returns the configured priority list.
func (r *Resolver[M]) Priority() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.priority)
}

// Expand flattens groups, removes duplicates and excluded references and
// sorts the result by priority. The first occurrence of a reference wins.
// A reference is excluded when it equals an excluded reference or when its
// name equals a parameterless excluded reference.
func (r *Resolver[M]) Expand(refs, excluded []string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flat, err := r.flatten(refs, nil)
	if err != nil {
		return nil, err
	}
	skip, err := r.flatten(excluded, nil)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(flat))
	for _, ref := range flat {
		if slices.Contains(out, ref) || isExcluded(ref, skip) {
			continue
		}
		out = append(out, ref)
	}
	return SortByPriority(out, r.priority), nil
}

// Resolve expands references and instantiates them through their aliases.
func (r *Resolver[M]) Resolve(refs, excluded []string) ([]M, error) {
	expanded, err := r.Expand(refs, excluded)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]M, 0, len(expanded))
	for _, ref := range expanded {
		name, params := Parse(ref)
		f, ok := r.aliases[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMiddleware, ref)
		}
		m, err := f(params...)
		if err != nil {
			return nil, fmt.Errorf("middleware %q: %w", ref, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// flatten expands groups depth-first. stack holds the groups being expanded.
func (r *Resolver[M]) flatten(refs, stack []string) ([]string, error) {
	var out []string
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" || strings.HasPrefix(ref, ":") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
		}
		members, isGroup := r.groups[ref]
		if !isGroup {
			out = append(out, ref)
			continue
		}
		if slices.Contains(stack, ref) {
			return nil, fmt.Errorf("%w: %s", ErrGroupCycle, strings.Join(append(stack, ref), " -> "))
		}
		inner, err := r.flatten(members, append(slices.Clone(stack), ref))
		if err != nil {
			return nil, err
		}
		out = append(out, inner...)
	}
	return out, nil
}

func isExcluded(ref string, excluded []string) bool {
	name, _ := Parse(ref)
	for _, ex := range excluded {
		if ex == ref {
			return true
		}
		if exName, exParams := Parse(ex); exParams == nil && exName == name {
			return true
		}
	}
	return false
}
