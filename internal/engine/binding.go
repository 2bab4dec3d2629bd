package engine

import (
	"fmt"
	"sort"
	"sync"
)

// Binding names one answer-engine endpoint. Each knowledge-base category
// gets its own binding (its own credentials and app on the engine side),
// but they all speak the same chat contract.
type Binding struct {
	Category string
	Engine   ChatEngine
}

// Bindings is a registry of per-category engine bindings.
type Bindings struct {
	mu      sync.RWMutex
	entries map[string]*Binding
}

// NewBindings creates an empty registry.
func NewBindings() *Bindings {
	return &Bindings{entries: make(map[string]*Binding)}
}

// Register adds a binding for a category, replacing any previous one.
func (b *Bindings) Register(category string, eng ChatEngine) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[category] = &Binding{Category: category, Engine: eng}
}

// Lookup returns the binding for a category.
func (b *Bindings) Lookup(category string) (*Binding, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	binding, ok := b.entries[category]
	if !ok {
		return nil, fmt.Errorf("no answer engine bound for category %q", category)
	}
	return binding, nil
}

// Categories lists registered category names in sorted order.
func (b *Bindings) Categories() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.entries))
	for name := range b.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
