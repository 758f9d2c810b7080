package search

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor builds a provider from its configuration
type Constructor func(cfg Config) (Provider, error)

var registry = struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}{
	constructors: make(map[string]Constructor),
}

// Register registers a provider constructor under a name.
// Registering the same name twice replaces the earlier constructor.
func Register(name string, constructor Constructor) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.constructors[name] = constructor
}

// New builds a registered provider by name
func New(name string, cfg Config) (Provider, error) {
	registry.mu.RLock()
	constructor, ok := registry.constructors[name]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("search: unknown provider %q", name)
	}
	return constructor(cfg)
}

// List returns all registered provider names, sorted
func List() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.constructors))
	for name := range registry.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
