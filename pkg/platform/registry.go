package platform

import (
	"fmt"
	"log"
	"sort"
	"sync"
)

// Priority constants for platform registration.
// Higher priority values override lower priority platforms with the same name.
const (
	// PriorityDefault is the default priority for platforms.
	PriorityDefault = 0

	// PriorityOverride is used by private implementations to replace a
	// public platform of the same name.
	PriorityOverride = 100
)

// Info contains metadata about a registered platform.
type Info struct {
	// Name is the identifier entity configs refer to in their platform field.
	Name string

	// Description is a human-readable description of the platform.
	Description string

	// Priority decides which registration wins for the same name.
	Priority int

	// Factory creates entities for this platform.
	Factory Factory
}

// Registry manages platform registration and entity construction.
type Registry struct {
	mu        sync.RWMutex
	platforms map[string]Info
}

// NewRegistry creates a new platform registry.
func NewRegistry() *Registry {
	return &Registry{
		platforms: make(map[string]Info),
	}
}

// Register adds a platform to the registry.
// If a platform with the same name already exists, the one with higher
// priority wins. If priorities are equal, the later registration wins.
func (r *Registry) Register(info Info) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info.Name == "" {
		return fmt.Errorf("platform name cannot be empty")
	}

	if info.Factory == nil {
		return fmt.Errorf("platform %s: factory cannot be nil", info.Name)
	}

	if existing, exists := r.platforms[info.Name]; exists {
		if info.Priority < existing.Priority {
			log.Printf("Platform %q registration skipped (priority %d < existing %d)",
				info.Name, info.Priority, existing.Priority)
			return nil
		}
		log.Printf("Platform %q being overridden (priority %d -> %d)",
			info.Name, existing.Priority, info.Priority)
	}

	r.platforms[info.Name] = info
	return nil
}

// Get returns the info for a platform, or nil if not found.
func (r *Registry) Get(name string) *Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.platforms[name]
	if !ok {
		return nil
	}
	return &info
}

// Names returns the registered platform names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.platforms))
	for name := range r.platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds a single entity from its configuration.
func (r *Registry) Create(ctx *Context, cfg EntityConfig) (Entity, error) {
	if cfg.ObjectID == "" {
		return nil, fmt.Errorf("entity config for platform %q: object_id cannot be empty", cfg.Platform)
	}

	info := r.Get(cfg.Platform)
	if info == nil {
		return nil, fmt.Errorf("entity %s: unknown platform %q", cfg.EntityID(), cfg.Platform)
	}

	entity, err := info.Factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create entity %s: %w", cfg.EntityID(), err)
	}
	return entity, nil
}

// CreateAll builds every configured entity in order. Entity ids must be unique.
func (r *Registry) CreateAll(ctx *Context, cfgs []EntityConfig) ([]Entity, error) {
	seen := make(map[string]bool, len(cfgs))
	result := make([]Entity, 0, len(cfgs))

	for _, cfg := range cfgs {
		id := cfg.EntityID()
		if seen[id] {
			return nil, fmt.Errorf("duplicate entity id %s", id)
		}
		seen[id] = true

		entity, err := r.Create(ctx, cfg)
		if err != nil {
			return nil, err
		}
		result = append(result, entity)
	}

	return result, nil
}

// Clear removes all registered platforms. Useful for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.platforms = make(map[string]Info)
}

// Global registry instance
var globalRegistry = NewRegistry()

// Register adds a platform to the global registry.
// This is typically called from init() functions in platform packages.
func Register(info Info) error {
	return globalRegistry.Register(info)
}

// Get returns platform info from the global registry.
func Get(name string) *Info {
	return globalRegistry.Get(name)
}

// Names returns all platform names from the global registry.
func Names() []string {
	return globalRegistry.Names()
}

// CreateAll builds entities from the global registry.
func CreateAll(ctx *Context, cfgs []EntityConfig) ([]Entity, error) {
	return globalRegistry.CreateAll(ctx, cfgs)
}

// Default returns the global registry.
func Default() *Registry {
	return globalRegistry
}
