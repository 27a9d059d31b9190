package aitask

import (
	"fmt"
	"sort"
	"sync"

	"aitask/pkg/platform"
)

// Entities is the set of live handling entities, keyed by entity id.
type Entities struct {
	mu       sync.RWMutex
	entities map[string]platform.Entity
}

// NewEntities creates an entity set holding the given entities.
func NewEntities(entities ...platform.Entity) (*Entities, error) {
	e := &Entities{entities: make(map[string]platform.Entity)}
	for _, entity := range entities {
		if err := e.Add(entity); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Add registers an entity. Ids must be valid and unique.
func (e *Entities) Add(entity platform.Entity) error {
	id := entity.EntityID()
	if err := platform.ValidateEntityID(id); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.entities[id]; exists {
		return fmt.Errorf("duplicate entity id %s", id)
	}
	e.entities[id] = entity
	return nil
}

// Remove drops an entity.
func (e *Entities) Remove(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.entities, id)
}

// Get returns the entity with the given id.
func (e *Entities) Get(id string) (platform.Entity, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entity, ok := e.entities[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrEntityNotFound)
	}
	return entity, nil
}

// List returns all entities sorted by id.
func (e *Entities) List() []platform.Entity {
	e.mu.RLock()
	defer e.mu.RUnlock()

	list := make([]platform.Entity, 0, len(e.entities))
	for _, entity := range e.entities {
		list = append(list, entity)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].EntityID() < list[j].EntityID()
	})
	return list
}
