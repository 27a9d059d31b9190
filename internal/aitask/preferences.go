package aitask

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"aitask/internal/storage"

	"go.uber.org/zap"
)

// Preferences holds the preferred handling entity per task kind.
// Every slot in Keys is always present; an unset slot is nil.
type Preferences struct {
	store  *storage.Store
	logger *zap.Logger

	mu     sync.RWMutex
	values map[string]*string

	listenersMu sync.Mutex
	listeners   []func(map[string]*string)
}

// NewPreferences creates preferences backed by store with every slot unset.
// Call Load to read persisted values.
func NewPreferences(store *storage.Store, logger *zap.Logger) *Preferences {
	return &Preferences{
		store:  store,
		logger: logger.Named("preferences"),
		values: emptyValues(),
	}
}

func emptyValues() map[string]*string {
	values := make(map[string]*string, len(Keys))
	for _, key := range Keys {
		values[key] = nil
	}
	return values
}

// Load replaces the in-memory values with the persisted record. A missing
// record leaves every slot unset. Unknown persisted slots are ignored.
func (p *Preferences) Load(ctx context.Context) error {
	var stored map[string]*string
	found, err := p.store.Load(ctx, &stored)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}

	values := emptyValues()
	if found {
		for key, value := range stored {
			if !isKey(key) {
				p.logger.Warn("Ignoring unknown stored preference", zap.String("key", key))
				continue
			}
			values[key] = copyString(value)
		}
	}

	p.mu.Lock()
	p.values = values
	p.mu.Unlock()

	p.logger.Debug("Preferences loaded", zap.Bool("found", found))
	return nil
}

// SetPreferences applies the given slots and schedules a save. Slots that are
// not mentioned keep their value; a nil or empty value clears a slot. An unknown slot
// fails the whole update.
func (p *Preferences) SetPreferences(updates map[string]*string) error {
	for key := range updates {
		if !isKey(key) {
			return fmt.Errorf("%q: %w", key, ErrUnknownPreference)
		}
	}

	p.mu.Lock()
	for key, value := range updates {
		if value != nil && *value == "" {
			value = nil
		}
		p.values[key] = copyString(value)
	}
	p.mu.Unlock()

	p.store.DelaySave(func() any { return p.AsMap() }, SaveDelay)

	keys := make([]string, 0, len(updates))
	for key := range updates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	p.logger.Info("Preferences updated", zap.Strings("keys", keys))

	p.notify()
	return nil
}

// Get returns the value of a slot, or nil when unset.
func (p *Preferences) Get(key string) *string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyString(p.values[key])
}

// GenDataEntityID returns the preferred generate_data entity, or "".
func (p *Preferences) GenDataEntityID() string {
	return deref(p.Get(KeyGenDataEntityID))
}

// GenImageEntityID returns the preferred image generation entity, or "".
func (p *Preferences) GenImageEntityID() string {
	return deref(p.Get(KeyGenImageEntityID))
}

// AsMap returns a copy of all slots.
func (p *Preferences) AsMap() map[string]*string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]*string, len(p.values))
	for key, value := range p.values {
		out[key] = copyString(value)
	}
	return out
}

// Flush writes a pending save to storage now.
func (p *Preferences) Flush(ctx context.Context) error {
	return p.store.Flush(ctx)
}

// OnChange registers fn to run after every update with the new values.
func (p *Preferences) OnChange(fn func(map[string]*string)) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	p.listeners = append(p.listeners, fn)
}

func (p *Preferences) notify() {
	p.listenersMu.Lock()
	listeners := make([]func(map[string]*string), len(p.listeners))
	copy(listeners, p.listeners)
	p.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(p.AsMap())
	}
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
