package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"aitask/internal/clock"

	"go.uber.org/zap"
)

// envelope is the on-disk shape of every record
type envelope struct {
	Version      int             `json:"version"`
	MinorVersion int             `json:"minor_version"`
	Key          string          `json:"key"`
	Data         json.RawMessage `json:"data"`
}

// Store persists a single JSON record under a key.
type Store struct {
	backend      Backend
	key          string
	version      int
	minorVersion int
	clock        clock.Clock
	logger       *zap.Logger

	mu      sync.Mutex
	pending func() any
	timer   clock.Timer

	writeMu sync.Mutex
}

// Option configures a Store
type Option func(*Store)

// WithClock sets the clock used for delayed saves
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger used to report failed delayed saves
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithMinorVersion sets the minor version written alongside the record
func WithMinorVersion(v int) Option {
	return func(s *Store) { s.minorVersion = v }
}

// NewStore creates a store for key at the given major version.
func NewStore(backend Backend, key string, version int, opts ...Option) *Store {
	s := &Store{
		backend:      backend,
		key:          key,
		version:      version,
		minorVersion: 1,
		clock:        clock.NewRealClock(),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the record key
func (s *Store) Key() string {
	return s.key
}

// Load decodes the stored record into out. It reports false without error
// when nothing has been stored yet. Data queued by DelaySave but not yet
// written is returned in preference to the persisted copy.
func (s *Store) Load(ctx context.Context, out any) (bool, error) {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()

	if pending != nil {
		raw, err := json.Marshal(pending())
		if err != nil {
			return false, fmt.Errorf("encode pending %s: %w", s.key, err)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return false, fmt.Errorf("decode pending %s: %w", s.key, err)
		}
		return true, nil
	}

	raw, err := s.backend.Read(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, fmt.Errorf("decode %s: %w", s.key, err)
	}
	if env.Version > s.version {
		return false, fmt.Errorf("%s has version %d, supported %d: %w",
			s.key, env.Version, s.version, ErrUnsupportedVersion)
	}
	if len(env.Data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return false, fmt.Errorf("decode %s data: %w", s.key, err)
	}
	return true, nil
}

// Save writes v immediately and cancels any pending delayed save.
func (s *Store) Save(ctx context.Context, v any) error {
	s.cancelPending()
	return s.write(ctx, v)
}

// DelaySave schedules data() to be written after delay. Calls made before
// the write happens replace the provider and restart the delay, so a burst
// of updates results in one write.
func (s *Store) DelaySave(data func() any, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = data
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(delay, func() {
		if err := s.flushPending(context.Background()); err != nil {
			s.logger.Error("Delayed save failed",
				zap.String("key", s.key),
				zap.Error(err))
		}
	})
}

// Flush writes any pending delayed save now.
func (s *Store) Flush(ctx context.Context) error {
	return s.flushPending(ctx)
}

// Remove deletes the record and drops any pending delayed save.
func (s *Store) Remove(ctx context.Context) error {
	s.cancelPending()
	return s.backend.Delete(ctx, s.key)
}

func (s *Store) cancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
}

func (s *Store) flushPending(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if pending == nil {
		return nil
	}
	if err := s.write(ctx, pending()); err != nil {
		// Keep the data queued for the next Flush unless a newer
		// DelaySave has replaced it.
		s.mu.Lock()
		if s.pending == nil {
			s.pending = pending
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) write(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.key, err)
	}

	raw, err := json.MarshalIndent(envelope{
		Version:      s.version,
		MinorVersion: s.minorVersion,
		Key:          s.key,
		Data:         data,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", s.key, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.backend.Write(ctx, s.key, raw); err != nil {
		return err
	}
	s.logger.Debug("Record saved", zap.String("key", s.key))
	return nil
}
