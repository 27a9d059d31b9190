// Package storage persists small versioned JSON records under stable keys.
//
// A Store owns one record and supports immediate saves as well as delayed,
// coalesced saves that can be forced out with Flush. The bytes themselves
// live in a Backend: a directory of files, a SQLite table, or memory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by a Backend when no record exists for a key.
	ErrNotFound = errors.New("record not found")

	// ErrUnsupportedVersion is returned when a persisted record was written
	// by a newer major version than the Store supports.
	ErrUnsupportedVersion = errors.New("unsupported storage version")
)

// Backend reads and writes raw record bytes by key.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// validateKey rejects keys that could escape a file backend's directory.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("storage key cannot be empty")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid storage key %q", key)
	}
	return nil
}
