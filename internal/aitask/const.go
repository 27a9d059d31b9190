// Package aitask implements the ai_task component: the preferences that name
// the default handling entities, and the generate_data service that hands a
// task to one of them after resolving its media attachments.
package aitask

import (
	"errors"
	"time"

	"aitask/pkg/platform"
)

const (
	// Domain is the service and entity domain of the component.
	Domain = platform.Domain

	// ServiceGenerateData runs a data generation task.
	ServiceGenerateData = "generate_data"

	// ServiceSetPreferences updates the preference slots.
	ServiceSetPreferences = "set_preferences"

	// StorageKey is the record key the preferences persist under.
	StorageKey = "ai_task"

	// StorageVersion is the schema version of the persisted preferences.
	StorageVersion = 1

	// SaveDelay is how long preference writes are batched before hitting storage.
	SaveDelay = 10 * time.Second
)

// Preference slot names.
const (
	KeyGenDataEntityID  = "gen_data_entity_id"
	KeyGenImageEntityID = "gen_image_entity_id"
)

// Keys is the fixed set of preference slots, in persisted order.
var Keys = []string{KeyGenDataEntityID, KeyGenImageEntityID}

var (
	// ErrNoEntity is returned when a task names no entity and no preferred
	// entity is set.
	ErrNoEntity = errors.New("no entity_id provided and no preferred entity set")

	// ErrEntityNotFound is returned when the target entity does not exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrNotSupported is returned when the entity lacks a required feature.
	ErrNotSupported = errors.New("entity does not support this task")

	// ErrInvalidRequest is returned for malformed service data.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnknownPreference is returned when updating a slot outside Keys.
	ErrUnknownPreference = errors.New("unknown preference")
)

func isKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}
