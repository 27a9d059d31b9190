// Package platform defines the public contract for AI task handling
// entities. A platform (such as "openai" or "static") registers a factory
// with the registry from an init() function; configured entities are then
// built from that factory at startup. Private platforms can override public
// ones by registering the same name with a higher priority.
package platform

import (
	"context"
	"fmt"
	"strings"
)

// Domain is the entity domain every handling entity lives under.
const Domain = "ai_task"

// Feature is a bit set of the capabilities an entity supports.
type Feature int

const (
	// FeatureGenerateData means the entity can answer generate_data tasks.
	FeatureGenerateData Feature = 1 << iota

	// FeatureSupportAttachments means the entity accepts media attachments.
	FeatureSupportAttachments

	// FeatureGenerateImage means the entity can produce images.
	FeatureGenerateImage
)

// Has reports whether all bits of other are set.
func (f Feature) Has(other Feature) bool {
	return f&other == other
}

// Attachment is a media reference that has been resolved to a fetchable URL.
type Attachment struct {
	MediaContentID string `json:"media_content_id"`
	URL            string `json:"url"`
	MIMEType       string `json:"mime_type"`
}

// GenDataTask is the request handed to an entity's GenerateData.
type GenDataTask struct {
	Name         string         `json:"task_name"`
	Instructions string         `json:"instructions"`
	Structure    map[string]any `json:"structure,omitempty"`
	Attachments  []Attachment   `json:"attachments,omitempty"`
}

// GenDataTaskResult is what an entity returns for a GenDataTask.
// Data may be any JSON-encodable value.
type GenDataTaskResult struct {
	ConversationID string `json:"conversation_id"`
	Data           any    `json:"data"`
}

// Entity is a handling entity that performs generation tasks.
type Entity interface {
	// EntityID returns the full id, e.g. "ai_task.kitchen_assistant".
	EntityID() string

	// Name returns a human-readable name.
	Name() string

	// SupportedFeatures returns the capabilities of this entity.
	SupportedFeatures() Feature

	// GenerateData runs the task and returns its result.
	GenerateData(ctx context.Context, task GenDataTask) (GenDataTaskResult, error)
}

// EntityConfig describes one configured entity.
type EntityConfig struct {
	// ObjectID is the part of the entity id after the domain.
	ObjectID string `yaml:"object_id"`

	// Name is the display name; defaults to ObjectID.
	Name string `yaml:"name"`

	// Platform selects the registered factory.
	Platform string `yaml:"platform"`

	// Options are platform specific settings.
	Options map[string]any `yaml:"options"`
}

// EntityID returns the full entity id for the config.
func (c EntityConfig) EntityID() string {
	return EntityID(c.ObjectID)
}

// DisplayName returns Name, or ObjectID when Name is empty.
func (c EntityConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ObjectID
}

// StringOption returns a string option or def if unset.
func (c EntityConfig) StringOption(key, def string) string {
	if v, ok := c.Options[key].(string); ok && v != "" {
		return v
	}
	return def
}

// EntityID builds "ai_task.<objectID>".
func EntityID(objectID string) string {
	return Domain + "." + objectID
}

// ValidateEntityID checks that id has the form "ai_task.<object_id>".
func ValidateEntityID(id string) error {
	domain, objectID, ok := strings.Cut(id, ".")
	if !ok || domain != Domain || objectID == "" {
		return fmt.Errorf("invalid entity id %q", id)
	}
	return nil
}

// Factory creates an entity from its configuration.
type Factory func(ctx *Context, cfg EntityConfig) (Entity, error)
