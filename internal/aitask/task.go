package aitask

import (
	"bytes"
	"encoding/json"
	"fmt"

	"aitask/pkg/platform"
)

// AttachmentRef is a media reference as given by the caller.
type AttachmentRef struct {
	MediaContentID   string `json:"media_content_id"`
	MediaContentType string `json:"media_content_type,omitempty"`
}

// GenerateDataRequest is the service data of ai_task.generate_data.
type GenerateDataRequest struct {
	TaskName     string          `json:"task_name"`
	Instructions string          `json:"instructions"`
	EntityID     string          `json:"entity_id,omitempty"`
	Structure    map[string]any  `json:"structure,omitempty"`
	Attachments  []AttachmentRef `json:"attachments,omitempty"`
}

// Validate checks required fields and the entity id format.
func (r GenerateDataRequest) Validate() error {
	if r.TaskName == "" {
		return fmt.Errorf("task_name is required: %w", ErrInvalidRequest)
	}
	if r.Instructions == "" {
		return fmt.Errorf("instructions is required: %w", ErrInvalidRequest)
	}
	if r.EntityID != "" {
		if err := platform.ValidateEntityID(r.EntityID); err != nil {
			return fmt.Errorf("entity_id: %v: %w", err, ErrInvalidRequest)
		}
	}
	for i, att := range r.Attachments {
		if att.MediaContentID == "" {
			return fmt.Errorf("attachments[%d]: media_content_id is required: %w", i, ErrInvalidRequest)
		}
	}
	return nil
}

// DecodeGenerateDataRequest converts raw service data into a validated
// request. Unknown fields are rejected.
func DecodeGenerateDataRequest(data map[string]any) (GenerateDataRequest, error) {
	var req GenerateDataRequest
	if err := decodeStrict(data, &req); err != nil {
		return GenerateDataRequest{}, err
	}
	if err := req.Validate(); err != nil {
		return GenerateDataRequest{}, err
	}
	return req, nil
}

// DecodePreferenceUpdates converts raw service data into slot updates.
// Values must be strings or null; an empty string clears the slot.
func DecodePreferenceUpdates(data map[string]any) (map[string]*string, error) {
	updates := make(map[string]*string, len(data))
	for key, value := range data {
		if !isKey(key) {
			return nil, fmt.Errorf("%q: %w", key, ErrUnknownPreference)
		}
		switch v := value.(type) {
		case nil:
			updates[key] = nil
		case string:
			if v == "" {
				updates[key] = nil
				continue
			}
			if err := platform.ValidateEntityID(v); err != nil {
				return nil, fmt.Errorf("%s: %v: %w", key, err, ErrInvalidRequest)
			}
			s := v
			updates[key] = &s
		default:
			return nil, fmt.Errorf("%s must be a string or null: %w", key, ErrInvalidRequest)
		}
	}
	return updates, nil
}

func decodeStrict(data map[string]any, out any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode service data: %v: %w", err, ErrInvalidRequest)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidRequest)
	}
	return nil
}
