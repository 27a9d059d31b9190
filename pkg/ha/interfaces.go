// Package ha provides the public interface definitions for Home Assistant
// client integration. These interfaces can be imported by external packages
// (including private platform implementations).
//
// The actual implementation is in internal/ha, which is wrapped by these
// public interfaces for external consumption.
package ha

import (
	"context"
)

// ResolvedMedia is a media-source identifier resolved by Home Assistant.
type ResolvedMedia struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// Client defines the interface for Home Assistant WebSocket client.
// This interface matches internal/ha.HAClient minus connection management,
// which stays with the process that owns the connection.
type Client interface {
	IsConnected() bool
	CallService(ctx context.Context, domain, service string, data map[string]interface{}, returnResponse bool) (map[string]interface{}, error)
	ResolveMedia(ctx context.Context, mediaContentID string) (*ResolvedMedia, error)
}
