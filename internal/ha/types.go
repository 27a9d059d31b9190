package ha

import (
	"encoding/json"
)

// Message represents a base WebSocket message to/from Home Assistant
type Message struct {
	ID      int             `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents an error response from Home Assistant
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthMessage represents authentication request
type AuthMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
}

// command is a request that is answered by a "result" message with the same ID
type command interface {
	setID(id int)
}

// CallServiceRequest represents a call_service request
type CallServiceRequest struct {
	ID          int                    `json:"id"`
	Type        string                 `json:"type"`
	Domain      string                 `json:"domain"`
	Service     string                 `json:"service"`
	ServiceData map[string]interface{} `json:"service_data,omitempty"`
	// ReturnResponse asks for the service's response data in the result
	ReturnResponse bool `json:"return_response,omitempty"`
}

// CallServiceResult is the result of a call_service command
type CallServiceResult struct {
	Response map[string]interface{} `json:"response,omitempty"`
}

func (r *CallServiceRequest) setID(id int) { r.ID = id }

// ResolveMediaRequest represents a media_source/resolve_media request
type ResolveMediaRequest struct {
	ID             int    `json:"id"`
	Type           string `json:"type"`
	MediaContentID string `json:"media_content_id"`
	Expires        int    `json:"expires,omitempty"`
}

func (r *ResolveMediaRequest) setID(id int) { r.ID = id }

// ResolvedMedia is the result of media_source/resolve_media.
// URL may be relative to the Home Assistant base URL.
type ResolvedMedia struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}
