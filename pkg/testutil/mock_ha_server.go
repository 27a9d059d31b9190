// Package testutil provides testing utilities for the ai_task service.
// This package contains a mock Home Assistant WebSocket server.
package testutil

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// connWrapper wraps a WebSocket connection with its write mutex
type connWrapper struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (w *connWrapper) writeJSON(v interface{}) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.conn.WriteJSON(v)
}

// MockHAServer simulates the parts of the Home Assistant WebSocket API the
// ai_task service uses: authentication, call_service and
// media_source/resolve_media.
type MockHAServer struct {
	server       *httptest.Server
	token        string
	media        map[string]ResolvedMedia
	mediaMu      sync.RWMutex
	responses    map[string]map[string]interface{}
	connections  []*connWrapper
	connsMu      sync.Mutex
	serviceCalls []ServiceCall // Track all service calls for verification
	callsMu      sync.Mutex    // Protects serviceCalls
}

// ResolvedMedia is the answer to a resolve_media request
type ResolvedMedia struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// Message represents a WebSocket message
type Message struct {
	ID      int             `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *MessageError   `json:"error,omitempty"`
}

// MessageError is the error payload of a failed result
type MessageError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthMessage represents authentication request
type AuthMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
}

// CallServiceRequest represents a service call
type CallServiceRequest struct {
	ID          int                    `json:"id"`
	Type        string                 `json:"type"`
	Domain      string                 `json:"domain"`
	Service     string                 `json:"service"`
	ServiceData    map[string]interface{} `json:"service_data,omitempty"`
	ReturnResponse bool                   `json:"return_response,omitempty"`
}

// ResolveMediaRequest represents a media_source/resolve_media request
type ResolveMediaRequest struct {
	ID             int    `json:"id"`
	Type           string `json:"type"`
	MediaContentID string `json:"media_content_id"`
}

// NewMockHAServer creates a new mock HA server that accepts token
func NewMockHAServer(token string) *MockHAServer {
	return &MockHAServer{
		token:        token,
		media:        make(map[string]ResolvedMedia),
		responses:    make(map[string]map[string]interface{}),
		connections:  make([]*connWrapper, 0),
		serviceCalls: make([]ServiceCall, 0),
	}
}

// Start starts the mock server on a random local port
func (s *MockHAServer) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/websocket", s.handleWebSocket)
	s.server = httptest.NewServer(mux)
}

// URL returns the websocket endpoint of the running server
func (s *MockHAServer) URL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http") + "/api/websocket"
}

// Stop closes all connections and stops the server
func (s *MockHAServer) Stop() {
	s.connsMu.Lock()
	for _, wrapper := range s.connections {
		wrapper.conn.Close()
	}
	s.connections = nil
	s.connsMu.Unlock()

	if s.server != nil {
		s.server.Close()
	}
}

// SetMedia registers how a media content id resolves
func (s *MockHAServer) SetMedia(mediaContentID, url, mimeType string) {
	s.mediaMu.Lock()
	defer s.mediaMu.Unlock()
	s.media[mediaContentID] = ResolvedMedia{URL: url, MimeType: mimeType}
}

// SetServiceResponse registers the response data returned when a service is
// called with return_response
func (s *MockHAServer) SetServiceResponse(domain, service string, resp map[string]interface{}) {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	s.responses[domain+"."+service] = resp
}

// handleWebSocket handles WebSocket connections
func (s *MockHAServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	wrapper := &connWrapper{conn: conn}

	s.connsMu.Lock()
	s.connections = append(s.connections, wrapper)
	s.connsMu.Unlock()

	defer func() {
		s.connsMu.Lock()
		for i, w := range s.connections {
			if w.conn == conn {
				s.connections = append(s.connections[:i], s.connections[i+1:]...)
				break
			}
		}
		s.connsMu.Unlock()
		conn.Close()
	}()

	wrapper.writeJSON(Message{Type: "auth_required"})

	var authMsg AuthMessage
	if err := conn.ReadJSON(&authMsg); err != nil {
		return
	}

	if authMsg.AccessToken != s.token {
		wrapper.writeJSON(Message{Type: "auth_invalid"})
		return
	}

	wrapper.writeJSON(Message{Type: "auth_ok"})

	for {
		var msg json.RawMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		var baseMsg struct {
			ID   int    `json:"id"`
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &baseMsg); err != nil {
			continue
		}

		switch baseMsg.Type {
		case "call_service":
			s.handleCallService(wrapper, msg)
		case "media_source/resolve_media":
			s.handleResolveMedia(wrapper, msg)
		default:
			fail(wrapper, baseMsg.ID, "unknown_command", "Unknown command.")
		}
	}
}

// handleCallService records and acknowledges service calls
func (s *MockHAServer) handleCallService(wrapper *connWrapper, msg json.RawMessage) {
	var req CallServiceRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return
	}

	s.callsMu.Lock()
	s.serviceCalls = append(s.serviceCalls, ServiceCall{
		Timestamp:      time.Now(),
		Domain:         req.Domain,
		Service:        req.Service,
		ServiceData:    req.ServiceData,
		ReturnResponse: req.ReturnResponse,
	})
	resp := s.responses[req.Domain+"."+req.Service]
	s.callsMu.Unlock()

	result := map[string]interface{}{"context": map[string]interface{}{"id": "mock"}}
	if req.ReturnResponse {
		if resp == nil {
			resp = map[string]interface{}{}
		}
		result["response"] = resp
	}
	raw, _ := json.Marshal(result)

	success := true
	wrapper.writeJSON(Message{ID: req.ID, Type: "result", Success: &success, Result: raw})
}

// handleResolveMedia answers from the media registered with SetMedia
func (s *MockHAServer) handleResolveMedia(wrapper *connWrapper, msg json.RawMessage) {
	var req ResolveMediaRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return
	}

	s.mediaMu.RLock()
	media, ok := s.media[req.MediaContentID]
	s.mediaMu.RUnlock()

	if !ok {
		fail(wrapper, req.ID, "resolve_media_failed", "Unknown media "+req.MediaContentID)
		return
	}

	result, _ := json.Marshal(media)
	success := true
	wrapper.writeJSON(Message{ID: req.ID, Type: "result", Success: &success, Result: result})
}

func fail(wrapper *connWrapper, id int, code, message string) {
	success := false
	wrapper.writeJSON(Message{
		ID:      id,
		Type:    "result",
		Success: &success,
		Error:   &MessageError{Code: code, Message: message},
	})
}

// GetServiceCalls returns all service calls since last clear
func (s *MockHAServer) GetServiceCalls() []ServiceCall {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	calls := make([]ServiceCall, len(s.serviceCalls))
	copy(calls, s.serviceCalls)
	return calls
}

// ClearServiceCalls resets the service call log
func (s *MockHAServer) ClearServiceCalls() {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	s.serviceCalls = nil
}
