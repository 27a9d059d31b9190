package ha

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient implements HAClient interface for testing
type MockClient struct {
	media        map[string]*ResolvedMedia
	mediaErr     error
	mediaMu      sync.RWMutex
	resolved     []string
	connected    bool
	connMu       sync.RWMutex
	serviceCalls []ServiceCall
	responses    map[string]map[string]interface{}
	callErr      error
	callsMu      sync.Mutex
}

// ServiceCall records a service call for testing
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]interface{}
	Time    time.Time
}

// NewMockClient creates a new mock HA client
func NewMockClient() *MockClient {
	return &MockClient{
		media:        make(map[string]*ResolvedMedia),
		serviceCalls: make([]ServiceCall, 0),
		responses:    make(map[string]map[string]interface{}),
	}
}

// Connect simulates connecting to Home Assistant
func (m *MockClient) Connect() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	return nil
}

// Disconnect simulates disconnecting
func (m *MockClient) Disconnect() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	m.connected = false
	return nil
}

// IsConnected returns connection status
func (m *MockClient) IsConnected() bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.connected
}

// CallService records a service call and answers with the response set by
// SetServiceResponse
func (m *MockClient) CallService(ctx context.Context, domain, service string, data map[string]interface{}, returnResponse bool) (map[string]interface{}, error) {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	m.serviceCalls = append(m.serviceCalls, ServiceCall{
		Domain:  domain,
		Service: service,
		Data:    data,
		Time:    time.Now(),
	})

	if m.callErr != nil {
		return nil, m.callErr
	}
	if !returnResponse {
		return nil, nil
	}
	resp, ok := m.responses[domain+"."+service]
	if !ok {
		return map[string]interface{}{}, nil
	}
	return resp, nil
}

// SetServiceResponse sets the response data returned for a service (for testing)
func (m *MockClient) SetServiceResponse(domain, service string, resp map[string]interface{}) {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.responses[domain+"."+service] = resp
}

// SetServiceError makes every CallService fail with err
func (m *MockClient) SetServiceError(err error) {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.callErr = err
}

// ResolveMedia returns media registered with SetMedia
func (m *MockClient) ResolveMedia(ctx context.Context, mediaContentID string) (*ResolvedMedia, error) {
	m.mediaMu.Lock()
	defer m.mediaMu.Unlock()

	m.resolved = append(m.resolved, mediaContentID)

	if m.mediaErr != nil {
		return nil, m.mediaErr
	}

	media, ok := m.media[mediaContentID]
	if !ok {
		return nil, fmt.Errorf("HA error: resolve_media_failed - unknown media %s", mediaContentID)
	}

	copied := *media
	return &copied, nil
}

// SetMedia registers the answer for a media content id (for testing)
func (m *MockClient) SetMedia(mediaContentID, url, mimeType string) {
	m.mediaMu.Lock()
	defer m.mediaMu.Unlock()

	m.media[mediaContentID] = &ResolvedMedia{URL: url, MimeType: mimeType}
}

// SetMediaError makes every ResolveMedia call fail with err
func (m *MockClient) SetMediaError(err error) {
	m.mediaMu.Lock()
	defer m.mediaMu.Unlock()

	m.mediaErr = err
}

// ResolvedIDs returns every media content id passed to ResolveMedia
func (m *MockClient) ResolvedIDs() []string {
	m.mediaMu.RLock()
	defer m.mediaMu.RUnlock()

	ids := make([]string, len(m.resolved))
	copy(ids, m.resolved)
	return ids
}

// GetServiceCalls returns all recorded service calls
func (m *MockClient) GetServiceCalls() []ServiceCall {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	calls := make([]ServiceCall, len(m.serviceCalls))
	copy(calls, m.serviceCalls)
	return calls
}

// ClearServiceCalls clears the service call history
func (m *MockClient) ClearServiceCalls() {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.serviceCalls = make([]ServiceCall, 0)
}
