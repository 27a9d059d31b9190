package ha

import (
	"context"
	"testing"
	"time"

	"aitask/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startServer(t *testing.T) *testutil.MockHAServer {
	t.Helper()
	server := testutil.NewMockHAServer("test_token")
	server.Start()
	t.Cleanup(server.Stop)
	return server
}

func connectedClient(t *testing.T, server *testutil.MockHAServer) *Client {
	t.Helper()
	client := NewClient(server.URL(), "test_token", zap.NewNop())
	require.NoError(t, client.Connect())
	t.Cleanup(func() { client.Disconnect() })
	return client
}

func TestClient_ConnectAndDisconnect(t *testing.T) {
	server := startServer(t)
	client := NewClient(server.URL(), "test_token", zap.NewNop())

	require.NoError(t, client.Connect())
	assert.True(t, client.IsConnected())

	err := client.Connect()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already connected")

	require.NoError(t, client.Disconnect())
	assert.False(t, client.IsConnected())

	// Disconnecting twice is harmless
	assert.NoError(t, client.Disconnect())
}

func TestClient_InvalidToken(t *testing.T) {
	server := startServer(t)
	client := NewClient(server.URL(), "wrong_token", zap.NewNop())

	err := client.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
	assert.False(t, client.IsConnected())
}

func TestClient_NotConnected(t *testing.T) {
	client := NewClient("ws://127.0.0.1:1/api/websocket", "token", zap.NewNop())

	_, err := client.ResolveMedia(context.Background(), "media-source://media_source/local/a.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestClient_ResolveMedia(t *testing.T) {
	server := startServer(t)
	server.SetMedia("media-source://media_source/local/doorbell.jpg", "/media/local/doorbell.jpg?authSig=abc", "image/jpeg")
	server.SetMedia("media-source://camera/camera.front", "http://cdn.example.com/front.mp4", "video/mp4")
	client := connectedClient(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	media, err := client.ResolveMedia(ctx, "media-source://media_source/local/doorbell.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", media.MimeType)
	assert.Contains(t, media.URL, "http://127.0.0.1:")
	assert.Contains(t, media.URL, "/media/local/doorbell.jpg?authSig=abc")

	media, err = client.ResolveMedia(ctx, "media-source://camera/camera.front")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.example.com/front.mp4", media.URL, "absolute URLs are kept")
	assert.Equal(t, "video/mp4", media.MimeType)
}

func TestClient_ResolveMediaFailure(t *testing.T) {
	server := startServer(t)
	client := connectedClient(t, server)

	_, err := client.ResolveMedia(context.Background(), "media-source://nope/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve_media_failed")
}

func TestClient_CallService(t *testing.T) {
	server := startServer(t)
	client := connectedClient(t, server)

	resp, err := client.CallService(context.Background(), "persistent_notification", "create", map[string]interface{}{
		"message": "done",
	}, false)
	require.NoError(t, err)
	assert.Nil(t, resp)

	calls := testutil.FilterServiceCalls(server.GetServiceCalls(), "persistent_notification", "create")
	require.Len(t, calls, 1)
	assert.Equal(t, "done", calls[0].ServiceData["message"])
	assert.False(t, calls[0].ReturnResponse)
}

func TestClient_CallServiceWithResponse(t *testing.T) {
	server := startServer(t)
	server.SetServiceResponse("ai_task", "generate_data", map[string]interface{}{
		"conversation_id": "abc",
		"data":            "Remote result",
	})
	client := connectedClient(t, server)

	resp, err := client.CallService(context.Background(), "ai_task", "generate_data", map[string]interface{}{
		"task_name":    "Test Task",
		"instructions": "Test prompt",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, "Remote result", resp["data"])
	assert.Equal(t, "abc", resp["conversation_id"])

	calls := testutil.FilterServiceCalls(server.GetServiceCalls(), "ai_task", "generate_data")
	require.Len(t, calls, 1)
	assert.True(t, calls[0].ReturnResponse)
}

func TestClient_AbsoluteURL(t *testing.T) {
	tests := []struct {
		name  string
		wsURL string
		raw   string
		want  string
	}{
		{"ws to http", "ws://ha.local:8123/api/websocket", "/media/a.jpg", "http://ha.local:8123/media/a.jpg"},
		{"wss to https", "wss://ha.example.com/api/websocket", "/media/a.jpg?x=1", "https://ha.example.com/media/a.jpg?x=1"},
		{"absolute kept", "ws://ha.local:8123/api/websocket", "https://other/a.jpg", "https://other/a.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.wsURL, "", zap.NewNop())
			assert.Equal(t, tt.want, client.absoluteURL(tt.raw))
		})
	}
}

func TestMockClient_ResolveMedia(t *testing.T) {
	mock := NewMockClient()
	mock.SetMedia("media-source://x/1", "http://example.com/1.png", "image/png")

	media, err := mock.ResolveMedia(context.Background(), "media-source://x/1")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/1.png", media.URL)

	_, err = mock.ResolveMedia(context.Background(), "media-source://x/2")
	assert.Error(t, err)

	assert.Equal(t, []string{"media-source://x/1", "media-source://x/2"}, mock.ResolvedIDs())
}
