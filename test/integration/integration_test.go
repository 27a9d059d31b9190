package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"aitask/internal/aitask"
	"aitask/internal/api"
	"aitask/internal/entities/static"
	"aitask/internal/ha"
	"aitask/internal/mediasource"
	"aitask/internal/metrics"
	"aitask/internal/service"
	"aitask/internal/storage"
	pkgha "aitask/pkg/ha"
	"aitask/pkg/platform"

	_ "aitask/internal/entities/homeassistant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "test_token_12345"

// env is one running instance of the service wired like cmd/aitask
type env struct {
	haServer *MockHAServer
	haClient *ha.Client
	backend  storage.Backend
	prefs    *aitask.Preferences
	entities *aitask.Entities
	http     *httptest.Server
}

func startHA(t *testing.T) *MockHAServer {
	t.Helper()
	server := NewMockHAServer(testToken)
	server.Start()
	t.Cleanup(server.Stop)
	return server
}

func startEnv(t *testing.T, haServer *MockHAServer, backend storage.Backend, cfgs []platform.EntityConfig) *env {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	ctx := context.Background()

	client := ha.NewClient(haServer.URL(), testToken, logger)
	require.NoError(t, client.Connect())
	t.Cleanup(func() { client.Disconnect() })

	m := metrics.New()
	router := mediasource.NewRouter(logger, m)
	router.SetFallback(mediasource.NewHomeAssistantSource(client))

	store := storage.NewStore(backend, aitask.StorageKey, aitask.StorageVersion)
	prefs := aitask.NewPreferences(store, logger)
	require.NoError(t, prefs.Load(ctx))

	platformCtx := platform.NewContext(logger, nil, func(string) string { return "" })
	platformCtx.HomeAssistant = pkgha.WrapClient(client)
	platformCtx.LocalMediaDomains = router.Domains()
	created, err := platform.CreateAll(platformCtx, cfgs)
	require.NoError(t, err)
	entities, err := aitask.NewEntities(created...)
	require.NoError(t, err)

	services := service.NewRegistry(logger, m)
	dispatcher := aitask.NewDispatcher(prefs, entities, router, m, logger)
	require.NoError(t, aitask.RegisterServices(services, dispatcher, prefs))

	server := api.NewServer(api.Options{
		Services:    services,
		Preferences: prefs,
		Entities:    entities,
		Metrics:     m,
	}, logger, 0)
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)

	return &env{
		haServer: haServer,
		haClient: client,
		backend:  backend,
		prefs:    prefs,
		entities: entities,
		http:     httpServer,
	}
}

func (e *env) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(e.http.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func mockEntityConfig() []platform.EntityConfig {
	return []platform.EntityConfig{{
		ObjectID: "test_task_entity",
		Name:     "Test Task Entity",
		Platform: static.PlatformName,
	}}
}

func staticEntity(t *testing.T, e *env) *static.Entity {
	t.Helper()
	entity, err := e.entities.Get("ai_task.test_task_entity")
	require.NoError(t, err)
	return entity.(*static.Entity)
}

func TestGenerateData_PreferredEntity(t *testing.T) {
	haServer := startHA(t)
	e := startEnv(t, haServer, storage.NewMemoryBackend(), mockEntityConfig())

	status, _ := e.post(t, "/api/services/ai_task/set_preferences", map[string]any{
		"gen_data_entity_id": "ai_task.test_task_entity",
	})
	require.Equal(t, http.StatusOK, status)

	status, body := e.post(t, "/api/services/ai_task/generate_data?return_response", map[string]any{
		"task_name":    "Test Task",
		"instructions": "Test prompt",
	})
	require.Equal(t, http.StatusOK, status, body)

	resp := body["service_response"].(map[string]any)
	assert.Equal(t, "Mock result", resp["data"])

	tasks := staticEntity(t, e).Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "Test Task", tasks[0].Name)
	assert.Equal(t, "Test prompt", tasks[0].Instructions)
}

func TestGenerateData_AttachmentResolvedByHomeAssistant(t *testing.T) {
	haServer := startHA(t)
	haServer.SetMedia("media-source://mock/blah_blah_blah.mp4", "http://example.com/media.mp4", "video/mp4")
	haServer.SetMedia("media-source://camera/camera.porch", "/api/camera_proxy/camera.porch?token=abc", "image/jpeg")
	e := startEnv(t, haServer, storage.NewMemoryBackend(), mockEntityConfig())

	status, body := e.post(t, "/api/services/ai_task/generate_data?return_response", map[string]any{
		"task_name":    "Test Task",
		"entity_id":    "ai_task.test_task_entity",
		"instructions": "Test prompt",
		"attachments": []map[string]any{
			{"media_content_id": "media-source://mock/blah_blah_blah.mp4", "media_content_type": "video/mp4"},
			{"media_content_id": "media-source://camera/camera.porch", "media_content_type": "image/jpeg"},
		},
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Mock result", body["service_response"].(map[string]any)["data"])

	tasks := staticEntity(t, e).Tasks()
	require.Len(t, tasks, 1)
	require.Len(t, tasks[0].Attachments, 2)

	assert.Equal(t, platform.Attachment{
		MediaContentID: "media-source://mock/blah_blah_blah.mp4",
		URL:            "http://example.com/media.mp4",
		MIMEType:       "video/mp4",
	}, tasks[0].Attachments[0])

	// Relative URLs from Home Assistant are made absolute
	porch := tasks[0].Attachments[1]
	assert.Equal(t, "image/jpeg", porch.MIMEType)
	assert.Contains(t, porch.URL, "/api/camera_proxy/camera.porch?token=abc")
	assert.Regexp(t, `^http://127\.0\.0\.1:\d+/`, porch.URL)
}

func TestGenerateData_UnresolvableAttachment(t *testing.T) {
	haServer := startHA(t)
	e := startEnv(t, haServer, storage.NewMemoryBackend(), mockEntityConfig())

	status, body := e.post(t, "/api/services/ai_task/generate_data?return_response", map[string]any{
		"task_name":    "Test Task",
		"entity_id":    "ai_task.test_task_entity",
		"instructions": "Test prompt",
		"attachments": []map[string]any{
			{"media_content_id": "media-source://mock/missing.mp4", "media_content_type": "video/mp4"},
		},
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body["error"], "resolve_media_failed")
	assert.Empty(t, staticEntity(t, e).Tasks())
}

func TestGenerateData_ForwardedToHomeAssistant(t *testing.T) {
	haServer := startHA(t)
	haServer.SetServiceResponse("ai_task", "generate_data", map[string]interface{}{
		"conversation_id": "remote",
		"data":            "Remote result",
	})
	e := startEnv(t, haServer, storage.NewMemoryBackend(), []platform.EntityConfig{{
		ObjectID: "upstream",
		Platform: "homeassistant",
		Options:  map[string]any{"remote_entity_id": "ai_task.openai_ai_task"},
	}})

	status, body := e.post(t, "/api/services/ai_task/generate_data?return_response", map[string]any{
		"task_name":    "Test Task",
		"entity_id":    "ai_task.upstream",
		"instructions": "Test prompt",
	})
	require.Equal(t, http.StatusOK, status, body)

	resp := body["service_response"].(map[string]any)
	assert.Equal(t, "Remote result", resp["data"])
	assert.Equal(t, "remote", resp["conversation_id"])

	calls := FilterServiceCalls(haServer.GetServiceCalls(), "ai_task", "generate_data")
	require.Len(t, calls, 1)
	assert.Equal(t, "ai_task.openai_ai_task", calls[0].ServiceData["entity_id"])
}

func TestPreferences_SurviveRestart(t *testing.T) {
	backends := map[string]func(t *testing.T) storage.Backend{
		"file": func(t *testing.T) storage.Backend {
			backend, err := storage.NewFileBackend(t.TempDir())
			require.NoError(t, err)
			return backend
		},
		"sqlite": func(t *testing.T) storage.Backend {
			backend, err := storage.NewSQLiteBackend(filepath.Join(t.TempDir(), "aitask.db"))
			require.NoError(t, err)
			t.Cleanup(func() { backend.Close() })
			return backend
		},
	}

	for name, newBackend := range backends {
		t.Run(name, func(t *testing.T) {
			haServer := startHA(t)
			backend := newBackend(t)

			first := startEnv(t, haServer, backend, mockEntityConfig())
			status, _ := first.post(t, "/api/ai_task/preferences", map[string]any{
				"gen_data_entity_id":  "ai_task.test_task_entity",
				"gen_image_entity_id": "ai_task.test_image_entity",
			})
			require.Equal(t, http.StatusOK, status)
			require.NoError(t, first.prefs.Flush(context.Background()))

			second := startEnv(t, haServer, backend, mockEntityConfig())
			assert.Equal(t, "ai_task.test_task_entity", second.prefs.GenDataEntityID())
			assert.Equal(t, "ai_task.test_image_entity", second.prefs.GenImageEntityID())
			assert.Equal(t, first.prefs.AsMap(), second.prefs.AsMap())

			status, body := second.post(t, "/api/services/ai_task/generate_data?return_response", map[string]any{
				"task_name":    "After restart",
				"instructions": "Test prompt",
			})
			require.Equal(t, http.StatusOK, status, body)
			assert.Len(t, staticEntity(t, second).Tasks(), 1)
		})
	}
}
