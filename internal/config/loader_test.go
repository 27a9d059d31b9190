package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"aitask/pkg/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func noEnv(string) string { return "" }

func entityConfig(objectID, platformName string) platform.EntityConfig {
	return platform.EntityConfig{ObjectID: objectID, Platform: platformName}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aitask.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_Load(t *testing.T) {
	path := writeConfig(t, `server:
  port: 9090
storage:
  driver: sqlite
  dir: /var/lib/aitask
media:
  public_url: http://aitask.lan:9090
  directories:
    camera: /srv/camera
  s3:
    bucket: snapshots
    region: eu-west-1
    expires: 5m
entities:
  - object_id: mock
    name: Mock Entity
    platform: static
    options:
      result: Mock result
  - object_id: gpt
    platform: openai
    options:
      model: gpt-4o-mini
preferences:
  gen_data_entity_id: ai_task.gpt
`)

	loader := NewLoader(path, noEnv, zap.NewNop())
	require.NoError(t, loader.Load())

	config := loader.GetConfig()
	require.NotNil(t, config)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, DriverSQLite, config.Storage.Driver)
	assert.Equal(t, "/var/lib/aitask", config.Storage.Dir)
	assert.Equal(t, "http://aitask.lan:9090", config.Media.PublicURL)
	assert.Equal(t, map[string]string{"camera": "/srv/camera"}, config.Media.Directories)
	assert.Equal(t, "snapshots", config.Media.S3.Bucket)
	assert.Equal(t, 5*time.Minute, config.Media.S3.Expires)

	require.Len(t, config.Entities, 2)
	assert.Equal(t, "ai_task.mock", config.Entities[0].EntityID())
	assert.Equal(t, "Mock Entity", config.Entities[0].DisplayName())
	assert.Equal(t, "Mock result", config.Entities[0].Options["result"])
	assert.Equal(t, "gpt-4o-mini", config.Entities[1].StringOption("model", ""))
	assert.Equal(t, "ai_task.gpt", config.Preferences["gen_data_entity_id"])
}

func TestLoader_DefaultsForOmittedSections(t *testing.T) {
	path := writeConfig(t, "entities: []\n")

	loader := NewLoader(path, noEnv, zap.NewNop())
	require.NoError(t, loader.Load())

	config := loader.GetConfig()
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, DriverFile, config.Storage.Driver)
	assert.Equal(t, "./data", config.Storage.Dir)
}

func TestLoader_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	loader := NewLoader(path, noEnv, zap.NewNop())
	err := loader.Load()
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	require.NoError(t, loader.LoadOrDefault())
	assert.Equal(t, Default(), loader.GetConfig())
}

func TestLoader_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: file\n  dir: ./data\n")
	env := map[string]string{
		"AITASK_PORT":           "7000",
		"AITASK_STORAGE_DRIVER": "sqlite",
		"AITASK_STORAGE_DIR":    "/data",
		"AITASK_PUBLIC_URL":     "https://aitask.example.com",
		"AITASK_MEDIA_DIR":      "/media",
		"AITASK_S3_BUCKET":      "bucket",
		"AITASK_S3_REGION":      "us-west-2",
		"AITASK_S3_ENDPOINT":    "http://minio:9000",
		"AITASK_S3_PATH_STYLE":  "true",
		"HA_URL":                "ws://homeassistant.local:8123/api/websocket",
		"HA_TOKEN":              "token",
	}

	loader := NewLoader(path, func(key string) string { return env[key] }, zap.NewNop())
	require.NoError(t, loader.Load())

	config := loader.GetConfig()
	assert.Equal(t, 7000, config.Server.Port)
	assert.Equal(t, DriverSQLite, config.Storage.Driver)
	assert.Equal(t, "/data", config.Storage.Dir)
	assert.Equal(t, "https://aitask.example.com", config.Media.PublicURL)
	assert.Equal(t, "/media", config.Media.Directories["local"])
	assert.Equal(t, S3Config{Bucket: "bucket", Region: "us-west-2", Endpoint: "http://minio:9000", PathStyle: true}, config.Media.S3)
	assert.Equal(t, "token", config.HomeAssistant.Token)
}

func TestLoader_InvalidEnv(t *testing.T) {
	path := writeConfig(t, "")

	for _, key := range []string{"AITASK_PORT", "AITASK_S3_PATH_STYLE"} {
		t.Run(key, func(t *testing.T) {
			loader := NewLoader(path, func(k string) string {
				if k == key {
					return "not-a-value"
				}
				return ""
			}, zap.NewNop())
			assert.ErrorContains(t, loader.Load(), key)
		})
	}
}

func TestLoader_ParseError(t *testing.T) {
	path := writeConfig(t, "entities: [unterminated\n")

	loader := NewLoader(path, noEnv, zap.NewNop())
	assert.ErrorContains(t, loader.Load(), "failed to parse config")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		errContains string
	}{
		{"valid default", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "redis" }, "unknown storage.driver"},
		{"missing dir", func(c *Config) { c.Storage.Dir = "" }, "storage.dir"},
		{"memory needs no dir", func(c *Config) { c.Storage = StorageConfig{Driver: DriverMemory} }, ""},
		{"ha url without token", func(c *Config) { c.HomeAssistant.URL = "ws://ha" }, "must be set together"},
		{"entity without object id", func(c *Config) {
			c.Entities = append(c.Entities, entityConfig("", "static"))
		}, "object_id is required"},
		{"entity without platform", func(c *Config) {
			c.Entities = append(c.Entities, entityConfig("mock", ""))
		}, "platform is required"},
		{"duplicate entity", func(c *Config) {
			c.Entities = append(c.Entities, entityConfig("mock", "static"), entityConfig("mock", "openai"))
		}, "duplicate object_id"},
		{"bad preference", func(c *Config) {
			c.Preferences = map[string]string{"gen_data_entity_id": "light.kitchen"}
		}, "preferences.gen_data_entity_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)

			err := config.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errContains)
		})
	}
}
