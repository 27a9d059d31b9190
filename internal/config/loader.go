package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"aitask/pkg/platform"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config is the aitask.yaml structure
type Config struct {
	Server        ServerConfig            `yaml:"server"`
	Storage       StorageConfig           `yaml:"storage"`
	Media         MediaConfig             `yaml:"media"`
	HomeAssistant HomeAssistantConfig     `yaml:"home_assistant"`
	Entities      []platform.EntityConfig `yaml:"entities"`
	// Preferences are applied at startup when no preference has been stored yet
	Preferences map[string]string `yaml:"preferences"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Port int `yaml:"port"`
}

// StorageConfig selects where preferences are persisted
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Dir    string `yaml:"dir"`
}

// MediaConfig configures the media sources attachments are resolved with
type MediaConfig struct {
	// PublicURL is the externally reachable base URL of this service,
	// used to build URLs for local media
	PublicURL   string            `yaml:"public_url"`
	Directories map[string]string `yaml:"directories"`
	S3          S3Config          `yaml:"s3"`
}

// S3Config configures the s3 media source. It is disabled when Bucket is empty.
type S3Config struct {
	Bucket    string        `yaml:"bucket"`
	Region    string        `yaml:"region"`
	Endpoint  string        `yaml:"endpoint"`
	PathStyle bool          `yaml:"path_style"`
	Expires   time.Duration `yaml:"expires"`
}

// HomeAssistantConfig enables resolving media through Home Assistant
type HomeAssistantConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Port: 8080},
		Storage: StorageConfig{Driver: DriverFile, Dir: "./data"},
		Media: MediaConfig{
			PublicURL:   "http://localhost:8080",
			Directories: map[string]string{},
		},
	}
}

// Loader reads the configuration file and applies environment overrides
type Loader struct {
	path   string
	getenv func(string) string
	logger *zap.Logger
	config *Config
}

// NewLoader creates a loader for the file at path
func NewLoader(path string, getenv func(string) string, logger *zap.Logger) *Loader {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Loader{
		path:   path,
		getenv: getenv,
		logger: logger,
	}
}

// Load reads the file, applies environment overrides and validates the result.
// A missing file is reported with an error wrapping fs.ErrNotExist; use
// LoadOrDefault to fall back to Default instead.
func (l *Loader) Load() error {
	l.logger.Debug("Loading config", zap.String("path", l.path))

	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	return l.finish(config)
}

// LoadOrDefault is Load, except a missing file yields Default plus
// environment overrides
func (l *Loader) LoadOrDefault() error {
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		l.logger.Warn("Config file not found, using defaults", zap.String("path", l.path))
		return l.finish(Default())
	}
	return l.Load()
}

func (l *Loader) finish(config *Config) error {
	if err := applyEnv(config, l.getenv); err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	l.config = config
	l.logger.Info("Config loaded",
		zap.Int("entities", len(config.Entities)),
		zap.String("storage_driver", config.Storage.Driver),
		zap.Int("media_directories", len(config.Media.Directories)))
	return nil
}

// GetConfig returns the loaded configuration
func (l *Loader) GetConfig() *Config {
	return l.config
}

// applyEnv overrides file values with AITASK_*, HA_* and related variables
func applyEnv(c *Config, getenv func(string) string) error {
	if v := getenv("AITASK_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid AITASK_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := getenv("AITASK_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := getenv("AITASK_STORAGE_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if v := getenv("AITASK_PUBLIC_URL"); v != "" {
		c.Media.PublicURL = v
	}
	if v := getenv("AITASK_MEDIA_DIR"); v != "" {
		if c.Media.Directories == nil {
			c.Media.Directories = map[string]string{}
		}
		c.Media.Directories["local"] = v
	}
	if v := getenv("AITASK_S3_BUCKET"); v != "" {
		c.Media.S3.Bucket = v
	}
	if v := getenv("AITASK_S3_REGION"); v != "" {
		c.Media.S3.Region = v
	}
	if v := getenv("AITASK_S3_ENDPOINT"); v != "" {
		c.Media.S3.Endpoint = v
	}
	if v := getenv("AITASK_S3_PATH_STYLE"); v != "" {
		pathStyle, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid AITASK_S3_PATH_STYLE %q: %w", v, err)
		}
		c.Media.S3.PathStyle = pathStyle
	}
	if v := getenv("HA_URL"); v != "" {
		c.HomeAssistant.URL = v
	}
	if v := getenv("HA_TOKEN"); v != "" {
		c.HomeAssistant.Token = v
	}
	return nil
}

// Validate checks the configuration for values the service cannot start with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Storage.Driver {
	case DriverFile, DriverSQLite:
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for driver %s", c.Storage.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	if (c.HomeAssistant.URL == "") != (c.HomeAssistant.Token == "") {
		return fmt.Errorf("home_assistant.url and home_assistant.token must be set together")
	}

	seen := make(map[string]bool, len(c.Entities))
	for i, entity := range c.Entities {
		if entity.ObjectID == "" {
			return fmt.Errorf("entities[%d]: object_id is required", i)
		}
		if entity.Platform == "" {
			return fmt.Errorf("entities[%d]: platform is required", i)
		}
		if seen[entity.ObjectID] {
			return fmt.Errorf("entities[%d]: duplicate object_id %q", i, entity.ObjectID)
		}
		seen[entity.ObjectID] = true
	}

	for key, value := range c.Preferences {
		if value == "" {
			continue
		}
		if err := platform.ValidateEntityID(value); err != nil {
			return fmt.Errorf("preferences.%s: %w", key, err)
		}
	}
	return nil
}
