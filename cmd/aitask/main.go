package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"aitask/internal/aitask"
	"aitask/internal/api"
	"aitask/internal/config"
	"aitask/internal/ha"
	"aitask/internal/mediasource"
	"aitask/internal/metrics"
	"aitask/internal/service"
	"aitask/internal/storage"
	pkgha "aitask/pkg/ha"
	"aitask/pkg/platform"

	// Register entity platforms
	_ "aitask/internal/entities/homeassistant"
	_ "aitask/internal/entities/ollama"
	_ "aitask/internal/entities/openai"
	_ "aitask/internal/entities/static"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables before the logger so LOG_LEVEL applies
	envErr := godotenv.Load()

	logger, err := newLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Warn("No .env file found, using environment variables")
	}

	configPath := os.Getenv("AITASK_CONFIG")
	if configPath == "" {
		configPath = "aitask.yaml"
	}
	loader := config.NewLoader(configPath, os.Getenv, logger)
	if err := loader.LoadOrDefault(); err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	cfg := loader.GetConfig()

	logger.Info("Starting AI Task service",
		zap.String("config", configPath),
		zap.Int("port", cfg.Server.Port),
		zap.Strings("platforms", platform.Names()))

	ctx := context.Background()
	m := metrics.New()

	// Storage
	backend, closeBackend, err := openBackend(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer closeBackend()

	store := storage.NewStore(backend, aitask.StorageKey, aitask.StorageVersion,
		storage.WithLogger(logger.Named("storage")))
	prefs := aitask.NewPreferences(store, logger)
	if err := prefs.Load(ctx); err != nil {
		logger.Fatal("Failed to load preferences", zap.Error(err))
	}
	if err := applyInitialPreferences(prefs, cfg.Preferences); err != nil {
		logger.Fatal("Failed to apply configured preferences", zap.Error(err))
	}

	// Media sources
	router := mediasource.NewRouter(logger, m)
	var local *mediasource.LocalSource
	if len(cfg.Media.Directories) > 0 {
		local = mediasource.NewLocalSource(cfg.Media.Directories, cfg.Media.PublicURL)
		if err := router.Register(mediasource.LocalDomain, local); err != nil {
			logger.Fatal("Failed to register local media", zap.Error(err))
		}
	}

	if cfg.Media.S3.Bucket != "" {
		s3Source, err := mediasource.NewS3Source(ctx, mediasource.S3Config{
			Bucket:    cfg.Media.S3.Bucket,
			Region:    cfg.Media.S3.Region,
			Endpoint:  cfg.Media.S3.Endpoint,
			PathStyle: cfg.Media.S3.PathStyle,
			Expires:   cfg.Media.S3.Expires,
		})
		if err != nil {
			logger.Fatal("Failed to create S3 media source", zap.Error(err))
		}
		if err := router.Register(mediasource.S3Domain, s3Source); err != nil {
			logger.Fatal("Failed to register S3 media", zap.Error(err))
		}
	}

	var haClient *ha.Client
	if cfg.HomeAssistant.URL != "" {
		haClient = ha.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, logger.Named("ha"))
		if err := haClient.Connect(); err != nil {
			logger.Fatal("Failed to connect to Home Assistant", zap.Error(err))
		}
		defer haClient.Disconnect()

		// Everything not served locally is forwarded to Home Assistant
		router.SetFallback(mediasource.NewHomeAssistantSource(haClient))
	}

	// Entities
	platformCtx := platform.NewContext(logger.Named("entities"), &http.Client{Timeout: 120 * time.Second}, os.Getenv)
	if haClient != nil {
		platformCtx.HomeAssistant = pkgha.WrapClient(haClient)
	}
	platformCtx.LocalMediaDomains = router.Domains()
	created, err := platform.CreateAll(platformCtx, cfg.Entities)
	if err != nil {
		logger.Fatal("Failed to create entities", zap.Error(err))
	}
	entities, err := aitask.NewEntities(created...)
	if err != nil {
		logger.Fatal("Failed to register entities", zap.Error(err))
	}
	for _, entity := range entities.List() {
		logger.Info("Entity ready",
			zap.String("entity_id", entity.EntityID()),
			zap.String("name", entity.Name()))
	}

	// Services
	services := service.NewRegistry(logger, m)
	dispatcher := aitask.NewDispatcher(prefs, entities, router, m, logger)
	if err := aitask.RegisterServices(services, dispatcher, prefs); err != nil {
		logger.Fatal("Failed to register services", zap.Error(err))
	}

	server := api.NewServer(api.Options{
		Services:    services,
		Preferences: prefs,
		Entities:    entities,
		Media:       local,
		Metrics:     m,
	}, logger, cfg.Server.Port)
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start HTTP server", zap.Error(err))
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Application running. Press Ctrl+C to exit.")
	<-sigChan

	logger.Info("Shutting down gracefully...")

	if err := server.Stop(); err != nil {
		logger.Error("Failed to stop HTTP server", zap.Error(err))
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := prefs.Flush(flushCtx); err != nil {
		logger.Error("Failed to flush preferences", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}

// openBackend returns the configured storage backend and a close function
func openBackend(cfg config.StorageConfig) (storage.Backend, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create storage dir: %w", err)
		}
		backend, err := storage.NewSQLiteBackend(filepath.Join(cfg.Dir, "aitask.db"))
		if err != nil {
			return nil, nil, err
		}
		return backend, func() { backend.Close() }, nil
	case config.DriverMemory:
		return storage.NewMemoryBackend(), func() {}, nil
	default:
		backend, err := storage.NewFileBackend(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() {}, nil
	}
}

// applyInitialPreferences fills slots that are still unset from the config file
func applyInitialPreferences(prefs *aitask.Preferences, initial map[string]string) error {
	updates := make(map[string]*string)
	for key, value := range initial {
		if value == "" || prefs.Get(key) != nil {
			continue
		}
		v := value
		updates[key] = &v
	}
	if len(updates) == 0 {
		return nil
	}
	return prefs.SetPreferences(updates)
}
