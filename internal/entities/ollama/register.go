package ollama

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"aitask/pkg/platform"

	ollama "github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// PlatformName is the platform value entity configs use.
const PlatformName = "ollama"

const defaultHost = "http://localhost:11434"

func init() {
	platform.Register(platform.Info{
		Name:        PlatformName,
		Description: "Local models served by Ollama",
		Priority:    platform.PriorityDefault,
		Factory:     createEntity,
	})
}

// createEntity reads the model and host options. The host falls back to
// OLLAMA_HOST, then to the local default.
func createEntity(ctx *platform.Context, cfg platform.EntityConfig) (platform.Entity, error) {
	host := cfg.StringOption("host", "")
	if host == "" && ctx != nil && ctx.Getenv != nil {
		host = ctx.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = defaultHost
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	httpClient := &http.Client{Timeout: 120 * time.Second}
	logger := zap.NewNop()
	if ctx != nil {
		if ctx.HTTPClient != nil {
			httpClient = ctx.HTTPClient
		}
		if ctx.Logger != nil {
			logger = ctx.Logger.Named(cfg.EntityID())
		}
	}

	model := cfg.StringOption("model", DefaultModel)
	client := ollama.NewClient(u, httpClient)
	return New(cfg.EntityID(), cfg.DisplayName(), model, client, httpClient, logger), nil
}
