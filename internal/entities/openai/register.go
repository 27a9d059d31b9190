package openai

import (
	"fmt"

	"aitask/pkg/platform"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// PlatformName is the platform value entity configs use.
const PlatformName = "openai"

func init() {
	platform.Register(platform.Info{
		Name:        PlatformName,
		Description: "OpenAI chat completions",
		Priority:    platform.PriorityDefault,
		Factory:     createEntity,
	})
}

// createEntity reads the model, api_key and base_url options. The API key
// falls back to OPENAI_API_KEY.
func createEntity(ctx *platform.Context, cfg platform.EntityConfig) (platform.Entity, error) {
	apiKey := cfg.StringOption("api_key", "")
	if apiKey == "" && ctx != nil && ctx.Getenv != nil {
		apiKey = ctx.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai entity %s: no api_key option and OPENAI_API_KEY unset", cfg.EntityID())
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL := cfg.StringOption("base_url", ""); baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	logger := zap.NewNop()
	if ctx != nil {
		if ctx.HTTPClient != nil {
			clientCfg.HTTPClient = ctx.HTTPClient
		}
		if ctx.Logger != nil {
			logger = ctx.Logger.Named(cfg.EntityID())
		}
	}

	model := cfg.StringOption("model", DefaultModel)
	return New(cfg.EntityID(), cfg.DisplayName(), model, openai.NewClientWithConfig(clientCfg), logger), nil
}
