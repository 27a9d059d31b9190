package static

import (
	"aitask/pkg/platform"

	"go.uber.org/zap"
)

// PlatformName is the platform value entity configs use.
const PlatformName = "static"

func init() {
	platform.Register(platform.Info{
		Name:        PlatformName,
		Description: "Answers every task with a configured result",
		Priority:    platform.PriorityDefault,
		Factory:     createEntity,
	})
}

// createEntity builds a static entity. The "result" option may be any value.
func createEntity(ctx *platform.Context, cfg platform.EntityConfig) (platform.Entity, error) {
	result, ok := cfg.Options["result"]
	if !ok {
		result = DefaultResult
	}

	logger := zap.NewNop()
	if ctx != nil && ctx.Logger != nil {
		logger = ctx.Logger.Named(cfg.EntityID())
	}
	return New(cfg.EntityID(), cfg.DisplayName(), result, logger), nil
}
