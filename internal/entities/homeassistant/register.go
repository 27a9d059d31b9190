package homeassistant

import (
	"fmt"

	"aitask/pkg/platform"

	"go.uber.org/zap"
)

// PlatformName is the platform value entity configs use.
const PlatformName = "homeassistant"

func init() {
	platform.Register(platform.Info{
		Name:        PlatformName,
		Description: "Forwards tasks to an ai_task entity in Home Assistant",
		Priority:    platform.PriorityDefault,
		Factory:     createEntity,
	})
}

// createEntity requires the remote_entity_id option and a connected
// Home Assistant instance.
func createEntity(ctx *platform.Context, cfg platform.EntityConfig) (platform.Entity, error) {
	remoteID := cfg.StringOption("remote_entity_id", "")
	if err := platform.ValidateEntityID(remoteID); err != nil {
		return nil, fmt.Errorf("remote_entity_id: %w", err)
	}
	if ctx == nil || ctx.HomeAssistant == nil {
		return nil, fmt.Errorf("platform %s requires home_assistant to be configured", PlatformName)
	}

	logger := zap.NewNop()
	if ctx.Logger != nil {
		logger = ctx.Logger.Named(cfg.EntityID())
	}
	return New(cfg.EntityID(), cfg.DisplayName(), remoteID, ctx.HomeAssistant, ctx.LocalMediaDomains, logger), nil
}
