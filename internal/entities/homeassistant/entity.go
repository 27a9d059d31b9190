// Package homeassistant provides a handling entity that forwards tasks to an
// ai_task entity of a connected Home Assistant instance.
//
// Attachments are forwarded by media content id, so only ids the remote
// instance can resolve work. Ids in a media-source domain served by this
// process (local directories, S3) are rejected before the call.
package homeassistant

import (
	"context"
	"fmt"

	"aitask/internal/aitask"
	"aitask/internal/mediasource"
	"aitask/pkg/ha"
	"aitask/pkg/platform"

	"go.uber.org/zap"
)

// Entity calls ai_task.generate_data on the remote instance. Attachments
// are forwarded by media content id so the remote side resolves them itself.
type Entity struct {
	id           string
	name         string
	remoteID     string
	client       ha.Client
	localDomains map[string]bool
	logger       *zap.Logger
}

// New creates an entity forwarding to remoteID. localDomains are the
// media-source domains the remote instance cannot resolve.
func New(id, name, remoteID string, client ha.Client, localDomains []string, logger *zap.Logger) *Entity {
	local := make(map[string]bool, len(localDomains))
	for _, d := range localDomains {
		local[d] = true
	}
	return &Entity{id: id, name: name, remoteID: remoteID, client: client, localDomains: local, logger: logger}
}

func (e *Entity) EntityID() string { return e.id }
func (e *Entity) Name() string     { return e.name }

func (e *Entity) SupportedFeatures() platform.Feature {
	return platform.FeatureGenerateData | platform.FeatureSupportAttachments
}

// GenerateData forwards the task and returns the remote response.
func (e *Entity) GenerateData(ctx context.Context, task platform.GenDataTask) (platform.GenDataTaskResult, error) {
	if !e.client.IsConnected() {
		return platform.GenDataTaskResult{}, fmt.Errorf("home assistant not connected")
	}

	data := map[string]interface{}{
		"task_name":    task.Name,
		"instructions": task.Instructions,
		"entity_id":    e.remoteID,
	}
	if task.Structure != nil {
		data["structure"] = task.Structure
	}
	if len(task.Attachments) > 0 {
		for _, att := range task.Attachments {
			if err := e.checkForwardable(att.MediaContentID); err != nil {
				return platform.GenDataTaskResult{}, err
			}
		}
		attachments := make([]map[string]interface{}, 0, len(task.Attachments))
		for _, att := range task.Attachments {
			attachments = append(attachments, map[string]interface{}{
				"media_content_id":   att.MediaContentID,
				"media_content_type": att.MIMEType,
			})
		}
		data["attachments"] = attachments
	}

	resp, err := e.client.CallService(ctx, platform.Domain, "generate_data", data, true)
	if err != nil {
		return platform.GenDataTaskResult{}, fmt.Errorf("remote generate_data on %s: %w", e.remoteID, err)
	}

	e.logger.Debug("Remote task finished", zap.String("remote_entity_id", e.remoteID))

	conversationID, _ := resp["conversation_id"].(string)
	return platform.GenDataTaskResult{ConversationID: conversationID, Data: resp["data"]}, nil
}

// checkForwardable rejects media ids only this process can resolve
func (e *Entity) checkForwardable(mediaContentID string) error {
	item, err := mediasource.ParseID(mediaContentID)
	if err != nil {
		return err
	}
	if e.localDomains[item.Domain] {
		return fmt.Errorf("%s is served locally and cannot be forwarded to %s: %w",
			mediaContentID, e.remoteID, aitask.ErrNotSupported)
	}
	return nil
}
