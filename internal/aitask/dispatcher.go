package aitask

import (
	"context"
	"fmt"

	"aitask/internal/mediasource"
	"aitask/internal/metrics"
	"aitask/pkg/platform"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher routes generation tasks to handling entities.
type Dispatcher struct {
	prefs    *Preferences
	entities *Entities
	resolver mediasource.Resolver
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher. resolver may be nil when no media
// sources are configured, in which case tasks with attachments fail.
func NewDispatcher(prefs *Preferences, entities *Entities, resolver mediasource.Resolver, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		prefs:    prefs,
		entities: entities,
		resolver: resolver,
		metrics:  m,
		logger:   logger.Named("dispatcher"),
	}
}

// GenerateData runs req on the requested entity, or on the preferred
// gen_data entity when req names none. Attachments are resolved in order
// before the entity is called; any failure aborts the task.
func (d *Dispatcher) GenerateData(ctx context.Context, req GenerateDataRequest) (platform.GenDataTaskResult, error) {
	if err := req.Validate(); err != nil {
		return platform.GenDataTaskResult{}, err
	}

	entityID := req.EntityID
	if entityID == "" {
		entityID = d.prefs.GenDataEntityID()
	}
	if entityID == "" {
		return platform.GenDataTaskResult{}, ErrNoEntity
	}

	entity, err := d.entities.Get(entityID)
	if err != nil {
		return platform.GenDataTaskResult{}, err
	}

	features := entity.SupportedFeatures()
	if !features.Has(platform.FeatureGenerateData) {
		return platform.GenDataTaskResult{}, fmt.Errorf("%s cannot generate data: %w", entityID, ErrNotSupported)
	}
	if len(req.Attachments) > 0 && !features.Has(platform.FeatureSupportAttachments) {
		return platform.GenDataTaskResult{}, fmt.Errorf("%s does not accept attachments: %w", entityID, ErrNotSupported)
	}

	attachments, err := d.resolveAttachments(ctx, req.Attachments)
	if err != nil {
		return platform.GenDataTaskResult{}, err
	}

	task := platform.GenDataTask{
		Name:         req.TaskName,
		Instructions: req.Instructions,
		Structure:    req.Structure,
		Attachments:  attachments,
	}

	d.logger.Debug("Dispatching task",
		zap.String("entity_id", entityID),
		zap.String("task_name", task.Name),
		zap.Int("attachments", len(attachments)))

	result, err := entity.GenerateData(ctx, task)
	d.metrics.ObserveEntityTask(entityID, err)
	if err != nil {
		return platform.GenDataTaskResult{}, fmt.Errorf("%s: %w", entityID, err)
	}

	if result.ConversationID == "" {
		result.ConversationID = uuid.NewString()
	}
	return result, nil
}

func (d *Dispatcher) resolveAttachments(ctx context.Context, refs []AttachmentRef) ([]platform.Attachment, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	if d.resolver == nil {
		return nil, fmt.Errorf("attachments given but no media resolver configured: %w", ErrNotSupported)
	}

	attachments := make([]platform.Attachment, 0, len(refs))
	for _, ref := range refs {
		media, err := d.resolver.ResolveMedia(ctx, ref.MediaContentID)
		if err != nil {
			return nil, fmt.Errorf("resolve attachment: %w", err)
		}
		attachments = append(attachments, platform.Attachment{
			MediaContentID: ref.MediaContentID,
			URL:            media.URL,
			MIMEType:       media.MimeType,
		})
	}
	return attachments, nil
}
