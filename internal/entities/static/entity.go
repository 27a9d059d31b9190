// Package static provides a handling entity that answers every task with a
// configured result. It is useful for testing automations without a model.
package static

import (
	"context"
	"sync"

	"aitask/pkg/platform"

	"go.uber.org/zap"
)

// DefaultResult is returned when the config sets no result option.
const DefaultResult = "Mock result"

// Entity returns a fixed result and keeps every task it receives.
type Entity struct {
	id       string
	name     string
	result   any
	features platform.Feature
	logger   *zap.Logger

	mu    sync.Mutex
	tasks []platform.GenDataTask
}

// New creates a static entity.
func New(id, name string, result any, logger *zap.Logger) *Entity {
	return &Entity{
		id:       id,
		name:     name,
		result:   result,
		features: platform.FeatureGenerateData | platform.FeatureSupportAttachments,
		logger:   logger,
	}
}

func (e *Entity) EntityID() string                    { return e.id }
func (e *Entity) Name() string                        { return e.name }
func (e *Entity) SupportedFeatures() platform.Feature { return e.features }

// GenerateData records the task and returns the configured result.
func (e *Entity) GenerateData(ctx context.Context, task platform.GenDataTask) (platform.GenDataTaskResult, error) {
	e.mu.Lock()
	e.tasks = append(e.tasks, task)
	e.mu.Unlock()

	e.logger.Debug("Static task answered",
		zap.String("task_name", task.Name),
		zap.Int("attachments", len(task.Attachments)))

	return platform.GenDataTaskResult{Data: e.result}, nil
}

// Tasks returns the tasks received so far.
func (e *Entity) Tasks() []platform.GenDataTask {
	e.mu.Lock()
	defer e.mu.Unlock()

	tasks := make([]platform.GenDataTask, len(e.tasks))
	copy(tasks, e.tasks)
	return tasks
}
