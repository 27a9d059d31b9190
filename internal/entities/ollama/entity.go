// Package ollama provides a handling entity backed by a local Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"aitask/internal/entities"
	"aitask/pkg/platform"

	ollama "github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// DefaultModel is used when the entity config names no model.
const DefaultModel = "llama3.2"

type generateClient interface {
	Generate(ctx context.Context, req *ollama.GenerateRequest, fn ollama.GenerateResponseFunc) error
}

// Entity answers tasks with a single non-streamed generate call. Image
// attachments are downloaded and sent inline.
type Entity struct {
	id         string
	name       string
	model      string
	client     generateClient
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates an entity. httpClient is used to download attachments.
func New(id, name, model string, client *ollama.Client, httpClient *http.Client, logger *zap.Logger) *Entity {
	return &Entity{
		id:         id,
		name:       name,
		model:      model,
		client:     client,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (e *Entity) EntityID() string { return e.id }
func (e *Entity) Name() string     { return e.name }

func (e *Entity) SupportedFeatures() platform.Feature {
	return platform.FeatureGenerateData | platform.FeatureSupportAttachments
}

// GenerateData runs the task through /api/generate.
func (e *Entity) GenerateData(ctx context.Context, task platform.GenDataTask) (platform.GenDataTaskResult, error) {
	stream := false
	req := &ollama.GenerateRequest{
		Model:  e.model,
		System: entities.SystemPrompt(task),
		Prompt: entities.UserPrompt(task, entities.IsImage),
		Stream: &stream,
	}
	if task.Structure != nil {
		req.Format = json.RawMessage(`"json"`)
	}

	for _, att := range task.Attachments {
		if !entities.IsImage(att) {
			continue
		}
		data, err := entities.Download(ctx, e.httpClient, att.URL)
		if err != nil {
			return platform.GenDataTaskResult{}, fmt.Errorf("attachment %s: %w", att.MediaContentID, err)
		}
		req.Images = append(req.Images, ollama.ImageData(data))
	}

	var text strings.Builder
	var last ollama.GenerateResponse
	if err := e.client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		text.WriteString(gr.Response)
		last = gr
		return nil
	}); err != nil {
		return platform.GenDataTaskResult{}, fmt.Errorf("ollama generate: %w", err)
	}

	e.logger.Debug("Generate finished",
		zap.String("model", e.model),
		zap.Bool("done", last.Done),
		zap.String("done_reason", last.DoneReason),
		zap.Int("images", len(req.Images)))

	data, err := entities.ParseResult(text.String(), task.Structure)
	if err != nil {
		return platform.GenDataTaskResult{}, err
	}
	return platform.GenDataTaskResult{Data: data}, nil
}
