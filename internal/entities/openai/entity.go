// Package openai provides a handling entity backed by the OpenAI chat
// completions API.
package openai

import (
	"context"
	"errors"
	"fmt"

	"aitask/internal/entities"
	"aitask/pkg/platform"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultModel is used when the entity config names no model.
const DefaultModel = "gpt-4o-mini"

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Entity answers tasks with a chat completion. Image attachments are passed
// to the model by URL; other attachments are listed in the prompt.
type Entity struct {
	id     string
	name   string
	model  string
	client chatClient
	logger *zap.Logger
}

// New creates an entity using client.
func New(id, name, model string, client *openai.Client, logger *zap.Logger) *Entity {
	return &Entity{id: id, name: name, model: model, client: client, logger: logger}
}

func (e *Entity) EntityID() string { return e.id }
func (e *Entity) Name() string     { return e.name }

func (e *Entity) SupportedFeatures() platform.Feature {
	return platform.FeatureGenerateData | platform.FeatureSupportAttachments
}

// GenerateData sends the task as a single chat turn.
func (e *Entity) GenerateData(ctx context.Context, task platform.GenDataTask) (platform.GenDataTaskResult, error) {
	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: entities.SystemPrompt(task)},
			userMessage(task),
		},
	}
	if task.Structure != nil {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return platform.GenDataTaskResult{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return platform.GenDataTaskResult{}, errors.New("no response from OpenAI")
	}

	e.logger.Debug("Chat completion finished",
		zap.String("model", resp.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	data, err := entities.ParseResult(resp.Choices[0].Message.Content, task.Structure)
	if err != nil {
		return platform.GenDataTaskResult{}, err
	}
	return platform.GenDataTaskResult{ConversationID: resp.ID, Data: data}, nil
}

func userMessage(task platform.GenDataTask) openai.ChatCompletionMessage {
	text := entities.UserPrompt(task, entities.IsImage)

	var images []openai.ChatMessagePart
	for _, att := range task.Attachments {
		if !entities.IsImage(att) {
			continue
		}
		images = append(images, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    att.URL,
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	if len(images) == 0 {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text}
	}

	parts := append([]openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: text,
	}}, images...)
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts}
}
