package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"aitask/pkg/platform"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeOpenAI serves /v1/chat/completions with a fixed reply and keeps the
// last request.
type fakeOpenAI struct {
	server  *httptest.Server
	reply   string
	lastReq openai.ChatCompletionRequest
}

func newFakeOpenAI(t *testing.T, reply string) *fakeOpenAI {
	t.Helper()
	f := &fakeOpenAI{reply: reply}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&f.lastReq); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:    "chatcmpl-123",
			Model: f.lastReq.Model,
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply},
			}},
		})
	}))
	t.Cleanup(f.server.Close)
	return f
}

func newTestEntity(t *testing.T, f *fakeOpenAI) platform.Entity {
	t.Helper()
	ctx := platform.NewContext(zap.NewNop(), f.server.Client(), func(string) string { return "" })
	entity, err := createEntity(ctx, platform.EntityConfig{
		ObjectID: "gpt",
		Platform: PlatformName,
		Options: map[string]any{
			"api_key":  "sk-test",
			"base_url": f.server.URL + "/v1",
		},
	})
	require.NoError(t, err)
	return entity
}

func TestCreateEntity_RequiresAPIKey(t *testing.T) {
	ctx := platform.NewContext(zap.NewNop(), nil, func(string) string { return "" })
	_, err := createEntity(ctx, platform.EntityConfig{ObjectID: "gpt", Platform: PlatformName})
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	ctx.Getenv = func(key string) string {
		if key == "OPENAI_API_KEY" {
			return "sk-env"
		}
		return ""
	}
	entity, err := createEntity(ctx, platform.EntityConfig{ObjectID: "gpt", Platform: PlatformName})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, entity.(*Entity).model)
}

func TestGenerateData_Text(t *testing.T) {
	f := newFakeOpenAI(t, "Two cars are parked.")
	entity := newTestEntity(t, f)

	result, err := entity.GenerateData(context.Background(), platform.GenDataTask{
		Name:         "Driveway",
		Instructions: "What is in the driveway?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Two cars are parked.", result.Data)
	assert.Equal(t, "chatcmpl-123", result.ConversationID)

	require.Len(t, f.lastReq.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, f.lastReq.Messages[0].Role)
	assert.Equal(t, "What is in the driveway?", f.lastReq.Messages[1].Content)
	assert.Nil(t, f.lastReq.ResponseFormat)
	assert.Equal(t, DefaultModel, f.lastReq.Model)
}

func TestGenerateData_StructuredWithImage(t *testing.T) {
	f := newFakeOpenAI(t, `{"cars": 2}`)
	entity := newTestEntity(t, f)

	result, err := entity.GenerateData(context.Background(), platform.GenDataTask{
		Name:         "Count cars",
		Instructions: "Count the cars",
		Structure:    map[string]any{"cars": map[string]any{"required": true}},
		Attachments: []platform.Attachment{
			{MediaContentID: "media-source://camera/driveway.jpg", URL: "http://example.com/driveway.jpg", MIMEType: "image/jpeg"},
			{MediaContentID: "media-source://camera/clip.mp4", URL: "http://example.com/clip.mp4", MIMEType: "video/mp4"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"cars": float64(2)}, result.Data)

	require.NotNil(t, f.lastReq.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, f.lastReq.ResponseFormat.Type)

	user := f.lastReq.Messages[1]
	require.Len(t, user.MultiContent, 2)
	assert.Contains(t, user.MultiContent[0].Text, "http://example.com/clip.mp4")
	require.NotNil(t, user.MultiContent[1].ImageURL)
	assert.Equal(t, "http://example.com/driveway.jpg", user.MultiContent[1].ImageURL.URL)
}

func TestGenerateData_InvalidStructuredReply(t *testing.T) {
	f := newFakeOpenAI(t, "not json")
	entity := newTestEntity(t, f)

	_, err := entity.GenerateData(context.Background(), platform.GenDataTask{
		Name:         "Count cars",
		Instructions: "Count the cars",
		Structure:    map[string]any{"cars": map[string]any{}},
	})
	assert.ErrorContains(t, err, "not valid JSON")
}
