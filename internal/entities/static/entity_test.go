package static

import (
	"context"
	"testing"

	"aitask/pkg/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistered(t *testing.T) {
	info := platform.Get(PlatformName)
	require.NotNil(t, info)
	assert.Equal(t, platform.PriorityDefault, info.Priority)
}

func TestCreateEntity(t *testing.T) {
	ctx := platform.NewContext(zap.NewNop(), nil, nil)

	entity, err := createEntity(ctx, platform.EntityConfig{ObjectID: "mock", Name: "Mock", Platform: PlatformName})
	require.NoError(t, err)
	assert.Equal(t, "ai_task.mock", entity.EntityID())
	assert.Equal(t, "Mock", entity.Name())
	assert.True(t, entity.SupportedFeatures().Has(platform.FeatureGenerateData|platform.FeatureSupportAttachments))

	result, err := entity.GenerateData(context.Background(), platform.GenDataTask{Name: "t", Instructions: "i"})
	require.NoError(t, err)
	assert.Equal(t, DefaultResult, result.Data)
}

func TestGenerateData_ConfiguredResult(t *testing.T) {
	entity, err := createEntity(nil, platform.EntityConfig{
		ObjectID: "counter",
		Options:  map[string]any{"result": map[string]any{"cars": 2}},
	})
	require.NoError(t, err)

	task := platform.GenDataTask{
		Name:         "Count cars",
		Instructions: "How many cars are in the driveway?",
		Attachments:  []platform.Attachment{{MediaContentID: "media-source://x/y.jpg", URL: "http://e/y.jpg", MIMEType: "image/jpeg"}},
	}
	result, err := entity.GenerateData(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"cars": 2}, result.Data)

	tasks := entity.(*Entity).Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, task, tasks[0])
}
