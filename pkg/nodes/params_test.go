package nodes

import (
	"testing"
	"time"

	"github.com/dukex/renflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamHelpers(t *testing.T) {
	params := map[string]any{
		"s":  "text",
		"n":  "12.5",
		"b":  "true",
		"ms": 1500.0,
	}

	assert.Equal(t, "text", String(params, "s", "x"))
	assert.Equal(t, "x", String(params, "missing", "x"))
	assert.Equal(t, 12.5, Number(params, "n", 0))
	assert.True(t, Bool(params, "b", false))
	assert.Equal(t, 1500*time.Millisecond, Millis(params, "ms", 0))
	assert.Equal(t, time.Second, Millis(params, "missing", time.Second))
}

func TestJSONObject(t *testing.T) {
	obj, err := JSONObject(map[string]any{"h": `{"a":"b"}`}, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "b"}, obj)

	obj, err = JSONObject(map[string]any{"h": ""}, "h")
	require.NoError(t, err)
	assert.Empty(t, obj)

	_, err = JSONObject(map[string]any{"h": "{nope"}, "h")
	require.Error(t, err)
}

func TestSchemaFor_SkipsSettings(t *testing.T) {
	schema := SchemaFor(models.NodeMetadata{Params: []models.ParamSpec{
		{Key: "settings", Type: models.ParamTypeSettings},
		{Key: "timeout", Type: "number", Default: 1000},
	}})

	props := schema["properties"].(map[string]any)
	assert.NotContains(t, props, "settings")
	assert.Contains(t, props, "timeout")
}

func TestTriggerMessage(t *testing.T) {
	msg := &models.ChatMessage{MessageID: "1"}
	nctx := &models.NodeContext{State: models.NewGlobalState(map[string]any{"trigger": msg})}

	got, err := TriggerMessage(nctx)
	require.NoError(t, err)
	assert.Same(t, msg, got)

	_, err = TriggerMessage(&models.NodeContext{State: models.NewGlobalState(nil)})
	require.ErrorIs(t, err, ErrNoMessage)

	_, err = Bot(nctx)
	require.ErrorIs(t, err, ErrNoBot)
}
