package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	a := NewBaseEvent(NodeExecutionStartedEvent, "wf-1")
	b := NewBaseEvent(NodeExecutionStartedEvent, "wf-1")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "wf-1", a.WorkflowID)
	assert.Equal(t, NodeExecutionStartedEvent, a.Type)
	assert.False(t, a.Timestamp.IsZero())
}

func TestEventJSONShape(t *testing.T) {
	event := NodeExecutionFailed{
		BaseEvent:   NewBaseEvent(NodeExecutionFailedEvent, "wf-1"),
		ExecutionID: "exec-1",
		NodeID:      "send",
		NodeType:    "send-text",
		Error:       "retcode 100",
		DurationMs:  12,
	}

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "node.execution.failed", decoded["type"])
	assert.Equal(t, "wf-1", decoded["workflow_id"])
	assert.Equal(t, "send", decoded["node_id"])
	assert.Equal(t, "retcode 100", decoded["error"])
	assert.Equal(t, NodeExecutionFailedEvent, event.GetType())
}
