package switchnode

import (
	"context"
	"testing"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwitchNode_Execute(t *testing.T) {
	node, err := NewSwitchNode("sw", map[string]any{
		"value": "{cmd}",
		"cases": []any{
			map[string]any{"value": "help", "label": "show-help"},
			map[string]any{"value": "ping", "output_port": "pong"},
		},
	})
	require.NoError(t, err)

	tests := []struct {
		cmd       string
		wantKey   string
		wantMatch bool
	}{
		{"help", "show-help", true},
		{"ping", "pong", true},
		{"other", "other", false},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			nctx, _ := testutil.NewNodeContext("sw", models.NodeTypeSwitch, nil)

			result, err := node.Execute(context.Background(), nctx, map[string]any{"cmd": tt.cmd})
			require.NoError(t, err)
			require.True(t, result.Success)

			out := result.Output.(map[string]any)
			assert.Equal(t, tt.wantKey, out[models.OutputKeyBranchKey])
			assert.Equal(t, !tt.wantMatch, out["no_match"])
			assert.Equal(t, tt.cmd, out["cmd"])
		})
	}
}

func TestSwitchNode_ReadsGlobalState(t *testing.T) {
	node, err := NewSwitchNode("sw", map[string]any{"value": "{trigger.messageType}"})
	require.NoError(t, err)

	nctx, _ := testutil.NewNodeContext("sw", models.NodeTypeSwitch, map[string]any{
		"trigger": &models.ChatMessage{MessageType: models.MessageTypeGroup},
	})

	result, err := node.Execute(context.Background(), nctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "group", result.Output.(map[string]any)[models.OutputKeyBranchKey])
}

func TestNewSwitchNode_InvalidConfig(t *testing.T) {
	_, err := NewSwitchNode("sw", map[string]any{})
	require.Error(t, err)

	_, err = NewSwitchNode("sw", map[string]any{"value": "x", "cases": []any{"bad"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "case 0 must be an object")
}
