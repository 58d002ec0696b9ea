package command

import (
	"context"
	"testing"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandNode_ParsesTriggerMessage(t *testing.T) {
	node, err := NewCommandNode("cmd", map[string]any{})
	require.NoError(t, err)

	nctx, _ := testutil.NewNodeContext("cmd", NodeType, map[string]any{
		models.GlobalKeyTrigger: &models.ChatMessage{RawMessage: `roll -n 2 --sides=6 "big dice"`},
	})

	result, err := node.Execute(context.Background(), nctx, nil)
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	data := result.Output.(map[string]any)["data"].(map[string]any)
	assert.Equal(t, []string{"roll", "big dice"}, data["_"])
	assert.Equal(t, 2.0, data["n"])
	assert.Equal(t, 6.0, data["sides"])
}

func TestCommandNode_TemplatedFromInput(t *testing.T) {
	node, err := NewCommandNode("cmd", map[string]any{"text": "echo {word}"})
	require.NoError(t, err)

	nctx, _ := testutil.NewNodeContext("cmd", NodeType, nil)

	result, err := node.Execute(context.Background(), nctx, map[string]any{"word": "hi"})
	require.NoError(t, err)

	data := result.Output.(map[string]any)["data"].(map[string]any)
	assert.Equal(t, []string{"echo", "hi"}, data["_"])
}

func TestCommandNode_UnterminatedQuote(t *testing.T) {
	node, err := NewCommandNode("cmd", map[string]any{"text": `say "oops`})
	require.NoError(t, err)

	nctx, _ := testutil.NewNodeContext("cmd", NodeType, nil)

	result, err := node.Execute(context.Background(), nctx, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "tokenize")
}
