package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/testutil"
	"github.com/dukex/renflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinDelay(t *testing.T) {
	assert.Equal(t, workflow.NoDelay, minDelay(0))
	assert.Equal(t, workflow.NoDelay, minDelay(-time.Second))
	assert.Equal(t, 250*time.Millisecond, minDelay(250*time.Millisecond))
}

func TestParsePayload(t *testing.T) {
	assert.Nil(t, parsePayload(""))
	assert.Equal(t, map[string]any{"a": float64(1)}, parsePayload(`{"a":1}`))
	assert.Equal(t, "hello world", parsePayload("hello world"))
}

func TestParseBotTokens(t *testing.T) {
	tokens, err := parseBotTokens([]string{"qq=abc", "alt=x=y", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"qq": "abc", "alt": "x=y", "empty": ""}, tokens)

	_, err = parseBotTokens([]string{"missing-separator"})
	require.Error(t, err)

	_, err = parseBotTokens([]string{"=token"})
	require.Error(t, err)
}

func TestPickWorkflow(t *testing.T) {
	a := testutil.CreateTestWorkflow("n")
	a.ID = "a"
	b := testutil.CreateTestWorkflow("n")
	b.ID = "b"

	wf, err := pickWorkflow([]*models.CompiledWorkflow{a, b}, "")
	require.NoError(t, err)
	assert.Same(t, a, wf)

	wf, err = pickWorkflow([]*models.CompiledWorkflow{a, b}, "b")
	require.NoError(t, err)
	assert.Same(t, b, wf)

	_, err = pickWorkflow([]*models.CompiledWorkflow{a}, "c")
	require.ErrorIs(t, err, workflow.ErrWorkflowNotFound)

	_, err = pickWorkflow(nil, "")
	require.ErrorIs(t, err, errNoWorkflows)
}

func TestReport(t *testing.T) {
	good := testutil.CreateTestWorkflow("a", testutil.CompiledNode("a", "note", nil))
	good.ID = "good"

	bad := testutil.CreateTestWorkflow("a", testutil.CompiledNode("a", "note", nil, "ghost"))
	bad.ID = "bad"

	var out bytes.Buffer

	invalid := report(&out, []*models.CompiledWorkflow{good, bad})

	assert.Equal(t, 1, invalid)
	assert.Contains(t, out.String(), "✓ good (1 nodes, entry a)")
	assert.Contains(t, out.String(), "✗ bad")
	assert.Contains(t, out.String(), "- node a references missing node: ghost")
}

func TestPrintNodes(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, printNodes(&out, []models.NodeMetadata{
		{ID: "send-text", Category: "bot", Name: "Send Text", Description: "Sends text"},
	}))

	assert.Contains(t, out.String(), "ID")
	assert.Contains(t, out.String(), "send-text")
	assert.Contains(t, out.String(), "Send Text")
}

func TestPrintableState(t *testing.T) {
	result := &models.RunResult{FinalState: map[string]any{
		"bot":        struct{}{},
		"connectors": struct{}{},
		"trigger":    "x",
	}}

	assert.Equal(t, map[string]any{"trigger": "x"}, printableState(result))
	assert.Len(t, result.FinalState, 3)
}
