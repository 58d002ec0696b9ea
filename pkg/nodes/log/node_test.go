package log

import (
	"context"
	"testing"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/testutil"
)

func TestLogNode_Execute_RendersInput(t *testing.T) {
	node, err := NewLogNode("test-log", map[string]any{
		"message":  "Processing user: {user.name}",
		"logLevel": "log",
	})
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	nctx, rec := testutil.NewNodeContext("test-log", NodeType, nil)

	result, err := node.Execute(context.Background(), nctx, map[string]any{
		"user": map[string]any{"name": "john_doe"},
	})
	if err != nil {
		t.Fatalf("Node execution failed: %v", err)
	}

	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.Error)
	}

	output := result.Output.(map[string]any)
	if output["logs"] != "Processing user: john_doe" {
		t.Errorf("Expected 'Processing user: john_doe', got: %v", output["logs"])
	}

	if len(rec.Entries) != 1 {
		t.Fatalf("Expected one log entry, got %d", len(rec.Entries))
	}

	if rec.Entries[0].Level != models.LogLevelLog {
		t.Errorf("Expected level 'log', got: %s", rec.Entries[0].Level)
	}
}

func TestLogNode_Execute_MissingFieldIsEmpty(t *testing.T) {
	node, err := NewLogNode("test-log", map[string]any{"message": "value=[{nope}]"})
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	nctx, _ := testutil.NewNodeContext("test-log", NodeType, nil)

	result, _ := node.Execute(context.Background(), nctx, map[string]any{})

	if got := result.Output.(map[string]any)["logs"]; got != "value=[]" {
		t.Errorf("Expected 'value=[]', got: %v", got)
	}
}

func TestLogNode_Execute_IncludeInputAndWarn(t *testing.T) {
	node, err := NewLogNode("test-log", map[string]any{
		"message":      "ping",
		"logLevel":     "warn",
		"includeInput": true,
	})
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	nctx, rec := testutil.NewNodeContext("test-log", NodeType, nil)

	if _, err := node.Execute(context.Background(), nctx, map[string]any{"ping": true}); err != nil {
		t.Fatalf("Node execution failed: %v", err)
	}

	if rec.Entries[0].Message != `ping | input: {"ping":true}` {
		t.Errorf("Unexpected message: %s", rec.Entries[0].Message)
	}

	if rec.Entries[0].Level != models.LogLevelWarn {
		t.Errorf("Expected level 'warn', got: %s", rec.Entries[0].Level)
	}
}

func TestNewLogNode_InvalidConfig(t *testing.T) {
	if _, err := NewLogNode("x", map[string]any{}); err == nil {
		t.Error("Expected error for missing message")
	}

	if _, err := NewLogNode("x", map[string]any{"message": "m", "logLevel": "debug"}); err == nil {
		t.Error("Expected error for invalid level")
	}
}
