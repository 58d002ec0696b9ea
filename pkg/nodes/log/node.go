// Package log provides the console-log node, which writes into the run log.
package log

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/template"
)

const NodeType = "console-log"

var logLevels = map[string]models.LogLevel{
	"log":   models.LogLevelLog,
	"warn":  models.LogLevelWarn,
	"error": models.LogLevelError,
}

// LogNode implements the Node interface for logging messages.
type LogNode struct {
	id           string
	message      string
	level        models.LogLevel
	includeInput bool
	logger       *slog.Logger
}

// NewLogNode creates a new logging node.
func NewLogNode(id string, config map[string]any) (*LogNode, error) {
	message, ok := config["message"].(string)
	if !ok {
		return nil, errors.New("missing required field 'message'")
	}

	levelName := nodes.String(config, "logLevel", "log")

	level, ok := logLevels[levelName]
	if !ok {
		return nil, fmt.Errorf("invalid log level '%s' (must be log, warn, or error)", levelName)
	}

	return &LogNode{
		id:           id,
		message:      message,
		level:        level,
		includeInput: nodes.Bool(config, "includeInput", false),
		logger:       slog.Default().With("module", "console_log_node"),
	}, nil
}

// ID returns the node ID.
func (n *LogNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *LogNode) Type() string {
	return NodeType
}

// Execute renders the message against the input and records it.
func (n *LogNode) Execute(ctx context.Context, nctx *models.NodeContext, input any) (models.NodeResult, error) {
	message, err := template.Fill(n.message, template.Scope{Input: input}, template.EmptyMissing())
	if err != nil {
		return models.Failed(fmt.Sprintf("failed to render log message template: %v", err)), nil
	}

	if n.includeInput {
		raw, err := json.Marshal(input)
		if err != nil {
			raw = []byte(fmt.Sprint(input))
		}

		message = fmt.Sprintf("%s | input: %s", message, raw)
	}

	nctx.Log(n.level, message, nil)

	logger := n.logger.With("node_id", n.id, "workflow_id", nctx.WorkflowID)

	switch n.level {
	case models.LogLevelWarn:
		logger.WarnContext(ctx, message)
	case models.LogLevelError:
		logger.ErrorContext(ctx, message)
	default:
		logger.InfoContext(ctx, message)
	}

	return models.Succeeded(map[string]any{
		"logs":  message,
		"input": input,
	}), nil
}
