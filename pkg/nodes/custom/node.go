// Package custom runs user code in the script sandbox. It backs both the
// custom-js catalog node and user-registered scripted node kinds.
package custom

import (
	"context"
	"fmt"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/script"
)

const NodeType = "custom-js"

// DefaultCode returns the input unchanged.
const DefaultCode = "return input"

// contextPrelude exposes the log functions on the context table as well.
const contextPrelude = "context.log, context.warn, context.error = log, warn, error\n"

// ScriptNode runs a Lua chunk that sees input, params and context.
type ScriptNode struct {
	id       string
	nodeType string
	code     string
	params   map[string]any
}

// NewScriptNode creates a node running code. params are exposed to the script as-is.
func NewScriptNode(id, nodeType, code string, params map[string]any) *ScriptNode {
	if code == "" {
		code = DefaultCode
	}

	return &ScriptNode{id: id, nodeType: nodeType, code: code, params: params}
}

func (n *ScriptNode) ID() string {
	return n.id
}

func (n *ScriptNode) Type() string {
	return n.nodeType
}

// Execute runs the code. The returned value becomes the node output.
func (n *ScriptNode) Execute(ctx context.Context, nctx *models.NodeContext, input any) (models.NodeResult, error) {
	env := script.Env{
		Globals: map[string]any{
			"input":  input,
			"params": n.params,
			"context": map[string]any{
				"nodeId": n.id,
			},
		},
		Log: func(level, message string) {
			nctx.Log(models.LogLevel(level), message, nil)
		},
	}

	output, err := script.Run(ctx, contextPrelude+n.code, env)
	if err != nil {
		nctx.Log(models.LogLevelError, "script failed", err.Error())

		return models.Failed(fmt.Sprintf("code execution error: %v", err)), nil
	}

	return models.Succeeded(output), nil
}
