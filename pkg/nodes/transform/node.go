// Package transform provides the transform node, which reshapes data with Go templates.
package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/template"
)

const NodeType = "transform"

// TransformNode implements the Node interface for data transformation.
type TransformNode struct {
	id         string
	expression string
}

// NewTransformNode creates a new data transformation node.
func NewTransformNode(id string, config map[string]any) (*TransformNode, error) {
	expression, ok := config["expression"].(string)
	if !ok {
		return nil, errors.New("missing required field 'expression'")
	}

	return &TransformNode{
		id:         id,
		expression: expression,
	}, nil
}

// ID returns the node ID.
func (n *TransformNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *TransformNode) Type() string {
	return NodeType
}

// Execute renders the expression over {input, state, env}.
func (n *TransformNode) Execute(ctx context.Context, nctx *models.NodeContext, input any) (models.NodeResult, error) {
	scope := template.Scope{Input: input}
	if nctx != nil {
		scope.State = nctx.State
	}

	result, err := template.RenderWithScope(n.expression, scope)
	if err != nil {
		return models.Failed(fmt.Sprintf("transformation failed: %v", err)), nil
	}

	return models.Succeeded(map[string]any{
		"result": result,
	}), nil
}
