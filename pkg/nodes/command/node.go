// Package command provides the command-anal node, which parses shell-style
// command text into an argument map.
package command

import (
	"context"
	"fmt"

	"github.com/dukex/renflow/pkg/argv"
	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/template"
	"github.com/kballard/go-shellquote"
)

const NodeType = "command-anal"

// DefaultText parses the message that triggered the run.
const DefaultText = "{trigger.rawMessage}"

type CommandNode struct {
	id   string
	text string
}

func NewCommandNode(id string, config map[string]any) (*CommandNode, error) {
	return &CommandNode{
		id:   id,
		text: nodes.String(config, "text", DefaultText),
	}, nil
}

func (n *CommandNode) ID() string {
	return n.id
}

func (n *CommandNode) Type() string {
	return NodeType
}

// Execute tokenizes the rendered text and parses it, e.g.
// `roll -n 2 "big dice"` becomes {_: [roll, big dice], n: 2}.
func (n *CommandNode) Execute(ctx context.Context, nctx *models.NodeContext, input any) (models.NodeResult, error) {
	scope := template.Scope{Input: input}
	if nctx != nil {
		scope.State = nctx.State
	}

	text, err := template.Fill(n.text, scope)
	if err != nil {
		return models.Failed(fmt.Sprintf("failed to render command text: %v", err)), nil
	}

	tokens, err := shellquote.Split(text)
	if err != nil {
		return models.Failed(fmt.Sprintf("failed to tokenize command: %v", err)), nil
	}

	return models.Succeeded(map[string]any{
		"data": map[string]any(argv.Parse(tokens)),
	}), nil
}
