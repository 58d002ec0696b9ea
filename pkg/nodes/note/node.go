// Package note provides the note node: an annotation on the canvas that
// passes its input through.
package note

import (
	"context"
	"fmt"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
)

const NodeType = "note"

type NoteNode struct {
	id      string
	title   string
	content string
}

func NewNoteNode(id string, config map[string]any) (*NoteNode, error) {
	return &NoteNode{
		id:      id,
		title:   nodes.String(config, "title", "Note"),
		content: nodes.String(config, "content", ""),
	}, nil
}

func (n *NoteNode) ID() string {
	return n.id
}

func (n *NoteNode) Type() string {
	return NodeType
}

func (n *NoteNode) Execute(ctx context.Context, nctx *models.NodeContext, input any) (models.NodeResult, error) {
	content := n.content
	if content == "" {
		content = "(empty)"
	}

	nctx.Log(models.LogLevelLog, fmt.Sprintf("[note] %s: %s", n.title, content), nil)

	return models.Succeeded(input), nil
}
