package note

import (
	"context"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/protocol"
)

type NoteNodeFactory struct{}

func (f *NoteNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewNoteNode(id, config)
}

func (f *NoteNodeFactory) ID() string {
	return NodeType
}

func (f *NoteNodeFactory) Name() string {
	return "Note"
}

func (f *NoteNodeFactory) Description() string {
	return "Adds a display-only annotation"
}

func (f *NoteNodeFactory) Metadata() models.NodeMetadata {
	return models.NodeMetadata{
		ID:          f.ID(),
		Name:        f.Name(),
		Description: f.Description(),
		Category:    "data",
		Params: []models.ParamSpec{
			{Key: "title", Label: "Title", Type: "input", Default: "Note"},
			{Key: "content", Label: "Content", Type: "textarea", Default: ""},
			{
				Key: "color", Label: "Color", Type: "select", Default: "yellow",
				Options: []any{"yellow", "blue", "green", "red", "purple"},
			},
		},
		Output: map[string]any{"input": "any"},
	}
}

func (f *NoteNodeFactory) Schema() map[string]any {
	return nodes.SchemaFor(f.Metadata())
}

func NewNoteNodeFactory() protocol.NodeFactory {
	return &NoteNodeFactory{}
}
