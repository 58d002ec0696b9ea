package command

import (
	"context"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/protocol"
)

type CommandNodeFactory struct{}

func (f *CommandNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewCommandNode(id, config)
}

func (f *CommandNodeFactory) ID() string {
	return NodeType
}

func (f *CommandNodeFactory) Name() string {
	return "Command Parser"
}

func (f *CommandNodeFactory) Description() string {
	return "Parses shell-style command text into positionals and flags"
}

func (f *CommandNodeFactory) Metadata() models.NodeMetadata {
	return models.NodeMetadata{
		ID:          f.ID(),
		Name:        f.Name(),
		Description: f.Description(),
		Category:    "data",
		Params: []models.ParamSpec{
			{Key: "text", Label: "Command text", Type: "input", Required: true, Default: DefaultText},
		},
		Output: map[string]any{"data": "object"},
	}
}

func (f *CommandNodeFactory) Schema() map[string]any {
	return nodes.SchemaFor(f.Metadata())
}

func NewCommandNodeFactory() protocol.NodeFactory {
	return &CommandNodeFactory{}
}
