package log

import (
	"context"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/protocol"
)

// LogNodeFactory creates LogNode instances.
type LogNodeFactory struct{}

// Create creates a new LogNode instance.
func (f *LogNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewLogNode(id, config)
}

// ID returns the factory ID.
func (f *LogNodeFactory) ID() string {
	return NodeType
}

// Name returns the factory name.
func (f *LogNodeFactory) Name() string {
	return "Log"
}

// Description returns the factory description.
func (f *LogNodeFactory) Description() string {
	return "Writes a message into the run log, with {field} placeholders resolved from the input"
}

func (f *LogNodeFactory) Metadata() models.NodeMetadata {
	return models.NodeMetadata{
		ID:          f.ID(),
		Name:        f.Name(),
		Description: f.Description(),
		Category:    "output",
		Params: []models.ParamSpec{
			{Key: "message", Label: "Message", Type: "input", Required: true},
			{Key: "logLevel", Label: "Level", Type: "select", Default: "log", Options: []any{"log", "warn", "error"}},
			{Key: "includeInput", Label: "Include input", Type: "switch", Default: true},
		},
		Output: map[string]any{
			"logs":  "string",
			"input": "any",
		},
	}
}

// Schema returns the JSON schema for Log node configuration.
func (f *LogNodeFactory) Schema() map[string]any {
	schema := nodes.SchemaFor(f.Metadata())
	schema["examples"] = []map[string]any{
		{"message": "received {rawMessage} from {sender.nickname}", "logLevel": "log"},
		{"message": "request failed with {status}", "logLevel": "error", "includeInput": false},
	}

	return schema
}

// NewLogNodeFactory creates a new factory instance.
func NewLogNodeFactory() protocol.NodeFactory {
	return &LogNodeFactory{}
}
