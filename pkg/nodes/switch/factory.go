package switchnode

import (
	"context"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/protocol"
)

// SwitchNodeFactory creates SwitchNode instances.
type SwitchNodeFactory struct{}

// Create creates a new SwitchNode instance.
func (f *SwitchNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewSwitchNode(id, config)
}

// ID returns the factory ID.
func (f *SwitchNodeFactory) ID() string {
	return models.NodeTypeSwitch
}

// Name returns the factory name.
func (f *SwitchNodeFactory) Name() string {
	return "Switch"
}

// Description returns the factory description.
func (f *SwitchNodeFactory) Description() string {
	return "Routes execution to one of several branches based on a templated value"
}

// Metadata returns the catalog entry.
func (f *SwitchNodeFactory) Metadata() models.NodeMetadata {
	return models.NodeMetadata{
		ID:          f.ID(),
		Name:        f.Name(),
		Description: f.Description(),
		Category:    "flow",
		Params: []models.ParamSpec{
			{Key: "value", Label: "Value", Type: "input", Required: true},
			{Key: "cases", Label: "Cases", Type: "list", Default: []any{}},
		},
		Output: map[string]any{"_branchKey": "string"},
	}
}

// Schema returns the JSON schema for Switch node configuration.
func (f *SwitchNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": map[string]any{
				"type":        "string",
				"description": "Value to switch on. Supports {field} and {nodeId.field} placeholders.",
				"examples": []string{
					"{data._.0}",
					"{trigger.messageType}",
					"{http-1.status}",
				},
			},
			"cases": map[string]any{
				"type":        "array",
				"description": "Case objects mapping a value to a branch label",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"value": map[string]any{
							"type":        []string{"string", "number", "boolean"},
							"description": "Value to match against the rendered value",
						},
						"label": map[string]any{
							"type":        "string",
							"description": "Branch label to follow when this value matches",
						},
					},
					"required": []string{"value"},
				},
				"examples": [][]map[string]any{
					{
						{"value": "help", "label": "help"},
						{"value": "weather", "label": "weather"},
					},
				},
			},
		},
		"required": []string{"value"},
	}
}

// NewSwitchNodeFactory creates a new factory instance.
func NewSwitchNodeFactory() protocol.NodeFactory {
	return &SwitchNodeFactory{}
}
