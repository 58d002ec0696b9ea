// Package transform provides data transformation node factory for registry integration.
package transform

import (
	"context"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/protocol"
)

// TransformNodeFactory creates TransformNode instances.
type TransformNodeFactory struct{}

// Create creates a new TransformNode instance.
func (f *TransformNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewTransformNode(id, config)
}

// ID returns the factory ID.
func (f *TransformNodeFactory) ID() string {
	return NodeType
}

// Name returns the factory name.
func (f *TransformNodeFactory) Name() string {
	return "Transform"
}

// Description returns the factory description.
func (f *TransformNodeFactory) Description() string {
	return "Transforms data using Go templates with access to the node input and the run state"
}

func (f *TransformNodeFactory) Metadata() models.NodeMetadata {
	return models.NodeMetadata{
		ID:          f.ID(),
		Name:        f.Name(),
		Description: f.Description(),
		Category:    "data",
		Params: []models.ParamSpec{
			{Key: "expression", Label: "Expression", Type: "textarea", Required: true},
		},
		Output: map[string]any{"result": "any"},
	}
}

// Schema returns the JSON schema for Transform node configuration.
func (f *TransformNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Go template rendered over .input, .state and .env. Object or array results are parsed as JSON.",
				"examples": []string{
					`{"user": "{{.input.sender.nickname}}", "at": "{{now}}"}`,
					`{{.state.trigger.RawMessage}}`,
					`{{len .input.inputs}}`,
				},
			},
		},
		"required": []string{"expression"},
		"examples": []map[string]any{
			{"expression": `{"status": {{.input.status}}, "ok": true}`},
		},
	}
}

// NewTransformNodeFactory creates a new factory instance.
func NewTransformNodeFactory() protocol.NodeFactory {
	return &TransformNodeFactory{}
}
