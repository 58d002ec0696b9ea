package conditional

import (
	"context"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/protocol"
)

// ConditionalNodeFactory creates ConditionalNode instances.
type ConditionalNodeFactory struct{}

// Create creates a new ConditionalNode instance.
func (f *ConditionalNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewConditionalNode(id, config)
}

// ID returns the factory ID.
func (f *ConditionalNodeFactory) ID() string {
	return models.NodeTypeIfElse
}

// Name returns the factory name.
func (f *ConditionalNodeFactory) Name() string {
	return "If / Else"
}

// Description returns the factory description.
func (f *ConditionalNodeFactory) Description() string {
	return "Routes execution to the true or false branch depending on a condition"
}

// Metadata returns the catalog entry.
func (f *ConditionalNodeFactory) Metadata() models.NodeMetadata {
	return models.NodeMetadata{
		ID:          f.ID(),
		Name:        f.Name(),
		Description: f.Description(),
		Category:    "flow",
		Params: []models.ParamSpec{
			{Key: "title", Label: "Title", Type: "input", Default: "If / Else"},
			{
				Key: "condition", Label: "Condition", Type: "condition", Required: true,
				Default: map[string]any{"parameter": "input", "mode": ModeExists, "value": ""},
			},
		},
		Output: map[string]any{
			"_branch":          "boolean",
			"_conditionResult": "boolean",
		},
	}
}

// Schema returns the JSON schema for if/else configuration.
func (f *ConditionalNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string"},
			"condition": map[string]any{
				"type":        "object",
				"description": "What to compare. parameter is a path such as input.user.id, or 'custom' to run customCode.",
				"properties": map[string]any{
					"parameter": map[string]any{"type": "string", "default": "input"},
					"mode": map[string]any{
						"type": "string",
						"enum": []string{
							ModeExists, ModeNotExists, ModeEquals, ModeNotEquals, ModeStrictEquals,
							ModeStrictNotEquals, ModeGreaterThan, ModeLessThan, ModeGreaterOrEqual,
							ModeLessOrEqual, ModeContains, ModeNotContains, ModeRegex,
						},
						"default": ModeExists,
					},
					"value":      map[string]any{},
					"customCode": map[string]any{"type": "string", "examples": []string{"return input.count > 3"}},
				},
			},
		},
		"required": []string{"condition"},
	}
}

// NewConditionalNodeFactory creates a new factory instance.
func NewConditionalNodeFactory() protocol.NodeFactory {
	return &ConditionalNodeFactory{}
}
