// Package merge provides merge node factory for registry integration.
package merge

import (
	"context"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/protocol"
)

// MergeNodeFactory creates MergeNode instances.
type MergeNodeFactory struct{}

// Create creates a new MergeNode instance.
func (f *MergeNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewMergeNode(id, config)
}

// ID returns the factory ID.
func (f *MergeNodeFactory) ID() string {
	return models.NodeTypeMerge
}

// Name returns the factory name.
func (f *MergeNodeFactory) Name() string {
	return "Merge"
}

// Description returns the factory description.
func (f *MergeNodeFactory) Description() string {
	return "Joins parallel paths, either on any arrival or once every upstream path has reported"
}

// Metadata returns the catalog entry. Merge nodes are placed by the editor
// itself, so they stay out of the palette.
func (f *MergeNodeFactory) Metadata() models.NodeMetadata {
	allOnly := map[string]any{"key": "mode", "value": "ALL"}

	return models.NodeMetadata{
		ID:          f.ID(),
		Name:        f.Name(),
		Description: f.Description(),
		Category:    "flow",
		Hidden:      true,
		Params: []models.ParamSpec{
			{Key: "mode", Label: "Mode", Type: "select", Default: "ANY", Options: []any{"ALL", "ANY"}},
			{Key: "timeout", Label: "Timeout (ms)", Type: "number", Default: 1000, VisibleWhen: allOnly},
			{
				Key: "timeoutBehavior", Label: "On timeout", Type: "select", Default: "execute",
				Options: []any{"execute", "throw"}, VisibleWhen: allOnly,
			},
		},
		Output: map[string]any{"inputs": "array"},
	}
}

// Schema returns the JSON schema for Merge node configuration.
func (f *MergeNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode": map[string]any{
				"type":        "string",
				"description": "ANY fires on every arrival; ALL waits for every incoming edge",
				"default":     "ANY",
				"examples":    []string{"ANY", "ALL"},
			},
			"timeout": map[string]any{
				"type":        []string{"number", "string"},
				"description": "Milliseconds an ALL merge waits before applying timeoutBehavior. 0 waits forever.",
				"default":     1000,
			},
			"timeoutBehavior": map[string]any{
				"type":    "string",
				"enum":    []string{"execute", "throw"},
				"default": "execute",
			},
		},
	}
}

// NewMergeNodeFactory creates a new factory instance.
func NewMergeNodeFactory() protocol.NodeFactory {
	return &MergeNodeFactory{}
}
