// Package merge provides the merge node, the join point of parallel paths.
package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/renflow/pkg/models"
)

// MergeNode joins execution paths. The engine coordinates arrivals; in ALL
// mode the node receives the collected inputs as a slice.
type MergeNode struct {
	id           string
	requirements models.InputRequirements
	rawMode      string
}

// NewMergeNode creates a new merge node.
func NewMergeNode(id string, config map[string]any) (*MergeNode, error) {
	rawMode, _ := config["mode"].(string)
	if rawMode == "" {
		rawMode = string(models.WaitModeAny)
	}

	return &MergeNode{
		id:           id,
		requirements: models.MergeRequirements(config, 0),
		rawMode:      rawMode,
	}, nil
}

// ID returns the node ID.
func (n *MergeNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *MergeNode) Type() string {
	return models.NodeTypeMerge
}

// InputRequirements returns the input coordination requirements for this merge node.
func (n *MergeNode) InputRequirements() models.InputRequirements {
	return n.requirements
}

// Execute passes the input through in ANY mode and wraps the collected
// inputs in ALL mode.
func (n *MergeNode) Execute(ctx context.Context, nctx *models.NodeContext, input any) (models.NodeResult, error) {
	switch models.InputWaitMode(strings.ToUpper(n.rawMode)) {
	case models.WaitModeAny:
		return models.Succeeded(input), nil
	case models.WaitModeAll:
		inputs, ok := input.([]any)
		if !ok {
			inputs = []any{}
		}

		nctx.Log(models.LogLevelLog, fmt.Sprintf("merged %d inputs", len(inputs)), nil)

		return models.Succeeded(map[string]any{"inputs": inputs}), nil
	default:
		return models.Failed("unknown merge mode: " + n.rawMode), nil
	}
}
