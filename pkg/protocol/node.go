// Package protocol defines the interfaces and contracts for pluggable nodes and bot adapters.
package protocol

import (
	"context"

	"github.com/dukex/renflow/pkg/models"
)

// NodeFactory creates node instances and provides metadata about the node type.
type NodeFactory interface {
	// Create creates a new node instance with the given parameters
	Create(ctx context.Context, id string, params map[string]any) (models.Node, error)

	// ID returns the unique identifier for this node type
	ID() string

	// Name returns the human-readable name for this node type
	Name() string

	// Description returns a description of what this node does
	Description() string

	// Metadata returns the catalog entry: category, params and their defaults
	Metadata() models.NodeMetadata

	// Schema returns the JSON schema for configuring this node
	Schema() map[string]any
}

// NodeExecutor runs one node invocation on behalf of the engine.
type NodeExecutor interface {
	ExecuteNode(ctx context.Context, nodeType string, input any, params map[string]any, nctx *models.NodeContext) models.NodeResult
}
