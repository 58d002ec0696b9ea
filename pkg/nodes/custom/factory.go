package custom

import (
	"context"
	"errors"
	"maps"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/protocol"
)

// CustomJSNodeFactory creates the catalog's custom code node. The id is kept
// for compatibility with saved editor graphs; the code is Lua.
type CustomJSNodeFactory struct{}

func (f *CustomJSNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewScriptNode(id, NodeType, nodes.String(config, "code", DefaultCode), config), nil
}

func (f *CustomJSNodeFactory) ID() string {
	return NodeType
}

func (f *CustomJSNodeFactory) Name() string {
	return "Custom Code"
}

func (f *CustomJSNodeFactory) Description() string {
	return "Runs a sandboxed Lua script; whatever it returns becomes the node output"
}

func (f *CustomJSNodeFactory) Metadata() models.NodeMetadata {
	return models.NodeMetadata{
		ID:          f.ID(),
		Name:        f.Name(),
		Description: f.Description(),
		Category:    "custom",
		Params: []models.ParamSpec{
			{Key: "settings", Type: models.ParamTypeSettings, Required: true},
			{
				Key: "code", Label: "Code", Type: "textarea", Required: true, Default: DefaultCode,
				Description: "Globals: input, params, context.nodeId, log/warn/error",
			},
		},
		Output: map[string]any{"result": "any"},
	}
}

func (f *CustomJSNodeFactory) Schema() map[string]any {
	return nodes.SchemaFor(f.Metadata())
}

func NewCustomJSNodeFactory() protocol.NodeFactory {
	return &CustomJSNodeFactory{}
}

var ErrMissingCode = errors.New("custom node has no code")

// Definition describes a user-registered node kind.
type Definition struct {
	ID          string             `json:"id"          validate:"required"`
	Name        string             `json:"name"        validate:"required"`
	Description string             `json:"description"`
	Code        string             `json:"code"`
	Params      []models.ParamSpec `json:"params"`
}

// ScriptedNodeFactory serves a Definition. Every instance runs the
// definition's code with the node's params.
type ScriptedNodeFactory struct {
	def Definition
}

func NewScriptedNodeFactory(def Definition) (*ScriptedNodeFactory, error) {
	if def.Code == "" {
		return nil, ErrMissingCode
	}

	return &ScriptedNodeFactory{def: def}, nil
}

func (f *ScriptedNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewScriptNode(id, f.def.ID, f.def.Code, maps.Clone(config)), nil
}

func (f *ScriptedNodeFactory) ID() string {
	return f.def.ID
}

func (f *ScriptedNodeFactory) Name() string {
	return f.def.Name
}

func (f *ScriptedNodeFactory) Description() string {
	return f.def.Description
}

func (f *ScriptedNodeFactory) Metadata() models.NodeMetadata {
	return models.NodeMetadata{
		ID:          f.def.ID,
		Name:        f.def.Name,
		Description: f.def.Description,
		Category:    "custom",
		Custom:      true,
		Params:      f.def.Params,
	}
}

func (f *ScriptedNodeFactory) Schema() map[string]any {
	return nodes.SchemaFor(f.Metadata())
}
