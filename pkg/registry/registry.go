// Package registry holds the node catalog and executes nodes on behalf of the
// workflow engine.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/nodes/custom"
	"github.com/dukex/renflow/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// ParamOutputToGlobal is injected into every node kind. When set, a
// successful object output is merged into the run state under the node id.
const ParamOutputToGlobal = "outputToGlobal"

var (
	ErrNodeExists        = errors.New("node type already registered")
	ErrBuiltinNode       = errors.New("built-in node types cannot be removed")
	ErrNodeNotRegistered = errors.New("node type not registered")
)

// Category describes a catalog group.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var categories = []Category{
	{ID: "input", Name: "Input", Description: "Data input nodes"},
	{ID: "output", Name: "Output", Description: "Data output nodes"},
	{ID: "flow", Name: "Flow", Description: "Branching and joining"},
	{ID: "data", Name: "Data", Description: "Data processing nodes"},
	{ID: "network", Name: "Network", Description: "Network request nodes"},
	{ID: "bot", Name: "Bot", Description: "Nodes that talk through a bot adapter"},
	{ID: "custom", Name: "Custom", Description: "User-defined nodes"},
}

type entry struct {
	factory protocol.NodeFactory
	meta    models.NodeMetadata
	schema  *gojsonschema.Schema
}

// Registry is the node catalog. It is safe for concurrent use.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	nodes map[string]*entry
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger: log.With("module", "registry"),
		nodes:  make(map[string]*entry),
	}
}

// RegisterNode adds or replaces a node kind.
func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	e := r.newEntry(factory)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nodes[factory.ID()] = e
}

func (r *Registry) newEntry(factory protocol.NodeFactory) *entry {
	meta := factory.Metadata()

	if !slices.ContainsFunc(meta.Params, func(p models.ParamSpec) bool { return p.Key == ParamOutputToGlobal }) {
		meta.Params = append(slices.Clone(meta.Params), models.ParamSpec{
			Key:     ParamOutputToGlobal,
			Label:   "Output to global",
			Type:    "switch",
			Default: true,
		})
	}

	e := &entry{factory: factory, meta: meta}

	if raw := factory.Schema(); raw != nil {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(raw))
		if err != nil {
			r.logger.Warn("node schema does not compile, params will not be schema-checked",
				"node_type", factory.ID(), "error", err)
		} else {
			e.schema = schema
		}
	}

	return e
}

// GetAvailableNodes returns every registered factory, hidden ones included.
func (r *Registry) GetAvailableNodes() []protocol.NodeFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.NodeFactory, 0, len(r.nodes))
	for _, e := range r.nodes {
		out = append(out, e.factory)
	}

	slices.SortFunc(out, func(a, b protocol.NodeFactory) int { return strings.Compare(a.ID(), b.ID()) })

	return out
}

// CreateNode instantiates a node without running it.
func (r *Registry) CreateNode(ctx context.Context, nodeType, id string, config map[string]any) (models.Node, error) {
	e, ok := r.lookup(nodeType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotRegistered, nodeType)
	}

	return e.factory.Create(ctx, id, config)
}

// GetNodeMetadata returns the catalog entry of nodeType, with injected params.
func (r *Registry) GetNodeMetadata(nodeType string) (models.NodeMetadata, bool) {
	e, ok := r.lookup(nodeType)
	if !ok {
		return models.NodeMetadata{}, false
	}

	return e.meta, true
}

// GetNodeList returns the visible catalog sorted by category, then id.
func (r *Registry) GetNodeList() []models.NodeMetadata {
	r.mu.RLock()

	list := make([]models.NodeMetadata, 0, len(r.nodes))
	for _, e := range r.nodes {
		if !e.meta.Hidden {
			list = append(list, e.meta)
		}
	}

	r.mu.RUnlock()

	slices.SortFunc(list, func(a, b models.NodeMetadata) int {
		if c := strings.Compare(a.Category, b.Category); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	return list
}

func (r *Registry) GetNodesByCategory(category string) []models.NodeMetadata {
	var out []models.NodeMetadata

	for _, m := range r.GetNodeList() {
		if m.Category == category {
			out = append(out, m)
		}
	}

	return out
}

func (r *Registry) GetCategories() []Category {
	return slices.Clone(categories)
}

// GetGroupedNodes groups the visible catalog by category. Every known
// category is present, even when empty.
func (r *Registry) GetGroupedNodes() map[string][]models.NodeMetadata {
	grouped := make(map[string][]models.NodeMetadata, len(categories))
	for _, c := range categories {
		grouped[c.ID] = []models.NodeMetadata{}
	}

	for _, m := range r.GetNodeList() {
		grouped[m.Category] = append(grouped[m.Category], m)
	}

	return grouped
}

// RegisterCustomNode adds a scripted node kind. Ids must be unused.
func (r *Registry) RegisterCustomNode(def custom.Definition) error {
	factory, err := custom.NewScriptedNodeFactory(def)
	if err != nil {
		return err
	}

	e := r.newEntry(factory)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[def.ID]; exists {
		return fmt.Errorf("%w: %s", ErrNodeExists, def.ID)
	}

	r.nodes[def.ID] = e

	r.logger.Info("registered custom node", "node_type", def.ID, "name", def.Name)

	return nil
}

// RemoveCustomNode removes a node kind added by RegisterCustomNode.
func (r *Registry) RemoveCustomNode(nodeType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.nodes[nodeType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotRegistered, nodeType)
	}

	if !e.meta.Custom {
		return fmt.Errorf("%w: %s", ErrBuiltinNode, nodeType)
	}

	delete(r.nodes, nodeType)

	r.logger.Info("removed custom node", "node_type", nodeType)

	return nil
}

func (r *Registry) lookup(nodeType string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.nodes[nodeType]

	return e, ok
}

// ExecuteNode runs one node of a run. Every failure, including a panic in
// the node, comes back as a failed result.
func (r *Registry) ExecuteNode(
	ctx context.Context,
	nodeType string,
	input any,
	params map[string]any,
	nctx *models.NodeContext,
) (result models.NodeResult) {
	e, ok := r.lookup(nodeType)
	if !ok {
		return models.Failed("node type not found: " + nodeType)
	}

	params = withDefaults(e.meta, params)

	if msg := checkRequired(e.meta, params); msg != "" {
		return models.Failed(msg)
	}

	if err := validateSchema(e.schema, params); err != nil {
		return models.Failed(err.Error())
	}

	nodeID := ""
	if nctx != nil {
		nodeID = nctx.NodeID
	}

	logger := r.logger.With("node_id", nodeID, "node_type", nodeType)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("node panicked", "panic", rec, "stack", string(debug.Stack()))
			if nctx != nil {
				nctx.Log(models.LogLevelError, fmt.Sprintf("%s: %v", e.meta.Name, rec), nil)
			}

			result = models.Failed(fmt.Sprintf("node panicked: %v", rec))
		}
	}()

	node, err := e.factory.Create(ctx, nodeID, params)
	if err != nil {
		return models.Failed(err.Error())
	}

	result, err = node.Execute(ctx, nctx, input)
	if err != nil {
		logger.Error("node execution failed", "error", err)

		return models.Failed(err.Error())
	}

	if result.Success && nodes.Truthy(params[ParamOutputToGlobal]) && nctx != nil && nctx.State != nil {
		if output, ok := result.Output.(map[string]any); ok {
			nctx.State.MergeObject(nodeID, output)
		}
	}

	return result
}

func withDefaults(meta models.NodeMetadata, params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+len(meta.Params))

	for _, p := range meta.Params {
		if p.Default != nil {
			out[p.Key] = p.Default
		}
	}

	maps.Copy(out, params)

	return out
}

func checkRequired(meta models.NodeMetadata, params map[string]any) string {
	for _, p := range meta.Params {
		if p.Type == models.ParamTypeSettings || !p.Required {
			continue
		}

		if !nodes.Truthy(params[p.Key]) {
			return fmt.Sprintf("param %q (%s) is required", p.Label, p.Key)
		}
	}

	return ""
}

func validateSchema(schema *gojsonschema.Schema, params map[string]any) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return fmt.Errorf("invalid params: %s", strings.Join(errs, "; "))
	}

	return nil
}
