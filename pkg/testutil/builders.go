// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"sync"

	"github.com/dukex/renflow/pkg/models"
)

// LogRecorder captures ExecutionLog entries written through a NodeContext.
type LogRecorder struct {
	mu      sync.Mutex
	Entries []models.ExecutionLog
}

func (r *LogRecorder) Logger(nodeID string) models.NodeLogger {
	return func(level models.LogLevel, message string, data any) {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.Entries = append(r.Entries, models.ExecutionLog{NodeID: nodeID, Level: level, Message: message, Data: data})
	}
}

func (r *LogRecorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, e.Message)
	}

	return out
}

// NewNodeContext creates a node context over a fresh global state.
func NewNodeContext(nodeID, nodeType string, globals map[string]any) (*models.NodeContext, *LogRecorder) {
	rec := &LogRecorder{}

	return &models.NodeContext{
		WorkflowID: "wf-test",
		NodeID:     nodeID,
		NodeType:   nodeType,
		State:      models.NewGlobalState(globals),
		Logger:     rec.Logger(nodeID),
	}, rec
}

// CreateTestGraph creates an editor graph with a trigger node and no edges.
func CreateTestGraph(overrides ...func(*models.EditorGraph)) *models.EditorGraph {
	g := &models.EditorGraph{
		ID:           "wf-1",
		Name:         "Test Workflow",
		TriggerType:  "bot",
		TriggerName:  "message",
		TriggerLabel: "Message received",
		Nodes: []*models.EditorNode{
			{ID: models.NodeIDTrigger, Type: models.NodeTypeTrigger, Data: map[string]any{}},
		},
		Edges: []*models.EditorEdge{},
	}

	for _, override := range overrides {
		override(g)
	}

	return g
}

// WithNode appends an action node of nodeType with params.
func WithNode(id, nodeType string, params map[string]any) func(*models.EditorGraph) {
	return func(g *models.EditorGraph) {
		g.Nodes = append(g.Nodes, &models.EditorNode{
			ID:   id,
			Type: "action",
			Data: map[string]any{"nodeType": nodeType, "params": params},
		})
	}
}

// WithEdge appends an edge. An optional handle becomes the sourceHandle.
func WithEdge(source, target string, handle ...string) func(*models.EditorGraph) {
	return func(g *models.EditorGraph) {
		e := &models.EditorEdge{
			ID:     source + "->" + target,
			Source: source,
			Target: target,
		}

		if len(handle) > 0 {
			e.SourceHandle = handle[0]
		}

		g.Edges = append(g.Edges, e)
	}
}

// WithTriggerData sets data on the trigger node, which becomes trigger params.
func WithTriggerData(data map[string]any) func(*models.EditorGraph) {
	return func(g *models.EditorGraph) {
		for _, n := range g.Nodes {
			if n.IsTrigger() {
				n.Data = data
			}
		}
	}
}

// CompiledNode is a shorthand for building execution nodes in engine tests.
func CompiledNode(id, nodeType string, params map[string]any, next ...string) *models.ExecutionNode {
	if params == nil {
		params = map[string]any{}
	}

	if next == nil {
		next = []string{}
	}

	return &models.ExecutionNode{ID: id, Type: nodeType, Params: params, Next: next}
}

// CreateTestWorkflow builds a compiled workflow from nodes, entering at entry.
func CreateTestWorkflow(entry string, nodes ...*models.ExecutionNode) *models.CompiledWorkflow {
	wf := &models.CompiledWorkflow{
		ID:        "wf-test",
		Name:      "Test Workflow",
		Trigger:   models.Trigger{Type: "bot", Name: "message"},
		EntryNode: entry,
		Nodes:     make(map[string]*models.ExecutionNode, len(nodes)),
	}

	for _, n := range nodes {
		wf.Nodes[n.ID] = n
	}

	return wf
}
