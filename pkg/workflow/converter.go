// Package workflow compiles editor graphs and runs compiled workflows.
package workflow

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"

	"github.com/dukex/renflow/pkg/log"
	"github.com/dukex/renflow/pkg/models"
	"github.com/tidwall/gjson"
)

var handlePattern = regexp.MustCompile(`source-(.+)`)

// Convert compiles an editor graph into its executable form.
func Convert(graph *models.EditorGraph) (*models.CompiledWorkflow, error) {
	if graph == nil || graph.Nodes == nil || graph.Edges == nil {
		return nil, ErrUnrecognizedGraphShape
	}

	logger := log.WithModule("workflow_converter").With("workflow_id", graph.ID)

	var triggerNode *models.EditorNode

	for _, n := range graph.Nodes {
		if n != nil && n.IsTrigger() {
			triggerNode = n
			break
		}
	}

	if triggerNode == nil {
		return nil, ErrMissingTriggerNode
	}

	trigger := models.Trigger{
		Type:      graph.TriggerType,
		TypeLabel: graph.TriggerTypeLabel,
		Name:      graph.TriggerName,
		Label:     graph.TriggerLabel,
	}

	if triggerNode.Data != nil {
		params := maps.Clone(triggerNode.Data)
		delete(params, "metadata")
		trigger.Params = params
	}

	incoming := make(map[string]int)
	outgoing := make(map[string][]*models.EditorEdge)

	for _, e := range graph.Edges {
		if e == nil {
			continue
		}

		incoming[e.Target]++
		outgoing[e.Source] = append(outgoing[e.Source], e)
	}

	var entry string
	if edges := outgoing[triggerNode.ID]; len(edges) > 0 {
		entry = edges[0].Target
	}

	nodes := make(map[string]*models.ExecutionNode, len(graph.Nodes))

	for _, n := range graph.Nodes {
		if n == nil || n.IsTrigger() {
			continue
		}

		node := &models.ExecutionNode{
			ID:             n.ID,
			Type:           n.NodeType(),
			Params:         n.Params(),
			Next:           []string{},
			ExpectedInputs: incoming[n.ID],
		}

		if models.IsConditionalType(node.Type) {
			node.Branches, node.Next = classifyEdges(logger, outgoing[n.ID])
		} else {
			for _, e := range outgoing[n.ID] {
				node.Next = append(node.Next, e.Target)
			}
		}

		nodes[n.ID] = node
	}

	return &models.CompiledWorkflow{
		ID:          graph.ID,
		Name:        graph.Name,
		Description: graph.Description,
		Trigger:     trigger,
		EntryNode:   entry,
		Nodes:       nodes,
		CreatedAt:   graph.CreatedAt,
		UpdatedAt:   graph.UpdatedAt,
	}, nil
}

// classifyEdges splits a conditional node's edges into labeled branches and
// plain successors. The first unlabeled edge becomes the default branch;
// later unlabeled edges stay in next and run alongside whichever branch is
// taken.
func classifyEdges(logger *slog.Logger, edges []*models.EditorEdge) (map[string]string, []string) {
	branches := make(map[string]string)
	next := []string{}

	for _, e := range edges {
		label := branchLabel(e)

		switch {
		case label != "":
			branches[label] = e.Target
		case branches[models.BranchDefault] == "":
			branches[models.BranchDefault] = e.Target
		default:
			next = append(next, e.Target)
		}

		logger.Debug("Classified edge", "edge_id", e.ID, "source", e.Source, "target", e.Target, "label", label)
	}

	return branches, next
}

func branchLabel(e *models.EditorEdge) string {
	if e.SourceHandle != "" {
		if m := handlePattern.FindStringSubmatch(e.SourceHandle); m != nil {
			return m[1]
		}

		return e.SourceHandle
	}

	return e.Condition()
}

// Decode reads a workflow document. Editor graphs (nodes and edges arrays)
// are compiled; already compiled workflows (nodes object plus entryNode)
// are returned as is.
func Decode(data []byte) (*models.CompiledWorkflow, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrUnrecognizedGraphShape)
	}

	nodes := gjson.GetBytes(data, "nodes")

	switch {
	case nodes.IsArray() && gjson.GetBytes(data, "edges").IsArray():
		var graph models.EditorGraph
		if err := json.Unmarshal(data, &graph); err != nil {
			return nil, fmt.Errorf("failed to decode editor graph: %w", err)
		}

		return Convert(&graph)
	case nodes.IsObject() && gjson.GetBytes(data, "entryNode").Exists():
		var wf models.CompiledWorkflow
		if err := json.Unmarshal(data, &wf); err != nil {
			return nil, fmt.Errorf("failed to decode compiled workflow: %w", err)
		}

		for id, n := range wf.Nodes {
			if n == nil {
				delete(wf.Nodes, id)
				continue
			}

			if n.ID == "" {
				n.ID = id
			}
		}

		return &wf, nil
	default:
		return nil, ErrUnrecognizedGraphShape
	}
}
