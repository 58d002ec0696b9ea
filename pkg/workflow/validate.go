package workflow

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dukex/renflow/pkg/models"
)

// ValidationResult lists every structural problem found in a workflow.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Err returns nil for a valid result, or an ErrInvalidWorkflow carrying the
// joined messages.
func (v ValidationResult) Err(workflowID string) error {
	if v.Valid {
		return nil
	}

	return &WorkflowError{
		Op:      "validate " + workflowID,
		Code:    CodeInvalidWorkflow,
		Message: strings.Join(v.Errors, "; "),
	}
}

// Validate checks entry, reference and reachability integrity. Orphans are
// reported, not removed. Nodes are visited in id order so the error list is
// stable.
func Validate(wf *models.CompiledWorkflow) ValidationResult {
	errs := []string{}

	switch {
	case wf.EntryNode == "":
		errs = append(errs, "workflow has no entry node (trigger is not connected to any node)")
	case wf.Nodes[wf.EntryNode] == nil:
		errs = append(errs, fmt.Sprintf("entry node %s does not exist", wf.EntryNode))
	}

	ids := make([]string, 0, len(wf.Nodes))
	for id := range wf.Nodes {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	referenced := map[string]bool{}
	if wf.EntryNode != "" {
		referenced[wf.EntryNode] = true
	}

	for _, id := range ids {
		node := wf.Nodes[id]
		if node == nil {
			continue
		}

		for _, next := range node.Next {
			if next == "" {
				continue
			}

			if wf.Nodes[next] == nil {
				errs = append(errs, fmt.Sprintf("node %s references missing node: %s", id, next))
			}

			referenced[next] = true
		}

		labels := make([]string, 0, len(node.Branches))
		for label := range node.Branches {
			labels = append(labels, label)
		}

		slices.Sort(labels)

		for _, label := range labels {
			target := node.Branches[label]
			if target == "" {
				continue
			}

			if wf.Nodes[target] == nil {
				errs = append(errs, fmt.Sprintf("branch %s of node %s references missing node: %s", label, id, target))
			}

			referenced[target] = true
		}
	}

	for _, id := range ids {
		if !referenced[id] {
			errs = append(errs, fmt.Sprintf("node %s is orphaned (not referenced by any node)", id))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
