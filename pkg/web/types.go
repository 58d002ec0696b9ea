package web

import (
	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/workflow"
)

// WorkflowSummary is a workflow as listed by GET /workflows.
type WorkflowSummary struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Trigger     models.Trigger `json:"trigger"`
	EntryNode   string         `json:"entryNode"`
	NodeCount   int            `json:"nodeCount"`
	Valid       bool           `json:"valid"`
}

func summarize(wf *models.CompiledWorkflow) WorkflowSummary {
	return WorkflowSummary{
		ID:          wf.ID,
		Name:        wf.Name,
		Description: wf.Description,
		Trigger:     wf.Trigger,
		EntryNode:   wf.EntryNode,
		NodeCount:   len(wf.Nodes),
		Valid:       workflow.Validate(wf).Valid,
	}
}

type ValidateResponse struct {
	WorkflowID string   `json:"workflowId,omitempty"`
	EntryNode  string   `json:"entryNode"`
	Valid      bool     `json:"valid"`
	Errors     []string `json:"errors"`
}

// RunResponse is a RunResult with the live state entries removed.
type RunResponse struct {
	Success    bool                  `json:"success"`
	Error      string                `json:"error,omitempty"`
	Logs       []models.ExecutionLog `json:"logs"`
	FinalState map[string]any        `json:"finalState"`
	DurationMS int64                 `json:"durationMs"`
}

type AdapterStatus struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Connected bool   `json:"connected"`
}
