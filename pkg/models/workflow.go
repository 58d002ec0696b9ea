// Package models defines the core domain models for chat-bot workflow automation
package models

// Node types the converter treats as the graph's trigger.
const (
	NodeTypeTrigger = "trigger"
	NodeIDTrigger   = "node-trigger"
)

// Conditional node types route through branches instead of plain fan-out.
const (
	NodeTypeIfElse = "ifelse"
	NodeTypeSwitch = "switch"
	NodeTypeMerge  = "merge"
)

// Well-known branch labels and output keys.
const (
	BranchTrue    = "true"
	BranchFalse   = "false"
	BranchDefault = "default"

	OutputKeyBranch    = "_branch"
	OutputKeyBranchKey = "_branchKey"
)

// Well-known global state keys.
const (
	GlobalKeyTrigger = "trigger"
	GlobalKeyBot     = "bot"
)

// IsConditionalType reports whether nodeType resolves successors through branches.
func IsConditionalType(nodeType string) bool {
	return nodeType == NodeTypeIfElse || nodeType == NodeTypeSwitch
}

// Trigger describes what starts a compiled workflow.
type Trigger struct {
	Type      string         `json:"type"`
	TypeLabel string         `json:"typeLabel,omitempty"`
	Name      string         `json:"name,omitempty"`
	Label     string         `json:"label,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
}

// Matches reports whether the trigger listens to the named event.
func (t Trigger) Matches(event string) bool {
	return event != "" && (t.Name == event || t.Label == event)
}

// ExecutionNode is one vertex of a compiled workflow.
type ExecutionNode struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	Params         map[string]any    `json:"params"`
	Next           []string          `json:"next"`
	Branches       map[string]string `json:"branches,omitempty"`
	ExpectedInputs int               `json:"expectedInputs"`
}

// CompiledWorkflow is the executable form of an editor graph. It is never
// mutated once produced.
type CompiledWorkflow struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	Trigger     Trigger                   `json:"trigger"`
	EntryNode   string                    `json:"entryNode"`
	Nodes       map[string]*ExecutionNode `json:"nodes"`
	CreatedAt   int64                     `json:"createdAt,omitempty"`
	UpdatedAt   int64                     `json:"updatedAt,omitempty"`
}

// EditorGraph is the graph as saved by the visual editor.
type EditorGraph struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Description      string        `json:"description,omitempty"`
	TriggerType      string        `json:"triggerType,omitempty"`
	TriggerTypeLabel string        `json:"triggerTypeLabel,omitempty"`
	TriggerName      string        `json:"triggerName,omitempty"`
	TriggerLabel     string        `json:"triggerLabel,omitempty"`
	Nodes            []*EditorNode `json:"nodes"`
	Edges            []*EditorEdge `json:"edges"`
	CreatedAt        int64         `json:"createdAt,omitempty"`
	UpdatedAt        int64         `json:"updatedAt,omitempty"`
}

type EditorNode struct {
	ID   string         `json:"id"`
	Type string         `json:"type,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// NodeType returns data.nodeType, the catalog id the node executes as.
func (n *EditorNode) NodeType() string {
	t, _ := n.Data["nodeType"].(string)

	return t
}

func (n *EditorNode) Params() map[string]any {
	p, _ := n.Data["params"].(map[string]any)
	if p == nil {
		return map[string]any{}
	}

	return p
}

func (n *EditorNode) IsTrigger() bool {
	return n.Type == NodeTypeTrigger || n.ID == NodeIDTrigger
}

type EditorEdge struct {
	ID           string         `json:"id,omitempty"`
	Source       string         `json:"source"`
	Target       string         `json:"target"`
	SourceHandle string         `json:"sourceHandle,omitempty"`
	TargetHandle string         `json:"targetHandle,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// Condition returns data.condition as a label, or "" when absent.
func (e *EditorEdge) Condition() string {
	switch c := e.Data["condition"].(type) {
	case nil:
		return ""
	case string:
		return c
	case bool:
		if c {
			return BranchTrue
		}

		return BranchFalse
	default:
		return ""
	}
}
