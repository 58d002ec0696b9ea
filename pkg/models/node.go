package models

import (
	"context"
	"time"
)

// Node is a created node instance ready to run once.
type Node interface {
	ID() string
	Type() string
	Execute(ctx context.Context, nctx *NodeContext, input any) (NodeResult, error)
}

// NodeResult is the outcome of one node execution.
type NodeResult struct {
	Success bool   `json:"success"`
	Output  any    `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

func Succeeded(output any) NodeResult {
	return NodeResult{Success: true, Output: output}
}

func Failed(msg string) NodeResult {
	return NodeResult{Success: false, Error: msg}
}

// LogLevel of an ExecutionLog entry.
type LogLevel string

const (
	LogLevelLog   LogLevel = "log"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// NodeLogger records execution log entries on behalf of one node.
type NodeLogger func(level LogLevel, message string, data any)

// NodeContext is what a node sees of its run.
type NodeContext struct {
	WorkflowID string
	NodeID     string
	NodeType   string
	State      *GlobalState
	Logger     NodeLogger
}

// Log appends an entry through the context logger, if any.
func (c *NodeContext) Log(level LogLevel, message string, data any) {
	if c == nil || c.Logger == nil {
		return
	}

	c.Logger(level, message, data)
}

// ParamSpec declares one configurable node parameter.
type ParamSpec struct {
	Key         string         `json:"key"`
	Label       string         `json:"label"`
	Type        string         `json:"type"`
	Required    bool           `json:"required,omitempty"`
	Default     any            `json:"default,omitempty"`
	Options     []any          `json:"options,omitempty"`
	VisibleWhen map[string]any `json:"visibleWhen,omitempty"`
	Description string         `json:"description,omitempty"`
}

// ParamTypeSettings params are configuration panels and never required-checked.
const ParamTypeSettings = "settings"

// NodeMetadata is the catalog description of a node type.
type NodeMetadata struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Hidden      bool           `json:"hidden,omitempty"`
	Custom      bool           `json:"custom,omitempty"`
	Params      []ParamSpec    `json:"params"`
	Output      map[string]any `json:"output,omitempty"`
}

// NodeStatus defines the possible states of a node execution.
type NodeStatus string

const (
	NodeStatusPending NodeStatus = "pending"
	NodeStatusRunning NodeStatus = "running"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusError   NodeStatus = "error"
)

// NodeExecution is a node status change as reported to lifecycle observers.
type NodeExecution struct {
	NodeID    string     `json:"nodeId"`
	NodeType  string     `json:"nodeType"`
	Status    NodeStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Error     string     `json:"error,omitempty"`
}
