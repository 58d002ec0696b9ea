package workflow

import (
	"errors"
	"fmt"
)

// Error codes carried by WorkflowError.
const (
	CodeNoEntryNode     = "no_entry_node"
	CodeNodeNotFound    = "node_not_found"
	CodeNodeFailed      = "node_failed"
	CodeMergeTimeout    = "merge_timeout"
	CodeInvalidWorkflow = "invalid_workflow"
	CodeTimeout         = "timeout"
)

var (
	ErrMissingTriggerNode     = errors.New("no trigger node found in graph")
	ErrUnrecognizedGraphShape = errors.New("unrecognized workflow document shape")
	ErrUnsupportedFilterPath  = errors.New("unsupported filterParam path")
	ErrSelfMessage            = errors.New("message was sent by the bot itself")

	ErrNoEntryNode     = &WorkflowError{Code: CodeNoEntryNode, Message: "workflow has no entry node"}
	ErrNodeNotFound    = &WorkflowError{Code: CodeNodeNotFound, Message: "node not found"}
	ErrNodeFailed      = &WorkflowError{Code: CodeNodeFailed, Message: "node execution failed"}
	ErrMergeTimeout    = &WorkflowError{Code: CodeMergeTimeout, Message: "merge timed out"}
	ErrInvalidWorkflow = &WorkflowError{Code: CodeInvalidWorkflow, Message: "workflow validation failed"}
	ErrTimeout         = &WorkflowError{Code: CodeTimeout, Message: "execution timed out"}
)

// WorkflowError is a run or compile failure. Two WorkflowErrors match under
// errors.Is when their codes are equal, so the package sentinels can be
// compared against detailed errors.
type WorkflowError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *WorkflowError) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}

	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}

	return msg
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	t, ok := target.(*WorkflowError)

	return ok && t.Code == e.Code
}

func newError(op, code, format string, args ...any) *WorkflowError {
	return &WorkflowError{Op: op, Code: code, Message: fmt.Sprintf(format, args...)}
}

// TriggerEvalError wraps a fault raised while deciding whether a trigger
// payload should start a workflow.
type TriggerEvalError struct {
	WorkflowID string
	Err        error
}

func (e *TriggerEvalError) Error() string {
	if e.WorkflowID != "" {
		return fmt.Sprintf("trigger evaluation failed for workflow %s: %v", e.WorkflowID, e.Err)
	}

	return fmt.Sprintf("trigger evaluation failed: %v", e.Err)
}

func (e *TriggerEvalError) Unwrap() error {
	return e.Err
}

func (e *TriggerEvalError) Is(target error) bool {
	_, ok := target.(*TriggerEvalError)

	return ok
}
