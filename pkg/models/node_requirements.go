package models

import (
	"strconv"
	"strings"
	"time"
)

// InputWaitMode defines how a merge node waits for its producers.
type InputWaitMode string

const (
	// WaitModeAll withholds firing until every expected input arrived.
	WaitModeAll InputWaitMode = "ALL"
	// WaitModeAny fires on every arrival, passing the input through.
	WaitModeAny InputWaitMode = "ANY"
)

// TimeoutBehavior decides what a WaitModeAll merge does on deadline.
type TimeoutBehavior string

const (
	TimeoutExecute TimeoutBehavior = "execute"
	TimeoutThrow   TimeoutBehavior = "throw"
)

// InputRequirements defines how a node should wait for and coordinate inputs.
type InputRequirements struct {
	WaitMode        InputWaitMode
	Expected        int
	Timeout         time.Duration
	TimeoutBehavior TimeoutBehavior
}

// NodeInputRequirements lets a node declare input coordination needs. Nodes
// that don't implement it run once per arrival.
type NodeInputRequirements interface {
	InputRequirements() InputRequirements
}

// DefaultMergeTimeout applies when a WaitModeAll merge declares no timeout.
const DefaultMergeTimeout = time.Second

// MergeRequirements reads a merge node's mode, timeout (milliseconds) and
// timeoutBehavior params. Mode is case-insensitive and defaults to ANY.
func MergeRequirements(params map[string]any, expected int) InputRequirements {
	req := InputRequirements{
		WaitMode:        WaitModeAny,
		Expected:        expected,
		Timeout:         DefaultMergeTimeout,
		TimeoutBehavior: TimeoutExecute,
	}

	if mode, ok := params["mode"].(string); ok && strings.EqualFold(mode, string(WaitModeAll)) {
		req.WaitMode = WaitModeAll
	}

	switch t := params["timeout"].(type) {
	case float64:
		req.Timeout = time.Duration(t * float64(time.Millisecond))
	case int:
		req.Timeout = time.Duration(t) * time.Millisecond
	case string:
		if ms, err := strconv.ParseFloat(t, 64); err == nil {
			req.Timeout = time.Duration(ms * float64(time.Millisecond))
		}
	}

	if b, ok := params["timeoutBehavior"].(string); ok && TimeoutBehavior(b) == TimeoutThrow {
		req.TimeoutBehavior = TimeoutThrow
	}

	return req
}
