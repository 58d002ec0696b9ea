package models

import (
	"maps"
	"sync"
	"time"
)

// ExecutionLog is one entry in a run's ordered log.
type ExecutionLog struct {
	Timestamp int64    `json:"timestamp"`
	NodeID    string   `json:"nodeId"`
	Level     LogLevel `json:"level"`
	Message   string   `json:"message"`
	Data      any      `json:"data,omitempty"`
}

// RunResult is what a workflow run reports to its caller.
type RunResult struct {
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	Logs       []ExecutionLog `json:"logs"`
	FinalState map[string]any `json:"finalState"`
	Duration   time.Duration  `json:"duration"`
}

// GlobalState is the per-run store shared by every node of a run. Writes are
// last-write-wins; the mutex only keeps the map itself consistent.
type GlobalState struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewGlobalState(initial map[string]any) *GlobalState {
	values := make(map[string]any, len(initial)+1)
	maps.Copy(values, initial)

	return &GlobalState{values: values}
}

func (s *GlobalState) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]

	return v, ok
}

func (s *GlobalState) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
}

func (s *GlobalState) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
}

// MergeObject shallow-merges fields into the object stored under key,
// replacing any non-object value already there.
func (s *GlobalState) MergeObject(key string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, _ := s.values[key].(map[string]any)
	merged := make(map[string]any, len(existing)+len(fields))
	maps.Copy(merged, existing)
	maps.Copy(merged, fields)
	s.values[key] = merged
}

// Snapshot returns a shallow copy of the store.
func (s *GlobalState) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.values)
}
