package engine

import (
	"fmt"
	"sync"
)

// ExecutionContext is the keyed, write-once store of node outputs shared
// across one plan run. Each node id is written at most once, so concurrent
// same-stage writers never race on a key; later-stage handlers read the
// outputs of their upstream nodes through it. Cross-run state is never
// shared.
type ExecutionContext struct {
	mu      sync.RWMutex
	outputs map[string]map[string]any
}

// NewExecutionContext creates an empty execution context.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{outputs: make(map[string]map[string]any)}
}

// Set records a node's output. Writing the same node id twice is an
// internal error; node ids are unique per run.
func (ec *ExecutionContext) Set(nodeID string, output map[string]any) error {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if _, exists := ec.outputs[nodeID]; exists {
		return NewInternalError(
			fmt.Sprintf("output for node %s already written", nodeID), nil).
			WithCode(ErrCodeInternal).WithNode(nodeID)
	}
	ec.outputs[nodeID] = output
	return nil
}

// Get returns the recorded output for a node id.
func (ec *ExecutionContext) Get(nodeID string) (map[string]any, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out, ok := ec.outputs[nodeID]
	return out, ok
}

// Len returns the number of recorded outputs.
func (ec *ExecutionContext) Len() int {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return len(ec.outputs)
}
