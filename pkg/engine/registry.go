package engine

import (
	"context"
	"sort"
)

// Handler executes one node. It receives the node and the shared execution
// context, which exposes outputs of earlier-stage nodes, and returns the
// node's produced value or an error. Handlers are supplied per NodeType by
// external subsystems (data fetch, transforms, notification dispatch,
// rendering) and must be safe for concurrent invocation across nodes.
type Handler func(ctx context.Context, node *ExecutionNode, ec *ExecutionContext) (map[string]any, error)

// HandlerRegistry maps node types to their handlers. A registry is an
// immutable value constructed once and injected into the executor; there is
// no process-wide mutable registration.
type HandlerRegistry struct {
	handlers map[NodeType]Handler
}

// NewHandlerRegistry creates a registry from the given handler map.
// The map is copied; later mutation of the argument has no effect.
func NewHandlerRegistry(handlers map[NodeType]Handler) *HandlerRegistry {
	copied := make(map[NodeType]Handler, len(handlers))
	for t, h := range handlers {
		copied[t] = h
	}
	return &HandlerRegistry{handlers: copied}
}

// Get returns the handler for the node type.
func (r *HandlerRegistry) Get(t NodeType) (Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

// Types returns the sorted node types with a registered handler.
func (r *HandlerRegistry) Types() []NodeType {
	types := make([]NodeType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// NewSimulationRegistry returns a registry whose handlers produce synthetic
// outputs without external I/O. It backs dry runs and the CLI demo mode.
func NewSimulationRegistry() *HandlerRegistry {
	simulate := func(kind string) Handler {
		return func(_ context.Context, node *ExecutionNode, _ *ExecutionContext) (map[string]any, error) {
			return map[string]any{
				"node":      node.ID,
				"kind":      kind,
				"simulated": true,
			}, nil
		}
	}

	return NewHandlerRegistry(map[NodeType]Handler{
		NodeTypeSource:       simulate("source"),
		NodeTypeTransform:    simulate("transform"),
		NodeTypeAggregate:    simulate("aggregate"),
		NodeTypeProjection:   simulate("projection"),
		NodeTypeAlert:        simulate("alert"),
		NodeTypeDashboard:    simulate("dashboard"),
		NodeTypeDevice:       simulate("device"),
		NodeTypeNotification: simulate("notification"),
	})
}
