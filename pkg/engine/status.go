package engine

import (
	"encoding/json"
	"fmt"
)

// NodeType identifies what kind of work an execution node represents.
// It is also the key under which handlers are registered.
type NodeType string

const (
	// NodeTypeSource is a dependency-free data origin (sensor feed, http poll, file).
	NodeTypeSource NodeType = "source"

	// NodeTypeTransform is a single pipeline transformation step.
	NodeTypeTransform NodeType = "transform"

	// NodeTypeAggregate is the write-side node of a declared entity.
	NodeTypeAggregate NodeType = "aggregate"

	// NodeTypeProjection is the read-side node derived from an aggregate.
	NodeTypeProjection NodeType = "projection"

	// NodeTypeAlert evaluates a boolean condition against a projection.
	NodeTypeAlert NodeType = "alert"

	// NodeTypeDashboard renders projection data.
	NodeTypeDashboard NodeType = "dashboard"

	// NodeTypeDevice represents a physical or virtual device subscription target.
	NodeTypeDevice NodeType = "device"

	// NodeTypeNotification dispatches an alert to a delivery target.
	NodeTypeNotification NodeType = "notification"
)

// Validate checks if the node type is valid.
func (t NodeType) Validate() error {
	switch t {
	case NodeTypeSource, NodeTypeTransform, NodeTypeAggregate, NodeTypeProjection,
		NodeTypeAlert, NodeTypeDashboard, NodeTypeDevice, NodeTypeNotification:
		return nil
	default:
		return fmt.Errorf("invalid node type: %s", t)
	}
}

// NodeStatus represents the execution status of a node.
// Transitions are monotonic: pending -> running -> completed|failed.
type NodeStatus string

const (
	// NodeStatusPending indicates the node has not started executing.
	NodeStatusPending NodeStatus = "pending"

	// NodeStatusRunning indicates the node's handler is currently executing.
	NodeStatusRunning NodeStatus = "running"

	// NodeStatusCompleted indicates the node's handler finished successfully.
	NodeStatusCompleted NodeStatus = "completed"

	// NodeStatusFailed indicates the node's handler returned an error.
	NodeStatusFailed NodeStatus = "failed"
)

// IsTerminal returns true if the status represents a final state.
func (s NodeStatus) IsTerminal() bool {
	return s == NodeStatusCompleted || s == NodeStatusFailed
}

// CanTransition reports whether moving to next is a legal monotonic transition.
func (s NodeStatus) CanTransition(next NodeStatus) bool {
	switch s {
	case NodeStatusPending:
		return next == NodeStatusRunning
	case NodeStatusRunning:
		return next == NodeStatusCompleted || next == NodeStatusFailed
	default:
		return false
	}
}

// Validate checks if the node status is valid.
func (s NodeStatus) Validate() error {
	switch s {
	case NodeStatusPending, NodeStatusRunning, NodeStatusCompleted, NodeStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid node status: %s", s)
	}
}

// EdgeKind classifies the relationship an edge expresses between two nodes.
type EdgeKind string

const (
	// EdgeKindData indicates data flowing from one node into another.
	EdgeKindData EdgeKind = "data"

	// EdgeKindEvent indicates an event subscription relationship.
	EdgeKindEvent EdgeKind = "event"

	// EdgeKindDependency indicates a pure ordering dependency.
	EdgeKindDependency EdgeKind = "dependency"

	// EdgeKindCondition indicates a conditionally-triggered relationship.
	EdgeKindCondition EdgeKind = "condition"
)

// Validate checks if the edge kind is valid.
func (k EdgeKind) Validate() error {
	switch k {
	case EdgeKindData, EdgeKindEvent, EdgeKindDependency, EdgeKindCondition:
		return nil
	default:
		return fmt.Errorf("invalid edge kind: %s", k)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s NodeStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *NodeStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = NodeStatus(str)
	return s.Validate()
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (t NodeType) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(t))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (t *NodeType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*t = NodeType(str)
	return t.Validate()
}
