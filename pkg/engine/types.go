package engine

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatementKind tags a parsed declaration produced by the language front end.
type StatementKind string

const (
	// StatementEntity declares a domain entity with a typed schema.
	StatementEntity StatementKind = "entity"

	// StatementPipeline declares a data pipeline with ordered transform steps.
	StatementPipeline StatementKind = "pipeline"

	// StatementAlert declares a condition-triggered alert on an entity.
	StatementAlert StatementKind = "alert"

	// StatementDashboard declares a dashboard over an entity's projection.
	StatementDashboard StatementKind = "dashboard"

	// StatementSource declares an external data source.
	StatementSource StatementKind = "source"

	// StatementDevice declares a device with event subscriptions.
	StatementDevice StatementKind = "device"
)

// Statement is a single parsed declaration from the front end.
// The front end (lexing, parsing, semantic validation) is an external
// collaborator; the compiler consumes its output.
type Statement interface {
	// StatementKind returns the declaration kind tag.
	StatementKind() StatementKind

	// DeclaredName returns the declared name of the statement.
	DeclaredName() string
}

// FieldDef describes one field of an entity schema.
type FieldDef struct {
	// Name is the field name.
	Name string `json:"name" yaml:"name"`

	// Type is the declared field type (string, number, bool, timestamp, ...).
	Type string `json:"type" yaml:"type"`

	// Nullable indicates the field may be absent.
	Nullable bool `json:"nullable,omitempty" yaml:"nullable,omitempty"`

	// Annotations are front-end annotation tags attached to the field.
	Annotations []string `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// EntityStatement declares an entity with an ordered field list.
type EntityStatement struct {
	Name   string     `json:"name" yaml:"name"`
	Fields []FieldDef `json:"fields" yaml:"fields"`
}

// StatementKind implements Statement.
func (s *EntityStatement) StatementKind() StatementKind { return StatementEntity }

// DeclaredName implements Statement.
func (s *EntityStatement) DeclaredName() string { return s.Name }

// TransformStep is one declared step of a pipeline.
type TransformStep struct {
	// Name identifies the step within its pipeline.
	Name string `json:"name" yaml:"name"`

	// Operation is the transform operation to apply (filter, map, enrich, ...).
	Operation string `json:"operation,omitempty" yaml:"operation,omitempty"`

	// Args are operation-specific arguments.
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
}

// PipelineStatement declares a pipeline: an input path, ordered transform
// steps, output paths, and an optional cron schedule.
type PipelineStatement struct {
	Name       string          `json:"name" yaml:"name"`
	Input      string          `json:"input" yaml:"input"`
	Transforms []TransformStep `json:"transforms" yaml:"transforms"`
	Outputs    []string        `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Schedule   string          `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

// StatementKind implements Statement.
func (s *PipelineStatement) StatementKind() StatementKind { return StatementPipeline }

// DeclaredName implements Statement.
func (s *PipelineStatement) DeclaredName() string { return s.Name }

// ConditionExpr is a boolean comparison over a projection field.
type ConditionExpr struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Value    any    `json:"value" yaml:"value"`
}

// String returns the normalized serialized form of the condition,
// e.g. "riskScore > 80".
func (c ConditionExpr) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value)
}

// AlertStatement declares an alert on an entity's projection.
type AlertStatement struct {
	Name      string        `json:"name" yaml:"name"`
	Entity    string        `json:"entity" yaml:"entity"`
	Condition ConditionExpr `json:"condition" yaml:"condition"`
	Targets   []string      `json:"targets,omitempty" yaml:"targets,omitempty"`
}

// StatementKind implements Statement.
func (s *AlertStatement) StatementKind() StatementKind { return StatementAlert }

// DeclaredName implements Statement.
func (s *AlertStatement) DeclaredName() string { return s.Name }

// DashboardStatement declares a dashboard over an entity's projection.
type DashboardStatement struct {
	Name    string   `json:"name" yaml:"name"`
	Entity  string   `json:"entity" yaml:"entity"`
	Widgets []string `json:"widgets,omitempty" yaml:"widgets,omitempty"`
}

// StatementKind implements Statement.
func (s *DashboardStatement) StatementKind() StatementKind { return StatementDashboard }

// DeclaredName implements Statement.
func (s *DashboardStatement) DeclaredName() string { return s.Name }

// SourceStatement declares an external data source.
type SourceStatement struct {
	Name       string `json:"name" yaml:"name"`
	SourceType string `json:"source_type" yaml:"source_type"`
	Endpoint   string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Format     string `json:"format,omitempty" yaml:"format,omitempty"`
}

// StatementKind implements Statement.
func (s *SourceStatement) StatementKind() StatementKind { return StatementSource }

// DeclaredName implements Statement.
func (s *SourceStatement) DeclaredName() string { return s.Name }

// DeviceStatement declares a device and its event subscriptions.
type DeviceStatement struct {
	Name          string   `json:"name" yaml:"name"`
	Subscriptions []string `json:"subscriptions,omitempty" yaml:"subscriptions,omitempty"`
}

// StatementKind implements Statement.
func (s *DeviceStatement) StatementKind() StatementKind { return StatementDevice }

// DeclaredName implements Statement.
func (s *DeviceStatement) DeclaredName() string { return s.Name }

// NodeConfig is the tagged configuration union for execution nodes.
// Each node type has exactly one config variant; the compiler rejects
// mismatches so handlers never see a config of the wrong shape.
type NodeConfig interface {
	// ConfigType returns the node type this config belongs to.
	ConfigType() NodeType
}

// SourceConfig configures a source node.
type SourceConfig struct {
	SourceType string `json:"source_type"`
	Endpoint   string `json:"endpoint,omitempty"`
	Format     string `json:"format,omitempty"`
}

// ConfigType implements NodeConfig.
func (SourceConfig) ConfigType() NodeType { return NodeTypeSource }

// TransformConfig configures one transform node of a pipeline chain.
type TransformConfig struct {
	Pipeline  string         `json:"pipeline"`
	Step      string         `json:"step"`
	Operation string         `json:"operation,omitempty"`
	Args      map[string]any `json:"args,omitempty"`

	// Schedule is set only on the chain head when the pipeline declares one.
	Schedule string `json:"schedule,omitempty"`
}

// ConfigType implements NodeConfig.
func (TransformConfig) ConfigType() NodeType { return NodeTypeTransform }

// AggregateConfig configures the write-side node of an entity.
type AggregateConfig struct {
	Entity string     `json:"entity"`
	Fields []FieldDef `json:"fields"`
}

// ConfigType implements NodeConfig.
func (AggregateConfig) ConfigType() NodeType { return NodeTypeAggregate }

// ProjectionConfig configures the read-side node of an entity.
type ProjectionConfig struct {
	Entity string `json:"entity"`
}

// ConfigType implements NodeConfig.
func (ProjectionConfig) ConfigType() NodeType { return NodeTypeProjection }

// AlertConfig configures an alert node. Condition holds the normalized
// serialized condition expression.
type AlertConfig struct {
	Entity    string `json:"entity"`
	Condition string `json:"condition"`
}

// ConfigType implements NodeConfig.
func (AlertConfig) ConfigType() NodeType { return NodeTypeAlert }

// DashboardConfig configures a dashboard node.
type DashboardConfig struct {
	Entity  string   `json:"entity"`
	Widgets []string `json:"widgets,omitempty"`
}

// ConfigType implements NodeConfig.
func (DashboardConfig) ConfigType() NodeType { return NodeTypeDashboard }

// DeviceConfig configures a device node.
type DeviceConfig struct {
	Subscriptions []string `json:"subscriptions,omitempty"`
}

// ConfigType implements NodeConfig.
func (DeviceConfig) ConfigType() NodeType { return NodeTypeDevice }

// NotificationConfig configures a notification node spawned by an alert.
type NotificationConfig struct {
	Alert  string `json:"alert"`
	Target string `json:"target"`
}

// ConfigType implements NodeConfig.
func (NotificationConfig) ConfigType() NodeType { return NodeTypeNotification }

// ExecutionNode is a single unit of work in the execution graph.
// A node is owned exclusively by its graph; only Status mutates after
// compilation, and only through the executor's monotonic transitions.
type ExecutionNode struct {
	// ID is the unique node identifier, deterministic from kind and name.
	ID string `json:"id"`

	// Type is the node type tag.
	Type NodeType `json:"type"`

	// Name is the declared name this node was emitted from.
	Name string `json:"name"`

	// Config is the type-specific configuration.
	Config NodeConfig `json:"config,omitempty"`

	// Dependencies is the sorted set of node ids this node depends on.
	Dependencies []string `json:"dependencies,omitempty"`

	// Status is the current execution status.
	Status NodeStatus `json:"status"`
}

// nodeJSON mirrors ExecutionNode for (un)marshaling the config union.
type nodeJSON struct {
	ID           string          `json:"id"`
	Type         NodeType        `json:"type"`
	Name         string          `json:"name"`
	Config       json.RawMessage `json:"config,omitempty"`
	Dependencies []string        `json:"dependencies,omitempty"`
	Status       NodeStatus      `json:"status"`
}

// MarshalJSON implements json.Marshaler for the config tagged union.
func (n *ExecutionNode) MarshalJSON() ([]byte, error) {
	var cfg json.RawMessage
	if n.Config != nil {
		b, err := json.Marshal(n.Config)
		if err != nil {
			return nil, err
		}
		cfg = b
	}
	return json.Marshal(nodeJSON{
		ID:           n.ID,
		Type:         n.Type,
		Name:         n.Name,
		Config:       cfg,
		Dependencies: n.Dependencies,
		Status:       n.Status,
	})
}

// UnmarshalJSON implements json.Unmarshaler, selecting the config variant
// by the node type tag.
func (n *ExecutionNode) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.ID = raw.ID
	n.Type = raw.Type
	n.Name = raw.Name
	n.Dependencies = raw.Dependencies
	n.Status = raw.Status
	if len(raw.Config) == 0 {
		n.Config = nil
		return nil
	}
	cfg, err := unmarshalNodeConfig(raw.Type, raw.Config)
	if err != nil {
		return err
	}
	n.Config = cfg
	return nil
}

func unmarshalNodeConfig(t NodeType, data json.RawMessage) (NodeConfig, error) {
	switch t {
	case NodeTypeSource:
		var c SourceConfig
		return c, json.Unmarshal(data, &c)
	case NodeTypeTransform:
		var c TransformConfig
		return c, json.Unmarshal(data, &c)
	case NodeTypeAggregate:
		var c AggregateConfig
		return c, json.Unmarshal(data, &c)
	case NodeTypeProjection:
		var c ProjectionConfig
		return c, json.Unmarshal(data, &c)
	case NodeTypeAlert:
		var c AlertConfig
		return c, json.Unmarshal(data, &c)
	case NodeTypeDashboard:
		var c DashboardConfig
		return c, json.Unmarshal(data, &c)
	case NodeTypeDevice:
		var c DeviceConfig
		return c, json.Unmarshal(data, &c)
	case NodeTypeNotification:
		var c NotificationConfig
		return c, json.Unmarshal(data, &c)
	default:
		return nil, fmt.Errorf("unknown node type %q", t)
	}
}

// ExecutionEdge links two nodes in the graph. Both endpoints must reference
// existing node ids in the same graph.
type ExecutionEdge struct {
	// From is the source node id.
	From string `json:"from"`

	// To is the target node id.
	To string `json:"to"`

	// Kind classifies the relationship.
	Kind EdgeKind `json:"kind"`
}

// GraphMeta carries identifying metadata for a compiled graph.
type GraphMeta struct {
	// Name is the graph name, usually the statement-file or program name.
	Name string `json:"name"`

	// Version is the compiler output version.
	Version string `json:"version"`

	// CreatedAt is when the graph was compiled.
	CreatedAt time.Time `json:"created_at"`

	// ContentHash is the order-independent BLAKE2b fingerprint of the
	// node/edge set. Graphs compiled from identical programs share a hash.
	ContentHash string `json:"content_hash"`
}

// ExecutionGraph is the compiled form of a statement list.
// It is immutable once compiled; recompiling always yields a new value.
type ExecutionGraph struct {
	// Nodes maps node ids to nodes.
	Nodes map[string]*ExecutionNode `json:"nodes"`

	// Edges is the ordered edge list.
	Edges []ExecutionEdge `json:"edges"`

	// EntryPoints are node ids eligible to start a run (sources and
	// scheduled pipeline heads).
	EntryPoints []string `json:"entry_points"`

	// Meta is the graph's identifying metadata.
	Meta GraphMeta `json:"meta"`
}

// Node returns the node with the given id, or nil.
func (g *ExecutionGraph) Node(id string) *ExecutionNode {
	return g.Nodes[id]
}

// ExecutionStage is one topological layer of the plan.
type ExecutionStage struct {
	// Order is the 0-based layer index.
	Order int `json:"order"`

	// Nodes are the node ids sharing this layer, sorted for determinism.
	Nodes []string `json:"nodes"`

	// Parallel is true iff the stage holds more than one node.
	Parallel bool `json:"parallel"`
}

// ExecutionPlan is the staged schedule for a compiled graph.
type ExecutionPlan struct {
	// Graph is the source graph.
	Graph *ExecutionGraph `json:"graph"`

	// Stages is the ascending-ordered stage list. The stage count equals
	// the graph's critical-path length.
	Stages []ExecutionStage `json:"stages"`

	// EstimatedDuration is a coarse heuristic (stage count x fixed cost),
	// not an SLA prediction.
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// NodeResult is the terminal outcome of executing one node.
type NodeResult struct {
	// NodeID is the node this result belongs to.
	NodeID string `json:"node_id"`

	// Status is the terminal status (completed or failed).
	Status NodeStatus `json:"status"`

	// Output is the value produced by the handler, if any.
	Output map[string]any `json:"output,omitempty"`

	// Error is the handler failure, if any.
	Error *EngineError `json:"error,omitempty"`

	// StartedAt is when the handler was invoked.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the handler returned.
	CompletedAt time.Time `json:"completed_at"`

	// Duration is the handler execution time.
	Duration time.Duration `json:"duration"`
}

// ExecutionResult aggregates the outcome of one plan run.
type ExecutionResult struct {
	// RunID is the executor-assigned identifier of this run. Journal
	// events carry the same id.
	RunID string `json:"run_id"`

	// Success is true iff no handler error accumulated.
	Success bool `json:"success"`

	// Results maps node ids to their results. Nodes in stages that were
	// never attempted have no entry.
	Results map[string]*NodeResult `json:"results"`

	// Errors is the accumulated handler error list.
	Errors []*EngineError `json:"errors,omitempty"`

	// StagesRun is the number of stages that were attempted.
	StagesRun int `json:"stages_run"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run finished.
	CompletedAt time.Time `json:"completed_at"`

	// Duration is the total run time.
	Duration time.Duration `json:"duration"`
}

// CompletedNodes returns the ids of nodes that completed successfully.
func (r *ExecutionResult) CompletedNodes() []string {
	ids := make([]string, 0, len(r.Results))
	for id, res := range r.Results {
		if res.Status == NodeStatusCompleted {
			ids = append(ids, id)
		}
	}
	return ids
}

// SummaryError returns a stage-level aggregation error for a failed run,
// and nil for a successful one. Under the fail-stage policy the failing
// stage is always the last one attempted.
func (r *ExecutionResult) SummaryError() *EngineError {
	if r.Success || len(r.Errors) == 0 {
		return nil
	}
	return NewAggregationError(r.StagesRun-1, len(r.Errors))
}

// CompilationWarning is a recoverable compile-time finding, such as an
// unresolved input, output, or subscription path.
type CompilationWarning struct {
	// Code identifies the warning category.
	Code string `json:"code"`

	// Message is the human-readable warning text.
	Message string `json:"message"`

	// Declaration is the statement the warning was raised for.
	Declaration string `json:"declaration,omitempty"`
}
