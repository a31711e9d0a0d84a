package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// GraphVersion is the compiler output version recorded in graph metadata.
const GraphVersion = "1"

// Compiler turns a parsed statement list into an ExecutionGraph.
//
// Compilation runs in three passes: node emission per declaration kind,
// cross-reference linking, and implicit-dependency resolution. Linking runs
// after all nodes exist, so reference resolution does not depend on the
// order statements appear in the program.
//
// A Compiler is single-use: create one per Compile call.
type Compiler struct {
	graphName string

	nodes       map[string]*ExecutionNode
	edges       []ExecutionEdge
	entryPoints map[string]bool
	warnings    []CompilationWarning
}

// NewCompiler creates a compiler for a graph with the given name.
func NewCompiler(graphName string) *Compiler {
	return &Compiler{
		graphName:   graphName,
		nodes:       make(map[string]*ExecutionNode),
		edges:       make([]ExecutionEdge, 0),
		entryPoints: make(map[string]bool),
	}
}

// Deterministic node id constructors. Identical declarations always compile
// to identical ids, which keeps the content hash stable.

// SourceNodeID returns the node id for a declared source.
func SourceNodeID(name string) string { return "source:" + name }

// AggregateNodeID returns the write-side node id for a declared entity.
func AggregateNodeID(entity string) string { return "aggregate:" + entity }

// ProjectionNodeID returns the read-side node id for a declared entity.
func ProjectionNodeID(entity string) string { return "projection:" + entity }

// TransformNodeID returns the node id for one pipeline transform step.
func TransformNodeID(pipeline, step string) string {
	return pipeline + ":transform:" + step
}

// AlertNodeID returns the node id for a declared alert.
func AlertNodeID(name string) string { return "alert:" + name }

// NotificationNodeID returns the node id for an alert's notification target.
func NotificationNodeID(alert, target string) string {
	return "notification:" + alert + ":" + target
}

// DashboardNodeID returns the node id for a declared dashboard.
func DashboardNodeID(name string) string { return "dashboard:" + name }

// DeviceNodeID returns the node id for a declared device.
func DeviceNodeID(name string) string { return "device:" + name }

// Compile builds an immutable ExecutionGraph from the statement list.
// Recoverable findings (unresolved path references) are collected as
// warnings, retrievable via Warnings after Compile returns.
func (c *Compiler) Compile(statements []Statement) (*ExecutionGraph, error) {
	// Pass 1: emit declaration-owned nodes and intra-declaration edges.
	for _, stmt := range statements {
		if err := c.emit(stmt); err != nil {
			return nil, err
		}
	}

	// Pass 2: resolve cross-declaration references.
	for _, stmt := range statements {
		c.link(stmt)
	}

	// Pass 3: implicit-dependency resolution. Any non-source node left with
	// an empty dependency set receives the union of its incoming-edge
	// sources, so dependencies and edges agree regardless of emission order.
	c.resolveImplicitDependencies()

	hash, err := contentHash(c.nodes, c.edges)
	if err != nil {
		return nil, NewInternalError("failed to hash graph", err).WithCode(ErrCodeInternal)
	}

	entries := make([]string, 0, len(c.entryPoints))
	for id := range c.entryPoints {
		entries = append(entries, id)
	}
	sort.Strings(entries)

	return &ExecutionGraph{
		Nodes:       c.nodes,
		Edges:       c.edges,
		EntryPoints: entries,
		Meta: GraphMeta{
			Name:        c.graphName,
			Version:     GraphVersion,
			CreatedAt:   time.Now().UTC(),
			ContentHash: hash,
		},
	}, nil
}

// Warnings returns the recoverable findings collected during Compile.
func (c *Compiler) Warnings() []CompilationWarning {
	return c.warnings
}

// emit creates the nodes a single declaration owns.
func (c *Compiler) emit(stmt Statement) error {
	switch s := stmt.(type) {
	case *EntityStatement:
		return c.emitEntity(s)
	case *PipelineStatement:
		return c.emitPipeline(s)
	case *AlertStatement:
		return c.emitAlert(s)
	case *DashboardStatement:
		return c.emitDashboard(s)
	case *SourceStatement:
		return c.emitSource(s)
	case *DeviceStatement:
		return c.emitDevice(s)
	default:
		return NewCompilationError(
			fmt.Sprintf("unsupported statement kind %T", stmt), nil).
			WithCode(ErrCodeInvalidConfig)
	}
}

func (c *Compiler) emitEntity(s *EntityStatement) error {
	aggID := AggregateNodeID(s.Name)
	if err := c.addNode(&ExecutionNode{
		ID:     aggID,
		Type:   NodeTypeAggregate,
		Name:   s.Name,
		Config: AggregateConfig{Entity: s.Name, Fields: s.Fields},
		Status: NodeStatusPending,
	}); err != nil {
		return err
	}

	projID := ProjectionNodeID(s.Name)
	if err := c.addNode(&ExecutionNode{
		ID:           projID,
		Type:         NodeTypeProjection,
		Name:         s.Name,
		Config:       ProjectionConfig{Entity: s.Name},
		Dependencies: []string{aggID},
		Status:       NodeStatusPending,
	}); err != nil {
		return err
	}

	return c.addEdge(aggID, projID, EdgeKindEvent)
}

func (c *Compiler) emitPipeline(s *PipelineStatement) error {
	var prev string
	for i, step := range s.Transforms {
		cfg := TransformConfig{
			Pipeline:  s.Name,
			Step:      step.Name,
			Operation: step.Operation,
			Args:      step.Args,
		}
		if i == 0 {
			cfg.Schedule = s.Schedule
		}

		id := TransformNodeID(s.Name, step.Name)
		node := &ExecutionNode{
			ID:     id,
			Type:   NodeTypeTransform,
			Name:   step.Name,
			Config: cfg,
			Status: NodeStatusPending,
		}
		if prev != "" {
			node.Dependencies = []string{prev}
		}
		if err := c.addNode(node); err != nil {
			return err
		}

		if prev != "" {
			if err := c.addEdge(prev, id, EdgeKindData); err != nil {
				return err
			}
		} else if s.Schedule != "" {
			// A scheduled pipeline starts runs on its own; the chain head
			// becomes a graph entry point.
			c.entryPoints[id] = true
		}
		prev = id
	}
	return nil
}

func (c *Compiler) emitAlert(s *AlertStatement) error {
	alertID := AlertNodeID(s.Name)
	if err := c.addNode(&ExecutionNode{
		ID:     alertID,
		Type:   NodeTypeAlert,
		Name:   s.Name,
		Config: AlertConfig{Entity: s.Entity, Condition: s.Condition.String()},
		Status: NodeStatusPending,
	}); err != nil {
		return err
	}

	for _, target := range s.Targets {
		id := NotificationNodeID(s.Name, target)
		if err := c.addNode(&ExecutionNode{
			ID:           id,
			Type:         NodeTypeNotification,
			Name:         target,
			Config:       NotificationConfig{Alert: s.Name, Target: target},
			Dependencies: []string{alertID},
			Status:       NodeStatusPending,
		}); err != nil {
			return err
		}
		if err := c.addEdge(alertID, id, EdgeKindCondition); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) emitDashboard(s *DashboardStatement) error {
	return c.addNode(&ExecutionNode{
		ID:     DashboardNodeID(s.Name),
		Type:   NodeTypeDashboard,
		Name:   s.Name,
		Config: DashboardConfig{Entity: s.Entity, Widgets: s.Widgets},
		Status: NodeStatusPending,
	})
}

func (c *Compiler) emitSource(s *SourceStatement) error {
	id := SourceNodeID(s.Name)
	if err := c.addNode(&ExecutionNode{
		ID:     id,
		Type:   NodeTypeSource,
		Name:   s.Name,
		Config: SourceConfig{SourceType: s.SourceType, Endpoint: s.Endpoint, Format: s.Format},
		Status: NodeStatusPending,
	}); err != nil {
		return err
	}
	c.entryPoints[id] = true
	return nil
}

func (c *Compiler) emitDevice(s *DeviceStatement) error {
	return c.addNode(&ExecutionNode{
		ID:     DeviceNodeID(s.Name),
		Type:   NodeTypeDevice,
		Name:   s.Name,
		Config: DeviceConfig{Subscriptions: s.Subscriptions},
		Status: NodeStatusPending,
	})
}

// link resolves a declaration's references against the emitted node set.
func (c *Compiler) link(stmt Statement) {
	switch s := stmt.(type) {
	case *PipelineStatement:
		c.linkPipeline(s)
	case *AlertStatement:
		c.linkAlert(s)
	case *DashboardStatement:
		c.linkDashboard(s)
	case *DeviceStatement:
		c.linkDevice(s)
	}
}

func (c *Compiler) linkPipeline(s *PipelineStatement) {
	if len(s.Transforms) == 0 {
		return
	}
	head := TransformNodeID(s.Name, s.Transforms[0].Name)
	tail := TransformNodeID(s.Name, s.Transforms[len(s.Transforms)-1].Name)

	if s.Input != "" {
		if src, ok := c.resolveInput(s.Input); ok {
			_ = c.addEdge(src, head, EdgeKindData)
			c.addDependency(head, src)
		} else {
			c.warn(ErrCodeUnresolvedReference, s.Name,
				fmt.Sprintf("pipeline %s: unresolved input %q", s.Name, s.Input))
		}
	}

	for _, out := range s.Outputs {
		if dst, ok := c.resolveOutput(out); ok {
			_ = c.addEdge(tail, dst, EdgeKindData)
			c.addDependency(dst, tail)
		} else {
			c.warn(ErrCodeUnresolvedReference, s.Name,
				fmt.Sprintf("pipeline %s: unresolved output %q", s.Name, out))
		}
	}
}

func (c *Compiler) linkAlert(s *AlertStatement) {
	projID := ProjectionNodeID(s.Entity)
	alertID := AlertNodeID(s.Name)
	if _, ok := c.nodes[projID]; !ok {
		c.warn(ErrCodeUnresolvedReference, s.Name,
			fmt.Sprintf("alert %s: unknown entity %q", s.Name, s.Entity))
		return
	}
	_ = c.addEdge(projID, alertID, EdgeKindEvent)
	c.addDependency(alertID, projID)
}

func (c *Compiler) linkDashboard(s *DashboardStatement) {
	projID := ProjectionNodeID(s.Entity)
	dashID := DashboardNodeID(s.Name)
	if _, ok := c.nodes[projID]; !ok {
		c.warn(ErrCodeUnresolvedReference, s.Name,
			fmt.Sprintf("dashboard %s: unknown entity %q", s.Name, s.Entity))
		return
	}
	_ = c.addEdge(projID, dashID, EdgeKindData)
	c.addDependency(dashID, projID)
}

func (c *Compiler) linkDevice(s *DeviceStatement) {
	devID := DeviceNodeID(s.Name)
	for _, sub := range s.Subscriptions {
		src, ok := c.resolveSubscription(sub)
		if !ok {
			c.warn(ErrCodeUnresolvedReference, s.Name,
				fmt.Sprintf("device %s: unresolved subscription %q", s.Name, sub))
			continue
		}
		_ = c.addEdge(src, devID, EdgeKindEvent)
		c.addDependency(devID, src)
	}
}

// resolveInput matches a pipeline input path's root segment against
// source, projection, and pipeline-tail node ids, in that order.
func (c *Compiler) resolveInput(path string) (string, bool) {
	root := pathRoot(path)
	if id := SourceNodeID(root); c.has(id) {
		return id, true
	}
	if id := ProjectionNodeID(root); c.has(id) {
		return id, true
	}
	if id, ok := c.pipelineTail(root); ok {
		return id, true
	}
	return "", false
}

// resolveOutput matches a pipeline output path's root segment against
// dashboard, projection, aggregate, and device node ids, in that order.
func (c *Compiler) resolveOutput(path string) (string, bool) {
	root := pathRoot(path)
	for _, id := range []string{
		DashboardNodeID(root),
		ProjectionNodeID(root),
		AggregateNodeID(root),
		DeviceNodeID(root),
	} {
		if c.has(id) {
			return id, true
		}
	}
	return "", false
}

// resolveSubscription matches a device subscription path against
// projection, alert, and pipeline-tail node ids; first match wins.
func (c *Compiler) resolveSubscription(path string) (string, bool) {
	root := pathRoot(path)
	if id := ProjectionNodeID(root); c.has(id) {
		return id, true
	}
	if id := AlertNodeID(root); c.has(id) {
		return id, true
	}
	if id, ok := c.pipelineTail(root); ok {
		return id, true
	}
	return "", false
}

// pipelineTail finds the last transform node of the named pipeline, i.e.
// the transform node with the given pipeline prefix that no same-pipeline
// data edge departs from.
func (c *Compiler) pipelineTail(pipeline string) (string, bool) {
	prefix := pipeline + ":transform:"
	hasOutgoing := make(map[string]bool)
	for _, e := range c.edges {
		if strings.HasPrefix(e.From, prefix) && strings.HasPrefix(e.To, prefix) {
			hasOutgoing[e.From] = true
		}
	}
	var tail string
	for id, node := range c.nodes {
		if node.Type != NodeTypeTransform || !strings.HasPrefix(id, prefix) {
			continue
		}
		if !hasOutgoing[id] {
			// Chains are linear, so at most one transform lacks an
			// outgoing in-pipeline edge.
			tail = id
		}
	}
	return tail, tail != ""
}

func pathRoot(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}

func (c *Compiler) resolveImplicitDependencies() {
	incoming := make(map[string][]string)
	for _, e := range c.edges {
		incoming[e.To] = append(incoming[e.To], e.From)
	}
	for id, node := range c.nodes {
		if node.Type == NodeTypeSource || len(node.Dependencies) > 0 {
			continue
		}
		for _, from := range incoming[id] {
			c.addDependency(id, from)
		}
	}
}

func (c *Compiler) addNode(node *ExecutionNode) error {
	if node.Name == "" {
		return NewCompilationError("declaration has empty name", nil).
			WithCode(ErrCodeInvalidConfig)
	}
	if node.Config != nil && node.Config.ConfigType() != node.Type {
		return NewInternalError(
			fmt.Sprintf("config type %s does not match node type %s",
				node.Config.ConfigType(), node.Type), nil).
			WithCode(ErrCodeInternal).WithNode(node.ID)
	}
	if _, exists := c.nodes[node.ID]; exists {
		return NewCompilationError(
			fmt.Sprintf("duplicate declaration: node id %s already exists", node.ID), nil).
			WithCode(ErrCodeDuplicateDeclaration).WithNode(node.ID)
	}
	c.nodes[node.ID] = node
	return nil
}

func (c *Compiler) addEdge(from, to string, kind EdgeKind) error {
	if !c.has(from) || !c.has(to) {
		return NewInternalError(
			fmt.Sprintf("edge %s -> %s references a missing node", from, to), nil).
			WithCode(ErrCodeInternal)
	}
	c.edges = append(c.edges, ExecutionEdge{From: from, To: to, Kind: kind})
	return nil
}

// addDependency inserts dep into the node's sorted dependency set.
func (c *Compiler) addDependency(nodeID, dep string) {
	node, ok := c.nodes[nodeID]
	if !ok {
		return
	}
	i := sort.SearchStrings(node.Dependencies, dep)
	if i < len(node.Dependencies) && node.Dependencies[i] == dep {
		return
	}
	node.Dependencies = append(node.Dependencies, "")
	copy(node.Dependencies[i+1:], node.Dependencies[i:])
	node.Dependencies[i] = dep
}

func (c *Compiler) has(id string) bool {
	_, ok := c.nodes[id]
	return ok
}

func (c *Compiler) warn(code, declaration, message string) {
	c.warnings = append(c.warnings, CompilationWarning{
		Code:        code,
		Message:     message,
		Declaration: declaration,
	})
}
