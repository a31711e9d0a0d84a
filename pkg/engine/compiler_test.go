package engine

import (
	"errors"
	"testing"
)

func entityStmt(name string, fields ...string) *EntityStatement {
	defs := make([]FieldDef, len(fields))
	for i, f := range fields {
		defs[i] = FieldDef{Name: f, Type: "string"}
	}
	return &EntityStatement{Name: name, Fields: defs}
}

func hasEdge(g *ExecutionGraph, from, to string, kind EdgeKind) bool {
	for _, e := range g.Edges {
		if e.From == from && e.To == to && e.Kind == kind {
			return true
		}
	}
	return false
}

// TestCompileEntity checks the aggregate/projection pair every entity
// declaration expands into.
func TestCompileEntity(t *testing.T) {
	graph, err := NewCompiler("test").Compile([]Statement{
		entityStmt("Customer", "id", "total"),
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	if len(graph.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(graph.Nodes))
	}

	agg := graph.Node(AggregateNodeID("Customer"))
	if agg == nil {
		t.Fatal("missing aggregate node")
	}
	if agg.Type != NodeTypeAggregate {
		t.Errorf("aggregate node has type %s", agg.Type)
	}
	if len(agg.Dependencies) != 0 {
		t.Errorf("aggregate should have no dependencies, got %v", agg.Dependencies)
	}

	proj := graph.Node(ProjectionNodeID("Customer"))
	if proj == nil {
		t.Fatal("missing projection node")
	}
	if len(proj.Dependencies) != 1 || proj.Dependencies[0] != agg.ID {
		t.Errorf("projection dependencies = %v, want [%s]", proj.Dependencies, agg.ID)
	}

	if !hasEdge(graph, agg.ID, proj.ID, EdgeKindEvent) {
		t.Error("missing event edge aggregate -> projection")
	}
}

// TestCompilePipelineChain checks a source-fed pipeline flowing into a
// dashboard: the transforms chain with data edges and the endpoints link
// through reference resolution.
func TestCompilePipelineChain(t *testing.T) {
	graph, err := NewCompiler("test").Compile([]Statement{
		&SourceStatement{Name: "S", SourceType: "http", Endpoint: "https://example.com/feed"},
		&PipelineStatement{
			Name:  "P",
			Input: "S.data",
			Transforms: []TransformStep{
				{Name: "t1", Operation: "filter"},
				{Name: "t2", Operation: "map"},
			},
			Outputs: []string{"D"},
		},
		&DashboardStatement{Name: "D", Entity: "Customer", Widgets: []string{"chart"}},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	t1 := TransformNodeID("P", "t1")
	t2 := TransformNodeID("P", "t2")
	if t1 != "P:transform:t1" {
		t.Fatalf("unexpected transform id %s", t1)
	}

	for _, want := range []struct {
		from, to string
	}{
		{SourceNodeID("S"), t1},
		{t1, t2},
		{t2, DashboardNodeID("D")},
	} {
		if !hasEdge(graph, want.from, want.to, EdgeKindData) {
			t.Errorf("missing data edge %s -> %s", want.from, want.to)
		}
	}

	head := graph.Node(t1)
	if len(head.Dependencies) != 1 || head.Dependencies[0] != SourceNodeID("S") {
		t.Errorf("head dependencies = %v", head.Dependencies)
	}

	// The source is the only entry point of an unscheduled pipeline.
	if len(graph.EntryPoints) != 1 || graph.EntryPoints[0] != SourceNodeID("S") {
		t.Errorf("entry points = %v", graph.EntryPoints)
	}
}

// TestCompileAlertFanOut checks that an alert on an entity hangs off the
// entity's projection and fans out one notification per target.
func TestCompileAlertFanOut(t *testing.T) {
	graph, err := NewCompiler("test").Compile([]Statement{
		entityStmt("Customer", "id", "total"),
		&AlertStatement{
			Name:      "HighValue",
			Entity:    "Customer",
			Condition: ConditionExpr{Field: "total", Operator: ">", Value: 100},
			Targets:   []string{"email", "sms"},
		},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	alert := graph.Node(AlertNodeID("HighValue"))
	if alert == nil {
		t.Fatal("missing alert node")
	}
	cfg := alert.Config.(AlertConfig)
	if cfg.Condition != "total > 100" {
		t.Errorf("condition = %q", cfg.Condition)
	}

	if !hasEdge(graph, ProjectionNodeID("Customer"), alert.ID, EdgeKindEvent) {
		t.Error("missing event edge projection -> alert")
	}

	for _, target := range []string{"email", "sms"} {
		id := NotificationNodeID("HighValue", target)
		n := graph.Node(id)
		if n == nil {
			t.Fatalf("missing notification node %s", id)
		}
		if !hasEdge(graph, alert.ID, id, EdgeKindCondition) {
			t.Errorf("missing condition edge alert -> %s", id)
		}
	}
}

// TestCompileOrderIndependent checks that statement order affects neither
// resolution nor the content hash.
func TestCompileOrderIndependent(t *testing.T) {
	stmts := []Statement{
		entityStmt("Customer", "id"),
		&AlertStatement{
			Name:      "A",
			Entity:    "Customer",
			Condition: ConditionExpr{Field: "id", Operator: "!=", Value: ""},
			Targets:   []string{"email"},
		},
		&DashboardStatement{Name: "D", Entity: "Customer"},
	}
	reversed := []Statement{stmts[2], stmts[1], stmts[0]}

	g1, err := NewCompiler("test").Compile(stmts)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	g2, err := NewCompiler("test").Compile(reversed)
	if err != nil {
		t.Fatalf("compile of reversed statements failed: %v", err)
	}

	if g1.Meta.ContentHash == "" {
		t.Fatal("empty content hash")
	}
	if g1.Meta.ContentHash != g2.Meta.ContentHash {
		t.Errorf("content hash depends on statement order: %s != %s",
			g1.Meta.ContentHash, g2.Meta.ContentHash)
	}
}

// TestCompileDuplicateDeclaration checks the duplicate-id failure path.
func TestCompileDuplicateDeclaration(t *testing.T) {
	_, err := NewCompiler("test").Compile([]Statement{
		entityStmt("Customer", "id"),
		entityStmt("Customer", "name"),
	})
	if err == nil {
		t.Fatal("expected error for duplicate declaration")
	}
	if !IsCompilation(err) {
		t.Errorf("expected compilation error, got %v", err)
	}
	var ee *EngineError
	if !errors.As(err, &ee) || ee.Code != ErrCodeDuplicateDeclaration {
		t.Errorf("expected code %s, got %v", ErrCodeDuplicateDeclaration, err)
	}
}

// TestCompileUnresolvedReference checks that a dangling reference degrades
// to a warning instead of failing the compile.
func TestCompileUnresolvedReference(t *testing.T) {
	compiler := NewCompiler("test")
	graph, err := compiler.Compile([]Statement{
		&PipelineStatement{
			Name:       "P",
			Input:      "Missing.data",
			Transforms: []TransformStep{{Name: "t1", Operation: "map"}},
		},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if graph.Node(TransformNodeID("P", "t1")) == nil {
		t.Fatal("transform node should still be emitted")
	}

	warnings := compiler.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	if warnings[0].Code != ErrCodeUnresolvedReference {
		t.Errorf("warning code = %s", warnings[0].Code)
	}
	if warnings[0].Declaration != "P" {
		t.Errorf("warning declaration = %s", warnings[0].Declaration)
	}
}

// TestCompileScheduledPipeline checks that a schedule lands on the chain
// head and makes it an entry point.
func TestCompileScheduledPipeline(t *testing.T) {
	graph, err := NewCompiler("test").Compile([]Statement{
		&PipelineStatement{
			Name:     "Nightly",
			Schedule: "0 2 * * *",
			Transforms: []TransformStep{
				{Name: "extract", Operation: "fetch"},
				{Name: "load", Operation: "store"},
			},
		},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	head := graph.Node(TransformNodeID("Nightly", "extract"))
	cfg := head.Config.(TransformConfig)
	if cfg.Schedule != "0 2 * * *" {
		t.Errorf("head schedule = %q", cfg.Schedule)
	}

	next := graph.Node(TransformNodeID("Nightly", "load"))
	if next.Config.(TransformConfig).Schedule != "" {
		t.Error("schedule should only be set on the chain head")
	}

	if len(graph.EntryPoints) != 1 || graph.EntryPoints[0] != head.ID {
		t.Errorf("entry points = %v, want [%s]", graph.EntryPoints, head.ID)
	}
}

// TestCompilePipelineToPipeline checks chaining one pipeline's input onto
// another pipeline's tail.
func TestCompilePipelineToPipeline(t *testing.T) {
	graph, err := NewCompiler("test").Compile([]Statement{
		&PipelineStatement{
			Name:       "First",
			Transforms: []TransformStep{{Name: "a", Operation: "map"}, {Name: "b", Operation: "map"}},
		},
		&PipelineStatement{
			Name:       "Second",
			Input:      "First",
			Transforms: []TransformStep{{Name: "c", Operation: "map"}},
		},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	tail := TransformNodeID("First", "b")
	head := TransformNodeID("Second", "c")
	if !hasEdge(graph, tail, head, EdgeKindData) {
		t.Errorf("missing data edge %s -> %s", tail, head)
	}
}
