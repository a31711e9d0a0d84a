package engine

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// testGraph builds a graph directly from node ids and their dependencies.
func testGraph(t *testing.T, deps map[string][]string) *ExecutionGraph {
	t.Helper()
	nodes := make(map[string]*ExecutionNode, len(deps))
	for id, d := range deps {
		nodes[id] = &ExecutionNode{
			ID:           id,
			Type:         NodeTypeTransform,
			Name:         id,
			Dependencies: d,
			Status:       NodeStatusPending,
		}
	}
	return &ExecutionGraph{Nodes: nodes}
}

func stageOf(t *testing.T, plan *ExecutionPlan, id string) int {
	t.Helper()
	for _, stage := range plan.Stages {
		for _, n := range stage.Nodes {
			if n == id {
				return stage.Order
			}
		}
	}
	t.Fatalf("node %s not in any stage", id)
	return -1
}

// TestPlanLayering checks the longest-path property: every node lands one
// stage past its deepest dependency, not merely after its shallowest.
func TestPlanLayering(t *testing.T) {
	// d depends on both a root and a depth-2 node.
	plan, err := NewPlanner().Plan(testGraph(t, map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"b"},
		"d": {"a", "c"},
	}))
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	if got := stageOf(t, plan, "a"); got != 0 {
		t.Errorf("stage(a) = %d, want 0", got)
	}
	if got := stageOf(t, plan, "d"); got != 3 {
		t.Errorf("stage(d) = %d, want 3", got)
	}

	for _, stage := range plan.Stages {
		for _, id := range stage.Nodes {
			for _, dep := range plan.Graph.Nodes[id].Dependencies {
				if stageOf(t, plan, dep) >= stage.Order {
					t.Errorf("node %s scheduled at or before its dependency %s", id, dep)
				}
			}
		}
	}
}

// TestPlanParallelStages checks fan-out marking and node ordering.
func TestPlanParallelStages(t *testing.T) {
	plan, err := NewPlanner().Plan(testGraph(t, map[string][]string{
		"root": nil,
		"z":    {"root"},
		"a":    {"root"},
		"m":    {"root"},
	}))
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	if len(plan.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(plan.Stages))
	}
	if plan.Stages[0].Parallel {
		t.Error("single-node stage marked parallel")
	}
	if !plan.Stages[1].Parallel {
		t.Error("three-node stage not marked parallel")
	}

	got := strings.Join(plan.Stages[1].Nodes, ",")
	if got != "a,m,z" {
		t.Errorf("stage nodes not sorted: %s", got)
	}
}

// TestPlanCycleDetection checks that cycles fail planning with the cycle
// path in the message.
func TestPlanCycleDetection(t *testing.T) {
	_, err := NewPlanner().Plan(testGraph(t, map[string][]string{
		"a": {"c"},
		"b": {"a"},
		"c": {"b"},
	}))
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !IsPlanning(err) {
		t.Errorf("expected planning error, got %v", err)
	}
	var ee *EngineError
	if !errors.As(err, &ee) || ee.Code != ErrCodeCycleDetected {
		t.Errorf("expected code %s, got %v", ErrCodeCycleDetected, err)
	}
	if !strings.Contains(ee.Message, " -> ") {
		t.Errorf("cycle path missing from message: %s", ee.Message)
	}
}

// TestPlanSelfCycle checks that a self-dependency is rejected.
func TestPlanSelfCycle(t *testing.T) {
	_, err := NewPlanner().Plan(testGraph(t, map[string][]string{
		"a": {"a"},
	}))
	if err == nil {
		t.Fatal("expected cycle error for self-dependency")
	}
}

// TestPlanEstimatedDuration checks the per-stage duration estimate.
func TestPlanEstimatedDuration(t *testing.T) {
	plan, err := NewPlanner().Plan(testGraph(t, map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"b"},
	}))
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	want := 3 * StagePerNodeCost
	if plan.EstimatedDuration != want {
		t.Errorf("estimated duration = %v, want %v", plan.EstimatedDuration, want)
	}
}

// TestPlanCompiledGraph checks staging of a realistic compiled graph: the
// entity pair, a dependent alert, and its notification occupy consecutive
// stages.
func TestPlanCompiledGraph(t *testing.T) {
	graph, err := NewCompiler("test").Compile([]Statement{
		entityStmt("Customer", "id", "total"),
		&AlertStatement{
			Name:      "HighValue",
			Entity:    "Customer",
			Condition: ConditionExpr{Field: "total", Operator: ">", Value: 100},
			Targets:   []string{"email"},
		},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	plan, err := NewPlanner().Plan(graph)
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	want := map[string]int{
		AggregateNodeID("Customer"):              0,
		ProjectionNodeID("Customer"):             1,
		AlertNodeID("HighValue"):                 2,
		NotificationNodeID("HighValue", "email"): 3,
	}
	for id, stage := range want {
		if got := stageOf(t, plan, id); got != stage {
			t.Errorf("stage(%s) = %d, want %d", id, got, stage)
		}
	}

	if plan.EstimatedDuration != time.Duration(len(plan.Stages))*StagePerNodeCost {
		t.Errorf("estimated duration %v does not match stage count %d",
			plan.EstimatedDuration, len(plan.Stages))
	}
}
