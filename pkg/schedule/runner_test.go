package schedule

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/veridag/veridag/pkg/engine"
)

func compileGraph(t *testing.T, statements []engine.Statement) *engine.ExecutionGraph {
	t.Helper()
	graph, err := engine.NewCompiler("test").Compile(statements)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	return graph
}

func scheduledPipeline(name, schedule string) *engine.PipelineStatement {
	return &engine.PipelineStatement{
		Name:     name,
		Schedule: schedule,
		Transforms: []engine.TransformStep{
			{Name: "extract", Operation: "fetch"},
			{Name: "load", Operation: "store"},
		},
	}
}

// TestRegisterScheduledPipelines registers one entry per scheduled
// pipeline head and none for unscheduled ones.
func TestRegisterScheduledPipelines(t *testing.T) {
	graph := compileGraph(t, []engine.Statement{
		scheduledPipeline("Nightly", "0 2 * * *"),
		scheduledPipeline("Hourly", "0 * * * *"),
		&engine.PipelineStatement{
			Name:       "Manual",
			Transforms: []engine.TransformStep{{Name: "t", Operation: "map"}},
		},
	})

	runner := NewRunner(zerolog.Nop(), func(context.Context, *engine.ExecutionNode) error {
		return nil
	})
	if err := runner.Register(context.Background(), graph); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if runner.Len() != 2 {
		t.Errorf("registered = %d, want 2", runner.Len())
	}
}

// TestRegisterReplacesEntries re-registers with a new graph and checks the
// old entries are gone.
func TestRegisterReplacesEntries(t *testing.T) {
	runner := NewRunner(zerolog.Nop(), func(context.Context, *engine.ExecutionNode) error {
		return nil
	})

	first := compileGraph(t, []engine.Statement{
		scheduledPipeline("A", "0 2 * * *"),
		scheduledPipeline("B", "0 3 * * *"),
	})
	if err := runner.Register(context.Background(), first); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	second := compileGraph(t, []engine.Statement{
		scheduledPipeline("C", "0 4 * * *"),
	})
	if err := runner.Register(context.Background(), second); err != nil {
		t.Fatalf("re-register failed: %v", err)
	}
	if runner.Len() != 1 {
		t.Errorf("registered = %d after re-register, want 1", runner.Len())
	}
}

// TestRegisterRejectsBadExpression surfaces invalid cron expressions.
func TestRegisterRejectsBadExpression(t *testing.T) {
	graph := compileGraph(t, []engine.Statement{
		scheduledPipeline("Broken", "not a schedule"),
	})

	runner := NewRunner(zerolog.Nop(), func(context.Context, *engine.ExecutionNode) error {
		return nil
	})
	if err := runner.Register(context.Background(), graph); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

// TestRegisterNilGraph rejects a nil graph.
func TestRegisterNilGraph(t *testing.T) {
	runner := NewRunner(zerolog.Nop(), func(context.Context, *engine.ExecutionNode) error {
		return nil
	})
	if err := runner.Register(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil graph")
	}
}

// TestFireInvokesTrigger exercises the firing path directly.
func TestFireInvokesTrigger(t *testing.T) {
	var fired []*engine.ExecutionNode
	runner := NewRunner(zerolog.Nop(), func(_ context.Context, node *engine.ExecutionNode) error {
		fired = append(fired, node)
		return nil
	})

	graph := compileGraph(t, []engine.Statement{
		scheduledPipeline("Nightly", "0 2 * * *"),
	})
	head := graph.Node(engine.TransformNodeID("Nightly", "extract"))

	runner.fire(context.Background(), head)
	if len(fired) != 1 || fired[0].ID != head.ID {
		t.Errorf("fired = %v", fired)
	}
}

// TestStartStopIdempotent checks Start and Stop tolerate repeated calls.
func TestStartStopIdempotent(t *testing.T) {
	runner := NewRunner(zerolog.Nop(), func(context.Context, *engine.ExecutionNode) error {
		return nil
	})
	runner.Start()
	runner.Start()
	runner.Stop()
	runner.Stop()
}
