package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxParallel bounds fan-out within a parallel stage when no
// explicit limit is configured.
const DefaultMaxParallel = 8

// Executor runs an ExecutionPlan stage by stage against a handler registry.
//
// Stages are strictly serialized by a barrier: stage k+1 never starts until
// every node in stage k has reached a terminal state. Within a parallel
// stage all nodes fan out concurrently (bounded by maxParallel) and the
// stage completes only when all finish. A node failure marks the node
// failed and accumulates the error without disturbing in-flight siblings,
// but no subsequent stage is attempted (fail-stage policy). There is no
// mid-stage cancellation.
type Executor struct {
	registry  *HandlerRegistry
	publisher EventPublisher

	maxParallel int
}

// NewExecutor creates an executor with the given handler registry.
// publisher may be nil; maxParallel <= 0 selects DefaultMaxParallel.
func NewExecutor(registry *HandlerRegistry, publisher EventPublisher, maxParallel int) *Executor {
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	return &Executor{
		registry:    registry,
		publisher:   publisher,
		maxParallel: maxParallel,
	}
}

// Execute runs the plan to completion or to the first failed stage.
// Handler failures never escape as returned errors; they become failed
// NodeResults and entries in the result's error list. The returned error is
// non-nil only for an unusable plan.
func (e *Executor) Execute(ctx context.Context, plan *ExecutionPlan) (*ExecutionResult, error) {
	if plan == nil || plan.Graph == nil {
		return nil, NewInternalError("plan has no graph", nil).WithCode(ErrCodeInternal)
	}

	runID := uuid.New().String()
	ec := NewExecutionContext()
	result := &ExecutionResult{
		RunID:     runID,
		Results:   make(map[string]*NodeResult),
		StartedAt: time.Now().UTC(),
	}

	e.publish(ctx, &Event{
		Type:    EventTypeRunStarted,
		RunID:   runID,
		Message: fmt.Sprintf("run started: %d stage(s)", len(plan.Stages)),
	})

	failed := false
	for _, stage := range plan.Stages {
		e.publish(ctx, &Event{
			Type:    EventTypeStageStarted,
			RunID:   runID,
			Stage:   stage.Order,
			Message: fmt.Sprintf("stage %d: %d node(s)", stage.Order, len(stage.Nodes)),
		})

		stageErrs := e.runStage(ctx, runID, plan.Graph, stage, ec, result)
		result.StagesRun++

		if len(stageErrs) > 0 {
			result.Errors = append(result.Errors, stageErrs...)
			failed = true
			break
		}
	}

	result.Success = len(result.Errors) == 0
	result.CompletedAt = time.Now().UTC()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)

	if failed {
		e.publish(ctx, &Event{
			Type:    EventTypeRunFailed,
			RunID:   runID,
			Message: fmt.Sprintf("run stopped after stage %d: %d error(s)", result.StagesRun-1, len(result.Errors)),
		})
	} else {
		e.publish(ctx, &Event{
			Type:    EventTypeRunCompleted,
			RunID:   runID,
			Message: "run completed",
		})
	}

	return result, nil
}

// runStage executes one stage to the barrier and returns its handler errors.
func (e *Executor) runStage(
	ctx context.Context,
	runID string,
	graph *ExecutionGraph,
	stage ExecutionStage,
	ec *ExecutionContext,
	result *ExecutionResult,
) []*EngineError {
	var (
		mu   sync.Mutex
		errs []*EngineError
	)

	record := func(nr *NodeResult, err *EngineError) {
		mu.Lock()
		defer mu.Unlock()
		result.Results[nr.NodeID] = nr
		if err != nil {
			errs = append(errs, err)
		}
	}

	if !stage.Parallel {
		for _, id := range stage.Nodes {
			record(e.runNode(ctx, runID, graph.Nodes[id], ec))
		}
		return errs
	}

	// Fan-out. Already-dispatched nodes always run to completion; the
	// barrier below is the only synchronization point.
	workers := e.maxParallel
	if len(stage.Nodes) < workers {
		workers = len(stage.Nodes)
	}

	queue := make(chan *ExecutionNode, len(stage.Nodes))
	for _, id := range stage.Nodes {
		queue <- graph.Nodes[id]
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for node := range queue {
				record(e.runNode(ctx, runID, node, ec))
			}
		}()
	}
	wg.Wait()

	return errs
}

// runNode transitions a single node through its lifecycle and invokes its
// handler.
func (e *Executor) runNode(
	ctx context.Context,
	runID string,
	node *ExecutionNode,
	ec *ExecutionContext,
) (*NodeResult, *EngineError) {
	nr := &NodeResult{
		NodeID:    node.ID,
		StartedAt: time.Now().UTC(),
	}

	node.Status = NodeStatusRunning
	e.publish(ctx, &Event{
		Type:    EventTypeNodeStarted,
		RunID:   runID,
		NodeID:  node.ID,
		Message: fmt.Sprintf("executing %s node %s", node.Type, node.Name),
	})

	handler, ok := e.registry.Get(node.Type)
	if !ok {
		herr := NewHandlerError(node.ID,
			fmt.Errorf("no handler registered for node type %s", node.Type)).
			WithCode(ErrCodeHandlerMissing)
		return e.finishNode(ctx, runID, node, nr, nil, herr), herr
	}

	output, err := handler(ctx, node, ec)
	if err != nil {
		herr := NewHandlerError(node.ID, err).WithCode(ErrCodeHandlerFailed)
		return e.finishNode(ctx, runID, node, nr, nil, herr), herr
	}

	if output != nil {
		if serr := ec.Set(node.ID, output); serr != nil {
			herr := NewHandlerError(node.ID, serr).WithCode(ErrCodeInternal)
			return e.finishNode(ctx, runID, node, nr, nil, herr), herr
		}
	}

	return e.finishNode(ctx, runID, node, nr, output, nil), nil
}

func (e *Executor) finishNode(
	ctx context.Context,
	runID string,
	node *ExecutionNode,
	nr *NodeResult,
	output map[string]any,
	herr *EngineError,
) *NodeResult {
	nr.CompletedAt = time.Now().UTC()
	nr.Duration = nr.CompletedAt.Sub(nr.StartedAt)
	nr.Output = output
	nr.Error = herr

	if herr != nil {
		node.Status = NodeStatusFailed
		nr.Status = NodeStatusFailed
		e.publish(ctx, &Event{
			Type:    EventTypeNodeFailed,
			RunID:   runID,
			NodeID:  node.ID,
			Message: herr.Error(),
		})
		return nr
	}

	node.Status = NodeStatusCompleted
	nr.Status = NodeStatusCompleted
	e.publish(ctx, &Event{
		Type:    EventTypeNodeCompleted,
		RunID:   runID,
		NodeID:  node.ID,
		Message: fmt.Sprintf("completed %s node %s", node.Type, node.Name),
	})
	return nr
}

// publish sends an event to the configured publisher, if any. Events are
// best-effort; a publish failure never affects execution.
func (e *Executor) publish(ctx context.Context, event *Event) {
	if e.publisher == nil {
		return
	}
	event.ID = uuid.New().String()
	event.Timestamp = time.Now().UTC()
	_ = e.publisher.Publish(ctx, event)
}
