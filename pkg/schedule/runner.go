package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/veridag/veridag/pkg/engine"
)

// TriggerFunc runs one scheduled pipeline. The node is the pipeline's head
// transform, which is the graph entry point the schedule was declared on.
type TriggerFunc func(ctx context.Context, node *engine.ExecutionNode) error

// Runner fires scheduled pipelines from a compiled graph. Each pipeline
// whose head transform carries a schedule expression gets a cron entry; the
// trigger function decides what a firing means (typically executing the
// plan).
type Runner struct {
	logger  zerolog.Logger
	cron    *cron.Cron
	trigger TriggerFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID
	started bool
}

// NewRunner creates a schedule runner. Schedules use the standard five
// field cron format.
func NewRunner(logger zerolog.Logger, trigger TriggerFunc) *Runner {
	return &Runner{
		logger:  logger.With().Str("component", "schedule-runner").Logger(),
		cron:    cron.New(),
		trigger: trigger,
		entries: make(map[string]cron.EntryID),
	}
}

// Register adds cron entries for every scheduled pipeline head in the
// graph. Registering the same graph again replaces earlier entries, so a
// watch-mode recompile can call Register with the new graph directly.
func (r *Runner) Register(ctx context.Context, graph *engine.ExecutionGraph) error {
	if graph == nil {
		return fmt.Errorf("graph is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.entries {
		r.cron.Remove(id)
	}
	r.entries = make(map[string]cron.EntryID)

	ids := make([]string, 0, len(graph.Nodes))
	for id := range graph.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		node := graph.Nodes[id]
		cfg, ok := node.Config.(engine.TransformConfig)
		if !ok || cfg.Schedule == "" {
			continue
		}

		entryID, err := r.cron.AddFunc(cfg.Schedule, func() {
			r.fire(ctx, node)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule pipeline %s: %w", cfg.Pipeline, err)
		}
		r.entries[node.ID] = entryID

		r.logger.Info().
			Str("pipeline", cfg.Pipeline).
			Str("node_id", node.ID).
			Str("schedule", cfg.Schedule).
			Msg("Pipeline schedule registered")
	}

	return nil
}

// Start begins firing registered schedules.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return
	}
	r.cron.Start()
	r.started = true
	r.logger.Info().Int("schedules", len(r.entries)).Msg("Schedule runner started")
}

// Stop stops firing and waits for in-flight triggers started by cron to
// return.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return
	}
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
	r.started = false
	r.logger.Info().Msg("Schedule runner stopped")
}

// Len reports how many schedules are registered.
func (r *Runner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Runner) fire(ctx context.Context, node *engine.ExecutionNode) {
	r.logger.Info().Str("node_id", node.ID).Msg("Schedule fired")

	if err := r.trigger(ctx, node); err != nil {
		r.logger.Error().Err(err).Str("node_id", node.ID).Msg("Scheduled run failed")
	}
}
