package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// StagePerNodeCost is the fixed per-stage cost used for the coarse
// duration estimate.
const StagePerNodeCost = 100 * time.Millisecond

// Planner schedules an ExecutionGraph into concurrency-safe stages.
//
// Layering is longest-path: a node's layer is one past the deepest of its
// dependencies, so a node is only ever scheduled after every dependency has
// reached a terminal state, and the stage count equals the critical-path
// length. The dependency sets are the single source of truth here, not the
// raw edge list.
type Planner struct {
	// layers memoizes each node's computed layer.
	layers map[string]int
}

// NewPlanner creates a stage planner.
func NewPlanner() *Planner {
	return &Planner{layers: make(map[string]int)}
}

// Plan computes the staged execution plan for the graph.
// The graph must be acyclic; a dependency cycle fails fast with a
// planning error before any layering runs.
func (p *Planner) Plan(graph *ExecutionGraph) (*ExecutionPlan, error) {
	if graph == nil {
		return nil, NewPlanningError("graph is nil", nil).WithCode(ErrCodeInternal)
	}

	if err := detectCycles(graph); err != nil {
		return nil, err
	}

	byLayer := make(map[int][]string)
	maxLayer := -1
	for id := range graph.Nodes {
		layer := p.layerOf(graph, id)
		byLayer[layer] = append(byLayer[layer], id)
		if layer > maxLayer {
			maxLayer = layer
		}
	}

	stages := make([]ExecutionStage, 0, maxLayer+1)
	for order := 0; order <= maxLayer; order++ {
		ids := byLayer[order]
		sort.Strings(ids)
		stages = append(stages, ExecutionStage{
			Order:    order,
			Nodes:    ids,
			Parallel: len(ids) > 1,
		})
	}

	return &ExecutionPlan{
		Graph:             graph,
		Stages:            stages,
		EstimatedDuration: time.Duration(len(stages)) * StagePerNodeCost,
	}, nil
}

// layerOf returns the node's topological layer: 0 for dependency-free
// nodes, otherwise 1 + max over dependency layers. Memoized depth-first
// recursion; safe because cycle detection has already run.
func (p *Planner) layerOf(graph *ExecutionGraph, id string) int {
	if layer, ok := p.layers[id]; ok {
		return layer
	}
	node := graph.Nodes[id]
	layer := 0
	for _, dep := range node.Dependencies {
		if _, ok := graph.Nodes[dep]; !ok {
			continue
		}
		if l := p.layerOf(graph, dep) + 1; l > layer {
			layer = l
		}
	}
	p.layers[id] = layer
	return layer
}

// detectCycles runs a depth-first search over the dependency relation with
// recursion-stack coloring. The first cycle found is reported with its path.
func detectCycles(graph *ExecutionGraph) error {
	visited := make(map[string]bool)
	inStack := make(map[string]bool)

	ids := make([]string, 0, len(graph.Nodes))
	for id := range graph.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if visited[id] {
			continue
		}
		if cycle := walkCycles(graph, id, visited, inStack, nil); cycle != nil {
			return NewPlanningError(
				fmt.Sprintf("dependency cycle detected: %s", strings.Join(cycle, " -> ")), nil).
				WithCode(ErrCodeCycleDetected)
		}
	}
	return nil
}

func walkCycles(graph *ExecutionGraph, id string, visited, inStack map[string]bool, path []string) []string {
	visited[id] = true
	inStack[id] = true
	path = append(path, id)

	for _, dep := range graph.Nodes[id].Dependencies {
		if _, ok := graph.Nodes[dep]; !ok {
			continue
		}
		if !visited[dep] {
			if cycle := walkCycles(graph, dep, visited, inStack, path); cycle != nil {
				return cycle
			}
		} else if inStack[dep] {
			// Reconstruct the cycle from where dep first entered the path.
			for i, n := range path {
				if n == dep {
					return append(append([]string(nil), path[i:]...), dep)
				}
			}
			return append(path, dep)
		}
	}

	inStack[id] = false
	return nil
}
