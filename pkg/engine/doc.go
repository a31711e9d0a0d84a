// Package engine compiles declarative process specifications into execution
// graphs, plans them into topological stages, and executes them against a
// pluggable handler registry.
//
// # Overview
//
// The engine operates as a strict left-to-right pipeline:
//
//  1. Compile - turn a parsed statement list into an ExecutionGraph (Compiler)
//  2. Plan - layer the graph into an ExecutionPlan of stages (Planner)
//  3. Execute - run the plan against a HandlerRegistry (Executor)
//
// A fourth phase, self-verification, lives in the verify package and
// consumes the executor's output read-only.
//
// # Core Domain Types
//
//   - Statement: a parsed declaration (entity/pipeline/alert/dashboard/source/device)
//   - ExecutionNode: one unit of work, with a type-tagged config union
//   - ExecutionEdge: a (from, to, kind) relationship between nodes
//   - ExecutionGraph: immutable, content-addressed compile output
//   - ExecutionStage / ExecutionPlan: topological layers, ascending order
//   - NodeResult / ExecutionResult: per-node and aggregate run outcomes
//
// # Scheduling Guarantees
//
// A node never starts before all of its declared dependencies are terminal,
// and stage N+1 never starts before every node in stage N is terminal,
// success or failure. Concurrency exists only inside a single stage
// (fan-out/fan-in); stages themselves are serialized by a barrier. On a
// node failure the stage's already-dispatched siblings run to completion
// and no later stage is attempted (fail-stage policy).
//
// # Error Classification
//
// Errors carry an ErrorKind locating them in the pipeline:
//
//   - compilation: duplicate declarations, invalid configs
//   - planning: dependency cycles
//   - handler: a node handler failure, captured into the result
//   - aggregation: one or more handler failures within a stage
//
// Handler failures are never thrown past the executor boundary; they become
// failed NodeResults plus entries in the aggregate error list.
//
// # Immutability
//
// Graphs and plans are created once per compile/plan cycle and never
// mutated in place; the only post-compile mutation is the monotonic node
// status transition pending -> running -> completed|failed during
// execution. Recompiling always yields a new graph value, and identical
// programs compile to graphs with equal content hashes.
package engine
