// Package telemetry provides logging, metrics, and tracing for the veridag
// engine.
//
// # Overview
//
// The package bundles three concerns behind one Config:
//
//   - Structured logging with zerolog (console or JSON output, field
//     helpers for run, node, and graph identity)
//   - Prometheus metrics for compilation, run, node, and verification
//     activity, exposed over an HTTP /metrics endpoint
//   - Distributed tracing with OpenTelemetry, exporting over OTLP gRPC or
//     stdout, with span helpers matching the engine's pipeline phases
//     (compile, run, stage, node, verify)
//
// All three are optional: a disabled config yields cheap no-op instances so
// call sites never need nil checks.
package telemetry
