// Package schedule fires scheduled pipelines from a compiled execution
// graph using cron expressions declared on the pipelines themselves.
//
// The Runner scans a graph for pipeline head transforms carrying a
// schedule, registers one cron entry per pipeline, and invokes a caller
// supplied trigger function on each firing. Registration is idempotent per
// graph so watch mode can re-register after every recompile.
package schedule
