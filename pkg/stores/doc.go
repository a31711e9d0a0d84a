// Package stores provides the SQLite-backed append-only event log.
//
// The log is an optional collaborator: execution handlers and the CLI may
// journal run events to it, but the core engine runs without it. Streams
// carry per-stream optimistic concurrency (Append with an expected
// version), ordered reads from a version offset, and in-process glob
// subscriptions dispatched synchronously with Append.
//
// Storage uses modernc.org/sqlite in WAL mode with schema migrations
// embedded via golang-migrate.
package stores
