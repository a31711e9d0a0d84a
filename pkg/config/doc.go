// Package config loads declarative statement documents from YAML files and
// converts them into the engine's statement types.
//
// # Overview
//
// A statement document is a named list of declarations (entities, pipelines,
// alerts, dashboards, sources, and devices). The Loader performs three steps:
//
//  1. YAML decoding into the Document form
//  2. Structural validation with go-playground/validator tags, including
//     kind-conditional requirements (an alert must carry a condition, a
//     pipeline must carry transforms, and so on)
//  3. Conversion to engine.Statement values, with cron schedule expressions
//     checked at load time so an invalid schedule fails fast instead of at
//     trigger time
//
// The Watcher wraps fsnotify to re-deliver the parsed document whenever the
// file changes, which powers watch mode in the CLI.
package config
