// Package daemon coordinates the long-running filer process.
//
// It wires the store, matching engine, organizer, watch pipeline, and
// supervisor into a single lifecycle guarded by a flock so only one daemon
// runs per data directory. Watcher events are forwarded to ntfy through the
// notifications package. When paths.api_bind is set an HTTP server exposes
// /api/status, /api/activity, /api/history, and (with metrics enabled)
// /metrics.
package daemon
