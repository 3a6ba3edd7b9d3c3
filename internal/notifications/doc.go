// Package notifications delivers watcher events to ntfy.
//
// NewService returns an ntfy publisher when notifications.ntfy_topic is set
// and a no-op otherwise. Per-type toggles (organized, queued, errors) decide
// which events are sent, and min_interval_seconds throttles delivery with a
// token bucket. Attach connects a Service to the event bus through a bounded
// queue drained on a dedicated goroutine.
package notifications
