// Package services defines shared utilities consumed by the matcher, organizer,
// and watcher components.
//
// Key responsibilities:
//   - Context helpers that stamp watch configuration IDs, organized record IDs,
//     batch IDs, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper and Classify, which sort
//     failures into validation, filesystem (not found, permission, cross-device,
//     conflict), and state errors so callers can decide between retrying,
//     surfacing, or ignoring them.
//
// Use these helpers at every public boundary so operational behaviour stays
// uniform across the pipeline.
package services
