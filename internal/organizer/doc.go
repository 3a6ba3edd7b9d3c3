// Package organizer relocates files into the folder taxonomy and keeps an
// auditable, reversible record of every move.
//
// It builds destination paths from folder metadata and a base storage root,
// resolves name collisions with the configured conflict strategy, and performs
// the move as a no-replace rename with a verified copy fallback across devices.
// Rollback, batch execution with progress callbacks, and dry-run previews are
// layered on the same primitives so every caller sees one set of error kinds.
package organizer
