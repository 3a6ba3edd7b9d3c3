// Package fileutil holds filesystem helpers shared by the organizer: streaming
// and hash-verified copies, a rename that never replaces an existing file, and
// Move, which falls back to copy-and-delete across devices.
package fileutil
