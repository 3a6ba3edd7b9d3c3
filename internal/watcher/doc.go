// Package watcher turns filesystem change notifications for one configured
// directory into single classification passes per file.
//
// A FolderWatcher owns a Source subscription and a per-path Debouncer. Bursts
// of events for a path collapse into one Pipeline.ProcessFile call after the
// debounce delay. Notification failures restart the subscription after a
// fixed delay until the watcher is stopped.
package watcher
