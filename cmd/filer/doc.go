// Command filer is the command-line interface for the filer file organizer.
//
// One-shot commands (match, move, rollback, preview, rules, watch, tree)
// open the SQLite store directly and share the same matching engine and
// organizer the daemon uses. `filer daemon run` hosts the long-running
// watcher process in the foreground.
package main
