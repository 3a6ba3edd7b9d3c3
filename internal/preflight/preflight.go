// Package preflight runs environment checks before the daemon starts and on
// demand from `filer doctor`: directory access, database health, watched
// folder availability, and ntfy reachability.
package preflight

import (
	"context"
	"fmt"
	"sort"

	"filer/internal/config"
	"filer/internal/taxonomy"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Store is the subset of the store that preflight reads.
type Store interface {
	Ping(ctx context.Context) error
	Path() string
	ListWatchedFolders(ctx context.Context, activeOnly bool) ([]taxonomy.WatchedFolderConfig, error)
}

// RunAll executes every applicable check. st may be nil, in which case the
// database and watched folder checks are skipped.
func RunAll(ctx context.Context, cfg *config.Config, st Store) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDirectoryAccess("Storage root", cfg.Storage.Root))

	drives := make([]string, 0, len(cfg.Storage.Drives))
	for id := range cfg.Storage.Drives {
		drives = append(drives, id)
	}
	sort.Strings(drives)
	for _, id := range drives {
		results = append(results, CheckDirectoryAccess(fmt.Sprintf("Drive %q", id), cfg.Storage.Drives[id]))
	}

	if st != nil {
		results = append(results, CheckDatabase(ctx, st))
		results = append(results, CheckWatchedFolders(ctx, st)...)
	}

	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
