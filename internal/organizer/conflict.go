package organizer

import (
	"fmt"
	"path/filepath"
	"strings"

	"filer/internal/fileutil"
	"filer/internal/services"
)

// DefaultMaxRenameAttempts bounds the " (n)" suffix search.
const DefaultMaxRenameAttempts = 100

// Strategy decides what happens when the destination is already occupied.
type Strategy string

const (
	StrategyRename    Strategy = "rename"
	StrategySkip      Strategy = "skip"
	StrategyOverwrite Strategy = "overwrite"
)

// ParseStrategy validates a strategy name. An empty value yields "".
func ParseStrategy(value string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(value))); s {
	case "", StrategyRename, StrategySkip, StrategyOverwrite:
		return s, nil
	default:
		return "", services.Wrap(services.ErrValidation, "organizer", "parse strategy",
			fmt.Sprintf("Unknown conflict strategy %q; use rename, skip, or overwrite", value), nil)
	}
}

// Action is the concrete step chosen for a destination.
type Action string

const (
	ActionMove      Action = "move"
	ActionRename    Action = "rename"
	ActionOverwrite Action = "overwrite"
	ActionSkip      Action = "skip"
)

// Resolution is the outcome of resolving a proposed destination.
type Resolution struct {
	Path      string
	Action    Action
	Collision bool
}

// ConflictResolver picks the final destination for a proposed path.
type ConflictResolver struct {
	maxAttempts int
	exists      func(string) (bool, error)
}

// NewConflictResolver returns a resolver that tries at most maxAttempts
// numbered names before giving up.
func NewConflictResolver(maxAttempts int) *ConflictResolver {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRenameAttempts
	}
	return &ConflictResolver{maxAttempts: maxAttempts, exists: fileutil.Exists}
}

// Resolve applies strategy to dest. The filesystem is only inspected.
func (r *ConflictResolver) Resolve(dest string, strategy Strategy) (Resolution, error) {
	occupied, err := r.exists(dest)
	if err != nil {
		return Resolution{}, services.Wrap(services.ErrTransient, "organizer", "inspect destination",
			"Unable to check destination", err)
	}
	if !occupied {
		return Resolution{Path: dest, Action: ActionMove}, nil
	}
	switch strategy {
	case StrategySkip:
		return Resolution{Path: dest, Action: ActionSkip, Collision: true}, nil
	case StrategyOverwrite:
		return Resolution{Path: dest, Action: ActionOverwrite, Collision: true}, nil
	case StrategyRename, "":
		candidate, err := r.nextFreeName(dest)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Path: candidate, Action: ActionRename, Collision: true}, nil
	default:
		return Resolution{}, services.Wrap(services.ErrValidation, "organizer", "resolve conflict",
			fmt.Sprintf("Unknown conflict strategy %q", strategy), nil)
	}
}

func (r *ConflictResolver) nextFreeName(dest string) (string, error) {
	dir := filepath.Dir(dest)
	stem, ext := splitName(filepath.Base(dest))
	for n := 1; n <= r.maxAttempts; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		occupied, err := r.exists(candidate)
		if err != nil {
			return "", services.Wrap(services.ErrTransient, "organizer", "inspect destination",
				"Unable to check candidate name", err)
		}
		if !occupied {
			return candidate, nil
		}
	}
	return "", services.Wrap(services.ErrConflict, "organizer", "allocate name",
		fmt.Sprintf("No free name for %s after %d attempts", filepath.Base(dest), r.maxAttempts), nil)
}

// splitName separates the extension, treating a leading dot as part of the
// stem so ".env" becomes ".env (1)".
func splitName(name string) (string, string) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		return name, ""
	}
	return stem, ext
}
