package organizer

import (
	"context"
	"path/filepath"
	"strings"
)

// Preview describes what MoveFile would do for one request.
type Preview struct {
	Request      MoveRequest
	SourceExists bool
	Destination  string
	Collision    bool
	Action       Action
	PlannedPath  string
	Err          error
}

// PreviewOperations dry-runs requests without touching the filesystem beyond
// existence checks.
func (o *Organizer) PreviewOperations(ctx context.Context, requests []MoveRequest) []Preview {
	previews := make([]Preview, 0, len(requests))
	for _, req := range requests {
		previews = append(previews, o.preview(ctx, req))
	}
	return previews
}

func (o *Organizer) preview(ctx context.Context, req MoveRequest) Preview {
	p := Preview{Request: req}
	source, _, err := validateSource(req.SourcePath)
	if err != nil {
		p.Err = err
		return p
	}
	p.SourceExists = true

	strategy := req.Strategy
	if strategy == "" {
		if strategy, err = ParseStrategy(o.cfg.Organizer.ConflictStrategy); err != nil {
			p.Err = err
			return p
		}
	}
	folder, err := o.store.FolderByNumber(ctx, strings.TrimSpace(req.FolderNumber))
	if err != nil {
		p.Err = err
		return p
	}
	baseRoot, err := o.baseRoot(folder, req.DriveID)
	if err != nil {
		p.Err = err
		return p
	}
	dest, err := BuildDestinationPath(folder, filepath.Base(source), baseRoot)
	if err != nil {
		p.Err = err
		return p
	}
	p.Destination = dest
	if dest == source {
		p.Action = ActionSkip
		p.PlannedPath = dest
		return p
	}
	resolution, err := o.resolver.Resolve(dest, strategy)
	if err != nil {
		p.Err = err
		return p
	}
	p.Collision = resolution.Collision
	p.Action = resolution.Action
	p.PlannedPath = resolution.Path
	return p
}
