package taxonomy

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"filer/internal/filetype"
)

// FileDescriptor is the ephemeral input to matching.
type FileDescriptor struct {
	Name         string
	Path         string
	Ext          string
	TypeCategory filetype.Type
	Size         int64
	ModTime      time.Time
}

// NewFileDescriptor builds a descriptor without touching disk.
func NewFileDescriptor(path string, size int64) FileDescriptor {
	name := filepath.Base(path)
	ext := filetype.Normalize(filepath.Ext(name))
	return FileDescriptor{
		Name:         name,
		Path:         path,
		Ext:          ext,
		TypeCategory: filetype.Classify(ext),
		Size:         size,
	}
}

// DescribeFile stats path and builds its descriptor.
func DescribeFile(path string) (FileDescriptor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileDescriptor{}, fmt.Errorf("resolve %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return FileDescriptor{}, err
	}
	if info.IsDir() {
		return FileDescriptor{}, fmt.Errorf("%s is a directory", abs)
	}
	desc := NewFileDescriptor(abs, info.Size())
	desc.ModTime = info.ModTime()
	return desc, nil
}

// Dir returns the directory portion of the descriptor's path.
func (f FileDescriptor) Dir() string {
	return filepath.Dir(f.Path)
}

// Source identifies what produced a suggestion.
type Source string

const (
	SourceRule      Source = "rule"
	SourceHeuristic Source = "heuristic"
)

// MatchSuggestion is one ranked destination candidate. Rule is nil for
// heuristic suggestions.
type MatchSuggestion struct {
	Folder     FolderTarget
	Rule       *Rule
	Confidence Confidence
	Reason     string
	Source     Source
}

// Priority returns the producing rule's priority, or zero for heuristics.
func (s MatchSuggestion) Priority() int {
	if s.Rule == nil {
		return 0
	}
	return s.Rule.Priority
}

// RuleID returns the producing rule's id when present.
func (s MatchSuggestion) RuleID() *int64 {
	if s.Rule == nil {
		return nil
	}
	id := s.Rule.ID
	return &id
}
