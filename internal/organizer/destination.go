package organizer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"filer/internal/services"
	"filer/internal/taxonomy"
	"filer/internal/textutil"
)

// BuildDestinationPath computes where filename lands for folder. An explicit
// folder storage path wins; otherwise the area, category and folder segments
// are synthesized beneath baseRoot. The result always stays beneath the
// symlink-resolved base and fails closed when it would not.
func BuildDestinationPath(folder taxonomy.FolderTarget, filename, baseRoot string) (string, error) {
	name := textutil.SanitizePathSegment(filename)
	if name == "" {
		return "", invalidPath(fmt.Sprintf("Filename %q has no usable characters", filename))
	}

	if storage := strings.TrimSpace(folder.StoragePath); storage != "" {
		if hasParentToken(storage) {
			return "", invalidPath(fmt.Sprintf("Storage path %q for folder %s contains parent directory tokens", storage, folder.Number))
		}
		if !filepath.IsAbs(storage) {
			if strings.TrimSpace(baseRoot) == "" {
				return "", invalidPath(fmt.Sprintf("Relative storage path %q needs a base root", storage))
			}
			return contained(baseRoot, strings.Split(filepath.ToSlash(filepath.Clean(storage)), "/"), name)
		}
		return contained(storage, nil, name)
	}

	if strings.TrimSpace(baseRoot) == "" {
		return "", services.Wrap(services.ErrConfiguration, "organizer", "build destination",
			"No base storage root; set storage.root in config.toml", nil)
	}
	segments := []string{
		joinLabel(folder.AreaRange, folder.AreaName),
		joinLabel(fmt.Sprintf("%02d", folder.CategoryNumber), folder.CategoryName),
		joinLabel(folder.Number, folder.Name),
	}
	for i, raw := range segments {
		segments[i] = textutil.SanitizePathSegment(raw)
		if segments[i] == "" {
			return "", invalidPath(fmt.Sprintf("Folder %s has an empty path segment", folder.Number))
		}
	}
	return contained(baseRoot, segments, name)
}

func joinLabel(number, name string) string {
	return strings.TrimSpace(strings.TrimSpace(number) + " " + strings.TrimSpace(name))
}

func hasParentToken(path string) bool {
	return slices.Contains(strings.Split(filepath.ToSlash(path), "/"), "..")
}

// contained joins segments and name under base and verifies the result,
// including any existing symlinked directories along the way, stays inside the
// resolved base.
func contained(base string, segments []string, name string) (string, error) {
	root, err := resolveExisting(base)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "organizer", "resolve base", "Unable to resolve base root", err)
	}
	parts := append([]string{root}, segments...)
	parts = append(parts, name)
	candidate := filepath.Join(parts...)
	if !within(root, candidate) {
		return "", invalidPath(fmt.Sprintf("Destination %s escapes %s", candidate, root))
	}
	resolvedDir, err := resolveExisting(filepath.Dir(candidate))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "organizer", "resolve destination", "Unable to resolve destination directory", err)
	}
	if !within(root, resolvedDir) {
		return "", invalidPath(fmt.Sprintf("Destination directory %s resolves outside %s", filepath.Dir(candidate), root))
	}
	return candidate, nil
}

// resolveExisting makes path absolute and resolves symlinks for the longest
// existing prefix, re-appending the missing tail.
func resolveExisting(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	var tail []string
	current := abs
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return abs, nil
		}
		tail = append([]string{filepath.Base(current)}, tail...)
		current = parent
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)))
}

func invalidPath(message string) error {
	return services.Wrap(services.ErrValidation, "organizer", "build destination", message, nil)
}
