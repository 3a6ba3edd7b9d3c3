//go:build !linux

package fileutil

// RenameNoReplace renames src to dst, failing with an fs.ErrExist-compatible
// error when dst is already present.
func RenameNoReplace(src, dst string) error {
	return renameGuarded(src, dst)
}
