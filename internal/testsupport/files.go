package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFiles creates each named file under dir, creating parent directories
// for nested names, and returns the absolute paths in argument order. The body
// names the file so moved copies can be told apart after a rename.
func WriteFiles(t testing.TB, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte("filer fixture: "+name+"\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		paths = append(paths, path)
	}
	return paths
}
