package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, pattern(size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// MediaDir creates dir holding one placeholder file per name and returns the
// full paths in the order given.
func MediaDir(t testing.TB, dir string, names ...string) []string {
	t.Helper()

	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		WriteFile(t, path, 64)
		paths = append(paths, path)
	}
	return paths
}

func pattern(size int64) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	return buf
}
