package scanner

import (
	"os"
	"path/filepath"
	"strings"

	"acrscan/internal/services"
)

// reportExtensions are skipped when listing a folder so earlier reports and
// lock files are not scanned as media.
var reportExtensions = map[string]struct{}{
	".csv":  {},
	".json": {},
	".lock": {},
	".db":   {},
}

// ListMedia returns the regular files directly inside dir in name order,
// skipping hidden files and acrscan's own outputs.
func ListMedia(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "scanner", "list folder", dir, err)
	}
	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !entry.Type().IsRegular() {
			continue
		}
		if _, skip := reportExtensions[strings.ToLower(filepath.Ext(name))]; skip {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths, nil
}
