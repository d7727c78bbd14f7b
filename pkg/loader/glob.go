package loader

import (
	"fmt"
	"path/filepath"
	"sort"
)

// ExpandGlobs expands source path patterns into a sorted, deduplicated list
// of files. A pattern that matches nothing is kept as a literal path so the
// caller can produce a useful open error for it.
func ExpandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid source pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			add(pattern)
			continue
		}
		for _, m := range matches {
			add(m)
		}
	}

	sort.Strings(files)
	return files, nil
}
