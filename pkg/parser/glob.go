package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ExpandTranscripts expands transcript paths and glob patterns into a sorted,
// deduplicated list of files. Directories matched by a glob are skipped.
// A pattern that matches nothing is kept as a literal path so the caller
// reports a precise "not found" error when opening it.
func ExpandTranscripts(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			result = append(result, path)
		}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}

		if len(matches) == 0 {
			add(pattern)
			continue
		}

		for _, match := range matches {
			if info, err := os.Stat(match); err == nil && info.IsDir() {
				continue
			}
			add(match)
		}
	}

	sort.Strings(result)
	return result, nil
}
