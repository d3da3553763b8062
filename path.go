package vitessr

import (
	"path"
	"path/filepath"
	"strings"
)

// EnsureTrailingSlash returns s with exactly one trailing slash appended when missing.
func EnsureTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

// NormalizeGlobPattern turns a configured pattern into a root-relative, forward-slash pattern.
// Absolute patterns inside root are rebased; anything else loses its leading "/" and "./".
func NormalizeGlobPattern(pattern string, root string) string {
	p := filepath.ToSlash(pattern)

	if root != "" && filepath.IsAbs(pattern) {
		rel, err := filepath.Rel(root, pattern)
		if err == nil {
			rel = filepath.ToSlash(rel)
			if rel != ".." && !strings.HasPrefix(rel, "../") && !filepath.IsAbs(rel) {
				p = rel
			}
		}
	}

	p = strings.TrimPrefix(p, "/")
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	return p
}

// NormalizeGlobPatterns applies NormalizeGlobPattern to every pattern, dropping empties.
func NormalizeGlobPatterns(patterns []string, root string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		n := NormalizeGlobPattern(p, root)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}

// RelativeToRoot returns file as a forward-slash path relative to root.
// Relative inputs are taken as already relative to root.
func RelativeToRoot(root string, file string) string {
	if file == "" {
		return ""
	}
	if !filepath.IsAbs(file) || root == "" {
		return strings.TrimPrefix(path.Clean(filepath.ToSlash(file)), "./")
	}
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return filepath.ToSlash(file)
	}
	return filepath.ToSlash(rel)
}

// manifestKey maps a logical asset path to its manifest key.
func manifestKey(logicalPath string) string {
	return strings.TrimPrefix(logicalPath, "/")
}
