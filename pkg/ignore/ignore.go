// Package ignore provides gitignore-based file filtering using go-git
package ignore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// FileName is the project-level ignore file.
const FileName = ".preflightignore"

// DefaultPatterns are always ignored.
var DefaultPatterns = []string{".git/**", "node_modules/**"}

// Matcher answers whether a root-relative path is ignored.
type Matcher struct {
	matcher gitignore.Matcher
}

// NewMatcher creates a matcher with layered ignore files:
// 1. .gitignore and related git ignore files (foundation)
// 2. .preflightignore at root (project overrides)
// 3. ~/.preflight/.preflightignore (user overrides)
// Later layers win, so a "!pattern" in .preflightignore can re-include a path.
func NewMatcher(root string) (*Matcher, error) {
	home, _ := os.UserHomeDir()
	return newMatcher(root, home)
}

func newMatcher(root, home string) (*Matcher, error) {
	var allPatterns []gitignore.Pattern
	for _, pattern := range DefaultPatterns {
		allPatterns = append(allPatterns, gitignore.ParsePattern(pattern, nil))
	}

	// ReadPatterns with nil reads .gitignore files under root and .git/info/exclude
	if gitPatterns, err := gitignore.ReadPatterns(osfs.New(root), nil); err == nil {
		allPatterns = append(allPatterns, gitPatterns...)
	}

	layers := []string{filepath.Join(root, FileName)}
	if home != "" {
		layers = append(layers, filepath.Join(home, ".preflight", FileName))
	}
	for _, path := range layers {
		patterns, err := readIgnoreFile(path)
		if err != nil {
			continue
		}
		for _, pattern := range patterns {
			allPatterns = append(allPatterns, gitignore.ParsePattern(pattern, nil))
		}
	}

	return &Matcher{matcher: gitignore.NewMatcher(allPatterns)}, nil
}

// readIgnoreFile reads patterns from a text file (like .preflightignore)
func readIgnoreFile(path string) ([]string, error) {
	content, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- fixed file name under root or $HOME
	if err != nil {
		return nil, err
	}

	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, nil
}

// IsIgnored reports whether relPath (relative to the matcher root) is ignored.
func (m *Matcher) IsIgnored(relPath string, isDir bool) bool {
	parts := splitPath(filepath.ToSlash(relPath))
	if len(parts) == 0 {
		return false
	}
	return m.matcher.Match(parts, isDir)
}

// splitPath converts a slash-separated path into components for go-git matching
func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.Split(path, "/")

	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	return result
}
