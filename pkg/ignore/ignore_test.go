package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestMatcher_Layers(t *testing.T) {
	root := t.TempDir()
	home := t.TempDir()

	writeFile(t, filepath.Join(root, ".gitignore"), `# Test gitignore
*.log
dist/
.temp/
`)
	writeFile(t, filepath.Join(root, FileName), `# project overrides
fixtures/
!keep.log
`)
	writeFile(t, filepath.Join(home, ".preflight", FileName), "*.generated.js\n")

	matcher, err := newMatcher(root, home)
	if err != nil {
		t.Fatalf("Failed to create matcher: %v", err)
	}

	tests := []struct {
		path     string
		isDir    bool
		expected bool
	}{
		{"debug.log", false, true},
		{"keep.log", false, false},
		{"dist", true, true},
		{"dist/bundle.js", false, true},
		{"src/index.js", false, false},
		{"fixtures", true, true},
		{"fixtures/evil.js", false, true},
		{"src/api.generated.js", false, true},
		{"node_modules/lodash/index.js", false, true},
		{".git/config", false, true},
		{"package.json", false, false},
		{"", false, false},
		{".", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := matcher.IsIgnored(tt.path, tt.isDir); got != tt.expected {
				t.Errorf("IsIgnored(%q, %v) = %v, expected %v", tt.path, tt.isDir, got, tt.expected)
			}
		})
	}
}

func TestMatcher_NoIgnoreFiles(t *testing.T) {
	matcher, err := newMatcher(t.TempDir(), "")
	if err != nil {
		t.Fatalf("Failed to create matcher: %v", err)
	}
	if matcher.IsIgnored("index.js", false) {
		t.Error("Plain file should not be ignored without ignore files")
	}
	if !matcher.IsIgnored("node_modules", true) && !matcher.IsIgnored("node_modules/x.js", false) {
		t.Error("node_modules should be ignored by default")
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", []string{}},
		{".", []string{}},
		{"file.txt", []string{"file.txt"}},
		{"dir/file.txt", []string{"dir", "file.txt"}},
		{"/dir/./file.txt", []string{"dir", "file.txt"}},
	}
	for _, tt := range tests {
		got := splitPath(tt.input)
		if len(got) != len(tt.expected) {
			t.Errorf("splitPath(%q) = %v, expected %v", tt.input, got, tt.expected)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("splitPath(%q)[%d] = %q, expected %q", tt.input, i, got[i], tt.expected[i])
			}
		}
	}
}
