package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     map[string]interface{}
		wantErr string
	}{
		{
			name: "valid nested document",
			doc: map[string]interface{}{
				"scan":  map[string]interface{}{"workers": 4},
				"audit": map[string]interface{}{"timeouts": map[string]interface{}{"batch": "15s"}},
			},
		},
		{
			name:    "unknown top-level key",
			doc:     map[string]interface{}{"format": map[string]interface{}{}},
			wantErr: "format",
		},
		{
			name:    "endpoint must be a URL",
			doc:     map[string]interface{}{"audit": map[string]interface{}{"endpoints": map[string]interface{}{"osv": "api.osv.dev"}}},
			wantErr: "osv",
		},
		{
			name:    "until must be a date",
			doc:     map[string]interface{}{"reputation": map[string]interface{}{"exceptions": []interface{}{map[string]interface{}{"pattern": "x", "until": "next week"}}}},
			wantErr: "until",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateDocument() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateDocument() expected error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateDocument() error %q should mention %q", err, tt.wantErr)
			}
		})
	}

	if err := ValidateDocument(nil); err != nil {
		t.Errorf("nil document should validate, got %v", err)
	}
}

func TestValidateFile_Formats(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"ok.yaml":   "scan:\n  max_file_size: 2048\n",
		"ok.toml":   "[audit]\nbatch_size = 100\n",
		"ok.json":   `{"fail_on": "medium"}`,
		"empty.yml": "",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if err := ValidateFile(path); err != nil {
			t.Errorf("ValidateFile(%s) unexpected error: %v", name, err)
		}
	}

	if err := ValidateFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("ValidateFile on a missing file should fail")
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[audit\nbatch_size ="), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ValidateFile(bad); err == nil {
		t.Error("ValidateFile on malformed TOML should fail")
	}
}
