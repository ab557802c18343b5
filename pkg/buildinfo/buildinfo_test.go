package buildinfo

import (
	"runtime/debug"
	"testing"
)

func TestModuleVersionMatchesBuildInfo(t *testing.T) {
	expected := ""
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		expected = info.Main.Version
	}
	if got := ModuleVersion(); got != expected {
		t.Errorf("ModuleVersion() = %q, expected %q", got, expected)
	}
}

func TestVersion(t *testing.T) {
	orig := BinaryVersion
	t.Cleanup(func() { BinaryVersion = orig })

	BinaryVersion = "v1.4.0"
	if got := Version(); got != "v1.4.0" {
		t.Errorf("Version() = %q, expected ldflags version", got)
	}

	// Test binaries report "(devel)" or nothing, so dev is kept
	BinaryVersion = "dev"
	got := Version()
	if mv := ModuleVersion(); mv != "" && mv != "(devel)" {
		if got != mv {
			t.Errorf("Version() = %q, expected module version %q", got, mv)
		}
	} else if got != "dev" {
		t.Errorf("Version() = %q, expected dev", got)
	}
}
