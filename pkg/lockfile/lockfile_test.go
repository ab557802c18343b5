package lockfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

func dep(name, version string) Dependency {
	return Dependency{Name: name, Version: version}
}

const packageLockV3 = `{
  "name": "app",
  "lockfileVersion": 3,
  "packages": {
    "": {"name": "app", "version": "1.0.0"},
    "node_modules/lodash": {"version": "4.17.21"},
    "node_modules/@babel/core": {"version": "7.24.0"},
    "node_modules/debug": {"version": "4.3.4"},
    "node_modules/express/node_modules/debug": {"version": "2.6.9"},
    "node_modules/express": {"version": "4.18.2"},
    "node_modules/other/node_modules/lodash": {"version": "4.17.21"},
    "node_modules/local-lib": {"resolved": "packages/lib", "link": true},
    "packages/lib": {"version": "0.1.0"}
  }
}`

func TestExtract_PackageLockPackagesMap(t *testing.T) {
	root := writeFiles(t, map[string]string{"package-lock.json": packageLockV3})

	res := Extract(root)
	require.NotNil(t, res)
	assert.Equal(t, "package-lock.json", res.Source)
	assert.Equal(t, []Dependency{
		dep("@babel/core", "7.24.0"),
		dep("debug", "4.3.4"),
		dep("express", "4.18.2"),
		dep("debug", "2.6.9"),
		dep("lodash", "4.17.21"),
	}, res.Dependencies)
}

func TestExtract_PackageLockLegacyTree(t *testing.T) {
	root := writeFiles(t, map[string]string{"package-lock.json": `{
  "lockfileVersion": 1,
  "dependencies": {
    "express": {
      "version": "4.17.1",
      "dependencies": {
        "debug": {"version": "2.6.9"},
        "ms": {"version": "2.0.0"}
      }
    },
    "debug": {"version": "4.3.4", "dependencies": {"ms": {"version": "2.1.2"}}},
    "ms": {"version": "2.0.0"}
  }
}`})

	res := Extract(root)
	require.NotNil(t, res)
	assert.Equal(t, []Dependency{
		dep("debug", "4.3.4"),
		dep("ms", "2.1.2"),
		dep("express", "4.17.1"),
		dep("debug", "2.6.9"),
		dep("ms", "2.0.0"),
	}, res.Dependencies)
}

func TestExtract_PriorityAndFallthrough(t *testing.T) {
	yarn := "# yarn lockfile v1\n\nleft-pad@^1.3.0:\n  version \"1.3.0\"\n"

	root := writeFiles(t, map[string]string{
		"package-lock.json": packageLockV3,
		"yarn.lock":         yarn,
	})
	assert.Equal(t, "package-lock.json", Extract(root).Source)

	// A package-lock.json with neither section is not a success.
	root = writeFiles(t, map[string]string{
		"package-lock.json": `{"lockfileVersion": 3}`,
		"yarn.lock":         yarn,
	})
	res := Extract(root)
	require.NotNil(t, res)
	assert.Equal(t, "yarn.lock", res.Source)
	assert.Equal(t, []Dependency{dep("left-pad", "1.3.0")}, res.Dependencies)

	root = writeFiles(t, map[string]string{
		"package-lock.json": `{not json`,
		"deno.lock":         `{"version": "4", "specifiers": {"npm:chalk@5": "5.3.0"}}`,
	})
	assert.Equal(t, "deno.lock", Extract(root).Source)
}

func TestExtract_NoneRecognized(t *testing.T) {
	assert.Nil(t, Extract(writeFiles(t, map[string]string{"package.json": `{}`})))
	assert.Nil(t, Extract(writeFiles(t, map[string]string{"yarn.lock": "garbage without entries"})))
}

func TestParseYarnLock_Classic(t *testing.T) {
	data := `# THIS IS AN AUTOGENERATED FILE. DO NOT EDIT THIS FILE DIRECTLY.
# yarn lockfile v1


"@babel/code-frame@^7.0.0", "@babel/code-frame@^7.10.4":
  version "7.12.13"
  resolved "https://registry.yarnpkg.com/@babel/code-frame/-/code-frame-7.12.13.tgz"
  dependencies:
    "@babel/highlight" "^7.12.13"

lodash@^4.17.20, lodash@^4.17.21:
  version "4.17.21"
  resolved "https://registry.yarnpkg.com/lodash/-/lodash-4.17.21.tgz"
`
	deps, err := parseYarnLock([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, []Dependency{
		dep("@babel/code-frame", "7.12.13"),
		dep("lodash", "4.17.21"),
	}, deps)
}

func TestParseYarnLock_Berry(t *testing.T) {
	data := `# This file is generated by running "yarn install" inside your project.

__metadata:
  version: 6
  cacheKey: 8

"@types/node@npm:*, @types/node@npm:^20.0.0":
  version: 20.11.5
  resolution: "@types/node@npm:20.11.5"
  dependencies:
    undici-types: "npm:~5.26.4"
  languageName: node
  linkType: hard

"my-app@workspace:.":
  version: 0.0.0-use.local
  resolution: "my-app@workspace:."
  languageName: unknown
  linkType: soft

"undici-types@npm:~5.26.4":
  version: 5.26.5
  resolution: "undici-types@npm:5.26.5"
`
	deps, err := parseYarnLock([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, []Dependency{
		dep("@types/node", "20.11.5"),
		dep("undici-types", "5.26.5"),
	}, deps)
}

func TestParsePnpmLock(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []Dependency
	}{
		{
			name: "v5 slash keys with peer suffix",
			data: `lockfileVersion: 5.4
packages:
  /lodash/4.17.21:
    resolution: {integrity: sha512-x}
  /@babel/core/7.24.0:
    dev: true
  /react-dom/18.2.0_react@18.2.0:
    dev: false
`,
			want: []Dependency{dep("@babel/core", "7.24.0"), dep("lodash", "4.17.21"), dep("react-dom", "18.2.0")},
		},
		{
			name: "v6 at keys with parenthesized peers",
			data: `lockfileVersion: '6.0'
packages:
  /lodash@4.17.21:
    resolution: {integrity: sha512-x}
  /@babel/core@7.24.0(supports-color@5.5.0):
    dev: true
`,
			want: []Dependency{dep("@babel/core", "7.24.0"), dep("lodash", "4.17.21")},
		},
		{
			name: "v9 bare keys",
			data: `lockfileVersion: '9.0'
packages:
  lodash@4.17.21:
    resolution: {integrity: sha512-x}
  '@types/node@20.11.5':
    resolution: {integrity: sha512-y}
  react-dom@18.2.0(react@18.2.0):
    resolution: {integrity: sha512-z}
`,
			want: []Dependency{dep("@types/node", "20.11.5"), dep("lodash", "4.17.21"), dep("react-dom", "18.2.0")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, err := parsePnpmLock([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, deps)
		})
	}

	_, err := parsePnpmLock([]byte("packages: {}\n"))
	assert.Error(t, err, "missing lockfileVersion")
}

func TestParseBunLock(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []Dependency
	}{
		{
			name: "jsonc",
			data: `{
  // bun text lockfile
  "lockfileVersion": 1,
  "workspaces": {
    "": {"name": "app", "dependencies": {"lodash": "^4.17.21"}},
  },
  "packages": {
    "lodash": ["lodash@4.17.21", "", {}, "sha512-x"],
    "@scope/lib": ["@scope/lib@2.0.0", "", {}, "sha512-y",],
    "inner": ["inner@workspace:packages/inner"],
  },
}`,
			want: []Dependency{dep("@scope/lib", "2.0.0"), dep("lodash", "4.17.21")},
		},
		{
			name: "yarn layout",
			data: `"left-pad@^1.3.0":
  version "1.3.0"

"@scope/lib@^2.0.0", "@scope/lib@~2.0.0":
  version "2.0.0"
`,
			want: []Dependency{dep("left-pad", "1.3.0"), dep("@scope/lib", "2.0.0")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, err := parseBunLock([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, deps)
		})
	}

	_, err := parseBunLock([]byte(`{"packages": {}}`))
	assert.Error(t, err)
	_, err = parseBunLock([]byte("garbage without entries"))
	assert.Error(t, err)
}

func TestParseDenoLock(t *testing.T) {
	v3 := `{
  "version": "3",
  "packages": {
    "specifiers": {
      "npm:chalk@5": "npm:chalk@5.3.0",
      "npm:@types/node": "npm:@types/node@18.16.19",
      "jsr:@std/path@1": "jsr:@std/path@1.0.0"
    }
  },
  "remote": {}
}`
	deps, err := parseDenoLock([]byte(v3))
	require.NoError(t, err)
	assert.Equal(t, []Dependency{dep("@types/node", "18.16.19"), dep("chalk", "5.3.0")}, deps)

	v4 := `{
  "version": "4",
  "specifiers": {
    "jsr:@std/assert@1": "1.0.2",
    "npm:preact@^10.19.6": "10.19.6",
    "npm:@preact/signals@1": "1.2.3_preact@10.19.6"
  }
}`
	deps, err = parseDenoLock([]byte(v4))
	require.NoError(t, err)
	assert.Equal(t, []Dependency{dep("@preact/signals", "1.2.3"), dep("preact", "10.19.6")}, deps)
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	in := []Dependency{
		dep("a", "1.0.0"), dep("b", "1.0.0"), dep("a", "1.0.0"),
		dep("a", "2.0.0"), dep("", "1.0.0"), dep("c", ""), dep("b", "1.0.0"),
	}
	out := Dedupe(in)
	assert.Equal(t, []Dependency{dep("a", "1.0.0"), dep("b", "1.0.0"), dep("a", "2.0.0")}, out)

	seen := map[string]bool{}
	for _, d := range out {
		assert.False(t, seen[d.Key()], "duplicate %s", d.Key())
		seen[d.Key()] = true
	}
}
