/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/

// Package lockfile turns the lockfile (or, failing that, the manifest) at a
// project root into one ordered, deduplicated dependency list.
package lockfile

import (
	"sort"
	"strings"

	"github.com/fulmenhq/preflight/pkg/logger"
	"github.com/fulmenhq/preflight/pkg/safeio"
)

// Dependency is a resolved (name, version) pair.
type Dependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Key returns the dedupe key name@version.
func (d Dependency) Key() string {
	return d.Name + "@" + d.Version
}

// Result is the outcome of a successful extraction.
type Result struct {
	// Source is the root-relative file the list came from.
	Source       string       `json:"source"`
	Dependencies []Dependency `json:"dependencies"`
}

// Parser handles one lockfile format found at a fixed root-level path.
type Parser struct {
	File  string
	Parse func(data []byte) ([]Dependency, error)
}

// Parsers lists the supported lockfiles in priority order.
var Parsers = []Parser{
	{File: "package-lock.json", Parse: parsePackageLock},
	{File: "yarn.lock", Parse: parseYarnLock},
	{File: "pnpm-lock.yaml", Parse: parsePnpmLock},
	{File: "bun.lock", Parse: parseBunLock},
	{File: "deno.lock", Parse: parseDenoLock},
}

// Extract returns the dependencies of the first lockfile under root that
// parses, or nil when none is recognized.
func Extract(root string) *Result {
	return FirstOf(root, Parsers...)
}

// FirstOf tries parsers in order and returns the first success. Missing and
// malformed files are skipped.
func FirstOf(root string, parsers ...Parser) *Result {
	for _, p := range parsers {
		data, err := safeio.ReadFileContained(root, p.File)
		if err != nil {
			continue
		}
		deps, err := p.Parse(data)
		if err != nil {
			logger.Debug("Lockfile not usable, trying next format",
				logger.String("file", p.File), logger.Err(err))
			continue
		}
		return &Result{Source: p.File, Dependencies: Dedupe(deps)}
	}
	return nil
}

// Dedupe keeps the first occurrence of every name@version. Entries with an
// empty name or version are dropped: a version-less OSV query matches every
// advisory ever filed for the package. Such names still reach the typosquat
// and reputation checks through Manifest.DeclaredNames.
func Dedupe(deps []Dependency) []Dependency {
	seen := make(map[string]bool, len(deps))
	out := make([]Dependency, 0, len(deps))
	for _, d := range deps {
		if d.Name == "" || d.Version == "" {
			continue
		}
		k := d.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}
	return out
}

// splitSpec splits "name@rest" where a leading @ belongs to a scoped name.
func splitSpec(spec string) (name, rest string, ok bool) {
	if len(spec) < 2 {
		return "", "", false
	}
	i := strings.IndexByte(spec[1:], '@')
	if i < 0 {
		return "", "", false
	}
	i++
	return spec[:i], spec[i+1:], true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
