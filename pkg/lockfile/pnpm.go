package lockfile

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// parsePnpmLock reads pnpm-lock.yaml. Package keys come in three shapes:
// "/name/1.0.0" (v5), "/name@1.0.0" (v6) and "name@1.0.0" (v9), each with an
// optional "(peer@x)" suffix.
func parsePnpmLock(data []byte) ([]Dependency, error) {
	var doc struct {
		LockfileVersion interface{}            `yaml:"lockfileVersion"`
		Packages        map[string]interface{} `yaml:"packages"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode pnpm-lock.yaml: %w", err)
	}
	if doc.LockfileVersion == nil {
		return nil, errors.New("pnpm-lock.yaml missing lockfileVersion")
	}

	var deps []Dependency
	for _, key := range sortedKeys(doc.Packages) {
		if d, ok := parsePnpmKey(key); ok {
			deps = append(deps, d)
		}
	}
	return deps, nil
}

func parsePnpmKey(key string) (Dependency, bool) {
	if i := strings.IndexByte(key, '('); i >= 0 {
		key = key[:i]
	}
	key = strings.TrimPrefix(key, "/")

	if name, version, ok := splitSpec(key); ok && plausibleName(name) {
		return Dependency{Name: name, Version: version}, version != ""
	}

	// v5: name/version with an optional _peer suffix.
	i := strings.LastIndexByte(key, '/')
	if i <= 0 {
		return Dependency{}, false
	}
	name, version := key[:i], key[i+1:]
	if j := strings.IndexByte(version, '_'); j >= 0 {
		version = version[:j]
	}
	if !plausibleName(name) || version == "" {
		return Dependency{}, false
	}
	return Dependency{Name: name, Version: version}, true
}

// plausibleName accepts "pkg" and "@scope/pkg".
func plausibleName(name string) bool {
	if name == "" {
		return false
	}
	slashes := strings.Count(name, "/")
	if strings.HasPrefix(name, "@") {
		return slashes == 1
	}
	return slashes == 0
}
