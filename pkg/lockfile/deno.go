package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const npmSpecifier = "npm:"

// parseDenoLock reads deno.lock. Only npm: specifiers name registry
// packages; jsr: and remote URLs are ignored. Version 3 nests the map under
// "packages", version 4 puts it at the top level and stores bare versions.
func parseDenoLock(data []byte) ([]Dependency, error) {
	var doc struct {
		Version    string            `json:"version"`
		Specifiers map[string]string `json:"specifiers"`
		Packages   struct {
			Specifiers map[string]string `json:"specifiers"`
		} `json:"packages"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode deno.lock: %w", err)
	}
	if doc.Version == "" {
		return nil, errors.New("deno.lock missing version")
	}

	specs := doc.Specifiers
	if specs == nil {
		specs = doc.Packages.Specifiers
	}

	var deps []Dependency
	for _, key := range sortedKeys(specs) {
		if !strings.HasPrefix(key, npmSpecifier) {
			continue
		}
		value := specs[key]

		var name, version string
		if strings.HasPrefix(value, npmSpecifier) {
			n, v, ok := splitSpec(strings.TrimPrefix(value, npmSpecifier))
			if !ok {
				continue
			}
			name, version = n, v
		} else {
			n, _, ok := splitSpec(strings.TrimPrefix(key, npmSpecifier))
			if !ok {
				n = strings.TrimPrefix(key, npmSpecifier)
			}
			name, version = n, value
		}
		if i := strings.IndexByte(version, '_'); i >= 0 {
			version = version[:i]
		}
		deps = append(deps, Dependency{Name: name, Version: version})
	}
	return deps, nil
}
