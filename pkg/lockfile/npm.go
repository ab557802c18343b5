package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const nodeModules = "node_modules/"

type legacyNode struct {
	Version      string                `json:"version"`
	Dependencies map[string]legacyNode `json:"dependencies"`
}

type packageLock struct {
	Packages map[string]struct {
		Version string `json:"version"`
		Link    bool   `json:"link"`
	} `json:"packages"`
	Dependencies map[string]legacyNode `json:"dependencies"`
}

// parsePackageLock reads npm's package-lock.json. The flat packages map
// (lockfile v2/v3) wins over the legacy nested dependencies tree.
func parsePackageLock(data []byte) ([]Dependency, error) {
	var doc packageLock
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode package-lock.json: %w", err)
	}

	if doc.Packages != nil {
		var deps []Dependency
		for _, key := range sortedKeys(doc.Packages) {
			entry := doc.Packages[key]
			i := strings.LastIndex(key, nodeModules)
			if key == "" || i < 0 || entry.Link {
				continue
			}
			deps = append(deps, Dependency{Name: key[i+len(nodeModules):], Version: entry.Version})
		}
		return deps, nil
	}

	if doc.Dependencies != nil {
		var deps []Dependency
		walkLegacy(doc.Dependencies, &deps)
		return deps, nil
	}

	return nil, errors.New("package-lock.json has neither packages nor dependencies")
}

// walkLegacy records each node before its children, depth-first.
func walkLegacy(nodes map[string]legacyNode, deps *[]Dependency) {
	for _, name := range sortedKeys(nodes) {
		node := nodes[name]
		*deps = append(*deps, Dependency{Name: name, Version: node.Version})
		if len(node.Dependencies) > 0 {
			walkLegacy(node.Dependencies, deps)
		}
	}
}
