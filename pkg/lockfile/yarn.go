package lockfile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tailscale/hujson"
)

// parseYarnLock reads yarn.lock in both the classic v1 syntax
// (`version "1.2.3"`) and the berry YAML-like syntax (`version: 1.2.3`).
// Every entry header lists one or more name@range specifiers for the
// same resolved record.
func parseYarnLock(data []byte) ([]Dependency, error) {
	var (
		deps    []Dependency
		name    string
		skip    bool
		entries int
		marker  = bytes.Contains(data, []byte("# yarn lockfile")) || bytes.Contains(data, []byte("__metadata:"))
	)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !strings.HasPrefix(line, " ") {
			// New entry header.
			name, skip = "", true
			if !strings.HasSuffix(line, ":") {
				continue
			}
			header := strings.TrimSuffix(line, ":")
			if header == "__metadata" {
				continue
			}
			first := strings.TrimSpace(strings.SplitN(header, ",", 2)[0])
			first = strings.Trim(first, `"`)
			n, rng, ok := splitSpec(first)
			if !ok {
				continue
			}
			entries++
			if strings.HasPrefix(rng, "workspace:") {
				continue
			}
			name, skip = n, false
			continue
		}

		if skip || name == "" {
			continue
		}
		// Only direct fields of the record (two-space indent) carry the version.
		if strings.HasPrefix(line, "    ") {
			continue
		}
		field := strings.TrimSpace(line)
		var version string
		switch {
		case strings.HasPrefix(field, "version:"):
			version = strings.TrimSpace(strings.TrimPrefix(field, "version:"))
		case strings.HasPrefix(field, "version "):
			version = strings.TrimSpace(strings.TrimPrefix(field, "version "))
		default:
			continue
		}
		version = strings.Trim(version, `"'`)
		deps = append(deps, Dependency{Name: name, Version: version})
		skip = true
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read yarn.lock: %w", err)
	}
	if entries == 0 && !marker {
		return nil, errors.New("yarn.lock has no entries")
	}
	return deps, nil
}

// parseBunLock reads bun's text lockfile, JSON with comments and trailing
// commas. Each packages value is an array whose first element is the resolved
// name@version, so it maps specifiers to versions the same way yarn.lock does.
// A bun.lock that is not JSONC at all is read with the yarn.lock layout.
func parseBunLock(data []byte) ([]Dependency, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		deps, yerr := parseYarnLock(data)
		if yerr != nil {
			return nil, fmt.Errorf("decode bun.lock: %w", err)
		}
		return deps, nil
	}

	var doc struct {
		LockfileVersion *int                         `json:"lockfileVersion"`
		Packages        map[string][]json.RawMessage `json:"packages"`
	}
	if err := json.Unmarshal(std, &doc); err != nil {
		return nil, fmt.Errorf("decode bun.lock: %w", err)
	}
	if doc.LockfileVersion == nil {
		return nil, errors.New("bun.lock missing lockfileVersion")
	}

	var deps []Dependency
	for _, key := range sortedKeys(doc.Packages) {
		entry := doc.Packages[key]
		if len(entry) == 0 {
			continue
		}
		var resolved string
		if err := json.Unmarshal(entry[0], &resolved); err != nil {
			continue
		}
		name, version, ok := splitSpec(resolved)
		if !ok || strings.HasPrefix(version, "workspace:") {
			continue
		}
		deps = append(deps, Dependency{Name: name, Version: version})
	}
	return deps, nil
}
