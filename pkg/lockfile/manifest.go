package lockfile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fulmenhq/preflight/pkg/safeio"
)

// ManifestFile is the project manifest at the scan root.
const ManifestFile = "package.json"

// LifecycleScripts run automatically during install.
var LifecycleScripts = []string{"preinstall", "install", "postinstall"}

// Manifest holds the package.json fields preflight reads. A field that does
// not decode is left empty without affecting the others.
type Manifest struct {
	Name            string
	Scripts         map[string]string
	Dependencies    map[string]string
	DevDependencies map[string]string
}

// ParseManifest decodes package.json. Only a document that is not a JSON
// object at all is an error.
func ParseManifest(data []byte) (*Manifest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ManifestFile, err)
	}

	m := &Manifest{}
	_ = json.Unmarshal(raw["name"], &m.Name)
	m.Scripts = stringMap(raw["scripts"])
	m.Dependencies = stringMap(raw["dependencies"])
	m.DevDependencies = stringMap(raw["devDependencies"])
	return m, nil
}

// ReadManifest loads package.json from root.
func ReadManifest(root string) (*Manifest, error) {
	data, err := safeio.ReadFileContained(root, ManifestFile)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

// stringMap keeps the string-valued members of a JSON object.
func stringMap(msg json.RawMessage) map[string]string {
	if len(msg) == 0 {
		return nil
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(msg, &generic); err != nil {
		return nil
	}
	out := make(map[string]string, len(generic))
	for k, v := range generic {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// DeclaredNames returns dependency then devDependency names, each group
// sorted, without repeats.
func (m *Manifest) DeclaredNames() []string {
	if m == nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, group := range []map[string]string{m.Dependencies, m.DevDependencies} {
		for _, name := range sortedKeys(group) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// FromManifest approximates resolved versions from declared ranges by
// stripping leading ^ and ~. Weaker than any lockfile.
func FromManifest(m *Manifest) []Dependency {
	if m == nil {
		return nil
	}
	var deps []Dependency
	for _, group := range []map[string]string{m.Dependencies, m.DevDependencies} {
		for _, name := range sortedKeys(group) {
			deps = append(deps, Dependency{Name: name, Version: strings.TrimLeft(group[name], "^~")})
		}
	}
	return Dedupe(deps)
}
