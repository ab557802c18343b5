package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema/preflight-config.schema.json
var configSchema []byte

// ValidateFile checks a project config file against the embedded schema.
// YAML and TOML are decoded to the same document model before validation.
func ValidateFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- project config discovered under the scan root
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := decodeDocument(path, data)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := ValidateDocument(doc); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ValidateDocument validates an already-decoded config document.
func ValidateDocument(doc interface{}) error {
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so yaml/toml specific types become plain JSON values
	buf, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config is not representable as JSON: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(configSchema), gojsonschema.NewBytesLoader(buf))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

func decodeDocument(path string, data []byte) (interface{}, error) {
	var doc map[string]interface{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	}
	if doc == nil {
		return nil, nil
	}
	return doc, nil
}
