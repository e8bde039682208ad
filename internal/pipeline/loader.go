package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse parses YAML content into a validated Pipeline
func Parse(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing pipeline definition: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load reads a pipeline definition file. A missing file yields the
// default definition so a bare checkout still verifies.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading pipeline definition %s: %w", path, err)
	}
	return Parse(data)
}
