package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads, parses, and compiles a policy from a YAML file.
// Malformed YAML, an invalid regex, or an out-of-range guard/threshold all
// fail here, so the decision path never sees an uncompiled policy.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %q: %w", path, err)
	}
	return Parse(data)
}

// Parse parses and compiles a policy from raw YAML bytes.
func Parse(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}

	if err := p.Compile(); err != nil {
		return nil, fmt.Errorf("policy validation failed: %w", err)
	}

	return &p, nil
}
