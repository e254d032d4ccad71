// Package targets loads the ordered name -> url mapping of pages to audit.
package targets

import (
	"os"
	"strings"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"

	"perfsummary/internal/pkg/models"
)

// Page name of the summary document; a page with this name would overwrite it.
const DefaultReservedName = "index"

// Reads a YAML or JSON file holding a single mapping of page name to URL.
// JSON is parsed as YAML so both keep the file's key order. Reserved names
// (DefaultReservedName when none are given) are rejected.
func Load(path string, reserved ...string) ([]models.Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read targets file")
	}
	targets, err := Parse(data, reserved...)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return targets, nil
}

// Decodes a mapping of name -> url, preserving insertion order. Names become
// file names next to the summary, so separators, a leading dot and the
// reserved names are rejected.
func Parse(data []byte, reserved ...string) ([]models.Target, error) {
	if len(reserved) == 0 {
		reserved = []string{DefaultReservedName}
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	if root.Kind == 0 {
		return nil, nil
	}

	mapping := &root
	if mapping.Kind == yaml.DocumentNode && len(mapping.Content) > 0 {
		mapping = mapping.Content[0]
	}
	if mapping.Kind != yaml.MappingNode {
		return nil, errors.Errorf("line %d: expected a mapping of page name to url", mapping.Line)
	}

	seen := make(map[string]struct{}, len(mapping.Content)/2)
	targets := make([]models.Target, 0, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i], mapping.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return nil, errors.Errorf("line %d: url for %q must be a string", value.Line, key.Value)
		}

		name := strings.TrimSpace(key.Value)
		url := strings.TrimSpace(value.Value)
		if name == "" || url == "" {
			return nil, errors.Errorf("line %d: empty page name or url", key.Line)
		}
		if strings.ContainsAny(name, `/\`) {
			return nil, errors.Errorf("line %d: page name %q must not contain path separators", key.Line, name)
		}
		if strings.HasPrefix(name, ".") {
			return nil, errors.Errorf("line %d: page name %q must not start with a dot", key.Line, name)
		}
		for _, r := range reserved {
			if strings.EqualFold(name, r) {
				return nil, errors.Errorf("line %d: page name %q is reserved for the summary", key.Line, name)
			}
		}
		if _, dup := seen[name]; dup {
			return nil, errors.Errorf("line %d: duplicate page name %q", key.Line, name)
		}
		seen[name] = struct{}{}

		targets = append(targets, models.Target{Name: name, URL: url})
	}
	return targets, nil
}
