// Package policy loads per-provider merge policies from YAML files.
// A merge policy settles the product-level choices a field merge cannot
// decide on its own, such as how double-edited attendee lists combine.
package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Attendee merge modes.
const (
	AttendeeUnion    = "union"    // combine both sides as a set
	AttendeeExplicit = "explicit" // double-edited attendee lists need an explicit choice
)

// MergePolicy configures field-merge behavior for one provider.
type MergePolicy struct {
	Name          string `yaml:"name"`
	AttendeeMerge string `yaml:"attendee_merge" validate:"omitempty,oneof=union explicit"`
}

// Default returns the policy used when a provider has no policy file.
func Default() *MergePolicy {
	return &MergePolicy{
		Name:          "default",
		AttendeeMerge: AttendeeUnion,
	}
}

// UnionAttendees reports whether double-edited attendee lists merge as a set.
func (p *MergePolicy) UnionAttendees() bool {
	return p.AttendeeMerge == "" || p.AttendeeMerge == AttendeeUnion
}

// Load reads and validates a merge policy from a YAML file. The policy name
// defaults to the filename without extension.
func Load(path string) (*MergePolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}

	var p MergePolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in %s: %w", path, err)
	}

	if p.Name == "" {
		p.Name = filepath.Base(path)
		if ext := filepath.Ext(p.Name); ext == ".yaml" || ext == ".yml" {
			p.Name = p.Name[:len(p.Name)-len(ext)]
		}
	}

	if err := validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("validation failed for policy %s: %w", path, err)
	}

	return &p, nil
}

// LoadDir loads every .yaml/.yml policy in a directory, keyed by policy
// name. A missing directory yields an empty map, not an error.
func LoadDir(dir string) (map[string]*MergePolicy, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]*MergePolicy{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read policy directory %s: %w", dir, err)
	}

	policies := make(map[string]*MergePolicy)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		p, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		policies[p.Name] = p
	}

	return policies, nil
}
