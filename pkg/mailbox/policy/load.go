package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"mercator-hq/mailsweep/pkg/mailbox"
)

// File is the on-disk shape of a policy file.
type File struct {
	Policies []mailbox.RetentionPolicy `yaml:"policies" json:"policies" toml:"policies"`
}

// SupportedExtensions lists the policy file formats LoadFile understands.
var SupportedExtensions = []string{".yaml", ".yml", ".json", ".toml"}

// LoadFile reads and validates a policy file. The format is chosen by
// extension: .yaml/.yml, .json or .toml.
func LoadFile(path string) ([]mailbox.RetentionPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %q: %w", path, err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes policy file contents in the format named by ext.
func Parse(data []byte, ext string) ([]mailbox.RetentionPolicy, error) {
	var f File

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse YAML policies: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse JSON policies: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse TOML policies: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported policy file extension %q", ext)
	}

	if len(f.Policies) == 0 {
		return nil, fmt.Errorf("%w: policy file defines no policies", mailbox.ErrInvalidPolicy)
	}

	seen := make(map[string]bool, len(f.Policies))
	for _, p := range f.Policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.Category] {
			return nil, mailbox.NewPolicyError(p.Category, fmt.Errorf("%w: duplicate category", mailbox.ErrInvalidPolicy))
		}
		seen[p.Category] = true
	}

	return f.Policies, nil
}
