package conversion

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// SupportedVersions is the semver constraint table files must satisfy.
const SupportedVersions = ">= 1.0.0, < 2.0.0"

// defaultFileVersion is assumed when a table file omits its version.
const defaultFileVersion = "1.0.0"

// File is the on-disk layout of a conversion table.
type File struct {
	Version  string    `yaml:"version"`
	Channels []Channel `yaml:"channels"`
	Factors  []Factor  `yaml:"factors"`
}

// CheckVersion reports whether a table file version satisfies SupportedVersions.
// An empty version is treated as 1.0.0.
func CheckVersion(version string) error {
	if version == "" {
		version = defaultFileVersion
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: %q is not a semantic version: %w", ErrUnsupportedVersion, version, err)
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return fmt.Errorf("parsing version constraint: %w", err)
	}
	if !c.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrUnsupportedVersion, v, SupportedVersions)
	}
	return nil
}

// Parse decodes a YAML conversion table.
func Parse(data []byte) (*Table, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing conversion table: %w", err)
	}
	if err := CheckVersion(f.Version); err != nil {
		return nil, err
	}
	return NewTable(f.Factors, f.Channels)
}

// LoadFile reads a YAML conversion table from path.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from user configuration
	if err != nil {
		return nil, fmt.Errorf("reading conversion table %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading conversion table %s: %w", path, err)
	}
	return t, nil
}

// Load returns the table at path, or the built-in default when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
