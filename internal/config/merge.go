package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyLogging = "logging"
	keyCompute = "compute"
	keyTables  = "tables"
	keyStore   = "store"
	keyCache   = "cache"
	keyOutput  = "output"
	keyPreview = "preview"
	keyServer  = "server"
)

// knownTopLevelKeys lists the YAML keys that correspond to Config sections.
// Keys not in this list are silently ignored during merge.
//
//nolint:gochecknoglobals // Compile-time constant lookup table.
var knownTopLevelKeys = map[string]bool{
	keyLogging: true,
	keyCompute: true,
	keyTables:  true,
	keyStore:   true,
	keyCache:   true,
	keyOutput:  true,
	keyPreview: true,
	keyServer:  true,
}

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// the target Config. Keys present in the overlay replace entire sections
// in the target. Keys absent in the overlay are left unchanged.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath) //nolint:gosec // overlay path is discovered or user supplied
	if err != nil {
		return fmt.Errorf("reading overlay file %s: %w", overlayPath, err)
	}

	// Discover which top-level keys are present in the overlay.
	var overlay map[string]any
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing overlay YAML from %s: %w", overlayPath, err)
	}

	// Empty or comment-only file: nothing to merge.
	if len(overlay) == 0 {
		return nil
	}

	for key, value := range overlay {
		if !knownTopLevelKeys[key] {
			continue
		}

		// Re-marshal the single section so we can unmarshal it onto the
		// strongly-typed target field.
		sectionBytes, marshalErr := yaml.Marshal(value)
		if marshalErr != nil {
			return fmt.Errorf("re-marshalling overlay section %q: %w", key, marshalErr)
		}

		if err = unmarshalSection(target, key, sectionBytes); err != nil {
			return fmt.Errorf("applying overlay section %q: %w", key, err)
		}
	}

	return nil
}

// unmarshalSection decodes one section into a fresh value and replaces the
// target's section with it. Decoding into the existing value would merge
// nested fields, which is not a shallow merge.
func unmarshalSection(target *Config, key string, data []byte) error {
	switch key {
	case keyLogging:
		return replaceSection(data, &target.Logging)
	case keyCompute:
		return replaceSection(data, &target.Compute)
	case keyTables:
		return replaceSection(data, &target.Tables)
	case keyStore:
		return replaceSection(data, &target.Store)
	case keyCache:
		return replaceSection(data, &target.Cache)
	case keyOutput:
		return replaceSection(data, &target.Output)
	case keyPreview:
		return replaceSection(data, &target.Preview)
	case keyServer:
		return replaceSection(data, &target.Server)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}

func replaceSection[T any](data []byte, dst *T) error {
	var v T
	if err := yaml.Unmarshal(data, &v); err != nil {
		return err
	}
	*dst = v
	return nil
}
