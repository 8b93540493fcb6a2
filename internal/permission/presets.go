package permission

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Presets holds the two selectable policy tables. Switching permissive mode
// replaces a session's rules table with one of these, wholesale.
type Presets struct {
	Conservative Rules
	Permissive   Rules
}

// DefaultPresets returns the built-in policy tables.
func DefaultPresets() Presets {
	return Presets{
		Conservative: ConservativeRules(),
		Permissive:   PermissiveRules(),
	}
}

// Select returns the preset for the given mode.
func (p Presets) Select(permissive bool) Rules {
	if permissive {
		return p.Permissive.Clone()
	}
	return p.Conservative.Clone()
}

type presetFile struct {
	Conservative map[string]string `yaml:"conservative"`
	Permissive   map[string]string `yaml:"permissive"`
}

// LoadPresetFile reads custom policy tables from a YAML file. Categories or
// tables missing from the file keep their built-in values.
func LoadPresetFile(path string) (Presets, error) {
	presets := DefaultPresets()

	data, err := os.ReadFile(path)
	if err != nil {
		return presets, fmt.Errorf("failed to read preset file %s: %w", path, err)
	}

	var pf presetFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return presets, fmt.Errorf("failed to parse preset file %s: %w", path, err)
	}

	if err := overlay(presets.Conservative, pf.Conservative); err != nil {
		return presets, fmt.Errorf("preset file %s: %w", path, err)
	}
	if err := overlay(presets.Permissive, pf.Permissive); err != nil {
		return presets, fmt.Errorf("preset file %s: %w", path, err)
	}
	return presets, nil
}

func overlay(rules Rules, raw map[string]string) error {
	for cat, dec := range raw {
		switch Decision(dec) {
		case Allow, Ask, Deny:
			rules[Category(cat)] = Decision(dec)
		default:
			return fmt.Errorf("invalid decision %q for category %q", dec, cat)
		}
	}
	return nil
}
