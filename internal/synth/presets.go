package synth

import (
	_ "embed"
	"io"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPresetID is the preset loaded at startup.
const DefaultPresetID = "aurora-lead"

//go:embed presets.yaml
var builtinPresetData []byte

var builtinPresets = mustParsePresets(builtinPresetData)

// BuiltinPresets returns copies of the presets shipped with the engine, in
// library order.
func BuiltinPresets() []Settings {
	out := make([]Settings, len(builtinPresets))
	for i, p := range builtinPresets {
		out[i] = p.Clone()
	}
	return out
}

// DefaultSettings returns the startup preset.
func DefaultSettings() Settings {
	for _, p := range builtinPresets {
		if p.ID == DefaultPresetID {
			return p.Clone()
		}
	}
	return builtinPresets[0].Clone()
}

// LoadPresets reads a YAML list of presets.
func LoadPresets(r io.Reader) ([]Settings, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read presets")
	}
	return parsePresets(data)
}

func parsePresets(data []byte) ([]Settings, error) {
	var presets []Settings
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, errors.Wrap(err, "parse presets")
	}
	seen := map[string]bool{}
	for i, p := range presets {
		if strings.TrimSpace(p.ID) == "" {
			return nil, errors.Errorf("preset %d has no id", i)
		}
		if seen[p.ID] {
			return nil, errors.Errorf("duplicate preset id %q", p.ID)
		}
		seen[p.ID] = true
		for _, osc := range p.Oscillators {
			switch osc.Type {
			case Sine, Square, Sawtooth, Triangle:
			default:
				return nil, errors.Errorf("preset %q: unknown waveform %q", p.ID, osc.Type)
			}
		}
		if p.FilterCutoff <= 0 {
			return nil, errors.Errorf("preset %q: filterCutoff must be positive", p.ID)
		}
		if p.Envelope.Attack < 0 || p.Envelope.Decay < 0 || p.Envelope.Release < 0 {
			return nil, errors.Errorf("preset %q: envelope times must not be negative", p.ID)
		}
	}
	return presets, nil
}

func mustParsePresets(data []byte) []Settings {
	presets, err := parsePresets(data)
	if err != nil {
		panic(err)
	}
	if len(presets) == 0 {
		panic("synth: empty builtin preset library")
	}
	return presets
}
