package stepseq

import (
	"io"

	"github.com/cbegin/stepseq-go/internal/synth"
	"github.com/pkg/errors"
)

type (
	SynthSettings = synth.Settings
	Oscillator    = synth.Oscillator
	Envelope      = synth.Envelope
	Waveform      = synth.Waveform
)

// LoadPresets reads a YAML preset library for WithPresets.
func LoadPresets(r io.Reader) ([]SynthSettings, error) {
	return synth.LoadPresets(r)
}

func mergePresets(base, extra []synth.Settings) []synth.Settings {
	out := base
	for _, e := range extra {
		replaced := false
		for i := range out {
			if out[i].ID == e.ID {
				out[i] = e.Clone()
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, e.Clone())
		}
	}
	return out
}

func findPreset(presets []synth.Settings, id string) (synth.Settings, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p.Clone(), true
		}
	}
	return synth.Settings{}, false
}

// Presets returns copies of the preset library.
func (p *Player) Presets() []SynthSettings {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthSettings, len(p.presets))
	for i, s := range p.presets {
		out[i] = s.Clone()
	}
	return out
}

// LoadPreset replaces the live synth settings with a copy of a preset. Notes
// already sounding keep their settings.
func (p *Player) LoadPreset(id string) error {
	p.mu.Lock()
	s, ok := findPreset(p.presets, id)
	p.mu.Unlock()
	if !ok {
		return errors.Wrapf(ErrUnknownPreset, "%q", id)
	}
	p.engine.SetSettings(s)
	p.log.Debug("preset loaded", "preset", id)
	return nil
}

// SynthSettings returns a copy of the live synth settings.
func (p *Player) SynthSettings() SynthSettings {
	return p.engine.Settings()
}

func (p *Player) SetSynthSettings(s SynthSettings) {
	p.engine.SetSettings(s)
}

// SetFilterCutoff sets the low-pass cutoff in Hz for new notes.
func (p *Player) SetFilterCutoff(hz float64) {
	if hz <= 0 {
		return
	}
	p.engine.Update(func(s *synth.Settings) { s.FilterCutoff = hz })
}

// SetFilterResonance sets the filter Q for new notes.
func (p *Player) SetFilterResonance(q float64) {
	p.engine.Update(func(s *synth.Settings) { s.FilterResonance = q })
}

// SetAttack sets the envelope attack in seconds for new notes.
func (p *Player) SetAttack(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	p.engine.Update(func(s *synth.Settings) { s.Envelope.Attack = seconds })
}

// SetRelease sets the envelope release in seconds for new notes.
func (p *Player) SetRelease(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	p.engine.Update(func(s *synth.Settings) { s.Envelope.Release = seconds })
}
