package synth

// Waveform names an oscillator shape.
type Waveform string

const (
	Sine     Waveform = "sine"
	Square   Waveform = "square"
	Sawtooth Waveform = "sawtooth"
	Triangle Waveform = "triangle"
)

// Oscillator is one layer of a melodic voice. Detune is in cents.
type Oscillator struct {
	Type   Waveform `yaml:"type"`
	Detune float64  `yaml:"detune"`
}

// Envelope times are in seconds; Sustain is a 0-1 fraction of Gain.
type Envelope struct {
	Attack  float64 `yaml:"attack"`
	Decay   float64 `yaml:"decay"`
	Sustain float64 `yaml:"sustain"`
	Release float64 `yaml:"release"`
}

// Settings shape every newly triggered melodic voice. Voices already
// sounding keep the copy they were started with.
type Settings struct {
	ID              string       `yaml:"id"`
	Name            string       `yaml:"name"`
	Oscillators     []Oscillator `yaml:"oscillators"`
	FilterCutoff    float64      `yaml:"filterCutoff"`
	FilterResonance float64      `yaml:"filterResonance"`
	Envelope        Envelope     `yaml:"envelope"`
	Gain            float64      `yaml:"gain"`
}

// Clone returns a copy that shares no slices with s.
func (s Settings) Clone() Settings {
	s.Oscillators = append([]Oscillator(nil), s.Oscillators...)
	return s
}

// oscillators returns the configured list, or one plain sawtooth when empty.
func (s Settings) oscillators() []Oscillator {
	if len(s.Oscillators) == 0 {
		return []Oscillator{{Type: Sawtooth}}
	}
	return s.Oscillators
}
