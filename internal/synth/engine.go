package synth

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/cbegin/stepseq-go/internal/audio"
	"github.com/cbegin/stepseq-go/internal/pattern"
)

// Sink receives finished voices. audio.Bus satisfies it.
type Sink interface {
	Schedule(v audio.Voice)
	SampleRate() int
}

// Engine builds melodic and percussion voices and hands them to a Sink.
// Each trigger reads a snapshot of the current Settings, so edits never reach
// voices that are already sounding.
type Engine struct {
	sink Sink

	mu       sync.Mutex
	settings Settings

	noiseOnce sync.Once
	noiseSeed int64
	noise     []float32
}

func New(sink Sink, settings Settings) *Engine {
	return &Engine{
		sink:      sink,
		settings:  settings.Clone(),
		noiseSeed: time.Now().UnixNano(),
	}
}

// SeedNoise fixes the noise buffer contents. It has no effect once a drum
// voice has been triggered.
func (e *Engine) SeedNoise(seed int64) {
	e.mu.Lock()
	e.noiseSeed = seed
	e.mu.Unlock()
}

func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings.Clone()
}

func (e *Engine) SetSettings(s Settings) {
	e.mu.Lock()
	e.settings = s.Clone()
	e.mu.Unlock()
}

// Update edits the live settings in place.
func (e *Engine) Update(fn func(*Settings)) {
	e.mu.Lock()
	fn(&e.settings)
	e.mu.Unlock()
}

// NoiseBuffer returns the shared one-second noise buffer, creating it on
// first use.
func (e *Engine) NoiseBuffer() []float32 {
	e.noiseOnce.Do(func() {
		e.mu.Lock()
		seed := e.noiseSeed
		e.mu.Unlock()
		e.noise = NoiseBuffer(e.sink.SampleRate(), rand.New(rand.NewSource(seed)))
	})
	return e.noise
}

// TriggerMelodic schedules a note at freq Hz starting at start seconds. The
// release begins at start+duration.
func (e *Engine) TriggerMelodic(freq, start, duration float64) {
	if !finite(freq) || freq <= 0 {
		return
	}
	if !finite(duration) || duration < 0 {
		duration = 0
	}
	s := e.Settings()
	sr := e.sink.SampleRate()
	env := s.Envelope
	releaseStart := start + duration

	pitch := NewParam(freq)
	pitch.SetValueAtTime(freq, start)
	l := &layer{
		filter: newBiquad(lowpass, s.FilterCutoff, s.FilterResonance, float64(sr)),
		gain:   NewParam(silence),
		start:  toFrame(start, sr),
		stop:   toFrame(releaseStart+env.Release+0.1, sr),
	}
	for _, o := range s.oscillators() {
		l.oscs = append(l.oscs, newOscillator(o.Type, pitch, o.Detune))
	}
	env.Schedule(l.gain, start, duration, s.Gain)
	e.sink.Schedule(newVoice(sr, l))
}

// TriggerPercussion schedules one drum hit at start seconds.
func (e *Engine) TriggerPercussion(kind pattern.Drum, start float64) {
	switch kind {
	case pattern.Kick:
		e.kick(start)
	case pattern.Snare:
		e.snare(start)
	case pattern.Hat:
		e.hat(start)
	}
}

func (e *Engine) kick(start float64) {
	sr := e.sink.SampleRate()
	freq := NewParam(120)
	freq.SetValueAtTime(120, start)
	freq.ExponentialRampToValueAtTime(40, start+0.28)
	gain := NewParam(1)
	gain.SetValueAtTime(1, start)
	gain.ExponentialRampToValueAtTime(0.001, start+0.32)
	e.sink.Schedule(newVoice(sr, &layer{
		oscs:  []*oscillator{newOscillator(Sine, freq, 0)},
		gain:  gain,
		start: toFrame(start, sr),
		stop:  toFrame(start+0.36, sr),
	}))
}

func (e *Engine) snare(start float64) {
	sr := e.sink.SampleRate()
	noiseGain := NewParam(0.75)
	noiseGain.SetValueAtTime(0.75, start)
	noiseGain.ExponentialRampToValueAtTime(0.01, start+0.22)
	noise := &layer{
		noise:  &noiseSource{buf: e.NoiseBuffer()},
		filter: newBiquad(bandpass, 2200, 1.1, float64(sr)),
		gain:   noiseGain,
		start:  toFrame(start, sr),
		stop:   toFrame(start+0.24, sr),
	}

	freq := NewParam(220)
	freq.SetValueAtTime(220, start)
	freq.ExponentialRampToValueAtTime(140, start+0.18)
	toneGain := NewParam(0.5)
	toneGain.SetValueAtTime(0.5, start)
	toneGain.ExponentialRampToValueAtTime(0.01, start+0.18)
	tone := &layer{
		oscs:  []*oscillator{newOscillator(Triangle, freq, 0)},
		gain:  toneGain,
		start: toFrame(start, sr),
		stop:  toFrame(start+0.2, sr),
	}
	e.sink.Schedule(newVoice(sr, noise, tone))
}

func (e *Engine) hat(start float64) {
	sr := e.sink.SampleRate()
	gain := NewParam(0.4)
	gain.SetValueAtTime(0.4, start)
	gain.ExponentialRampToValueAtTime(0.01, start+0.12)
	e.sink.Schedule(newVoice(sr, &layer{
		noise:  &noiseSource{buf: e.NoiseBuffer()},
		filter: newBiquad(highpass, 9000, 0.8, float64(sr)),
		gain:   gain,
		start:  toFrame(start, sr),
		stop:   toFrame(start+0.14, sr),
	}))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
