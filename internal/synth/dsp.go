package synth

import (
	"math"
	"math/rand"
)

const twoPi = math.Pi * 2

// waveSample evaluates one cycle of w at phase in [0, 1).
func waveSample(w Waveform, phase float64) float64 {
	switch w {
	case Square:
		if phase < 0.5 {
			return 1
		}
		return -1
	case Sawtooth:
		return 2*phase - 1
	case Triangle:
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	default:
		return math.Sin(twoPi * phase)
	}
}

// oscillator is a phase accumulator with automatable frequency.
type oscillator struct {
	wave   Waveform
	freq   *Param
	detune float64 // frequency multiplier derived from cents
	phase  float64
}

func newOscillator(wave Waveform, freq *Param, cents float64) *oscillator {
	return &oscillator{wave: wave, freq: freq, detune: math.Pow(2, cents/1200)}
}

func (o *oscillator) next(t, dt float64) float64 {
	s := waveSample(o.wave, o.phase)
	o.phase += o.freq.ValueAt(t) * o.detune * dt
	o.phase -= math.Floor(o.phase)
	return s
}

type filterKind int

const (
	lowpass filterKind = iota
	highpass
	bandpass
)

// biquad is a direct-form-I second-order filter using the RBJ cookbook
// coefficients. For lowpass and highpass q is a resonance peak in dB; for
// bandpass it is the linear quality factor.
type biquad struct {
	kind   filterKind
	cutoff float64

	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func newBiquad(kind filterKind, cutoff, q, sampleRate float64) *biquad {
	nyquist := sampleRate / 2
	cutoff = math.Max(10, math.Min(cutoff, nyquist*0.999))
	w0 := twoPi * cutoff / sampleRate
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	var alpha float64
	if kind == bandpass {
		alpha = sinw / (2 * math.Max(q, 0.0001))
	} else {
		alpha = sinw / (2 * math.Pow(10, q/20))
	}
	var b0, b1, b2 float64
	switch kind {
	case highpass:
		b0, b1, b2 = (1+cosw)/2, -(1 + cosw), (1+cosw)/2
	case bandpass:
		b0, b1, b2 = alpha, 0, -alpha
	default:
		b0, b1, b2 = (1-cosw)/2, 1-cosw, (1-cosw)/2
	}
	a0 := 1 + alpha
	return &biquad{
		kind: kind, cutoff: cutoff,
		b0: b0 / a0, b1: b1 / a0, b2: b2 / a0,
		a1: -2 * cosw / a0, a2: (1 - alpha) / a0,
	}
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// NoiseBuffer returns one second of uniform white noise in [-1, 1).
func NoiseBuffer(sampleRate int, rng *rand.Rand) []float32 {
	buf := make([]float32, sampleRate)
	for i := range buf {
		buf[i] = rng.Float32()*2 - 1
	}
	return buf
}

// noiseSource plays a shared buffer once from the start; it reads the
// buffer but never writes it.
type noiseSource struct {
	buf []float32
	pos int
}

func (n *noiseSource) next() float64 {
	if n.pos >= len(n.buf) {
		return 0
	}
	s := n.buf[n.pos]
	n.pos++
	return float64(s)
}
