package synth

import "math"

// layer is one signal path: sources summed, optionally filtered, then scaled
// by an automated gain. It sounds on [start, stop) in frames.
type layer struct {
	oscs   []*oscillator
	noise  *noiseSource
	filter *biquad
	gain   *Param
	start  int64
	stop   int64
}

// voice is a fire-and-forget sound made of one or more layers.
type voice struct {
	layers     []*layer
	sampleRate float64
	start, end int64
}

func newVoice(sampleRate int, layers ...*layer) *voice {
	v := &voice{layers: layers, sampleRate: float64(sampleRate)}
	for i, l := range layers {
		if i == 0 || l.start < v.start {
			v.start = l.start
		}
		if i == 0 || l.stop > v.end {
			v.end = l.stop
		}
	}
	return v
}

func (v *voice) Span() (start, end int64) { return v.start, v.end }

func (v *voice) Render(dst []float32, frame int64) {
	dt := 1 / v.sampleRate
	for i := range dst {
		f := frame + int64(i)
		t := float64(f) * dt
		var out float64
		for _, l := range v.layers {
			if f < l.start || f >= l.stop {
				continue
			}
			var x float64
			for _, o := range l.oscs {
				x += o.next(t, dt)
			}
			if l.noise != nil {
				x += l.noise.next()
			}
			if l.filter != nil {
				x = l.filter.process(x)
			}
			out += x * l.gain.ValueAt(t)
		}
		dst[i] = float32(out)
	}
}

// toFrame converts audio-clock seconds to a frame index. Non-finite and
// negative times map to frame zero.
func toFrame(seconds float64, sampleRate int) int64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0
	}
	return int64(math.Round(seconds * float64(sampleRate)))
}
