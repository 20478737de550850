package effects

import "math"

// MinTempo is the slowest tempo an Echo buffer is sized for.
const MinTempo = 40

// Echo is a ping-pong delay whose time is a number of beats at the current
// tempo. Retiming keeps the buffer and only moves the read distance.
type Echo struct {
	sampleRate int
	beats      float64
	bufL, bufR []float32
	pos        int
	length     int
	feedback   float32
	cross      float32
	wet        float32
}

// NewEcho creates an echo of beats quarter notes at bpm.
// feedback: repeat level 0..0.95
// cross: share of each repeat sent to the opposite channel 0..1
// wet: wet/dry mix 0..1
func NewEcho(sampleRate int, bpm, beats float64, feedback, cross, wet float32) *Echo {
	if beats <= 0 {
		beats = 0.75
	}
	size := int(math.Ceil(beats*60/MinTempo*float64(sampleRate))) + 1
	e := &Echo{
		sampleRate: sampleRate,
		beats:      beats,
		bufL:       make([]float32, size),
		bufR:       make([]float32, size),
		feedback:   clamp(feedback, 0, 0.95),
		cross:      clamp(cross, 0, 1),
		wet:        clamp(wet, 0, 1),
	}
	e.SetTempo(bpm)
	return e
}

// SetTempo retimes the echo. Tempos below MinTempo are clamped.
func (e *Echo) SetTempo(bpm float64) {
	if math.IsNaN(bpm) || bpm < MinTempo {
		bpm = MinTempo
	}
	n := int(e.beats * 60 / bpm * float64(e.sampleRate))
	e.length = max(1, min(n, len(e.bufL)))
}

// Length returns the current delay in frames.
func (e *Echo) Length() int { return e.length }

func (e *Echo) Process(l, r float32) (float32, float32) {
	read := e.pos - e.length
	if read < 0 {
		read += len(e.bufL)
	}
	delL, delR := e.bufL[read], e.bufR[read]
	fbL := delL*e.feedback*(1-e.cross) + delR*e.feedback*e.cross
	fbR := delR*e.feedback*(1-e.cross) + delL*e.feedback*e.cross
	e.bufL[e.pos] = l + fbL
	e.bufR[e.pos] = r + fbR
	e.pos++
	if e.pos >= len(e.bufL) {
		e.pos = 0
	}
	return l*(1-e.wet) + delL*e.wet, r*(1-e.wet) + delR*e.wet
}

func (e *Echo) Reset() {
	clear(e.bufL)
	clear(e.bufR)
	e.pos = 0
}
