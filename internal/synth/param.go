package synth

import (
	"math"
	"sort"
)

// RampKind says how a Param reaches an event's value.
type RampKind int

const (
	// SetValue jumps to the value at the event time and holds it.
	SetValue RampKind = iota
	// LinearRamp interpolates linearly from the previous event.
	LinearRamp
	// ExponentialRamp interpolates exponentially from the previous event.
	ExponentialRamp
)

// Event is one automation breakpoint. Time is in seconds on the audio clock.
type Event struct {
	Kind  RampKind
	Time  float64
	Value float64
}

// Param is a value automated over time. Events are kept in time order; events
// sharing a time keep insertion order, so a SetValue added after a ramp
// ending at the same instant produces a jump at that instant.
type Param struct {
	initial float64
	events  []Event
}

// NewParam returns a Param that reads initial until its first event.
func NewParam(initial float64) *Param {
	return &Param{initial: initial}
}

func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(Event{Kind: SetValue, Time: t, Value: v})
}

func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.insert(Event{Kind: LinearRamp, Time: t, Value: v})
}

// ExponentialRampToValueAtTime ramps exponentially. If the previous value and
// v differ in sign or either is zero, the previous value is held instead.
func (p *Param) ExponentialRampToValueAtTime(v, t float64) {
	p.insert(Event{Kind: ExponentialRamp, Time: t, Value: v})
}

func (p *Param) insert(e Event) {
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].Time > e.Time })
	p.events = append(p.events, Event{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}

// Events returns the breakpoints in evaluation order.
func (p *Param) Events() []Event {
	return append([]Event(nil), p.events...)
}

// ValueAt evaluates the automation at time t.
func (p *Param) ValueAt(t float64) float64 {
	// Index of the first event strictly after t.
	next := sort.Search(len(p.events), func(i int) bool { return p.events[i].Time > t })
	if next == 0 {
		return p.initial
	}
	cur := p.events[next-1]
	if next == len(p.events) {
		return cur.Value
	}
	to := p.events[next]
	span := to.Time - cur.Time
	if span <= 0 {
		return cur.Value
	}
	frac := (t - cur.Time) / span
	switch to.Kind {
	case LinearRamp:
		return cur.Value + (to.Value-cur.Value)*frac
	case ExponentialRamp:
		if cur.Value == 0 || to.Value == 0 || (cur.Value > 0) != (to.Value > 0) {
			return cur.Value
		}
		return cur.Value * math.Pow(to.Value/cur.Value, frac)
	}
	return cur.Value
}

// silence is the envelope floor; exponential ramps cannot reach zero.
const silence = 0.0001

// Schedule writes the amplitude envelope for a note starting at start whose
// release is triggered at start+hold. The release point does not wait for
// attack and decay: if they have not finished by then, the ramp in progress
// is cut at the release point and the level jumps to gain*Sustain before the
// release ramp begins.
func (e Envelope) Schedule(p *Param, start, hold, gain float64) {
	sustain := gain * e.Sustain
	release := start + hold
	p.SetValueAtTime(silence, start)
	attackEnd := start + e.Attack
	if attackEnd <= release {
		p.LinearRampToValueAtTime(gain, attackEnd)
		decayEnd := attackEnd + e.Decay
		if decayEnd <= release {
			p.LinearRampToValueAtTime(sustain, decayEnd)
		} else {
			p.LinearRampToValueAtTime(lerp(gain, sustain, (release-attackEnd)/e.Decay), release)
		}
	} else {
		p.LinearRampToValueAtTime(lerp(silence, gain, hold/e.Attack), release)
	}
	p.SetValueAtTime(sustain, release)
	p.LinearRampToValueAtTime(silence, release+e.Release)
}

func lerp(a, b, frac float64) float64 {
	return a + (b-a)*frac
}
